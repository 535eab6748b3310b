package destinations

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/aster/pkg/metrics"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

const searchCandidateLimit = 200

// SearchResult is a scored destination match
type SearchResult struct {
	Destination models.Destination `json:"destination"`
	Score       float64            `json:"score"`
}

// SearchRequest carries a free-text destination search. Type narrows
// results to destinations whose snapshot carries that facet.
type SearchRequest struct {
	Query string `json:"q" query:"q" validate:"required,min=2"`
	Type  string `json:"type,omitempty" query:"type" validate:"omitempty,oneof=accommodation course-matching living-expenses experience"`
	Limit int    `json:"limit,omitempty" query:"limit" validate:"omitempty,min=1,max=50"`
}

// SearchResponse is the ranked search payload
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
}

// Search ranks non-archived destinations against a free-text query. The
// database narrows candidates with ILIKE; ranking happens in memory over
// name, city, country, description and snapshot text.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "destinations.Service.Search")
	defer span.End()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "search query is required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}

	metrics.SearchQueriesTotal.Inc()

	terms := strings.Fields(strings.ToLower(query))
	candidates, err := s.destinations.SearchCandidates(ctx, terms, searchCandidateLimit)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(candidates))
	for i := range candidates {
		if req.Type != "" && !hasFacet(&candidates[i], req.Type) {
			continue
		}
		score := scoreDestination(&candidates[i], strings.ToLower(query), terms)
		if score <= 0 {
			continue
		}
		results = append(results, SearchResult{
			Destination: candidates[i],
			Score:       score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Destination.SubmissionCount > results[j].Destination.SubmissionCount
	})

	if len(results) > limit {
		results = results[:limit]
	}

	return &SearchResponse{
		Query:   query,
		Results: results,
		Total:   len(results),
	}, nil
}

func hasFacet(dest *models.Destination, facet string) bool {
	snapshot := dest.Snapshot()
	if snapshot == nil {
		return false
	}
	switch facet {
	case "accommodation":
		return snapshot.Accommodation != nil
	case "course-matching":
		return snapshot.Courses != nil
	case "living-expenses":
		return snapshot.LivingExpenses != nil
	case "experience":
		return len(snapshot.Experiences) > 0
	}
	return false
}

// scoreDestination assigns a relevance score: a full-query match on the
// destination name dominates, then field-weighted term frequency with a
// prefix bonus on city and country.
func scoreDestination(dest *models.Destination, query string, terms []string) float64 {
	city := strings.ToLower(dest.City)
	country := strings.ToLower(dest.Country)
	name := strings.ToLower(dest.Name())

	var description string
	if dest.Description != nil {
		description = strings.ToLower(*dest.Description)
	}

	var snapshotText string
	if snapshot := dest.Snapshot(); snapshot != nil {
		var b strings.Builder
		if snapshot.Accommodation != nil {
			for accType := range snapshot.Accommodation.Types {
				b.WriteString(strings.ToLower(accType))
				b.WriteByte(' ')
			}
		}
		for _, exp := range snapshot.Experiences {
			if exp.Title != nil {
				b.WriteString(strings.ToLower(*exp.Title))
				b.WriteByte(' ')
			}
		}
		if snapshot.Demographics != nil {
			for _, entry := range snapshot.Demographics.TopNationalities {
				b.WriteString(strings.ToLower(entry.Value))
				b.WriteByte(' ')
			}
		}
		snapshotText = b.String()
	}

	var score float64
	if strings.Contains(name, query) {
		score += 10
	}

	for _, term := range terms {
		switch {
		case strings.HasPrefix(city, term) || strings.HasPrefix(country, term):
			score += 5
		case strings.Contains(city, term) || strings.Contains(country, term):
			score += 3
		}
		if strings.Contains(description, term) {
			score += 2
		}
		score += float64(strings.Count(snapshotText, term))
	}

	return score
}
