package aggregation

import (
	"context"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/aster/pkg/extraction"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
	"github.com/Ramsey-B/aster/pkg/weighting"
)

// SubmissionSource is the narrow submission store view the engine needs
type SubmissionSource interface {
	FindSubmissions(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error)
	MarkProcessed(ctx context.Context, ids []string) error
}

// Contribution is one (submission, contribution type, weight) tuple
// produced alongside a snapshot, used to create provenance links
type Contribution struct {
	SubmissionID     string
	ContributionType models.ContributionType
	Weight           float64
}

// Engine orchestrates an aggregation run: partition submissions by type,
// extract facts, weight, reduce each facet, assemble the snapshot.
type Engine struct {
	logger          ectologger.Logger
	source          SubmissionSource
	experienceLimit int
	fetchTimeout    time.Duration
}

// NewEngine creates an aggregation engine. experienceLimit caps the
// most-recent-first excerpt list on the snapshot.
func NewEngine(logger ectologger.Logger, source SubmissionSource, experienceLimit int, fetchTimeout time.Duration) *Engine {
	if experienceLimit <= 0 {
		experienceLimit = 5
	}
	return &Engine{
		logger:          logger,
		source:          source,
		experienceLimit: experienceLimit,
		fetchTimeout:    fetchTimeout,
	}
}

// FetchEligible loads approved, unprocessed submissions for a location
func (e *Engine) FetchEligible(ctx context.Context, city, country string) ([]models.Submission, error) {
	ctx, span := tracing.StartSpan(ctx, "aggregation.Engine.FetchEligible")
	defer span.End()

	if e.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.fetchTimeout)
		defer cancel()
	}

	location := models.FormatLocation(city, country)
	status := models.SubmissionStatusApproved
	processed := false

	return e.source.FindSubmissions(ctx, models.SubmissionFilter{
		Location:  &location,
		Status:    &status,
		Processed: &processed,
	})
}

// FetchApproved loads every approved submission for a location,
// regardless of processed state. Refresh runs use this to rebuild the
// snapshot from the full current population.
func (e *Engine) FetchApproved(ctx context.Context, city, country string) ([]models.Submission, error) {
	ctx, span := tracing.StartSpan(ctx, "aggregation.Engine.FetchApproved")
	defer span.End()

	if e.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.fetchTimeout)
		defer cancel()
	}

	location := models.FormatLocation(city, country)
	status := models.SubmissionStatusApproved

	return e.source.FindSubmissions(ctx, models.SubmissionFilter{
		Location: &location,
		Status:   &status,
	})
}

// BuildSnapshot reduces a submission set into the composite snapshot and
// the per-submission contribution tuples. Weights are recomputed fresh
// on every run; they classify contributions but do not bias the facet
// statistics, which are simple unweighted reductions.
func (e *Engine) BuildSnapshot(ctx context.Context, city, country string, subs []models.Submission) (*models.AggregatedData, []Contribution) {
	ctx, span := tracing.StartSpan(ctx, "aggregation.Engine.BuildSnapshot")
	defer span.End()

	now := time.Now().UTC()

	var (
		accommodation []extraction.AccommodationFacts
		courses       []extraction.CourseFacts
		expenses      []extraction.ExpenseFacts
		experiences   []extraction.ExperienceFacts
		basicInfo     []extraction.BasicInfoFacts
	)

	type experienceEntry struct {
		facts     extraction.ExperienceFacts
		id        string
		createdAt time.Time
	}
	var experienceEntries []experienceEntry

	contributions := make([]Contribution, 0, len(subs))

	for i := range subs {
		sub := &subs[i]
		data := sub.DataMap()

		switch sub.Type {
		case models.SubmissionTypeAccommodation:
			accommodation = append(accommodation, extraction.Accommodation(data))
		case models.SubmissionTypeCourseMatching:
			courses = append(courses, extraction.Courses(data))
		case models.SubmissionTypeLivingExpenses:
			expenses = append(expenses, extraction.Expenses(data))
		case models.SubmissionTypeExperience:
			facts := extraction.Experience(data)
			experiences = append(experiences, facts)
			experienceEntries = append(experienceEntries, experienceEntry{facts: facts, id: sub.ID, createdAt: sub.CreatedAt})
		case models.SubmissionTypeBasicInfo:
			basicInfo = append(basicInfo, extraction.BasicInfo(data))
		}

		contributions = append(contributions, Contribution{
			SubmissionID:     sub.ID,
			ContributionType: weighting.ContributionType(sub.Type),
			Weight:           weighting.Weight(sub, now),
		})
	}

	expenseSummary := AggregateExpenses(expenses)

	snapshot := &models.AggregatedData{
		TotalSubmissions: len(subs),
		AverageRating:    AggregateRatings(experiences),
		Accommodation:    AggregateAccommodation(accommodation),
		Courses:          AggregateCourses(courses),
		LivingExpenses:   expenseSummary,
		Demographics:     AggregateDemographics(basicInfo, experiences),
		GeneratedAt:      now,
	}

	// Headline cost is the living-expenses total average
	if expenseSummary != nil && expenseSummary.Total != nil {
		avg := expenseSummary.Total.Average
		snapshot.AverageCost = &avg
	}

	// Most-recent-first excerpt list, capped
	sort.SliceStable(experienceEntries, func(i, j int) bool {
		return experienceEntries[i].createdAt.After(experienceEntries[j].createdAt)
	})
	if len(experienceEntries) > e.experienceLimit {
		experienceEntries = experienceEntries[:e.experienceLimit]
	}
	for _, entry := range experienceEntries {
		snapshot.Experiences = append(snapshot.Experiences, models.ExperienceExcerpt{
			SubmissionID: entry.id,
			Title:        entry.facts.Title,
			Excerpt:      entry.facts.Excerpt,
			Rating:       entry.facts.OverallRating,
			CreatedAt:    entry.createdAt,
		})
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"city":              city,
		"country":           country,
		"total_submissions": len(subs),
		"experience_count":  len(experiences),
	}).Debug("Built aggregation snapshot")

	return snapshot, contributions
}

// MarkProcessed flags the submissions as consumed by an incremental run
func (e *Engine) MarkProcessed(ctx context.Context, subs []models.Submission) error {
	ids := make([]string, 0, len(subs))
	for i := range subs {
		ids = append(ids, subs[i].ID)
	}
	if len(ids) == 0 {
		return nil
	}
	return e.source.MarkProcessed(ctx, ids)
}
