// Package destination persists the denormalized per-location records and
// their cached aggregation snapshots
package destination

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

var columns = []string{
	"id", "city", "country", "slug", "description", "status", "featured",
	"aggregated_data", "admin_overrides", "submission_count",
	"last_data_update", "created_at", "updated_at",
}

// Repository handles destination persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new destination repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a destination by ID
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Destination, error) {
	ctx, span := tracing.StartSpan(ctx, "destination.Repository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("destinations")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var dest models.Destination
	if err := r.db.GetContext(ctx, &dest, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "destination %s not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to get destination")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get destination")
	}

	return &dest, nil
}

// GetByCityCountry retrieves a destination by its (city, country) key.
// Returns nil without error when no record exists.
func (r *Repository) GetByCityCountry(ctx context.Context, city, country string) (*models.Destination, error) {
	ctx, span := tracing.StartSpan(ctx, "destination.Repository.GetByCityCountry")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("destinations")
	sb.Where(
		sb.Equal("city", city),
		sb.Equal("country", country),
	)

	query, args := sb.Build()
	var dest models.Destination
	if err := r.db.GetContext(ctx, &dest, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"city": city, "country": country}).Error("Failed to get destination by city/country")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get destination")
	}

	return &dest, nil
}

// Upsert creates or fully replaces the aggregated state of the
// destination for (city, country). The snapshot, submission count and
// last_data_update are replaced wholesale; curation fields (status,
// featured, description, overrides) are preserved on conflict.
func (r *Repository) Upsert(ctx context.Context, city, country string, snapshot json.RawMessage, submissionCount int) (*models.Destination, error) {
	ctx, span := tracing.StartSpan(ctx, "destination.Repository.Upsert")
	defer span.End()

	now := time.Now().UTC()
	id := uuid.New().String()

	query := `
		INSERT INTO destinations (
			id, city, country, slug, status, featured,
			aggregated_data, submission_count, last_data_update,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (city, country)
		DO UPDATE SET
			aggregated_data = EXCLUDED.aggregated_data,
			submission_count = EXCLUDED.submission_count,
			last_data_update = EXCLUDED.last_data_update,
			updated_at = EXCLUDED.updated_at
		RETURNING
			id, city, country, slug, description, status, featured,
			aggregated_data, admin_overrides, submission_count,
			last_data_update, created_at, updated_at,
			(xmax = 0) AS inserted
	`

	var result struct {
		models.Destination
		Inserted bool `db:"inserted"`
	}

	err := r.db.GetContext(ctx, &result, query,
		id, city, country, slugify(city, country), models.DestinationStatusDraft, false,
		snapshot, submissionCount, now,
		now, now,
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"city": city, "country": country}).Error("Failed to upsert destination")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert destination")
	}

	if result.Inserted {
		r.logger.WithContext(ctx).WithFields(map[string]any{"id": result.ID, "city": city, "country": country}).Info("Created destination")
	}

	return &result.Destination, nil
}

// UpdateSnapshot replaces only the cached snapshot fields of an existing
// destination; used by refresh runs
func (r *Repository) UpdateSnapshot(ctx context.Context, id string, snapshot json.RawMessage, submissionCount int) error {
	ctx, span := tracing.StartSpan(ctx, "destination.Repository.UpdateSnapshot")
	defer span.End()

	now := time.Now().UTC()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("destinations")
	ub.Set(
		ub.Assign("aggregated_data", snapshot),
		ub.Assign("submission_count", submissionCount),
		ub.Assign("last_data_update", now),
		ub.Assign("updated_at", now),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to update destination snapshot")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update destination snapshot")
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "destination %s not found", id)
	}

	return nil
}

// UpdateOverrides replaces the destination's admin overrides
func (r *Repository) UpdateOverrides(ctx context.Context, id string, overrides json.RawMessage) error {
	ctx, span := tracing.StartSpan(ctx, "destination.Repository.UpdateOverrides")
	defer span.End()

	return r.updateField(ctx, id, "admin_overrides", overrides)
}

// SetStatus changes the destination's curation status
func (r *Repository) SetStatus(ctx context.Context, id string, status models.DestinationStatus) error {
	ctx, span := tracing.StartSpan(ctx, "destination.Repository.SetStatus")
	defer span.End()

	return r.updateField(ctx, id, "status", status)
}

// SetFeatured toggles the destination's featured flag
func (r *Repository) SetFeatured(ctx context.Context, id string, featured bool) error {
	ctx, span := tracing.StartSpan(ctx, "destination.Repository.SetFeatured")
	defer span.End()

	return r.updateField(ctx, id, "featured", featured)
}

func (r *Repository) updateField(ctx context.Context, id, column string, value any) error {
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("destinations")
	ub.Set(ub.Assign(column, value), ub.Assign("updated_at", time.Now().UTC()))
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id, "column": column}).Error("Failed to update destination")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update destination")
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "destination %s not found", id)
	}

	return nil
}

// List returns destinations matching the request filters. Ordering is
// done in SQL except order_by=rating, which the service sorts in memory
// since the rating lives inside the JSONB snapshot.
func (r *Repository) List(ctx context.Context, req models.DestinationListRequest) ([]models.Destination, int, error) {
	ctx, span := tracing.StartSpan(ctx, "destination.Repository.List")
	defer span.End()

	countBuilder := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countBuilder.Select("COUNT(*)")
	countBuilder.From("destinations")
	applyFilters(countBuilder, req)

	query, args := countBuilder.Build()
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count destinations")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list destinations")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("destinations")
	applyFilters(sb, req)
	sb.OrderBy(orderClause(req))
	sb.Limit(req.Limit)
	if req.Offset > 0 {
		sb.Offset(req.Offset)
	}

	query, args = sb.Build()
	var dests []models.Destination
	if err := r.db.SelectContext(ctx, &dests, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"request": req}).Error("Failed to list destinations")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list destinations")
	}

	return dests, total, nil
}

// SearchCandidates returns published destinations whose text columns or
// snapshot contain any of the terms. Relevance scoring happens in the
// service; this just narrows the candidate set.
func (r *Repository) SearchCandidates(ctx context.Context, terms []string, limit int) ([]models.Destination, error) {
	ctx, span := tracing.StartSpan(ctx, "destination.Repository.SearchCandidates")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("destinations")

	var matches []string
	for _, term := range terms {
		pattern := "%" + term + "%"
		matches = append(matches,
			sb.ILike("city", pattern),
			sb.ILike("country", pattern),
			sb.ILike("description", pattern),
			sb.ILike("aggregated_data::text", pattern),
		)
	}

	where := []string{sb.NotEqual("status", models.DestinationStatusArchived)}
	if len(matches) > 0 {
		where = append(where, sb.Or(matches...))
	}
	sb.Where(where...)
	sb.OrderBy("submission_count DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var dests []models.Destination
	if err := r.db.SelectContext(ctx, &dests, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"terms": terms}).Error("Failed to fetch search candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to search destinations")
	}

	return dests, nil
}

func applyFilters(sb *sqlbuilder.SelectBuilder, req models.DestinationListRequest) {
	var where []string
	if req.Featured != nil {
		where = append(where, sb.Equal("featured", *req.Featured))
	}
	if req.Country != nil {
		where = append(where, sb.Equal("country", *req.Country))
	}
	if len(where) > 0 {
		sb.Where(where...)
	}
}

func orderClause(req models.DestinationListRequest) string {
	direction := "ASC"
	if strings.EqualFold(req.Order, "desc") {
		direction = "DESC"
	}

	switch req.OrderBy {
	case "submission_count":
		return "submission_count " + direction
	case "last_data_update":
		return "last_data_update " + direction + " NULLS LAST"
	case "rating":
		// placeholder ordering; the service re-sorts by snapshot rating
		return "city " + direction
	default:
		return "city " + direction + ", country " + direction
	}
}

func slugify(city, country string) string {
	s := strings.ToLower(city + "-" + country)
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteRune('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
