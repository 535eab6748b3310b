// Package submission persists student submissions and serves the
// aggregation engine's eligibility queries
package submission

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

var columns = []string{"id", "type", "status", "location", "data", "user_id", "processed", "created_at", "updated_at"}

// Repository handles submission persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new submission repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new submission in pending status
func (r *Repository) Create(ctx context.Context, req models.CreateSubmissionRequest) (*models.Submission, error) {
	ctx, span := tracing.StartSpan(ctx, "submission.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	sub := models.Submission{
		ID:        uuid.New().String(),
		Type:      req.Type,
		Status:    models.SubmissionStatusPending,
		Location:  req.Location,
		Data:      req.Data,
		UserID:    req.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("submissions")
	ib.Cols(columns...)
	ib.Values(sub.ID, sub.Type, sub.Status, sub.Location, sub.Data, sub.UserID, sub.Processed, sub.CreatedAt, sub.UpdatedAt)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"type": sub.Type, "location": sub.Location}).Error("Failed to create submission")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create submission")
	}

	return &sub, nil
}

// Get retrieves a submission by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.Submission, error) {
	ctx, span := tracing.StartSpan(ctx, "submission.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("submissions")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var sub models.Submission
	if err := r.db.GetContext(ctx, &sub, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "submission %s not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to get submission")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get submission")
	}

	return &sub, nil
}

// FindSubmissions returns submissions matching the filter, oldest first
// so aggregation iteration order is deterministic
func (r *Repository) FindSubmissions(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	ctx, span := tracing.StartSpan(ctx, "submission.Repository.FindSubmissions")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("submissions")

	var where []string
	if filter.Location != nil {
		where = append(where, sb.Equal("location", *filter.Location))
	}
	if filter.Status != nil {
		where = append(where, sb.Equal("status", *filter.Status))
	}
	if filter.Type != nil {
		where = append(where, sb.Equal("type", *filter.Type))
	}
	if filter.Processed != nil {
		where = append(where, sb.Equal("processed", *filter.Processed))
	}
	if len(where) > 0 {
		sb.Where(where...)
	}

	sb.OrderBy("created_at ASC", "id ASC")
	if filter.Limit > 0 {
		sb.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		sb.Offset(filter.Offset)
	}

	query, args := sb.Build()
	var subs []models.Submission
	if err := r.db.SelectContext(ctx, &subs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"filter": filter}).Error("Failed to find submissions")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find submissions")
	}

	return subs, nil
}

// MarkProcessed flags the submissions as consumed by an aggregation run.
// Runs inside the caller's transaction when one is open on the context.
func (r *Repository) MarkProcessed(ctx context.Context, ids []string) error {
	ctx, span := tracing.StartSpan(ctx, "submission.Repository.MarkProcessed")
	defer span.End()

	if len(ids) == 0 {
		return nil
	}

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("submissions")
	ub.Set(ub.Assign("processed", true), ub.Assign("updated_at", time.Now().UTC()))
	ub.Where(ub.In("id", sqlbuilder.Flatten(ids)...))

	query, args := ub.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"count": len(ids)}).Error("Failed to mark submissions processed")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark submissions processed")
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"count": len(ids)}).Error("Failed to commit mark processed")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit")
	}

	return nil
}

// SetStatus moves a submission through the moderation workflow
func (r *Repository) SetStatus(ctx context.Context, id string, status models.SubmissionStatus) error {
	ctx, span := tracing.StartSpan(ctx, "submission.Repository.SetStatus")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("submissions")
	ub.Set(ub.Assign("status", status), ub.Assign("updated_at", time.Now().UTC()))
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id, "status": status}).Error("Failed to update submission status")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update submission status")
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "submission %s not found", id)
	}

	return nil
}
