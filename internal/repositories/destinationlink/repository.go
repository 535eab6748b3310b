// Package destinationlink persists the provenance edges between
// destinations and the submissions that contributed to their snapshots
package destinationlink

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

var columns = []string{"id", "destination_id", "submission_id", "contribution_type", "weight", "created_at"}

// Repository handles destination-submission link persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new link repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// CreateIgnoreDuplicates inserts the links, skipping any
// (destination_id, submission_id) pair that already exists. Re-running
// an aggregation never duplicates provenance.
func (r *Repository) CreateIgnoreDuplicates(ctx context.Context, links []models.DestinationSubmissionLink) error {
	ctx, span := tracing.StartSpan(ctx, "destinationlink.Repository.CreateIgnoreDuplicates")
	defer span.End()

	if len(links) == 0 {
		return nil
	}

	now := time.Now().UTC()

	ib := database.NewInsertBuilder()
	ib.InsertInto("destination_submission_links")
	ib.Cols(columns...)
	for _, link := range links {
		ib.Values(uuid.New().String(), link.DestinationID, link.SubmissionID, link.ContributionType, link.Weight, now)
	}
	ib.OnConflictDoNothing()

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"count": len(links)}).Error("Failed to create destination links")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create destination links")
	}

	return nil
}

// ListByDestination returns the links for a destination, oldest first
func (r *Repository) ListByDestination(ctx context.Context, destinationID string) ([]models.DestinationSubmissionLink, error) {
	ctx, span := tracing.StartSpan(ctx, "destinationlink.Repository.ListByDestination")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("destination_submission_links")
	sb.Where(sb.Equal("destination_id", destinationID))
	sb.OrderBy("created_at ASC", "id ASC")

	query, args := sb.Build()
	var links []models.DestinationSubmissionLink
	if err := r.db.SelectContext(ctx, &links, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"destination_id": destinationID}).Error("Failed to list destination links")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list destination links")
	}

	return links, nil
}

// ListBySubmission returns every destination a submission contributed to
func (r *Repository) ListBySubmission(ctx context.Context, submissionID string) ([]models.DestinationSubmissionLink, error) {
	ctx, span := tracing.StartSpan(ctx, "destinationlink.Repository.ListBySubmission")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("destination_submission_links")
	sb.Where(sb.Equal("submission_id", submissionID))

	query, args := sb.Build()
	var links []models.DestinationSubmissionLink
	if err := r.db.SelectContext(ctx, &links, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"submission_id": submissionID}).Error("Failed to list links by submission")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list links by submission")
	}

	return links, nil
}

// UpsertWeights refreshes the stored weight and contribution type for
// links that already exist and inserts any new ones. Refresh runs call
// this after recomputing weights from the current submission set.
func (r *Repository) UpsertWeights(ctx context.Context, links []models.DestinationSubmissionLink) error {
	ctx, span := tracing.StartSpan(ctx, "destinationlink.Repository.UpsertWeights")
	defer span.End()

	if len(links) == 0 {
		return nil
	}

	now := time.Now().UTC()

	ib := database.NewInsertBuilder()
	ib.InsertInto("destination_submission_links")
	ib.Cols(columns...)
	for _, link := range links {
		ib.Values(uuid.New().String(), link.DestinationID, link.SubmissionID, link.ContributionType, link.Weight, now)
	}
	ub := ib.OnConflict("destination_id", "submission_id")
	ub.Set(
		ub.Assign("contribution_type", database.Excluded("contribution_type")),
		ub.Assign("weight", database.Excluded("weight")),
	)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"count": len(links)}).Error("Failed to upsert destination link weights")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert destination links")
	}

	return nil
}

// DeleteByDestination removes every link for a destination
func (r *Repository) DeleteByDestination(ctx context.Context, destinationID string) error {
	ctx, span := tracing.StartSpan(ctx, "destinationlink.Repository.DeleteByDestination")
	defer span.End()

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("destination_submission_links")
	db.Where(db.Equal("destination_id", destinationID))

	query, args := db.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"destination_id": destinationID}).Error("Failed to delete destination links")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete destination links")
	}

	return nil
}
