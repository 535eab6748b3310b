// Package destinations orchestrates aggregation runs and serves the
// denormalized destination records
package destinations

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/aster/pkg/aggregation"
	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/metrics"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// DestinationStore is the destination persistence view the service needs
type DestinationStore interface {
	GetByID(ctx context.Context, id string) (*models.Destination, error)
	GetByCityCountry(ctx context.Context, city, country string) (*models.Destination, error)
	Upsert(ctx context.Context, city, country string, snapshot json.RawMessage, submissionCount int) (*models.Destination, error)
	UpdateSnapshot(ctx context.Context, id string, snapshot json.RawMessage, submissionCount int) error
	UpdateOverrides(ctx context.Context, id string, overrides json.RawMessage) error
	SetStatus(ctx context.Context, id string, status models.DestinationStatus) error
	SetFeatured(ctx context.Context, id string, featured bool) error
	List(ctx context.Context, req models.DestinationListRequest) ([]models.Destination, int, error)
	SearchCandidates(ctx context.Context, terms []string, limit int) ([]models.Destination, error)
}

// LinkStore is the provenance link persistence view the service needs
type LinkStore interface {
	CreateIgnoreDuplicates(ctx context.Context, links []models.DestinationSubmissionLink) error
	UpsertWeights(ctx context.Context, links []models.DestinationSubmissionLink) error
	ListByDestination(ctx context.Context, destinationID string) ([]models.DestinationSubmissionLink, error)
	DeleteByDestination(ctx context.Context, destinationID string) error
}

// RefreshEnqueuer places background refresh jobs
type RefreshEnqueuer interface {
	EnqueueRefresh(ctx context.Context, destinationID, reason string) error
}

// EventEmitter publishes destination lifecycle events
type EventEmitter interface {
	EmitDestinationCreated(ctx context.Context, dest *models.Destination) error
	EmitDestinationUpdated(ctx context.Context, dest *models.Destination) error
}

// Service orchestrates destination aggregation, reads, curation and search
type Service struct {
	logger       ectologger.Logger
	db           database.DB
	engine       *aggregation.Engine
	destinations DestinationStore
	links        LinkStore
	queue        RefreshEnqueuer
	emitter      EventEmitter
	staleAfter   time.Duration
	now          func() time.Time
}

// NewService creates a destination service. queue and emitter may be nil
// in contexts without Redis or Kafka (tests, one-off tooling); both are
// best-effort side channels.
func NewService(
	logger ectologger.Logger,
	db database.DB,
	engine *aggregation.Engine,
	destinations DestinationStore,
	links LinkStore,
	queue RefreshEnqueuer,
	emitter EventEmitter,
	staleAfter time.Duration,
) *Service {
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}
	return &Service{
		logger:       logger,
		db:           db,
		engine:       engine,
		destinations: destinations,
		links:        links,
		queue:        queue,
		emitter:      emitter,
		staleAfter:   staleAfter,
		now:          time.Now,
	}
}

// CreateFromSubmissions runs an incremental aggregation for (city,
// country): eligible submissions are approved, unprocessed and located
// exactly there. The snapshot is computed fresh, the destination row is
// upserted, provenance links are created idempotently and the consumed
// submissions are marked processed. Returns 404 when the location has no
// eligible submissions.
func (s *Service) CreateFromSubmissions(ctx context.Context, city, country string, overrides *models.AdminOverrides) (*models.Destination, error) {
	ctx, span := tracing.StartSpan(ctx, "destinations.Service.CreateFromSubmissions")
	defer span.End()

	start := s.now()
	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"city":    city,
		"country": country,
	})

	if city == "" || country == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "city and country are required")
	}

	subs, err := s.engine.FetchEligible(ctx, city, country)
	if err != nil {
		metrics.AggregationRunsTotal.WithLabelValues("create", "error").Inc()
		return nil, err
	}
	if len(subs) == 0 {
		metrics.AggregationRunsTotal.WithLabelValues("create", "empty").Inc()
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "no submissions found for %s, %s", city, country)
	}

	snapshot, contributions := s.engine.BuildSnapshot(ctx, city, country, subs)
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		metrics.AggregationRunsTotal.WithLabelValues("create", "error").Inc()
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to encode snapshot")
	}

	ctxTx, tx, err := s.db.GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		metrics.AggregationRunsTotal.WithLabelValues("create", "error").Inc()
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	dest, err := s.destinations.Upsert(ctxTx, city, country, snapshotJSON, len(subs))
	if err != nil {
		metrics.AggregationRunsTotal.WithLabelValues("create", "error").Inc()
		return nil, err
	}
	isNew := dest.CreatedAt.Equal(dest.UpdatedAt)

	if overrides != nil {
		overridesJSON, err := json.Marshal(overrides)
		if err != nil {
			return nil, httperror.NewHTTPError(http.StatusBadRequest, "invalid overrides")
		}
		if err := s.destinations.UpdateOverrides(ctxTx, dest.ID, overridesJSON); err != nil {
			metrics.AggregationRunsTotal.WithLabelValues("create", "error").Inc()
			return nil, err
		}
		dest.AdminOverrides = overridesJSON
	}

	if err := s.links.CreateIgnoreDuplicates(ctxTx, buildLinks(dest.ID, contributions)); err != nil {
		metrics.AggregationRunsTotal.WithLabelValues("create", "error").Inc()
		return nil, err
	}

	if err := s.engine.MarkProcessed(ctxTx, subs); err != nil {
		metrics.AggregationRunsTotal.WithLabelValues("create", "error").Inc()
		return nil, err
	}

	if err := tx.Commit(ctxTx); err != nil {
		metrics.AggregationRunsTotal.WithLabelValues("create", "error").Inc()
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit aggregation")
	}

	metrics.AggregationRunsTotal.WithLabelValues("create", "success").Inc()
	metrics.AggregationDuration.WithLabelValues("create").Observe(s.now().Sub(start).Seconds())
	metrics.AggregationSubmissions.Observe(float64(len(subs)))

	s.emitLifecycle(ctx, dest, isNew)

	log.WithFields(map[string]any{
		"destination_id":    dest.ID,
		"total_submissions": len(subs),
	}).Info("Aggregated destination from submissions")

	return dest, nil
}

// GetWithAggregations returns the destination with admin overrides
// applied over the cached snapshot. Stale snapshots are served as-is and
// a background refresh is enqueued best effort.
func (s *Service) GetWithAggregations(ctx context.Context, id string) (*models.DestinationView, error) {
	ctx, span := tracing.StartSpan(ctx, "destinations.Service.GetWithAggregations")
	defer span.End()

	dest, err := s.destinations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if dest.IsStale(s.staleAfter, s.now()) && s.queue != nil {
		metrics.StaleServesTotal.Inc()
		if err := s.queue.EnqueueRefresh(ctx, dest.ID, "stale_read"); err != nil {
			// Stale data is still served; the next read retries
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"destination_id": dest.ID,
			}).Warn("Failed to enqueue refresh for stale destination")
		}
	}

	view := ApplyOverrides(dest)
	return view, nil
}

// Refresh rebuilds the destination's snapshot from every approved
// submission currently at its location, recomputing weights fresh.
// Invoked by the refresh queue worker.
func (s *Service) Refresh(ctx context.Context, destinationID string) error {
	ctx, span := tracing.StartSpan(ctx, "destinations.Service.Refresh")
	defer span.End()

	start := s.now()

	dest, err := s.destinations.GetByID(ctx, destinationID)
	if err != nil {
		metrics.AggregationRunsTotal.WithLabelValues("refresh", "error").Inc()
		return err
	}

	subs, err := s.engine.FetchApproved(ctx, dest.City, dest.Country)
	if err != nil {
		metrics.AggregationRunsTotal.WithLabelValues("refresh", "error").Inc()
		return err
	}

	snapshot, contributions := s.engine.BuildSnapshot(ctx, dest.City, dest.Country, subs)
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		metrics.AggregationRunsTotal.WithLabelValues("refresh", "error").Inc()
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to encode snapshot")
	}

	if err := s.destinations.UpdateSnapshot(ctx, dest.ID, snapshotJSON, len(subs)); err != nil {
		metrics.AggregationRunsTotal.WithLabelValues("refresh", "error").Inc()
		return err
	}

	if len(subs) == 0 {
		// every contributing submission has since been rejected or
		// archived, so the provenance links go with them
		if err := s.links.DeleteByDestination(ctx, dest.ID); err != nil {
			metrics.AggregationRunsTotal.WithLabelValues("refresh", "error").Inc()
			return err
		}
	} else if err := s.links.UpsertWeights(ctx, buildLinks(dest.ID, contributions)); err != nil {
		metrics.AggregationRunsTotal.WithLabelValues("refresh", "error").Inc()
		return err
	}

	if err := s.engine.MarkProcessed(ctx, subs); err != nil {
		metrics.AggregationRunsTotal.WithLabelValues("refresh", "error").Inc()
		return err
	}

	metrics.AggregationRunsTotal.WithLabelValues("refresh", "success").Inc()
	metrics.AggregationDuration.WithLabelValues("refresh").Observe(s.now().Sub(start).Seconds())
	metrics.AggregationSubmissions.Observe(float64(len(subs)))

	dest.AggregatedData = snapshotJSON
	dest.SubmissionCount = len(subs)
	s.emitLifecycle(ctx, dest, false)

	return nil
}

// UpdateOverrides replaces the destination's admin overrides
func (s *Service) UpdateOverrides(ctx context.Context, id string, overrides models.AdminOverrides) (*models.DestinationView, error) {
	ctx, span := tracing.StartSpan(ctx, "destinations.Service.UpdateOverrides")
	defer span.End()

	overridesJSON, err := json.Marshal(overrides)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "invalid overrides")
	}

	if err := s.destinations.UpdateOverrides(ctx, id, overridesJSON); err != nil {
		return nil, err
	}

	dest, err := s.destinations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return ApplyOverrides(dest), nil
}

// SetStatus changes the destination's curation status
func (s *Service) SetStatus(ctx context.Context, id string, status models.DestinationStatus) error {
	ctx, span := tracing.StartSpan(ctx, "destinations.Service.SetStatus")
	defer span.End()

	return s.destinations.SetStatus(ctx, id, status)
}

// SetFeatured toggles the destination's featured flag
func (s *Service) SetFeatured(ctx context.Context, id string, featured bool) error {
	ctx, span := tracing.StartSpan(ctx, "destinations.Service.SetFeatured")
	defer span.End()

	return s.destinations.SetFeatured(ctx, id, featured)
}

// List returns filtered, paged destinations. Rating order is applied in
// memory over the fetched page because the rating lives inside the JSONB
// snapshot.
func (s *Service) List(ctx context.Context, req models.DestinationListRequest) (*models.DestinationListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "destinations.Service.List")
	defer span.End()

	if req.Limit <= 0 {
		req.Limit = 20
	}
	if req.Limit > 100 {
		req.Limit = 100
	}

	dests, total, err := s.destinations.List(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.OrderBy == "rating" {
		desc := req.Order != "asc"
		sort.SliceStable(dests, func(i, j int) bool {
			ri, rj := snapshotRating(&dests[i]), snapshotRating(&dests[j])
			if desc {
				return ri > rj
			}
			return ri < rj
		})
	}

	return &models.DestinationListResponse{
		Items:      dests,
		TotalCount: total,
		Limit:      req.Limit,
		Offset:     req.Offset,
	}, nil
}

// ApplyOverrides merges admin overrides over the cached snapshot for
// presentation. Top-level override fields win field by field; the stored
// snapshot is never mutated.
func ApplyOverrides(dest *models.Destination) *models.DestinationView {
	view := &models.DestinationView{Destination: *dest}

	snapshot := dest.Snapshot()
	if snapshot == nil {
		view.Aggregations = nil
	} else {
		copied := *snapshot
		view.Aggregations = &copied
	}

	if len(dest.AdminOverrides) == 0 {
		return view
	}

	var overrides models.AdminOverrides
	if err := json.Unmarshal(dest.AdminOverrides, &overrides); err != nil {
		return view
	}

	if overrides.Description != nil {
		view.Description = overrides.Description
	}
	if overrides.HeroImageURL != nil {
		view.HeroImageURL = overrides.HeroImageURL
	}
	if view.Aggregations != nil {
		if overrides.AverageRating != nil {
			view.Aggregations.AverageRating = overrides.AverageRating
		}
		if overrides.AverageCost != nil {
			view.Aggregations.AverageCost = overrides.AverageCost
		}
	}

	return view
}

func (s *Service) emitLifecycle(ctx context.Context, dest *models.Destination, isNew bool) {
	if s.emitter == nil {
		return
	}

	var err error
	eventType := "destination.updated"
	if isNew {
		eventType = "destination.created"
		err = s.emitter.EmitDestinationCreated(ctx, dest)
	} else {
		err = s.emitter.EmitDestinationUpdated(ctx, dest)
	}

	if err != nil {
		metrics.KafkaEventsPublished.WithLabelValues(eventType, "error").Inc()
		return
	}
	metrics.KafkaEventsPublished.WithLabelValues(eventType, "success").Inc()
}

func buildLinks(destinationID string, contributions []aggregation.Contribution) []models.DestinationSubmissionLink {
	links := make([]models.DestinationSubmissionLink, 0, len(contributions))
	for _, c := range contributions {
		links = append(links, models.DestinationSubmissionLink{
			DestinationID:    destinationID,
			SubmissionID:     c.SubmissionID,
			ContributionType: c.ContributionType,
			Weight:           c.Weight,
		})
	}
	return links
}

func snapshotRating(dest *models.Destination) float64 {
	snapshot := dest.Snapshot()
	if snapshot == nil || snapshot.AverageRating == nil {
		return 0
	}
	return *snapshot.AverageRating
}
