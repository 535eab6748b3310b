// Package refresh implements the stale-while-revalidate refresh queue.
// Reads serve the cached snapshot immediately and enqueue a refresh job;
// a worker pool re-aggregates in the background. Two concurrent refreshes
// for the same destination are an accepted race: each run computes a
// full snapshot from current data, so the last writer wins and both
// converge.
package refresh

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/aster/pkg/metrics"
	"github.com/Ramsey-B/aster/pkg/redis"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// JobTypeRefresh is the job type for destination refreshes
const JobTypeRefresh = "destination_refresh"

// Job is a request to re-aggregate one destination
type Job struct {
	DestinationID string `json:"destination_id"`
	Reason        string `json:"reason"`
}

// Queue enqueues refresh jobs onto a Redis Stream. A short-TTL dedup key
// keeps a hot destination from flooding the stream within the refresh
// window; dedup is best effort only.
type Queue struct {
	client      *redis.Client
	streams     *redis.Streams
	logger      ectologger.Logger
	stream      string
	dedupWindow time.Duration
}

// NewQueue creates a refresh queue
func NewQueue(client *redis.Client, streams *redis.Streams, logger ectologger.Logger, stream string, dedupWindow time.Duration) *Queue {
	return &Queue{
		client:      client,
		streams:     streams,
		logger:      logger,
		stream:      stream,
		dedupWindow: dedupWindow,
	}
}

// EnqueueRefresh places a refresh job for the destination on the stream.
// Returns without error when the job was deduplicated.
func (q *Queue) EnqueueRefresh(ctx context.Context, destinationID, reason string) error {
	ctx, span := tracing.StartSpan(ctx, "refresh.Queue.EnqueueRefresh")
	defer span.End()

	if q.dedupWindow > 0 {
		set, err := q.client.SetNX(ctx, dedupKey(destinationID), "1", q.dedupWindow)
		if err != nil {
			// Dedup is an optimization; enqueue anyway when Redis hiccups
			q.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"destination_id": destinationID,
			}).Warn("Failed to check refresh dedup key")
		} else if !set {
			metrics.RefreshJobsEnqueued.WithLabelValues("deduped").Inc()
			q.logger.WithContext(ctx).WithFields(map[string]any{
				"destination_id": destinationID,
			}).Debug("Refresh already queued within dedup window")
			return nil
		}
	}

	job := &redis.JobMessage{
		ID:   uuid.New().String(),
		Type: JobTypeRefresh,
		Payload: map[string]interface{}{
			"destination_id": destinationID,
			"reason":         reason,
		},
	}

	if _, err := q.streams.Publish(ctx, q.stream, job); err != nil {
		metrics.RefreshJobsEnqueued.WithLabelValues("error").Inc()
		return err
	}

	metrics.RefreshJobsEnqueued.WithLabelValues("enqueued").Inc()
	return nil
}

func dedupKey(destinationID string) string {
	return "aster:refresh:dedup:" + destinationID
}
