package events

import (
	"context"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/aster/pkg/kafka"
	"github.com/Ramsey-B/aster/pkg/models"
)

// Aggregator is the slice of the destination service the ingestion
// handler needs
type Aggregator interface {
	CreateFromSubmissions(ctx context.Context, city, country string, overrides *models.AdminOverrides) (*models.Destination, error)
}

// SubmissionHandler turns submission lifecycle events into incremental
// aggregation runs for the submission's location.
func SubmissionHandler(logger ectologger.Logger, aggregator Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, msg *kafka.IncomingMessage) error {
		if msg.SubmissionEvent == nil {
			return nil
		}

		eventType := msg.GetEventType()
		if eventType != "submission.published" && eventType != "submission.approved" {
			return nil
		}

		log := logger.WithContext(ctx).WithFields(map[string]any{
			"submission_id": msg.SubmissionEvent.SubmissionID,
			"event_type":    eventType,
			"location":      msg.GetLocation(),
		})

		city, country, ok := models.ParseLocation(msg.GetLocation())
		if !ok {
			// a malformed location can never aggregate, drop it
			log.Warn("Skipping submission event with unparseable location")
			return nil
		}

		_, err := aggregator.CreateFromSubmissions(ctx, city, country, nil)
		if err != nil {
			// the event's submission may already be processed or still
			// pending review; nothing to retry in that case
			if strings.Contains(err.Error(), "no submissions found") {
				log.Info("No eligible submissions for location, skipping")
				return nil
			}
			log.WithError(err).Error("Failed to aggregate destination from submission event")
			return err
		}

		log.Info("Aggregated destination from submission event")
		return nil
	}
}
