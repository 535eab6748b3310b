// Package events handles event emission for destination lifecycle changes
package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/aster/pkg/kafka"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// Emitter handles event emission for aster
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitDestinationCreated emits a destination.created event
func (e *Emitter) EmitDestinationCreated(ctx context.Context, dest *models.Destination) error {
	return e.emit(ctx, "destination.created", dest)
}

// EmitDestinationUpdated emits a destination.updated event
func (e *Emitter) EmitDestinationUpdated(ctx context.Context, dest *models.Destination) error {
	return e.emit(ctx, "destination.updated", dest)
}

func (e *Emitter) emit(ctx context.Context, eventType string, dest *models.Destination) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.emit")
	defer span.End()

	event := &kafka.DestinationEvent{
		EventType:       eventType,
		DestinationID:   dest.ID,
		City:            dest.City,
		Country:         dest.Country,
		SubmissionCount: dest.SubmissionCount,
		AggregatedData:  dest.AggregatedData,
	}

	if err := e.producer.PublishDestinationEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type":     eventType,
			"destination_id": dest.ID,
		}).Error("Failed to emit destination event")
		return err
	}

	return nil
}
