package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/aster/pkg/tracing"
)

// Producer handles Kafka event emission
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// DestinationEvent represents a destination lifecycle event
type DestinationEvent struct {
	EventType       string          `json:"event_type"` // created, updated
	DestinationID   string          `json:"destination_id"`
	City            string          `json:"city"`
	Country         string          `json:"country"`
	SubmissionCount int             `json:"submission_count"`
	AggregatedData  json.RawMessage `json:"aggregated_data,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}

// PublishDestinationEvent publishes a destination event, keyed by
// destination ID so updates for the same destination stay ordered
func (p *Producer) PublishDestinationEvent(ctx context.Context, event *DestinationEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishDestinationEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.DestinationID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "city", Value: []byte(event.City)},
			{Key: "country", Value: []byte(event.Country)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish destination event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type":     event.EventType,
		"destination_id": event.DestinationID,
	}).Debug("Published destination event")

	return nil
}
