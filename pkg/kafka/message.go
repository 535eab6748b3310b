package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ramsey-B/aster/pkg/models"
)

// SubmissionEvent is the payload the CMS publishes when a submission is
// approved and published
type SubmissionEvent struct {
	EventType    string                  `json:"event_type"`
	SubmissionID string                  `json:"submission_id"`
	Type         models.SubmissionType   `json:"type"`
	Status       models.SubmissionStatus `json:"status"`
	Location     string                  `json:"location"`
	Timestamp    time.Time               `json:"timestamp"`
}

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Parsed content
	SubmissionEvent *SubmissionEvent
}

// ParseSubmissionEvent parses the message value as a submission event
func (m *IncomingMessage) ParseSubmissionEvent() error {
	var event SubmissionEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return err
	}
	if event.SubmissionID == "" {
		return fmt.Errorf("submission event missing submission_id")
	}
	m.SubmissionEvent = &event
	return nil
}

// GetEventType returns the event type from the payload or headers
func (m *IncomingMessage) GetEventType() string {
	if m.SubmissionEvent != nil && m.SubmissionEvent.EventType != "" {
		return m.SubmissionEvent.EventType
	}
	return m.Headers["event_type"]
}

// GetLocation returns the submission's location string
func (m *IncomingMessage) GetLocation() string {
	if m.SubmissionEvent != nil {
		return m.SubmissionEvent.Location
	}
	return ""
}
