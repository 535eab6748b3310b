package events

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/aster/pkg/kafka"
	"github.com/Ramsey-B/aster/pkg/models"
)

type fakeAggregator struct {
	calls []string
	err   error
}

func (f *fakeAggregator) CreateFromSubmissions(ctx context.Context, city, country string, overrides *models.AdminOverrides) (*models.Destination, error) {
	f.calls = append(f.calls, city+"|"+country)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Destination{ID: "dest-1", City: city, Country: country}, nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func submissionMessage(t *testing.T, eventType, location string) *kafka.IncomingMessage {
	t.Helper()

	payload, err := json.Marshal(map[string]any{
		"event_type":    eventType,
		"submission_id": "sub-1",
		"type":          "accommodation",
		"status":        "approved",
		"location":      location,
	})
	require.NoError(t, err)

	msg := &kafka.IncomingMessage{Value: payload}
	require.NoError(t, msg.ParseSubmissionEvent())
	return msg
}

func TestSubmissionHandlerAggregatesLocation(t *testing.T) {
	agg := &fakeAggregator{}
	handler := SubmissionHandler(testLogger(), agg)

	msg := submissionMessage(t, "submission.published", "Prague, Czech Republic")
	err := handler(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, []string{"Prague|Czech Republic"}, agg.calls)
}

func TestSubmissionHandlerIgnoresOtherEvents(t *testing.T) {
	agg := &fakeAggregator{}
	handler := SubmissionHandler(testLogger(), agg)

	msg := submissionMessage(t, "submission.rejected", "Prague, Czech Republic")
	err := handler(context.Background(), msg)
	require.NoError(t, err)
	assert.Empty(t, agg.calls)
}

func TestSubmissionHandlerSkipsBadLocation(t *testing.T) {
	agg := &fakeAggregator{}
	handler := SubmissionHandler(testLogger(), agg)

	msg := submissionMessage(t, "submission.published", "Atlantis")
	err := handler(context.Background(), msg)
	require.NoError(t, err)
	assert.Empty(t, agg.calls)
}

func TestSubmissionHandlerTreatsEmptyRunAsHandled(t *testing.T) {
	agg := &fakeAggregator{err: fmt.Errorf("no submissions found for Prague, Czech Republic")}
	handler := SubmissionHandler(testLogger(), agg)

	msg := submissionMessage(t, "submission.published", "Prague, Czech Republic")
	err := handler(context.Background(), msg)
	require.NoError(t, err)
}

func TestSubmissionHandlerPropagatesFailures(t *testing.T) {
	agg := &fakeAggregator{err: fmt.Errorf("database unavailable")}
	handler := SubmissionHandler(testLogger(), agg)

	msg := submissionMessage(t, "submission.published", "Prague, Czech Republic")
	err := handler(context.Background(), msg)
	require.Error(t, err)
}
