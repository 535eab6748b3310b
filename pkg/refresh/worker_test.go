package refresh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/aster/pkg/redis"
)

func newTestProcessor() *Processor {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewProcessor(nil, nil, DefaultProcessorConfig(), logger)
}

func TestParseJobNestedPayload(t *testing.T) {
	p := newTestProcessor()

	job, ok := p.parseJob(context.Background(), redis.StreamMessage{
		ID: "1-0",
		Payload: map[string]interface{}{
			"payload": map[string]interface{}{
				"destination_id": "dest-1",
				"reason":         "stale_read",
			},
		},
	})
	assert.True(t, ok)
	assert.Equal(t, "dest-1", job.DestinationID)
	assert.Equal(t, "stale_read", job.Reason)
}

func TestParseJobFlatPayload(t *testing.T) {
	p := newTestProcessor()

	job, ok := p.parseJob(context.Background(), redis.StreamMessage{
		ID: "2-0",
		Payload: map[string]interface{}{
			"destination_id": "dest-2",
		},
	})
	assert.True(t, ok)
	assert.Equal(t, "dest-2", job.DestinationID)
}

func TestParseJobMissingDestination(t *testing.T) {
	p := newTestProcessor()

	_, ok := p.parseJob(context.Background(), redis.StreamMessage{
		ID:      "3-0",
		Payload: map[string]interface{}{"reason": "stale_read"},
	})
	assert.False(t, ok)
}

func TestShutdownDrainsProducersBeforeClosingJobs(t *testing.T) {
	p := newTestProcessor()
	p.running = true

	var producers, workers sync.WaitGroup

	// A producer hammering jobsCh the way consumeLoop does. Closing the
	// channel while this send is pending would panic.
	producers.Add(1)
	go func() {
		defer producers.Done()
		for {
			select {
			case p.jobsCh <- jobItem{}:
			case <-p.stopCh:
				return
			}
		}
	}()

	workers.Add(1)
	go func() {
		defer workers.Done()
		for range p.jobsCh {
		}
	}()

	go p.awaitShutdown(&producers, &workers)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Stop(ctx))
}

func TestDefaultProcessorConfig(t *testing.T) {
	cfg := DefaultProcessorConfig()
	assert.NotEmpty(t, cfg.Stream)
	assert.NotEmpty(t, cfg.ConsumerGroup)
	assert.NotEmpty(t, cfg.ConsumerName)
	assert.Greater(t, cfg.WorkerCount, 0)
}
