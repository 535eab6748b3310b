package refresh

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/aster/pkg/appcontext"
	"github.com/Ramsey-B/aster/pkg/metrics"
	"github.com/Ramsey-B/aster/pkg/redis"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

const (
	// DefaultBatchSize is the default number of messages to consume at once
	DefaultBatchSize = 10

	// DefaultBlockTimeout is how long to block waiting for messages
	DefaultBlockTimeout = 5 * time.Second

	// DefaultClaimInterval is how often to claim stale pending messages
	DefaultClaimInterval = 30 * time.Second

	// DefaultClaimMinIdle is the minimum idle time before claiming a message
	DefaultClaimMinIdle = 60 * time.Second
)

// Refresher re-aggregates a single destination
type Refresher interface {
	Refresh(ctx context.Context, destinationID string) error
}

// ProcessorConfig holds configuration for the refresh processor
type ProcessorConfig struct {
	Stream        string
	ConsumerGroup string
	ConsumerName  string
	BatchSize     int64
	BlockTimeout  time.Duration
	ClaimInterval time.Duration
	ClaimMinIdle  time.Duration
	WorkerCount   int
}

// DefaultProcessorConfig returns the default processor configuration
func DefaultProcessorConfig() ProcessorConfig {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = uuid.New().String()[:8]
	}

	return ProcessorConfig{
		Stream:        "aster:refresh",
		ConsumerGroup: "aster-refresh-workers",
		ConsumerName:  hostname,
		BatchSize:     DefaultBatchSize,
		BlockTimeout:  DefaultBlockTimeout,
		ClaimInterval: DefaultClaimInterval,
		ClaimMinIdle:  DefaultClaimMinIdle,
		WorkerCount:   2,
	}
}

type jobItem struct {
	message redis.StreamMessage
	job     Job
}

// Processor consumes refresh jobs from the Redis Stream and runs them
// through the Refresher. Failed jobs are logged and acked rather than
// retried: the destination stays stale and the next read re-enqueues it.
type Processor struct {
	streams   *redis.Streams
	refresher Refresher
	config    ProcessorConfig
	logger    ectologger.Logger

	stopCh   chan struct{}
	stoppedC chan struct{}
	jobsCh   chan jobItem

	running bool
	mu      sync.RWMutex
}

// NewProcessor creates a new refresh processor
func NewProcessor(streams *redis.Streams, refresher Refresher, config ProcessorConfig, logger ectologger.Logger) *Processor {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.BlockTimeout <= 0 {
		config.BlockTimeout = DefaultBlockTimeout
	}
	if config.ClaimInterval <= 0 {
		config.ClaimInterval = DefaultClaimInterval
	}
	if config.ClaimMinIdle <= 0 {
		config.ClaimMinIdle = DefaultClaimMinIdle
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}

	return &Processor{
		streams:   streams,
		refresher: refresher,
		config:    config,
		logger:    logger,
		stopCh:    make(chan struct{}),
		stoppedC:  make(chan struct{}),
		jobsCh:    make(chan jobItem, config.BatchSize*2),
	}
}

// Start starts the processor
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("processor already running")
	}
	p.running = true
	p.mu.Unlock()

	p.logger.WithContext(ctx).Infof("Starting refresh processor: stream=%s group=%s consumer=%s workers=%d",
		p.config.Stream, p.config.ConsumerGroup, p.config.ConsumerName, p.config.WorkerCount)

	if err := p.streams.CreateConsumerGroup(ctx, p.config.Stream, p.config.ConsumerGroup); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to create consumer group")
		return err
	}

	var producers, workers sync.WaitGroup
	for i := 0; i < p.config.WorkerCount; i++ {
		workers.Add(1)
		go p.worker(ctx, &workers, i)
	}

	producers.Add(1)
	go p.consumeLoop(ctx, &producers)

	producers.Add(1)
	go p.claimLoop(ctx, &producers)

	go p.awaitShutdown(&producers, &workers)

	return nil
}

// awaitShutdown sequences the graceful stop: the producer loops must exit
// before jobsCh closes, otherwise a pending send races the close. Workers
// then drain whatever is buffered and exit.
func (p *Processor) awaitShutdown(producers, workers *sync.WaitGroup) {
	<-p.stopCh
	producers.Wait()
	close(p.jobsCh)
	workers.Wait()
	close(p.stoppedC)
}

// Stop stops the processor gracefully
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.stoppedC:
		p.logger.WithContext(ctx).Info("Refresh processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WithContext(ctx).Warn("Refresh processor shutdown timed out")
		return ctx.Err()
	}

	return nil
}

// IsRunning returns whether the processor is running
func (p *Processor) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

func (p *Processor) consumeLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		messages, err := p.streams.Consume(
			ctx,
			p.config.Stream,
			p.config.ConsumerGroup,
			p.config.ConsumerName,
			p.config.BatchSize,
			p.config.BlockTimeout,
		)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.WithContext(ctx).WithError(err).Warn("Failed to consume refresh jobs")
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range messages {
			job, ok := p.parseJob(ctx, msg)
			if !ok {
				// Ack malformed messages so they do not clog the group
				if err := p.streams.Ack(ctx, p.config.Stream, p.config.ConsumerGroup, msg.ID); err != nil {
					p.logger.WithContext(ctx).WithError(err).Warnf("Failed to ack invalid message %s", msg.ID)
				}
				continue
			}

			select {
			case p.jobsCh <- jobItem{message: msg, job: job}:
			case <-p.stopCh:
				return
			}
		}
	}
}

func (p *Processor) claimLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(p.config.ClaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.claimPending(ctx)
		}
	}
}

func (p *Processor) claimPending(ctx context.Context) {
	pending, err := p.streams.Pending(ctx, p.config.Stream, p.config.ConsumerGroup, p.config.BatchSize)
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Warn("Failed to get pending refresh jobs")
		return
	}

	var staleIDs []string
	for _, msg := range pending {
		if msg.Idle >= p.config.ClaimMinIdle {
			staleIDs = append(staleIDs, msg.ID)
		}
	}
	if len(staleIDs) == 0 {
		return
	}

	claimed, err := p.streams.Claim(ctx, p.config.Stream, p.config.ConsumerGroup, p.config.ConsumerName, p.config.ClaimMinIdle, staleIDs...)
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Warn("Failed to claim pending refresh jobs")
		return
	}

	for _, msg := range claimed {
		job, ok := p.parseJob(ctx, msg)
		if !ok {
			continue
		}

		select {
		case p.jobsCh <- jobItem{message: msg, job: job}:
		case <-p.stopCh:
			return
		default:
			// Channel full, the claim ticker will pick it up again
		}
	}
}

func (p *Processor) worker(ctx context.Context, wg *sync.WaitGroup, id int) {
	defer wg.Done()

	for item := range p.jobsCh {
		p.processJob(ctx, item)

		// Ack regardless of outcome; a stale destination is re-enqueued
		// by the next read that notices it
		if err := p.streams.Ack(ctx, p.config.Stream, p.config.ConsumerGroup, item.message.ID); err != nil {
			p.logger.WithContext(ctx).WithError(err).Warnf("Failed to ack message %s", item.message.ID)
		}
	}

	p.logger.WithContext(ctx).Debugf("Refresh worker %d stopped", id)
}

func (p *Processor) processJob(ctx context.Context, item jobItem) {
	ctx, span := tracing.StartSpan(ctx, "refresh.Processor.processJob")
	defer span.End()

	ctx = appcontext.SetRequestID(ctx, uuid.New().String())

	metrics.RefreshJobsInFlight.Inc()
	defer metrics.RefreshJobsInFlight.Dec()

	start := time.Now()
	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"destination_id": item.job.DestinationID,
		"reason":         item.job.Reason,
	})

	if err := p.refresher.Refresh(ctx, item.job.DestinationID); err != nil {
		metrics.RefreshJobsProcessed.WithLabelValues("error").Inc()
		log.WithError(err).Warn("Refresh job failed")
		return
	}

	metrics.RefreshJobsProcessed.WithLabelValues("success").Inc()
	log.WithFields(map[string]any{"duration": time.Since(start)}).Info("Refreshed destination")
}

func (p *Processor) parseJob(ctx context.Context, msg redis.StreamMessage) (Job, bool) {
	var job Job

	payload, _ := msg.Payload["payload"].(map[string]interface{})
	if payload == nil {
		payload = msg.Payload
	}

	job.DestinationID, _ = payload["destination_id"].(string)
	job.Reason, _ = payload["reason"].(string)

	if job.DestinationID == "" {
		p.logger.WithContext(ctx).Warnf("Refresh job %s missing destination_id", msg.ID)
		return Job{}, false
	}

	return job, true
}
