package event

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rental/backend/internal/domain/shared"
	"github.com/rental/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// OutboxProcessorConfig holds configuration for the outbox processor
type OutboxProcessorConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// DefaultOutboxProcessorConfig returns default configuration
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:        100,
		PollInterval:     5 * time.Second,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// OutboxMetrics receives delivery outcomes
type OutboxMetrics interface {
	OutboxDelivered(ctx context.Context, eventType string)
	OutboxFailed(ctx context.Context, eventType string, dead bool)
}

// OutboxProcessor delivers outbox entries to the event bus in the background.
// Failed deliveries back off exponentially until the entry's retry budget is
// spent, then the entry is dead-lettered for manual requeue.
type OutboxProcessor struct {
	repo       shared.OutboxRepository
	bus        shared.EventPublisher
	serializer *EventSerializer
	config     OutboxProcessorConfig
	logger     *zap.Logger
	metrics    OutboxMetrics
	now        func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOutboxProcessor creates a new OutboxProcessor. metrics may be nil.
func NewOutboxProcessor(
	repo shared.OutboxRepository,
	bus shared.EventPublisher,
	serializer *EventSerializer,
	config OutboxProcessorConfig,
	logger *zap.Logger,
	metrics OutboxMetrics,
) *OutboxProcessor {
	defaults := DefaultOutboxProcessorConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.CleanupRetention <= 0 {
		config.CleanupRetention = defaults.CleanupRetention
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxProcessor{
		repo:       repo,
		bus:        bus,
		serializer: serializer,
		config:     config,
		logger:     logger,
		metrics:    metrics,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the polling loop and, when enabled, the cleanup loop
func (p *OutboxProcessor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.loop(ctx, p.config.PollInterval, func(c context.Context) { p.ProcessOnce(c) })

	if p.config.CleanupEnabled {
		p.wg.Add(1)
		go p.loop(ctx, p.config.CleanupInterval, func(c context.Context) { _, _ = p.Cleanup(c) })
	}

	p.logger.Info("Outbox processor started",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Duration("poll_interval", p.config.PollInterval),
		zap.Bool("cleanup_enabled", p.config.CleanupEnabled),
	)
	return nil
}

// Stop cancels the loops and waits for the in-flight batch
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Outbox processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *OutboxProcessor) loop(ctx context.Context, every time.Duration, fn func(context.Context)) {
	defer p.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// ProcessOnce delivers one batch of pending entries and one batch of due
// retries. It returns how many entries were delivered.
func (p *OutboxProcessor) ProcessOnce(ctx context.Context) int {
	delivered := 0

	pending, err := p.repo.FindPending(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.Error("Failed to load pending outbox entries", zap.Error(err))
		return 0
	}
	delivered += p.deliver(ctx, pending)

	retryable, err := p.repo.FindRetryable(ctx, p.now(), p.config.BatchSize)
	if err != nil {
		p.logger.Error("Failed to load retryable outbox entries", zap.Error(err))
		return delivered
	}
	delivered += p.deliver(ctx, retryable)
	return delivered
}

func (p *OutboxProcessor) deliver(ctx context.Context, entries []*shared.OutboxEntry) int {
	if len(entries) == 0 {
		return 0
	}
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}

	claimed, err := p.repo.MarkProcessing(ctx, ids)
	if err != nil {
		p.logger.Error("Failed to claim outbox entries", zap.Error(err))
		return 0
	}

	delivered := 0
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels(telemetry.OperationOutboxDispatch), func(c context.Context) {
		for _, entry := range claimed {
			if p.deliverEntry(c, entry) {
				delivered++
			}
		}
	})
	return delivered
}

func (p *OutboxProcessor) deliverEntry(ctx context.Context, entry *shared.OutboxEntry) bool {
	event, err := p.serializer.Deserialize(entry.EventType, entry.Payload)
	if err == nil {
		err = p.bus.Publish(ctx, event)
	}
	if err != nil {
		p.fail(ctx, entry, err)
		return false
	}

	entry.MarkSent()
	if err := p.repo.Update(ctx, entry); err != nil {
		p.logger.Error("Failed to mark outbox entry sent",
			zap.String("event_id", entry.EventID.String()),
			zap.Error(err),
		)
		return false
	}
	if p.metrics != nil {
		p.metrics.OutboxDelivered(ctx, entry.EventType)
	}
	p.logger.Debug("Outbox entry delivered",
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
	)
	return true
}

func (p *OutboxProcessor) fail(ctx context.Context, entry *shared.OutboxEntry, cause error) {
	entry.MarkFailed(cause.Error())
	fields := []zap.Field{
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
		zap.String("tenant_id", entry.TenantID.String()),
		zap.String("aggregate_id", entry.AggregateID.String()),
		zap.Int("retry_count", entry.RetryCount),
		zap.Error(cause),
	}
	if entry.IsDead() {
		p.logger.Warn("Outbox entry moved to dead letter", fields...)
	} else {
		p.logger.Error("Outbox delivery failed", append(fields, zap.Timep("next_retry_at", entry.NextRetryAt))...)
	}
	if p.metrics != nil {
		p.metrics.OutboxFailed(ctx, entry.EventType, entry.IsDead())
	}
	if err := p.repo.Update(ctx, entry); err != nil {
		p.logger.Error("Failed to update outbox entry", zap.String("event_id", entry.EventID.String()), zap.Error(err))
	}
}

// Cleanup deletes delivered entries older than the retention window
func (p *OutboxProcessor) Cleanup(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.config.CleanupRetention)
	deleted, err := p.repo.DeleteSentBefore(ctx, cutoff)
	if err != nil {
		p.logger.Error("Failed to clean up outbox", zap.Error(err))
		return 0, err
	}
	if deleted > 0 {
		p.logger.Info("Cleaned up outbox entries", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
	return deleted, nil
}
