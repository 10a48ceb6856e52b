package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// OverdueRefresher re-derives the stored payment status of rentals whose end
// date has passed. Implemented by rental.OverdueService.
type OverdueRefresher interface {
	RefreshOverdue(ctx context.Context) (int, error)
}

// OverdueSchedulerConfig holds the sweep schedule
type OverdueSchedulerConfig struct {
	// Schedule is a standard five-field cron expression evaluated in UTC
	Schedule string
	// JobTimeout bounds a single sweep
	JobTimeout time.Duration
}

// DefaultOverdueSchedulerConfig runs the sweep at the top of every hour
func DefaultOverdueSchedulerConfig() OverdueSchedulerConfig {
	return OverdueSchedulerConfig{
		Schedule:   "0 * * * *",
		JobTimeout: 5 * time.Minute,
	}
}

// OverdueScheduler triggers the overdue sweep on a cron schedule. A sweep
// still running when the next tick fires causes that tick to be skipped.
type OverdueScheduler struct {
	config    OverdueSchedulerConfig
	refresher OverdueRefresher
	logger    *zap.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	baseCtx context.Context
	cancel  context.CancelFunc
	lastRun time.Time
	lastErr error
}

// NewOverdueScheduler validates the schedule and builds the scheduler
func NewOverdueScheduler(config OverdueSchedulerConfig, refresher OverdueRefresher, logger *zap.Logger) (*OverdueScheduler, error) {
	defaults := DefaultOverdueSchedulerConfig()
	if config.Schedule == "" {
		config.Schedule = defaults.Schedule
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = defaults.JobTimeout
	}
	if _, err := cron.ParseStandard(config.Schedule); err != nil {
		return nil, fmt.Errorf("%w: cron %q: %v", ErrInvalidConfig, config.Schedule, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverdueScheduler{
		config:    config,
		refresher: refresher,
		logger:    logger.With(zap.String("job", "overdue_sweep")),
	}, nil
}

// Start registers the sweep and starts the cron runner. Cancelling ctx stops
// in-flight sweeps but not the runner; call Stop for that.
func (s *OverdueScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return ErrAlreadyRunning
	}

	cl := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(s.config.Schedule, func() { s.RunNow() }); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	s.baseCtx, s.cancel = context.WithCancel(ctx)
	s.cron = c
	c.Start()

	s.logger.Info("Overdue scheduler started",
		zap.String("schedule", s.config.Schedule),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop halts the runner and waits for a running sweep, up to ctx's deadline
func (s *OverdueScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	done := c.Stop()
	select {
	case <-done.Done():
		cancel()
		s.logger.Info("Overdue scheduler stopped")
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

// RunNow performs one sweep synchronously and returns the number of rentals
// whose stored payment status changed
func (s *OverdueScheduler) RunNow() (int, error) {
	s.mu.Lock()
	base := s.baseCtx
	s.mu.Unlock()
	if base == nil {
		base = context.Background()
	}

	ctx, cancel := context.WithTimeout(base, s.config.JobTimeout)
	defer cancel()

	start := time.Now()
	changed, err := s.refresher.RefreshOverdue(ctx)

	s.mu.Lock()
	s.lastRun, s.lastErr = start, err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Overdue sweep failed", zap.Int("changed", changed), zap.Error(err))
		return changed, err
	}
	s.logger.Info("Overdue sweep completed",
		zap.Int("changed", changed),
		zap.Duration("duration", time.Since(start)),
	)
	return changed, nil
}

// LastRun returns the start time and error of the most recent sweep
func (s *OverdueScheduler) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, zap.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
