package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRefresher struct {
	calls   atomic.Int32
	changed int
	err     error
	block   chan struct{}
}

func (f *fakeRefresher) RefreshOverdue(ctx context.Context) (int, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return f.changed, f.err
}

func TestNewOverdueScheduler(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		s, err := NewOverdueScheduler(OverdueSchedulerConfig{}, &fakeRefresher{}, nil)
		require.NoError(t, err)
		assert.Equal(t, "0 * * * *", s.config.Schedule)
		assert.Equal(t, 5*time.Minute, s.config.JobTimeout)
	})

	t.Run("rejects an invalid expression", func(t *testing.T) {
		_, err := NewOverdueScheduler(OverdueSchedulerConfig{Schedule: "every hour"}, &fakeRefresher{}, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("accepts descriptors", func(t *testing.T) {
		_, err := NewOverdueScheduler(OverdueSchedulerConfig{Schedule: "@every 30m"}, &fakeRefresher{}, nil)
		assert.NoError(t, err)
	})
}

func TestOverdueScheduler_RunNow(t *testing.T) {
	refresher := &fakeRefresher{changed: 3}
	s, err := NewOverdueScheduler(DefaultOverdueSchedulerConfig(), refresher, zap.NewNop())
	require.NoError(t, err)

	changed, err := s.RunNow()
	require.NoError(t, err)
	assert.Equal(t, 3, changed)

	last, lastErr := s.LastRun()
	assert.False(t, last.IsZero())
	assert.NoError(t, lastErr)
}

func TestOverdueScheduler_RunNowRecordsFailure(t *testing.T) {
	boom := errors.New("database unavailable")
	s, err := NewOverdueScheduler(DefaultOverdueSchedulerConfig(), &fakeRefresher{err: boom}, zap.NewNop())
	require.NoError(t, err)

	_, err = s.RunNow()
	assert.ErrorIs(t, err, boom)
	_, lastErr := s.LastRun()
	assert.ErrorIs(t, lastErr, boom)
}

func TestOverdueScheduler_JobTimeout(t *testing.T) {
	refresher := &fakeRefresher{block: make(chan struct{})}
	s, err := NewOverdueScheduler(OverdueSchedulerConfig{JobTimeout: 20 * time.Millisecond}, refresher, zap.NewNop())
	require.NoError(t, err)

	_, err = s.RunNow()
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOverdueScheduler_FiresOnSchedule(t *testing.T) {
	refresher := &fakeRefresher{}
	s, err := NewOverdueScheduler(OverdueSchedulerConfig{Schedule: "@every 1s"}, refresher, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)

	assert.Eventually(t, func() bool { return refresher.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.NoError(t, s.Stop(ctx), "stopping twice is a no-op")
}
