package event

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rental/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeOutboxRepo is a map-backed shared.OutboxRepository
type fakeOutboxRepo struct {
	entries   map[uuid.UUID]*shared.OutboxEntry
	updateErr error
}

func newFakeOutboxRepo() *fakeOutboxRepo {
	return &fakeOutboxRepo{entries: make(map[uuid.UUID]*shared.OutboxEntry)}
}

func (r *fakeOutboxRepo) add(status shared.OutboxStatus) *shared.OutboxEntry {
	e := &shared.OutboxEntry{
		ID:         uuid.New(),
		TenantID:   uuid.New(),
		EventID:    uuid.New(),
		EventType:  "PaymentRecorded",
		Status:     status,
		MaxRetries: 5,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if status == shared.OutboxStatusDead {
		e.RetryCount = 5
		e.LastError = "handler failed"
	}
	r.entries[e.ID] = e
	return e
}

func (r *fakeOutboxRepo) byStatus(status shared.OutboxStatus) []*shared.OutboxEntry {
	var out []*shared.OutboxEntry
	for _, e := range r.entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

func (r *fakeOutboxRepo) FindPending(_ context.Context, limit int) ([]*shared.OutboxEntry, error) {
	out := r.byStatus(shared.OutboxStatusPending)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeOutboxRepo) FindRetryable(context.Context, time.Time, int) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r *fakeOutboxRepo) FindDead(_ context.Context, page, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	dead := r.byStatus(shared.OutboxStatusDead)
	total := int64(len(dead))
	start := (page - 1) * pageSize
	if start >= len(dead) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(dead) {
		end = len(dead)
	}
	// copies, so state only changes through Update
	out := make([]*shared.OutboxEntry, 0, end-start)
	for _, e := range dead[start:end] {
		c := *e
		out = append(out, &c)
	}
	return out, total, nil
}

func (r *fakeOutboxRepo) FindByID(_ context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	c := *e
	return &c, nil
}

func (r *fakeOutboxRepo) MarkProcessing(context.Context, []uuid.UUID) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r *fakeOutboxRepo) Update(_ context.Context, entry *shared.OutboxEntry) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	c := *entry
	r.entries[entry.ID] = &c
	return nil
}

func (r *fakeOutboxRepo) DeleteSentBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (r *fakeOutboxRepo) CountByStatus(context.Context) (map[shared.OutboxStatus]int64, error) {
	counts := make(map[shared.OutboxStatus]int64)
	for _, e := range r.entries {
		counts[e.Status]++
	}
	return counts, nil
}

func TestOutboxService_GetDeadLetterEntries(t *testing.T) {
	repo := newFakeOutboxRepo()
	svc := NewOutboxService(repo, zap.NewNop())
	for i := 0; i < 5; i++ {
		repo.add(shared.OutboxStatusDead)
	}
	repo.add(shared.OutboxStatusPending)

	result, err := svc.GetDeadLetterEntries(context.Background(), OutboxFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Total)
	assert.Equal(t, 3, result.TotalPages)
	assert.Len(t, result.Items, 2)
	for _, e := range result.Items {
		assert.Equal(t, "DEAD", e.Status)
	}

	defaults, err := svc.GetDeadLetterEntries(context.Background(), OutboxFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, defaults.Page)
	assert.Equal(t, 20, defaults.PageSize)
}

func TestOutboxService_GetEntry(t *testing.T) {
	repo := newFakeOutboxRepo()
	svc := NewOutboxService(repo, nil)
	entry := repo.add(shared.OutboxStatusSent)

	got, err := svc.GetEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.EventID, got.EventID)

	_, err = svc.GetEntry(context.Background(), uuid.New())
	assert.True(t, shared.IsNotFound(err))
}

func TestOutboxService_RetryDeadEntry(t *testing.T) {
	repo := newFakeOutboxRepo()
	svc := NewOutboxService(repo, zap.NewNop())
	dead := repo.add(shared.OutboxStatusDead)

	result, err := svc.RetryDeadEntry(context.Background(), dead.ID)
	require.NoError(t, err)
	assert.Equal(t, "PENDING", result.Status)
	assert.Zero(t, result.RetryCount)
	assert.Empty(t, result.LastError)
	assert.Equal(t, shared.OutboxStatusPending, repo.entries[dead.ID].Status)
}

func TestOutboxService_RetryDeadEntry_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		svc := NewOutboxService(newFakeOutboxRepo(), zap.NewNop())
		_, err := svc.RetryDeadEntry(ctx, uuid.New())
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("entry not dead", func(t *testing.T) {
		repo := newFakeOutboxRepo()
		svc := NewOutboxService(repo, zap.NewNop())
		pending := repo.add(shared.OutboxStatusPending)

		_, err := svc.RetryDeadEntry(ctx, pending.ID)
		assert.True(t, shared.HasCode(err, shared.CodeInvalidState))
	})

	t.Run("update fails", func(t *testing.T) {
		repo := newFakeOutboxRepo()
		repo.updateErr = errors.New("connection reset")
		svc := NewOutboxService(repo, zap.NewNop())
		dead := repo.add(shared.OutboxStatusDead)

		_, err := svc.RetryDeadEntry(ctx, dead.ID)
		assert.True(t, shared.IsTransactionFailure(err))
	})
}

func TestOutboxService_RetryAllDeadEntries(t *testing.T) {
	repo := newFakeOutboxRepo()
	svc := NewOutboxService(repo, zap.NewNop())
	for i := 0; i < 3; i++ {
		repo.add(shared.OutboxStatusDead)
	}
	sent := repo.add(shared.OutboxStatusSent)

	count, err := svc.RetryAllDeadEntries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.Empty(t, repo.byStatus(shared.OutboxStatusDead))
	assert.Equal(t, shared.OutboxStatusSent, repo.entries[sent.ID].Status)
}

func TestOutboxService_RetryAllDeadEntries_StopsWithoutProgress(t *testing.T) {
	repo := newFakeOutboxRepo()
	repo.updateErr = errors.New("read only")
	svc := NewOutboxService(repo, zap.NewNop())
	repo.add(shared.OutboxStatusDead)

	count, err := svc.RetryAllDeadEntries(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOutboxService_GetStats(t *testing.T) {
	repo := newFakeOutboxRepo()
	svc := NewOutboxService(repo, zap.NewNop())
	for _, s := range []shared.OutboxStatus{
		shared.OutboxStatusPending,
		shared.OutboxStatusPending,
		shared.OutboxStatusProcessing,
		shared.OutboxStatusSent,
		shared.OutboxStatusSent,
		shared.OutboxStatusSent,
		shared.OutboxStatusFailed,
		shared.OutboxStatusDead,
	} {
		repo.add(s)
	}

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutboxStatsDTO{Pending: 2, Processing: 1, Sent: 3, Failed: 1, Dead: 1, Total: 8}, *stats)
}
