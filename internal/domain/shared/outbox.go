package shared

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the delivery state of an outbox entry
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusSent       OutboxStatus = "SENT"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDead       OutboxStatus = "DEAD"
)

const (
	DefaultMaxRetries  = 5
	DefaultBaseBackoff = time.Second
)

var (
	errNotClaimable = errors.New("outbox: only pending or failed entries can be claimed")
	errNotDead      = errors.New("outbox: only dead entries can be requeued")
)

// OutboxEntry is a serialized domain event waiting for delivery to the bus
type OutboxEntry struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	EventID       uuid.UUID
	EventType     string
	AggregateID   uuid.UUID
	AggregateType string
	Payload       []byte
	Status        OutboxStatus
	RetryCount    int
	MaxRetries    int
	LastError     string
	NextRetryAt   *time.Time
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOutboxEntry wraps a serialized event as a pending entry
func NewOutboxEntry(event DomainEvent, payload []byte) *OutboxEntry {
	now := time.Now().UTC()
	return &OutboxEntry{
		ID:            uuid.New(),
		TenantID:      event.TenantID(),
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		Payload:       payload,
		Status:        OutboxStatusPending,
		MaxRetries:    DefaultMaxRetries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// CanRetry returns true if a failed entry still has attempts left
func (e *OutboxEntry) CanRetry() bool {
	return e.Status == OutboxStatusFailed && e.RetryCount < e.MaxRetries
}

// MarkProcessing claims the entry for delivery
func (e *OutboxEntry) MarkProcessing() error {
	if e.Status != OutboxStatusPending && e.Status != OutboxStatusFailed {
		return errNotClaimable
	}
	e.Status = OutboxStatusProcessing
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkSent records successful delivery
func (e *OutboxEntry) MarkSent() {
	now := time.Now().UTC()
	e.Status = OutboxStatusSent
	e.ProcessedAt = &now
	e.UpdatedAt = now
}

// MarkFailed records a delivery error and schedules the next attempt.
// Backoff doubles per attempt: 1s, 2s, 4s, ... Once MaxRetries is reached the
// entry is dead-lettered.
func (e *OutboxEntry) MarkFailed(errMsg string) {
	now := time.Now().UTC()
	e.RetryCount++
	e.LastError = errMsg
	e.UpdatedAt = now

	if e.RetryCount >= e.MaxRetries {
		e.Status = OutboxStatusDead
		e.NextRetryAt = nil
		return
	}
	e.Status = OutboxStatusFailed
	next := now.Add(DefaultBaseBackoff << uint(e.RetryCount-1))
	e.NextRetryAt = &next
}

// Requeue moves a dead entry back to pending with a fresh retry budget
func (e *OutboxEntry) Requeue() error {
	if e.Status != OutboxStatusDead {
		return errNotDead
	}
	e.Status = OutboxStatusPending
	e.RetryCount = 0
	e.LastError = ""
	e.NextRetryAt = nil
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// IsDead returns true if the entry is dead-lettered
func (e *OutboxEntry) IsDead() bool {
	return e.Status == OutboxStatusDead
}

// OutboxRepository persists outbox entries outside business transactions
type OutboxRepository interface {
	FindPending(ctx context.Context, limit int) ([]*OutboxEntry, error)
	FindRetryable(ctx context.Context, before time.Time, limit int) ([]*OutboxEntry, error)
	FindDead(ctx context.Context, page, pageSize int) ([]*OutboxEntry, int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*OutboxEntry, error)
	// MarkProcessing claims entries with SKIP LOCKED semantics and returns the claimed ones
	MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*OutboxEntry, error)
	Update(ctx context.Context, entry *OutboxEntry) error
	// DeleteSentBefore removes delivered entries older than before
	DeleteSentBefore(ctx context.Context, before time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[OutboxStatus]int64, error)
}
