package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries identity and audit timestamps
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Touch moves UpdatedAt forward to at
func (e *BaseEntity) Touch(at time.Time) {
	e.UpdatedAt = at.UTC()
}

// TenantAggregateRoot is the root of a tenant-owned aggregate. Version is
// bumped on every state change and doubles as the optimistic lock column;
// domain events queue up until the unit of work hands them to the outbox.
type TenantAggregateRoot struct {
	BaseEntity
	TenantID     uuid.UUID
	Version      int
	domainEvents []DomainEvent
}

// NewTenantAggregateRoot creates a root at version 1 stamped with now
func NewTenantAggregateRoot(tenantID uuid.UUID, now time.Time) TenantAggregateRoot {
	now = now.UTC()
	return TenantAggregateRoot{
		BaseEntity: BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		TenantID:   tenantID,
		Version:    1,
	}
}

func (a *TenantAggregateRoot) GetVersion() int { return a.Version }

func (a *TenantAggregateRoot) IncrementVersion() { a.Version++ }

// AddDomainEvent queues an event for the outbox
func (a *TenantAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns the queued events in the order they were raised
func (a *TenantAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents drops queued events once they are persisted
func (a *TenantAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}
