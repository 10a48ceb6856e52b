package rental

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rental/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// RentalFilter narrows rental listings
type RentalFilter struct {
	shared.Filter
	Status        RentalStatus
	PaymentStatus PaymentStatus
	CustomerID    *uuid.UUID
	// EndingBefore selects rentals whose end date is strictly before this instant
	EndingBefore *time.Time
}

// OverdueCandidate identifies a rental whose stored payment status may be stale
type OverdueCandidate struct {
	TenantID uuid.UUID
	RentalID uuid.UUID
}

// RentalRepository persists the rental aggregate. Every lookup is tenant scoped.
type RentalRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Rental, error)

	// FindByIDForUpdate loads the rental holding a row lock until the
	// surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Rental, error)

	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter RentalFilter) ([]Rental, int64, error)

	// Create inserts the rental with its line items
	Create(ctx context.Context, r *Rental) error

	// Update rewrites the rental row and replaces its line items
	Update(ctx context.Context, r *Rental) error

	// UpdateDerivedFields persists only amountPaid and paymentStatus
	UpdateDerivedFields(ctx context.Context, tenantID, id uuid.UUID, amountPaid decimal.Decimal, status PaymentStatus) error

	// FindOverdueCandidates lists rentals across tenants whose end date is
	// before now while the stored payment status is PENDING or PARTIAL
	FindOverdueCandidates(ctx context.Context, now time.Time, limit int) ([]OverdueCandidate, error)
}

// PaymentRepository persists payments. Every lookup is tenant scoped.
type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)
	// ListByRental returns the rental's payments ordered by payment date
	ListByRental(ctx context.Context, tenantID, rentalID uuid.UUID) ([]Payment, error)
	DeleteByID(ctx context.Context, tenantID, id uuid.UUID) error
}
