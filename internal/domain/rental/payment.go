package rental

import (
	"time"

	"github.com/google/uuid"
	"github.com/rental/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Payment is one settlement recorded against a rental. It is owned by its
// rental and hard deleted.
type Payment struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	RentalID    uuid.UUID
	Amount      decimal.Decimal
	Method      PaymentMethod
	PaymentDate time.Time
	Notes       *string
	// MovementID links the ledger movement registered with this payment, nil
	// when the ledger was skipped
	MovementID *uuid.UUID
	CreatedAt  time.Time
}

// NewPayment validates and builds a payment
func NewPayment(tenantID, rentalID uuid.UUID, amount decimal.Decimal, method PaymentMethod, date time.Time, notes *string, now time.Time) (*Payment, error) {
	if rentalID == uuid.Nil {
		return nil, shared.NewValidationError("rental ID cannot be empty").WithDetail("field", "rental_id")
	}
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("amount must be greater than zero").WithDetail("field", "amount")
	}
	if method == "" {
		return nil, shared.NewValidationError("payment method is required").WithDetail("field", "payment_method")
	}
	if !method.IsValid() {
		return nil, shared.NewValidationError("unknown payment method: " + string(method)).
			WithDetail("field", "payment_method")
	}
	if date.IsZero() {
		return nil, shared.NewValidationError("payment date is required").WithDetail("field", "payment_date")
	}
	if notes != nil && len(*notes) > maxNotesLength {
		return nil, shared.NewValidationError("notes are too long").WithDetail("field", "notes")
	}

	return &Payment{
		ID:          uuid.New(),
		TenantID:    tenantID,
		RentalID:    rentalID,
		Amount:      amount,
		Method:      method,
		PaymentDate: DateOnly(date),
		Notes:       notes,
		CreatedAt:   now.UTC(),
	}, nil
}

// LinkMovement records the ledger movement created for this payment
func (p *Payment) LinkMovement(id uuid.UUID) {
	p.MovementID = &id
}
