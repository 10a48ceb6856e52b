// Package ledger models the receivable side of the financial subsystem that
// rental payments are posted to: titles receivable per rental, bank accounts
// and the movements that change their balances.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementType is the direction of a ledger movement
type MovementType string

const (
	MovementIncome  MovementType = "INCOME"
	MovementExpense MovementType = "EXPENSE"
)

// IsValid checks the movement type
func (t MovementType) IsValid() bool {
	return t == MovementIncome || t == MovementExpense
}

// RegisterPaymentInput carries everything needed to post a payment
type RegisterPaymentInput struct {
	TenantID      uuid.UUID
	BankAccountID uuid.UUID
	TitleID       uuid.UUID
	Amount        decimal.Decimal
	Date          time.Time
	Type          MovementType
	Description   string
}

// Ledger posts and reverts movements. Implementations must run inside the
// caller's transaction so a failure rolls the whole unit of work back.
type Ledger interface {
	RegisterPayment(ctx context.Context, in RegisterPaymentInput) (uuid.UUID, error)
	RevertPayment(ctx context.Context, tenantID, movementID uuid.UUID) error
}
