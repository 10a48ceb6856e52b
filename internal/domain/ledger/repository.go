package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TitleRepository reads and writes receivable titles
type TitleRepository interface {
	// FindByRental returns the title opened for a rental, shared.ErrNotFound if none
	FindByRental(ctx context.Context, tenantID, rentalID uuid.UUID) (*FinancialTitle, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*FinancialTitle, error)
	Create(ctx context.Context, t *FinancialTitle) error
	Update(ctx context.Context, t *FinancialTitle) error
}

// BankAccountRepository reads and writes bank accounts
type BankAccountRepository interface {
	// FindDefault returns the tenant's default account, shared.ErrNotFound if none
	FindDefault(ctx context.Context, tenantID uuid.UUID) (*BankAccount, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*BankAccount, error)
	Create(ctx context.Context, a *BankAccount) error
	UpdateBalance(ctx context.Context, tenantID, id uuid.UUID, balance decimal.Decimal) error
}

// MovementRepository reads and writes ledger movements
type MovementRepository interface {
	Create(ctx context.Context, m *FinancialMovement) error
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*FinancialMovement, error)
	// FindMatching returns the oldest movement matching the value tuple that no
	// payment links to, shared.ErrNotFound if none
	FindMatching(ctx context.Context, tenantID, titleID uuid.UUID, amount decimal.Decimal, date time.Time, movementType MovementType) (*FinancialMovement, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}
