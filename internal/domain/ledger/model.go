package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TitleStatus is the settlement state of a receivable title
type TitleStatus string

const (
	TitleOpen    TitleStatus = "OPEN"
	TitlePartial TitleStatus = "PARTIAL"
	TitleSettled TitleStatus = "SETTLED"
)

// FinancialTitle is the receivable opened for a rental
type FinancialTitle struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	RentalID    uuid.UUID
	Amount      decimal.Decimal
	PaidAmount  decimal.Decimal
	DueDate     time.Time
	Status      TitleStatus
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewFinancialTitle opens a receivable for a rental
func NewFinancialTitle(tenantID, rentalID uuid.UUID, amount decimal.Decimal, dueDate time.Time, description string) *FinancialTitle {
	now := time.Now().UTC()
	return &FinancialTitle{
		ID:          uuid.New(),
		TenantID:    tenantID,
		RentalID:    rentalID,
		Amount:      amount,
		PaidAmount:  decimal.Zero,
		DueDate:     dueDate,
		Status:      TitleOpen,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ApplyMovement adjusts the paid amount by delta and refreshes the status
func (t *FinancialTitle) ApplyMovement(delta decimal.Decimal) {
	t.PaidAmount = t.PaidAmount.Add(delta)
	switch {
	case t.PaidAmount.GreaterThanOrEqual(t.Amount):
		t.Status = TitleSettled
	case t.PaidAmount.IsPositive():
		t.Status = TitlePartial
	default:
		t.Status = TitleOpen
	}
	t.UpdatedAt = time.Now().UTC()
}

// Reprice changes the receivable amount and due date, keeping what was paid
func (t *FinancialTitle) Reprice(amount decimal.Decimal, dueDate time.Time) {
	t.Amount = amount
	t.DueDate = dueDate
	t.ApplyMovement(decimal.Zero)
}

// BankAccount receives payment movements. One account per tenant is the default.
type BankAccount struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	Balance   decimal.Decimal
	IsDefault bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBankAccount creates an account with zero balance
func NewBankAccount(tenantID uuid.UUID, name string, isDefault bool) *BankAccount {
	now := time.Now().UTC()
	return &BankAccount{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      name,
		Balance:   decimal.Zero,
		IsDefault: isDefault,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// FinancialMovement is one ledger line against a bank account and a title
type FinancialMovement struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	BankAccountID uuid.UUID
	TitleID       uuid.UUID
	Amount        decimal.Decimal
	Date          time.Time
	Type          MovementType
	Description   string
	CreatedAt     time.Time
}

// SignedAmount returns the balance effect: positive for INCOME
func (m *FinancialMovement) SignedAmount() decimal.Decimal {
	if m.Type == MovementExpense {
		return m.Amount.Neg()
	}
	return m.Amount
}
