package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/rental/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// FinancialTitleModel is the receivable opened for a rental
type FinancialTitleModel struct {
	BaseModel
	TenantID    uuid.UUID          `gorm:"type:uuid;not null;index:idx_titles_rental,priority:1"`
	RentalID    uuid.UUID          `gorm:"type:uuid;not null;index:idx_titles_rental,priority:2"`
	Amount      decimal.Decimal    `gorm:"type:decimal(18,4);not null"`
	PaidAmount  decimal.Decimal    `gorm:"type:decimal(18,4);not null;default:0"`
	DueDate     time.Time          `gorm:"type:date;not null"`
	Status      ledger.TitleStatus `gorm:"type:varchar(20);not null;default:OPEN"`
	Description string             `gorm:"type:varchar(255)"`
}

// TableName returns the table name for GORM
func (FinancialTitleModel) TableName() string {
	return "financial_titles"
}

// ToDomain converts the row to a FinancialTitle
func (m *FinancialTitleModel) ToDomain() *ledger.FinancialTitle {
	return &ledger.FinancialTitle{
		ID:          m.ID,
		TenantID:    m.TenantID,
		RentalID:    m.RentalID,
		Amount:      m.Amount,
		PaidAmount:  m.PaidAmount,
		DueDate:     m.DueDate,
		Status:      m.Status,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// FinancialTitleModelFromDomain builds the row of a title
func FinancialTitleModelFromDomain(t *ledger.FinancialTitle) *FinancialTitleModel {
	return &FinancialTitleModel{
		BaseModel:   BaseModel{ID: t.ID, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt},
		TenantID:    t.TenantID,
		RentalID:    t.RentalID,
		Amount:      t.Amount,
		PaidAmount:  t.PaidAmount,
		DueDate:     t.DueDate,
		Status:      t.Status,
		Description: t.Description,
	}
}

// BankAccountModel is an account payments are posted to
type BankAccountModel struct {
	BaseModel
	TenantID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name      string          `gorm:"type:varchar(100);not null"`
	Balance   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	IsDefault bool            `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (BankAccountModel) TableName() string {
	return "bank_accounts"
}

// ToDomain converts the row to a BankAccount
func (m *BankAccountModel) ToDomain() *ledger.BankAccount {
	return &ledger.BankAccount{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Name:      m.Name,
		Balance:   m.Balance,
		IsDefault: m.IsDefault,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// BankAccountModelFromDomain builds the row of an account
func BankAccountModelFromDomain(a *ledger.BankAccount) *BankAccountModel {
	return &BankAccountModel{
		BaseModel: BaseModel{ID: a.ID, CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt},
		TenantID:  a.TenantID,
		Name:      a.Name,
		Balance:   a.Balance,
		IsDefault: a.IsDefault,
	}
}

// FinancialMovementModel is one ledger line. The value-match index backs the
// reversal fallback for payments without a stored movement link.
type FinancialMovementModel struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID           `gorm:"type:uuid;not null;index:idx_movements_match,priority:1"`
	BankAccountID uuid.UUID           `gorm:"type:uuid;not null;index"`
	TitleID       uuid.UUID           `gorm:"type:uuid;not null;index:idx_movements_match,priority:2"`
	Amount        decimal.Decimal     `gorm:"type:decimal(18,4);not null;index:idx_movements_match,priority:3"`
	Date          time.Time           `gorm:"column:movement_date;type:date;not null;index:idx_movements_match,priority:4"`
	Type          ledger.MovementType `gorm:"column:movement_type;type:varchar(20);not null"`
	Description   string              `gorm:"type:varchar(255)"`
	CreatedAt     time.Time           `gorm:"not null"`
}

// TableName returns the table name for GORM
func (FinancialMovementModel) TableName() string {
	return "financial_movements"
}

// ToDomain converts the row to a FinancialMovement
func (m *FinancialMovementModel) ToDomain() *ledger.FinancialMovement {
	return &ledger.FinancialMovement{
		ID:            m.ID,
		TenantID:      m.TenantID,
		BankAccountID: m.BankAccountID,
		TitleID:       m.TitleID,
		Amount:        m.Amount,
		Date:          m.Date,
		Type:          m.Type,
		Description:   m.Description,
		CreatedAt:     m.CreatedAt,
	}
}

// FinancialMovementModelFromDomain builds the row of a movement
func FinancialMovementModelFromDomain(mv *ledger.FinancialMovement) *FinancialMovementModel {
	return &FinancialMovementModel{
		ID:            mv.ID,
		TenantID:      mv.TenantID,
		BankAccountID: mv.BankAccountID,
		TitleID:       mv.TitleID,
		Amount:        mv.Amount,
		Date:          mv.Date,
		Type:          mv.Type,
		Description:   mv.Description,
		CreatedAt:     mv.CreatedAt,
	}
}
