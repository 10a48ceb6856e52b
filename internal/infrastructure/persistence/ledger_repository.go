package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rental/backend/internal/domain/ledger"
	"github.com/rental/backend/internal/domain/rental"
	"github.com/rental/backend/internal/domain/shared"
	"github.com/rental/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}

// GormTitleRepository implements ledger.TitleRepository using GORM
type GormTitleRepository struct {
	db *gorm.DB
}

// NewGormTitleRepository creates a new GormTitleRepository
func NewGormTitleRepository(db *gorm.DB) *GormTitleRepository {
	return &GormTitleRepository{db: db}
}

// FindByRental returns the oldest title of the rental
func (r *GormTitleRepository) FindByRental(ctx context.Context, tenantID, rentalID uuid.UUID) (*ledger.FinancialTitle, error) {
	var m models.FinancialTitleModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND rental_id = ?", tenantID, rentalID).
		Order("created_at ASC").
		First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return m.ToDomain(), nil
}

// FindByIDForUpdate locks the title row
func (r *GormTitleRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*ledger.FinancialTitle, error) {
	var m models.FinancialTitleModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return m.ToDomain(), nil
}

// Create inserts a title
func (r *GormTitleRepository) Create(ctx context.Context, t *ledger.FinancialTitle) error {
	return r.db.WithContext(ctx).Create(models.FinancialTitleModelFromDomain(t)).Error
}

// Update writes amount, paid amount, due date and status
func (r *GormTitleRepository) Update(ctx context.Context, t *ledger.FinancialTitle) error {
	result := r.db.WithContext(ctx).
		Model(&models.FinancialTitleModel{}).
		Where("tenant_id = ? AND id = ?", t.TenantID, t.ID).
		Updates(map[string]any{
			"amount":      t.Amount,
			"paid_amount": t.PaidAmount,
			"due_date":    t.DueDate,
			"status":      t.Status,
			"updated_at":  t.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GormBankAccountRepository implements ledger.BankAccountRepository using GORM
type GormBankAccountRepository struct {
	db *gorm.DB
}

// NewGormBankAccountRepository creates a new GormBankAccountRepository
func NewGormBankAccountRepository(db *gorm.DB) *GormBankAccountRepository {
	return &GormBankAccountRepository{db: db}
}

// FindDefault returns the tenant's default account
func (r *GormBankAccountRepository) FindDefault(ctx context.Context, tenantID uuid.UUID) (*ledger.BankAccount, error) {
	var m models.BankAccountModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_default = ?", tenantID, true).
		Order("created_at ASC").
		First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return m.ToDomain(), nil
}

// FindByIDForUpdate locks the account row
func (r *GormBankAccountRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*ledger.BankAccount, error) {
	var m models.BankAccountModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return m.ToDomain(), nil
}

// Create inserts an account
func (r *GormBankAccountRepository) Create(ctx context.Context, a *ledger.BankAccount) error {
	return r.db.WithContext(ctx).Create(models.BankAccountModelFromDomain(a)).Error
}

// UpdateBalance sets the account balance
func (r *GormBankAccountRepository) UpdateBalance(ctx context.Context, tenantID, id uuid.UUID, balance decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&models.BankAccountModel{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]any{"balance": balance, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GormMovementRepository implements ledger.MovementRepository using GORM
type GormMovementRepository struct {
	db *gorm.DB
}

// NewGormMovementRepository creates a new GormMovementRepository
func NewGormMovementRepository(db *gorm.DB) *GormMovementRepository {
	return &GormMovementRepository{db: db}
}

// Create inserts a movement
func (r *GormMovementRepository) Create(ctx context.Context, m *ledger.FinancialMovement) error {
	return r.db.WithContext(ctx).Create(models.FinancialMovementModelFromDomain(m)).Error
}

// FindByIDForTenant loads a movement
func (r *GormMovementRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ledger.FinancialMovement, error) {
	var m models.FinancialMovementModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return m.ToDomain(), nil
}

// FindMatching returns the oldest movement with the same title, amount,
// calendar date and type that no payment is linked to
func (r *GormMovementRepository) FindMatching(ctx context.Context, tenantID, titleID uuid.UUID, amount decimal.Decimal, date time.Time, movementType ledger.MovementType) (*ledger.FinancialMovement, error) {
	var m models.FinancialMovementModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND title_id = ? AND amount = ? AND movement_date = ? AND movement_type = ?",
			tenantID, titleID, amount, rental.DateOnly(date), movementType).
		Where("NOT EXISTS (SELECT 1 FROM rental_payments p WHERE p.movement_id = financial_movements.id)").
		Order("created_at ASC").
		First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return m.ToDomain(), nil
}

// Delete removes a movement
func (r *GormMovementRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.FinancialMovementModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GormLedger posts movements on the caller's transaction handle. The title
// and account rows are locked before their balances change.
type GormLedger struct {
	titles    *GormTitleRepository
	accounts  *GormBankAccountRepository
	movements *GormMovementRepository
}

// NewGormLedger creates a GormLedger bound to tx
func NewGormLedger(tx *gorm.DB) *GormLedger {
	return &GormLedger{
		titles:    NewGormTitleRepository(tx),
		accounts:  NewGormBankAccountRepository(tx),
		movements: NewGormMovementRepository(tx),
	}
}

// RegisterPayment inserts a movement and applies it to the account balance
// and the title's paid amount
func (l *GormLedger) RegisterPayment(ctx context.Context, in ledger.RegisterPaymentInput) (uuid.UUID, error) {
	if !in.Type.IsValid() || !in.Amount.IsPositive() {
		return uuid.Nil, shared.ErrInvalidInput
	}
	account, err := l.accounts.FindByIDForUpdate(ctx, in.TenantID, in.BankAccountID)
	if err != nil {
		return uuid.Nil, err
	}
	title, err := l.titles.FindByIDForUpdate(ctx, in.TenantID, in.TitleID)
	if err != nil {
		return uuid.Nil, err
	}

	mv := &ledger.FinancialMovement{
		ID:            uuid.New(),
		TenantID:      in.TenantID,
		BankAccountID: account.ID,
		TitleID:       title.ID,
		Amount:        in.Amount,
		Date:          rental.DateOnly(in.Date),
		Type:          in.Type,
		Description:   in.Description,
		CreatedAt:     time.Now().UTC(),
	}
	if err := l.movements.Create(ctx, mv); err != nil {
		return uuid.Nil, err
	}
	if err := l.accounts.UpdateBalance(ctx, in.TenantID, account.ID, account.Balance.Add(mv.SignedAmount())); err != nil {
		return uuid.Nil, err
	}
	title.ApplyMovement(mv.SignedAmount())
	if err := l.titles.Update(ctx, title); err != nil {
		return uuid.Nil, err
	}
	return mv.ID, nil
}

// RevertPayment undoes a movement's effect and deletes it. A title or
// account that no longer exists is skipped.
func (l *GormLedger) RevertPayment(ctx context.Context, tenantID, movementID uuid.UUID) error {
	mv, err := l.movements.FindByIDForTenant(ctx, tenantID, movementID)
	if err != nil {
		return err
	}

	account, err := l.accounts.FindByIDForUpdate(ctx, tenantID, mv.BankAccountID)
	switch {
	case err == nil:
		if err := l.accounts.UpdateBalance(ctx, tenantID, account.ID, account.Balance.Sub(mv.SignedAmount())); err != nil {
			return err
		}
	case !shared.IsNotFound(err):
		return err
	}

	title, err := l.titles.FindByIDForUpdate(ctx, tenantID, mv.TitleID)
	switch {
	case err == nil:
		title.ApplyMovement(mv.SignedAmount().Neg())
		if err := l.titles.Update(ctx, title); err != nil {
			return err
		}
	case !shared.IsNotFound(err):
		return err
	}

	return l.movements.Delete(ctx, tenantID, movementID)
}

var (
	_ ledger.TitleRepository       = (*GormTitleRepository)(nil)
	_ ledger.BankAccountRepository = (*GormBankAccountRepository)(nil)
	_ ledger.MovementRepository    = (*GormMovementRepository)(nil)
	_ ledger.Ledger                = (*GormLedger)(nil)
)
