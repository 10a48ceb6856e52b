package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rental/backend/internal/domain/rental"
	"github.com/rental/backend/internal/domain/shared"
	"github.com/rental/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRentalRepository implements rental.RentalRepository using GORM
type GormRentalRepository struct {
	db *gorm.DB
}

// NewGormRentalRepository creates a new GormRentalRepository
func NewGormRentalRepository(db *gorm.DB) *GormRentalRepository {
	return &GormRentalRepository{db: db}
}

// FindByIDForTenant loads a rental with its items
func (r *GormRentalRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*rental.Rental, error) {
	var m models.RentalModel
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByIDForUpdate locks the rental row with SELECT ... FOR UPDATE, then
// loads the items. Callers must be inside a transaction.
func (r *GormRentalRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*rental.Rental, error) {
	var m models.RentalModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("rental_id = ?", m.ID).
		Order("id").
		Find(&m.Items).Error; err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindAllForTenant lists rentals with filters, paging and whitelisted sorting
func (r *GormRentalRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter rental.RentalFilter) ([]rental.Rental, int64, error) {
	filter.Filter = filter.Filter.Normalize()
	scope := rentalFilterScope(tenantID, filter)

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.RentalModel{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderBy := ValidateSortField(filter.OrderBy, RentalSortFields, "created_at")
	var rows []models.RentalModel
	if err := r.db.WithContext(ctx).
		Scopes(scope).
		Preload("Items").
		Order(orderBy + " " + ValidateSortOrder(filter.OrderDir)).
		Order("id").
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]rental.Rental, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

func rentalFilterScope(tenantID uuid.UUID, filter rental.RentalFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("tenant_id = ?", tenantID)
		if filter.Status != "" {
			db = db.Where("status = ?", filter.Status)
		}
		if filter.PaymentStatus != "" {
			db = db.Where("payment_status = ?", filter.PaymentStatus)
		}
		if filter.CustomerID != nil {
			db = db.Where("customer_id = ?", *filter.CustomerID)
		}
		if filter.EndingBefore != nil {
			db = db.Where("end_date < ?", *filter.EndingBefore)
		}
		return db
	}
}

// Create inserts the rental and its items
func (r *GormRentalRepository) Create(ctx context.Context, v *rental.Rental) error {
	return r.db.WithContext(ctx).Create(models.RentalModelFromDomain(v)).Error
}

// Update rewrites every rental column and replaces the item set. The stored
// row must still carry the version the aggregate was loaded with, which is
// one below v.Version after a mutation.
func (r *GormRentalRepository) Update(ctx context.Context, v *rental.Rental) error {
	m := models.RentalModelFromDomain(v)
	result := r.db.WithContext(ctx).
		Model(&models.RentalModel{}).
		Where("tenant_id = ? AND id = ? AND version = ?", v.TenantID, v.ID, v.Version-1).
		Select("*").
		Omit("id", "tenant_id", "created_at", "Items").
		Updates(m)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.missingOrStale(ctx, v.TenantID, v.ID)
	}

	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND rental_id = ?", v.TenantID, v.ID).
		Delete(&models.RentalItemModel{}).Error; err != nil {
		return err
	}
	if len(m.Items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&m.Items).Error
}

func (r *GormRentalRepository) missingOrStale(ctx context.Context, tenantID, id uuid.UUID) error {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.RentalModel{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return shared.ErrNotFound
	}
	return shared.ErrConcurrencyConflict
}

// UpdateDerivedFields writes only amount_paid and payment_status
func (r *GormRentalRepository) UpdateDerivedFields(ctx context.Context, tenantID, id uuid.UUID, amountPaid decimal.Decimal, status rental.PaymentStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.RentalModel{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]any{
			"amount_paid":    amountPaid,
			"payment_status": status,
			"updated_at":     time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindOverdueCandidates scans all tenants for rentals past their end date
// whose stored payment status still reads PENDING or PARTIAL
func (r *GormRentalRepository) FindOverdueCandidates(ctx context.Context, now time.Time, limit int) ([]rental.OverdueCandidate, error) {
	query := r.db.WithContext(ctx).
		Model(&models.RentalModel{}).
		Select("tenant_id, id").
		Where("end_date < ? AND payment_status IN ?", now, []rental.PaymentStatus{rental.PaymentPending, rental.PaymentPartial}).
		Order("end_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []struct {
		TenantID uuid.UUID
		ID       uuid.UUID
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]rental.OverdueCandidate, len(rows))
	for i, row := range rows {
		out[i] = rental.OverdueCandidate{TenantID: row.TenantID, RentalID: row.ID}
	}
	return out, nil
}

// GormPaymentRepository implements rental.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// Create inserts a payment
func (r *GormPaymentRepository) Create(ctx context.Context, p *rental.Payment) error {
	return r.db.WithContext(ctx).Create(models.PaymentModelFromDomain(p)).Error
}

// FindByIDForTenant loads a payment
func (r *GormPaymentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*rental.Payment, error) {
	var m models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// ListByRental returns the rental's payments by payment date, then creation
func (r *GormPaymentRepository) ListByRental(ctx context.Context, tenantID, rentalID uuid.UUID) ([]rental.Payment, error) {
	var rows []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND rental_id = ?", tenantID, rentalID).
		Order("payment_date ASC").
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]rental.Payment, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// DeleteByID hard deletes a payment
func (r *GormPaymentRepository) DeleteByID(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.PaymentModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var (
	_ rental.RentalRepository  = (*GormRentalRepository)(nil)
	_ rental.PaymentRepository = (*GormPaymentRepository)(nil)
)
