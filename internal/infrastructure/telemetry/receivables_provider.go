package telemetry

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormReceivablesProvider aggregates open balances from the rentals table
type GormReceivablesProvider struct {
	db *gorm.DB
}

// NewGormReceivablesProvider creates a GormReceivablesProvider
func NewGormReceivablesProvider(db *gorm.DB) *GormReceivablesProvider {
	return &GormReceivablesProvider{db: db}
}

// Receivables returns each tenant's outstanding balance and overdue count.
// Cancelled rentals are excluded.
func (p *GormReceivablesProvider) Receivables(ctx context.Context) (map[uuid.UUID]ReceivableSnapshot, error) {
	type row struct {
		TenantID     uuid.UUID       `gorm:"column:tenant_id"`
		Outstanding  decimal.Decimal `gorm:"column:outstanding"`
		OverdueCount int64           `gorm:"column:overdue_count"`
	}
	var rows []row
	err := p.db.WithContext(ctx).
		Table("rentals").
		Select(`tenant_id,
			COALESCE(SUM(CASE WHEN total_amount > amount_paid THEN total_amount - amount_paid ELSE 0 END), 0) AS outstanding,
			COUNT(CASE WHEN payment_status = 'OVERDUE' THEN 1 END) AS overdue_count`).
		Where("status <> ?", "CANCELLED").
		Group("tenant_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]ReceivableSnapshot, len(rows))
	for _, r := range rows {
		out[r.TenantID] = ReceivableSnapshot{Outstanding: r.Outstanding, OverdueCount: r.OverdueCount}
	}
	return out, nil
}
