package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/rental/backend/internal/domain/rental"
	"github.com/shopspring/decimal"
)

// RentalModel is the rentals row. CustomerID references the customer
// registry, which lives outside this service.
type RentalModel struct {
	TenantAggregateModel
	CustomerID      uuid.UUID            `gorm:"type:uuid;not null;index"`
	DeliveryFee     decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	ReturnFee       decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	Discount        decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	TotalAmount     decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	SecurityDeposit decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	StartDate       time.Time            `gorm:"type:date;not null"`
	EndDate         time.Time            `gorm:"type:date;not null;index:idx_rentals_overdue,priority:2"`
	Status          rental.RentalStatus  `gorm:"type:varchar(20);not null;default:DRAFT;index"`
	AmountPaid      decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	PaymentStatus   rental.PaymentStatus `gorm:"type:varchar(20);not null;default:PENDING;index:idx_rentals_overdue,priority:1"`
	Notes           string               `gorm:"type:text"`
	CancelReason    string               `gorm:"type:varchar(500)"`
	DeliveredAt     *time.Time
	ReturnedAt      *time.Time
	CancelledAt     *time.Time
	Items           []RentalItemModel `gorm:"foreignKey:RentalID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (RentalModel) TableName() string {
	return "rentals"
}

// ToDomain converts the row and its loaded items to a domain Rental
func (m *RentalModel) ToDomain() *rental.Rental {
	r := &rental.Rental{
		CustomerID:      m.CustomerID,
		DeliveryFee:     m.DeliveryFee,
		ReturnFee:       m.ReturnFee,
		Discount:        m.Discount,
		TotalAmount:     m.TotalAmount,
		SecurityDeposit: m.SecurityDeposit,
		StartDate:       rental.DateOnly(m.StartDate),
		EndDate:         rental.DateOnly(m.EndDate),
		Status:          m.Status,
		AmountPaid:      m.AmountPaid,
		PaymentStatus:   m.PaymentStatus,
		Notes:           m.Notes,
		CancelReason:    m.CancelReason,
		DeliveredAt:     m.DeliveredAt,
		ReturnedAt:      m.ReturnedAt,
		CancelledAt:     m.CancelledAt,
	}
	m.PopulateTenantAggregateRoot(&r.TenantAggregateRoot)
	r.Items = make([]rental.LineItem, len(m.Items))
	for i := range m.Items {
		r.Items[i] = m.Items[i].ToDomain()
	}
	return r
}

// RentalModelFromDomain builds the row, items included
func RentalModelFromDomain(r *rental.Rental) *RentalModel {
	m := &RentalModel{
		CustomerID:      r.CustomerID,
		DeliveryFee:     r.DeliveryFee,
		ReturnFee:       r.ReturnFee,
		Discount:        r.Discount,
		TotalAmount:     r.TotalAmount,
		SecurityDeposit: r.SecurityDeposit,
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
		Status:          r.Status,
		AmountPaid:      r.AmountPaid,
		PaymentStatus:   r.PaymentStatus,
		Notes:           r.Notes,
		CancelReason:    r.CancelReason,
		DeliveredAt:     r.DeliveredAt,
		ReturnedAt:      r.ReturnedAt,
		CancelledAt:     r.CancelledAt,
	}
	m.FromDomainTenantAggregateRoot(r.TenantAggregateRoot)
	m.Items = make([]RentalItemModel, len(r.Items))
	for i, item := range r.Items {
		m.Items[i] = RentalItemModelFromDomain(r.TenantID, item)
	}
	return m
}

// RentalItemModel is one equipment line of a rental
type RentalItemModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	RentalID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	EquipmentID  uuid.UUID       `gorm:"type:uuid;not null"`
	Quantity     int             `gorm:"not null"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DepositValue decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (RentalItemModel) TableName() string {
	return "rental_items"
}

// ToDomain converts the row to a LineItem
func (m *RentalItemModel) ToDomain() rental.LineItem {
	return rental.LineItem{
		ID:           m.ID,
		RentalID:     m.RentalID,
		EquipmentID:  m.EquipmentID,
		Quantity:     m.Quantity,
		UnitPrice:    m.UnitPrice,
		DepositValue: m.DepositValue,
	}
}

// RentalItemModelFromDomain builds the row of a LineItem
func RentalItemModelFromDomain(tenantID uuid.UUID, i rental.LineItem) RentalItemModel {
	return RentalItemModel{
		ID:           i.ID,
		TenantID:     tenantID,
		RentalID:     i.RentalID,
		EquipmentID:  i.EquipmentID,
		Quantity:     i.Quantity,
		UnitPrice:    i.UnitPrice,
		DepositValue: i.DepositValue,
	}
}

// PaymentModel is the rental_payments row
type PaymentModel struct {
	ID          uuid.UUID            `gorm:"type:uuid;primaryKey"`
	TenantID    uuid.UUID            `gorm:"type:uuid;not null;index:idx_payments_rental,priority:1"`
	RentalID    uuid.UUID            `gorm:"type:uuid;not null;index:idx_payments_rental,priority:2"`
	Amount      decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	Method      rental.PaymentMethod `gorm:"column:payment_method;type:varchar(30);not null"`
	PaymentDate time.Time            `gorm:"type:date;not null"`
	Notes       *string              `gorm:"type:text"`
	MovementID  *uuid.UUID           `gorm:"type:uuid"`
	CreatedAt   time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "rental_payments"
}

// ToDomain converts the row to a Payment
func (m *PaymentModel) ToDomain() *rental.Payment {
	return &rental.Payment{
		ID:          m.ID,
		TenantID:    m.TenantID,
		RentalID:    m.RentalID,
		Amount:      m.Amount,
		Method:      m.Method,
		PaymentDate: rental.DateOnly(m.PaymentDate),
		Notes:       m.Notes,
		MovementID:  m.MovementID,
		CreatedAt:   m.CreatedAt,
	}
}

// PaymentModelFromDomain builds the row of a Payment
func PaymentModelFromDomain(p *rental.Payment) *PaymentModel {
	return &PaymentModel{
		ID:          p.ID,
		TenantID:    p.TenantID,
		RentalID:    p.RentalID,
		Amount:      p.Amount,
		Method:      p.Method,
		PaymentDate: p.PaymentDate,
		Notes:       p.Notes,
		MovementID:  p.MovementID,
		CreatedAt:   p.CreatedAt,
	}
}
