package rental

import (
	"time"

	"github.com/google/uuid"
	"github.com/rental/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AggregateTypeRental is the aggregate type used on every rental event
const AggregateTypeRental = "Rental"

const (
	EventTypeRentalCreated       = "RentalCreated"
	EventTypeRentalStatusChanged = "RentalStatusChanged"
	EventTypePaymentRecorded     = "PaymentRecorded"
	EventTypePaymentReverted     = "PaymentReverted"
)

// RentalCreatedEvent is raised when a rental is created
type RentalCreatedEvent struct {
	shared.BaseDomainEvent
	RentalID    uuid.UUID       `json:"rental_id"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	Status      RentalStatus    `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     time.Time       `json:"end_date"`
}

func NewRentalCreatedEvent(r *Rental, now time.Time) *RentalCreatedEvent {
	return &RentalCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRentalCreated, AggregateTypeRental, r.ID, r.TenantID, now),
		RentalID:        r.ID,
		CustomerID:      r.CustomerID,
		Status:          r.Status,
		TotalAmount:     r.TotalAmount,
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
	}
}

// RentalStatusChangedEvent is raised on every lifecycle transition
type RentalStatusChangedEvent struct {
	shared.BaseDomainEvent
	RentalID   uuid.UUID    `json:"rental_id"`
	FromStatus RentalStatus `json:"from_status"`
	ToStatus   RentalStatus `json:"to_status"`
	Reason     string       `json:"reason,omitempty"`
}

func NewRentalStatusChangedEvent(r *Rental, from, to RentalStatus, reason string, now time.Time) *RentalStatusChangedEvent {
	return &RentalStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRentalStatusChanged, AggregateTypeRental, r.ID, r.TenantID, now),
		RentalID:        r.ID,
		FromStatus:      from,
		ToStatus:        to,
		Reason:          reason,
	}
}

// PaymentRecordedEvent is raised after AddPayment commits its changes
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	RentalID      uuid.UUID       `json:"rental_id"`
	PaymentID     uuid.UUID       `json:"payment_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"payment_method"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	LedgerLinked  bool            `json:"ledger_linked"`
}

func NewPaymentRecordedEvent(r *Rental, p *Payment, now time.Time) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, AggregateTypeRental, r.ID, r.TenantID, now),
		RentalID:        r.ID,
		PaymentID:       p.ID,
		Amount:          p.Amount,
		Method:          p.Method,
		AmountPaid:      r.AmountPaid,
		PaymentStatus:   r.PaymentStatus,
		LedgerLinked:    p.MovementID != nil,
	}
}

// PaymentRevertedEvent is raised after DeletePayment commits its changes
type PaymentRevertedEvent struct {
	shared.BaseDomainEvent
	RentalID       uuid.UUID       `json:"rental_id"`
	PaymentID      uuid.UUID       `json:"payment_id"`
	Amount         decimal.Decimal `json:"amount"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	LedgerReverted bool            `json:"ledger_reverted"`
}

func NewPaymentRevertedEvent(r *Rental, p *Payment, ledgerReverted bool, now time.Time) *PaymentRevertedEvent {
	return &PaymentRevertedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentReverted, AggregateTypeRental, r.ID, r.TenantID, now),
		RentalID:        r.ID,
		PaymentID:       p.ID,
		Amount:          p.Amount,
		AmountPaid:      r.AmountPaid,
		PaymentStatus:   r.PaymentStatus,
		LedgerReverted:  ledgerReverted,
	}
}
