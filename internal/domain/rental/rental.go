package rental

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rental/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

const (
	maxLineItems   = 200
	maxNotesLength = 2000
	maxReasonLen   = 500
)

// LineItem is one equipment line of a rental
type LineItem struct {
	ID           uuid.UUID
	RentalID     uuid.UUID
	EquipmentID  uuid.UUID
	Quantity     int
	UnitPrice    decimal.Decimal
	DepositValue decimal.Decimal
}

// Subtotal returns UnitPrice × Quantity
func (i LineItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Deposit returns DepositValue × Quantity
func (i LineItem) Deposit() decimal.Decimal {
	return i.DepositValue.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ItemInput describes a line item before it is attached to a rental
type ItemInput struct {
	EquipmentID  uuid.UUID
	Quantity     int
	UnitPrice    decimal.Decimal
	DepositValue decimal.Decimal
}

// Terms holds the commercial fields a caller may set on a rental
type Terms struct {
	CustomerID  uuid.UUID
	Items       []ItemInput
	DeliveryFee decimal.Decimal
	ReturnFee   decimal.Decimal
	Discount    decimal.Decimal
	StartDate   time.Time
	EndDate     time.Time
	Notes       string
}

// Rental is the aggregate root tying equipment lines, dates, lifecycle status
// and the derived financial state together.
//
// AmountPaid and PaymentStatus are never set by callers. They change only
// through ApplyPayments, which uses DerivePaymentStatus.
type Rental struct {
	shared.TenantAggregateRoot
	CustomerID      uuid.UUID
	Items           []LineItem
	DeliveryFee     decimal.Decimal
	ReturnFee       decimal.Decimal
	Discount        decimal.Decimal
	TotalAmount     decimal.Decimal
	SecurityDeposit decimal.Decimal
	StartDate       time.Time
	EndDate         time.Time
	Status          RentalStatus
	AmountPaid      decimal.Decimal
	PaymentStatus   PaymentStatus
	Notes           string
	CancelReason    string
	DeliveredAt     *time.Time
	ReturnedAt      *time.Time
	CancelledAt     *time.Time
}

// NewRental creates a rental in DRAFT or SCHEDULED status with no payments
func NewRental(tenantID uuid.UUID, initial RentalStatus, terms Terms, now time.Time) (*Rental, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewValidationError("tenant ID cannot be empty")
	}
	if initial == "" {
		initial = StatusDraft
	}
	if initial != StatusDraft && initial != StatusScheduled {
		return nil, shared.NewValidationError("a new rental must start as DRAFT or SCHEDULED").
			WithDetail("status", string(initial))
	}

	r := &Rental{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, now),
		Status:              initial,
		AmountPaid:          decimal.Zero,
	}
	if err := r.applyTerms(terms); err != nil {
		return nil, err
	}
	r.PaymentStatus = DerivePaymentStatus(r.AmountPaid, r.TotalAmount, r.EndDate, now)

	r.AddDomainEvent(NewRentalCreatedEvent(r, now))
	return r, nil
}

// UpdateTerms replaces the commercial terms while the rental has not started.
// The payment status is re-derived because the total or end date may move.
func (r *Rental) UpdateTerms(terms Terms, now time.Time) error {
	if r.Status != StatusDraft && r.Status != StatusScheduled {
		return shared.ErrInvalidState.WithDetail("status", r.Status.String())
	}
	if err := r.applyTerms(terms); err != nil {
		return err
	}
	r.PaymentStatus = DerivePaymentStatus(r.AmountPaid, r.TotalAmount, r.EndDate, now)
	r.IncrementVersion()
	r.Touch(now)
	return nil
}

func (r *Rental) applyTerms(t Terms) error {
	if t.CustomerID == uuid.Nil {
		return shared.NewValidationError("customer ID cannot be empty").WithDetail("field", "customer_id")
	}
	if len(t.Items) == 0 {
		return shared.NewValidationError("a rental needs at least one equipment line").WithDetail("field", "items")
	}
	if len(t.Items) > maxLineItems {
		return shared.NewValidationError(fmt.Sprintf("a rental cannot exceed %d equipment lines", maxLineItems)).
			WithDetail("field", "items")
	}
	for _, fee := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"delivery_fee", t.DeliveryFee},
		{"return_fee", t.ReturnFee},
		{"discount", t.Discount},
	} {
		if fee.value.IsNegative() {
			return shared.NewValidationError(fee.name+" cannot be negative").WithDetail("field", fee.name)
		}
	}
	if t.StartDate.IsZero() || t.EndDate.IsZero() {
		return shared.NewValidationError("start and end dates are required").WithDetail("field", "dates")
	}
	start, end := DateOnly(t.StartDate), DateOnly(t.EndDate)
	if end.Before(start) {
		return shared.NewValidationError("end date cannot be before start date").WithDetail("field", "end_date")
	}
	if len(t.Notes) > maxNotesLength {
		return shared.NewValidationError("notes are too long").WithDetail("field", "notes")
	}

	items := make([]LineItem, 0, len(t.Items))
	for idx, in := range t.Items {
		if in.EquipmentID == uuid.Nil {
			return shared.NewValidationError(fmt.Sprintf("item %d: equipment ID cannot be empty", idx+1)).
				WithDetail("field", "items")
		}
		if in.Quantity < 1 {
			return shared.NewValidationError(fmt.Sprintf("item %d: quantity must be at least 1", idx+1)).
				WithDetail("field", "items")
		}
		if in.UnitPrice.IsNegative() || in.DepositValue.IsNegative() {
			return shared.NewValidationError(fmt.Sprintf("item %d: prices cannot be negative", idx+1)).
				WithDetail("field", "items")
		}
		items = append(items, LineItem{
			ID:           uuid.New(),
			RentalID:     r.ID,
			EquipmentID:  in.EquipmentID,
			Quantity:     in.Quantity,
			UnitPrice:    in.UnitPrice,
			DepositValue: in.DepositValue,
		})
	}

	total, deposit := computeTotals(items, t.DeliveryFee, t.ReturnFee, t.Discount)
	if total.IsNegative() {
		return shared.NewValidationError("discount exceeds the rental value").WithDetail("field", "discount")
	}

	r.CustomerID = t.CustomerID
	r.Items = items
	r.DeliveryFee = t.DeliveryFee
	r.ReturnFee = t.ReturnFee
	r.Discount = t.Discount
	r.StartDate = start
	r.EndDate = end
	r.Notes = t.Notes
	r.TotalAmount = total
	r.SecurityDeposit = deposit
	return nil
}

func computeTotals(items []LineItem, deliveryFee, returnFee, discount decimal.Decimal) (total, deposit decimal.Decimal) {
	total = decimal.Zero
	deposit = decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
		deposit = deposit.Add(it.Deposit())
	}
	total = total.Add(deliveryFee).Add(returnFee).Sub(discount)
	return total, deposit
}

// DurationDays returns the rental length in whole days, at least 1
func (r *Rental) DurationDays() int {
	days := int(DateOnly(r.EndDate).Sub(DateOnly(r.StartDate)).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

// EffectiveStatus returns the status with LATE inferred
func (r *Rental) EffectiveStatus(now time.Time) RentalStatus {
	return EffectiveStatus(r.Status, r.EndDate, now)
}

// CurrentPaymentStatus derives the payment status at now from AmountPaid
func (r *Rental) CurrentPaymentStatus(now time.Time) PaymentStatus {
	return DerivePaymentStatus(r.AmountPaid, r.TotalAmount, r.EndDate, now)
}

// OutstandingBalance returns what is still owed, never negative
func (r *Rental) OutstandingBalance() decimal.Decimal {
	rest := r.TotalAmount.Sub(r.AmountPaid)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// ApplyPayments sets the derived financial fields from the full payment total
func (r *Rental) ApplyPayments(totalPaid decimal.Decimal, now time.Time) {
	r.AmountPaid = totalPaid
	r.PaymentStatus = DerivePaymentStatus(totalPaid, r.TotalAmount, r.EndDate, now)
	r.Touch(now)
}

// TransitionTo moves the rental to target, validating against the effective
// status. reason is kept only for cancellations.
func (r *Rental) TransitionTo(target RentalStatus, reason string, now time.Time) error {
	from := r.EffectiveStatus(now)
	if err := ValidateTransition(from, target); err != nil {
		return err
	}
	if len(reason) > maxReasonLen {
		return shared.NewValidationError("cancel reason is too long").WithDetail("field", "reason")
	}

	at := now.UTC()
	switch target {
	case StatusActive:
		if from == StatusCompleted {
			r.ReturnedAt = nil
		} else {
			r.DeliveredAt = &at
		}
	case StatusScheduled:
		r.DeliveredAt = nil
	case StatusCompleted:
		r.ReturnedAt = &at
	case StatusCancelled:
		r.CancelledAt = &at
		r.CancelReason = reason
	}

	r.Status = target
	r.IncrementVersion()
	r.Touch(now)
	r.AddDomainEvent(NewRentalStatusChangedEvent(r, from, target, reason, now))
	return nil
}
