package rental

import (
	"time"

	"github.com/google/uuid"
	"github.com/rental/backend/internal/domain/rental"
	"github.com/shopspring/decimal"
)

// AddPaymentRequest is the input of AddPayment
type AddPaymentRequest struct {
	RentalID    uuid.UUID
	Amount      decimal.Decimal
	Method      rental.PaymentMethod
	PaymentDate time.Time
	Notes       *string
}

// PaymentResponse describes a stored payment
type PaymentResponse struct {
	ID          uuid.UUID       `json:"id"`
	RentalID    uuid.UUID       `json:"rental_id"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"payment_method"`
	PaymentDate string          `json:"payment_date"`
	Notes       *string         `json:"notes,omitempty"`
	MovementID  *uuid.UUID      `json:"movement_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// AddPaymentResult is returned by AddPayment. LedgerWarning is set when the
// payment was stored without a ledger movement.
type AddPaymentResult struct {
	Payment       PaymentResponse  `json:"payment"`
	Financials    RentalFinancials `json:"financials"`
	LedgerLinked  bool             `json:"ledger_linked"`
	LedgerWarning string           `json:"ledger_warning,omitempty"`
}

// DeletePaymentResult is returned by DeletePayment
type DeletePaymentResult struct {
	Financials     RentalFinancials `json:"financials"`
	LedgerReverted bool             `json:"ledger_reverted"`
	LedgerWarning  string           `json:"ledger_warning,omitempty"`
}

// RentalFinancials is the money view of a rental
type RentalFinancials struct {
	RentalID        uuid.UUID       `json:"rental_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
	Outstanding     decimal.Decimal `json:"outstanding"`
	SecurityDeposit decimal.Decimal `json:"security_deposit"`
	PaymentStatus   string          `json:"payment_status"`
}

// LineItemRequest is one equipment line in create/update requests
type LineItemRequest struct {
	EquipmentID  uuid.UUID       `json:"equipment_id" binding:"required"`
	Quantity     int             `json:"quantity" binding:"required,min=1"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	DepositValue decimal.Decimal `json:"deposit_value"`
}

// RentalTermsRequest carries the commercial terms of a rental
type RentalTermsRequest struct {
	CustomerID  uuid.UUID         `json:"customer_id" binding:"required"`
	Items       []LineItemRequest `json:"items" binding:"required,min=1,dive"`
	DeliveryFee decimal.Decimal   `json:"delivery_fee"`
	ReturnFee   decimal.Decimal   `json:"return_fee"`
	Discount    decimal.Decimal   `json:"discount"`
	StartDate   time.Time         `json:"start_date" binding:"required"`
	EndDate     time.Time         `json:"end_date" binding:"required"`
	Notes       string            `json:"notes" binding:"max=2000"`
}

// CreateRentalRequest is the input of RentalService.Create
type CreateRentalRequest struct {
	RentalTermsRequest
	// Status is DRAFT (default) or SCHEDULED
	Status string `json:"status" binding:"omitempty,rental_status"`
}

func (r RentalTermsRequest) toTerms() rental.Terms {
	items := make([]rental.ItemInput, len(r.Items))
	for i, it := range r.Items {
		items[i] = rental.ItemInput{
			EquipmentID:  it.EquipmentID,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			DepositValue: it.DepositValue,
		}
	}
	return rental.Terms{
		CustomerID:  r.CustomerID,
		Items:       items,
		DeliveryFee: r.DeliveryFee,
		ReturnFee:   r.ReturnFee,
		Discount:    r.Discount,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Notes:       r.Notes,
	}
}

// LineItemResponse describes an equipment line
type LineItemResponse struct {
	ID           uuid.UUID       `json:"id"`
	EquipmentID  uuid.UUID       `json:"equipment_id"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	DepositValue decimal.Decimal `json:"deposit_value"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// RentalResponse describes a rental as callers see it: status with LATE
// inferred and payment status derived at read time
type RentalResponse struct {
	ID           uuid.UUID          `json:"id"`
	TenantID     uuid.UUID          `json:"tenant_id"`
	CustomerID   uuid.UUID          `json:"customer_id"`
	Status       string             `json:"status"`
	StoredStatus string             `json:"stored_status"`
	AllowedNext  []string           `json:"allowed_transitions"`
	Items        []LineItemResponse `json:"items"`
	DeliveryFee  decimal.Decimal    `json:"delivery_fee"`
	ReturnFee    decimal.Decimal    `json:"return_fee"`
	Discount     decimal.Decimal    `json:"discount"`
	StartDate    string             `json:"start_date"`
	EndDate      string             `json:"end_date"`
	DurationDays int                `json:"duration_days"`
	Financials   RentalFinancials   `json:"financials"`
	Notes        string             `json:"notes,omitempty"`
	CancelReason string             `json:"cancel_reason,omitempty"`
	DeliveredAt  *time.Time         `json:"delivered_at,omitempty"`
	ReturnedAt   *time.Time         `json:"returned_at,omitempty"`
	CancelledAt  *time.Time         `json:"cancelled_at,omitempty"`
	Version      int                `json:"version"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// ListRentalsFilter is the query of RentalService.List
type ListRentalsFilter struct {
	Page          int    `form:"page" binding:"omitempty,min=1"`
	PageSize      int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy       string `form:"order_by" binding:"omitempty,oneof=created_at start_date end_date total_amount"`
	OrderDir      string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Status        string `form:"status" binding:"omitempty,rental_status"`
	PaymentStatus string `form:"payment_status" binding:"omitempty,oneof=PENDING PARTIAL PAID OVERDUE"`
	CustomerID    string `form:"customer_id" binding:"omitempty,uuid"`
	Overdue       bool   `form:"overdue"`
}

// RentalListResult is a page of rentals
type RentalListResult struct {
	Items      []RentalResponse `json:"items"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
}

const dateLayout = "2006-01-02"

func toPaymentResponse(p *rental.Payment) PaymentResponse {
	return PaymentResponse{
		ID:          p.ID,
		RentalID:    p.RentalID,
		Amount:      p.Amount,
		Method:      p.Method.String(),
		PaymentDate: p.PaymentDate.Format(dateLayout),
		Notes:       p.Notes,
		MovementID:  p.MovementID,
		CreatedAt:   p.CreatedAt,
	}
}

func toFinancials(r *rental.Rental, now time.Time) RentalFinancials {
	return RentalFinancials{
		RentalID:        r.ID,
		TotalAmount:     r.TotalAmount,
		AmountPaid:      r.AmountPaid,
		Outstanding:     r.OutstandingBalance(),
		SecurityDeposit: r.SecurityDeposit,
		PaymentStatus:   r.CurrentPaymentStatus(now).String(),
	}
}

func toRentalResponse(r *rental.Rental, now time.Time) RentalResponse {
	effective := r.EffectiveStatus(now)
	allowed := rental.AllowedTransitions(effective)
	next := make([]string, len(allowed))
	for i, s := range allowed {
		next[i] = s.String()
	}

	items := make([]LineItemResponse, len(r.Items))
	for i, it := range r.Items {
		items[i] = LineItemResponse{
			ID:           it.ID,
			EquipmentID:  it.EquipmentID,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			DepositValue: it.DepositValue,
			Subtotal:     it.Subtotal(),
		}
	}

	return RentalResponse{
		ID:           r.ID,
		TenantID:     r.TenantID,
		CustomerID:   r.CustomerID,
		Status:       effective.String(),
		StoredStatus: r.Status.String(),
		AllowedNext:  next,
		Items:        items,
		DeliveryFee:  r.DeliveryFee,
		ReturnFee:    r.ReturnFee,
		Discount:     r.Discount,
		StartDate:    r.StartDate.Format(dateLayout),
		EndDate:      r.EndDate.Format(dateLayout),
		DurationDays: r.DurationDays(),
		Financials:   toFinancials(r, now),
		Notes:        r.Notes,
		CancelReason: r.CancelReason,
		DeliveredAt:  r.DeliveredAt,
		ReturnedAt:   r.ReturnedAt,
		CancelledAt:  r.CancelledAt,
		Version:      r.GetVersion(),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
