package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apprental "github.com/rental/backend/internal/application/rental"
	"github.com/rental/backend/internal/domain/rental"
	"github.com/rental/backend/internal/interfaces/http/middleware"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// ReconciliationService records and reverts payments against rentals
type ReconciliationService interface {
	AddPayment(ctx context.Context, tenantID uuid.UUID, req apprental.AddPaymentRequest) (*apprental.AddPaymentResult, error)
	DeletePayment(ctx context.Context, tenantID, paymentID uuid.UUID) (*apprental.DeletePaymentResult, error)
	GetRentalFinancials(ctx context.Context, tenantID, rentalID uuid.UUID) (*apprental.RentalFinancials, error)
	ListPayments(ctx context.Context, tenantID, rentalID uuid.UUID) ([]apprental.PaymentResponse, error)
	RecalculateRental(ctx context.Context, tenantID, rentalID uuid.UUID) (*apprental.RentalFinancials, error)
}

// PaymentHandler handles payment and financial HTTP requests
type PaymentHandler struct {
	BaseHandler
	recon ReconciliationService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(recon ReconciliationService) *PaymentHandler {
	return &PaymentHandler{recon: recon}
}

// AddPaymentRequest is the body of POST /rentals/:id/payments
type AddPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"decimal_gt0"`
	Method      string          `json:"payment_method" binding:"required,payment_method"`
	PaymentDate string          `json:"payment_date" binding:"required,datetime=2006-01-02"`
	Notes       *string         `json:"notes" binding:"omitempty,max=1000"`
}

// AddPayment godoc
// @ID           addRentalPayment
// @Summary      Record a payment
// @Description  Records a payment, updates the rental's amount paid and payment status, and registers the income in the ledger when a title and default bank account exist. Honours the Idempotency-Key header.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path string true "Rental ID" format(uuid)
// @Param        Idempotency-Key header string false "Client key; a replay within the TTL answers 409"
// @Param        request body AddPaymentRequest true "Payment"
// @Success      201 {object} APIResponse[apprental.AddPaymentResult]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rentals/{id}/payments [post]
func (h *PaymentHandler) AddPayment(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	rentalID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req AddPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	paymentDate, err := time.Parse(dateLayout, req.PaymentDate)
	if err != nil {
		h.BadRequest(c, "payment_date must be YYYY-MM-DD")
		return
	}

	result, err := h.recon.AddPayment(c.Request.Context(), tenantID, apprental.AddPaymentRequest{
		RentalID:    rentalID,
		Amount:      req.Amount,
		Method:      rental.PaymentMethod(req.Method),
		PaymentDate: paymentDate,
		Notes:       req.Notes,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// DeletePayment godoc
// @ID           deletePayment
// @Summary      Delete a payment
// @Description  Deletes the payment, reverts its ledger movement and re-derives the rental's payment status
// @Tags         payments
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Success      200 {object} APIResponse[apprental.DeletePaymentResult]
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/{id} [delete]
func (h *PaymentHandler) DeletePayment(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	paymentID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	result, err := h.recon.DeletePayment(c.Request.Context(), tenantID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ListPayments godoc
// @ID           listRentalPayments
// @Summary      List the payments of a rental
// @Tags         payments
// @Produce      json
// @Param        id path string true "Rental ID" format(uuid)
// @Success      200 {object} APIResponse[[]apprental.PaymentResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rentals/{id}/payments [get]
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	h.byRental(c, func(ctx context.Context, tenantID, rentalID uuid.UUID) (any, error) {
		return h.recon.ListPayments(ctx, tenantID, rentalID)
	})
}

// GetFinancials godoc
// @ID           getRentalFinancials
// @Summary      Get the financial view of a rental
// @Tags         payments
// @Produce      json
// @Param        id path string true "Rental ID" format(uuid)
// @Success      200 {object} APIResponse[apprental.RentalFinancials]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rentals/{id}/financials [get]
func (h *PaymentHandler) GetFinancials(c *gin.Context) {
	h.byRental(c, func(ctx context.Context, tenantID, rentalID uuid.UUID) (any, error) {
		return h.recon.GetRentalFinancials(ctx, tenantID, rentalID)
	})
}

// Reconcile godoc
// @ID           reconcileRental
// @Summary      Recompute amount paid and payment status from the stored payments
// @Tags         payments
// @Produce      json
// @Param        id path string true "Rental ID" format(uuid)
// @Success      200 {object} APIResponse[apprental.RentalFinancials]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rentals/{id}/reconcile [post]
func (h *PaymentHandler) Reconcile(c *gin.Context) {
	h.byRental(c, func(ctx context.Context, tenantID, rentalID uuid.UUID) (any, error) {
		return h.recon.RecalculateRental(ctx, tenantID, rentalID)
	})
}

func (h *PaymentHandler) byRental(c *gin.Context, op func(ctx context.Context, tenantID, rentalID uuid.UUID) (any, error)) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	rentalID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	out, err := op(c.Request.Context(), tenantID, rentalID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, out)
}
