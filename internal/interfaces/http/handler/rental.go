package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apprental "github.com/rental/backend/internal/application/rental"
	"github.com/rental/backend/internal/domain/rental"
	"github.com/rental/backend/internal/interfaces/http/middleware"
)

// RentalService is the rental management surface used by RentalHandler
type RentalService interface {
	Create(ctx context.Context, tenantID uuid.UUID, req apprental.CreateRentalRequest) (*apprental.RentalResponse, error)
	Get(ctx context.Context, tenantID, rentalID uuid.UUID) (*apprental.RentalResponse, error)
	List(ctx context.Context, tenantID uuid.UUID, f apprental.ListRentalsFilter) (*apprental.RentalListResult, error)
	UpdateCommercialTerms(ctx context.Context, tenantID, rentalID uuid.UUID, req apprental.RentalTermsRequest) (*apprental.RentalResponse, error)
}

// StatusService drives the rental lifecycle
type StatusService interface {
	TransitionRentalStatus(ctx context.Context, tenantID, rentalID uuid.UUID, target rental.RentalStatus, reason string) (*apprental.RentalResponse, error)
	ConfirmDelivery(ctx context.Context, tenantID, rentalID uuid.UUID) (*apprental.RentalResponse, error)
	ConfirmReturn(ctx context.Context, tenantID, rentalID uuid.UUID) (*apprental.RentalResponse, error)
	Cancel(ctx context.Context, tenantID, rentalID uuid.UUID, reason string) (*apprental.RentalResponse, error)
	Reopen(ctx context.Context, tenantID, rentalID uuid.UUID) (*apprental.RentalResponse, error)
	UndoDelivery(ctx context.Context, tenantID, rentalID uuid.UUID) (*apprental.RentalResponse, error)
}

// RentalHandler handles rental HTTP requests
type RentalHandler struct {
	BaseHandler
	rentals RentalService
	status  StatusService
}

// NewRentalHandler creates a new rental handler
func NewRentalHandler(rentals RentalService, status StatusService) *RentalHandler {
	return &RentalHandler{rentals: rentals, status: status}
}

// TransitionRequest is the body of POST /rentals/:id/status
type TransitionRequest struct {
	Status string `json:"status" binding:"required,rental_status"`
	Reason string `json:"reason" binding:"max=500"`
}

// CancelRequest is the optional body of POST /rentals/:id/cancel
type CancelRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// Create godoc
// @ID           createRental
// @Summary      Create a rental
// @Description  Create a DRAFT or SCHEDULED rental with its equipment lines
// @Tags         rentals
// @Accept       json
// @Produce      json
// @Param        request body apprental.CreateRentalRequest true "Rental"
// @Success      201 {object} APIResponse[apprental.RentalResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rentals [post]
func (h *RentalHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req apprental.CreateRentalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	resp, err := h.rentals.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// List godoc
// @ID           listRentals
// @Summary      List rentals
// @Tags         rentals
// @Produce      json
// @Param        status query string false "Lifecycle status"
// @Param        payment_status query string false "PENDING, PARTIAL, PAID or OVERDUE"
// @Param        customer_id query string false "Customer" format(uuid)
// @Param        overdue query bool false "Only rentals past their end date with a balance"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]apprental.RentalResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rentals [get]
func (h *RentalHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var filter apprental.ListRentalsFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.rentals.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// Get godoc
// @ID           getRental
// @Summary      Get a rental
// @Description  Returns the rental with its effective status and derived financials
// @Tags         rentals
// @Produce      json
// @Param        id path string true "Rental ID" format(uuid)
// @Success      200 {object} APIResponse[apprental.RentalResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rentals/{id} [get]
func (h *RentalHandler) Get(c *gin.Context) {
	tenantID, rentalID, ok := h.ids(c)
	if !ok {
		return
	}
	resp, err := h.rentals.Get(c.Request.Context(), tenantID, rentalID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// UpdateTerms godoc
// @ID           updateRentalTerms
// @Summary      Update commercial terms
// @Description  Replace items, fees, discount and dates while the rental is DRAFT or SCHEDULED
// @Tags         rentals
// @Accept       json
// @Produce      json
// @Param        id path string true "Rental ID" format(uuid)
// @Param        request body apprental.RentalTermsRequest true "Terms"
// @Success      200 {object} APIResponse[apprental.RentalResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rentals/{id} [put]
func (h *RentalHandler) UpdateTerms(c *gin.Context) {
	tenantID, rentalID, ok := h.ids(c)
	if !ok {
		return
	}
	var req apprental.RentalTermsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	resp, err := h.rentals.UpdateCommercialTerms(c.Request.Context(), tenantID, rentalID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Transition godoc
// @ID           transitionRentalStatus
// @Summary      Change the lifecycle status
// @Tags         rentals
// @Accept       json
// @Produce      json
// @Param        id path string true "Rental ID" format(uuid)
// @Param        request body TransitionRequest true "Target status"
// @Success      200 {object} APIResponse[apprental.RentalResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rentals/{id}/status [post]
func (h *RentalHandler) Transition(c *gin.Context) {
	tenantID, rentalID, ok := h.ids(c)
	if !ok {
		return
	}
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	resp, err := h.status.TransitionRentalStatus(c.Request.Context(), tenantID, rentalID, rental.RentalStatus(req.Status), req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Cancel godoc
// @ID           cancelRental
// @Summary      Cancel a rental
// @Tags         rentals
// @Accept       json
// @Produce      json
// @Param        id path string true "Rental ID" format(uuid)
// @Param        request body CancelRequest false "Reason"
// @Success      200 {object} APIResponse[apprental.RentalResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rentals/{id}/cancel [post]
func (h *RentalHandler) Cancel(c *gin.Context) {
	tenantID, rentalID, ok := h.ids(c)
	if !ok {
		return
	}
	var req CancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.HandleValidationError(c, err)
			return
		}
	}

	resp, err := h.status.Cancel(c.Request.Context(), tenantID, rentalID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ConfirmDelivery godoc
// @ID           deliverRental
// @Summary      Confirm delivery (DRAFT or SCHEDULED to ACTIVE)
// @Tags         rentals
// @Produce      json
// @Param        id path string true "Rental ID" format(uuid)
// @Success      200 {object} APIResponse[apprental.RentalResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rentals/{id}/deliver [post]
func (h *RentalHandler) ConfirmDelivery(c *gin.Context) {
	h.named(c, h.status.ConfirmDelivery)
}

// ConfirmReturn godoc
// @ID           returnRental
// @Summary      Confirm return (ACTIVE or LATE to COMPLETED)
// @Tags         rentals
// @Produce      json
// @Param        id path string true "Rental ID" format(uuid)
// @Success      200 {object} APIResponse[apprental.RentalResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rentals/{id}/return [post]
func (h *RentalHandler) ConfirmReturn(c *gin.Context) {
	h.named(c, h.status.ConfirmReturn)
}

// Reopen godoc
// @ID           reopenRental
// @Summary      Reopen a completed rental (back to ACTIVE)
// @Tags         rentals
// @Produce      json
// @Param        id path string true "Rental ID" format(uuid)
// @Success      200 {object} APIResponse[apprental.RentalResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rentals/{id}/reopen [post]
func (h *RentalHandler) Reopen(c *gin.Context) {
	h.named(c, h.status.Reopen)
}

// UndoDelivery godoc
// @ID           undoRentalDelivery
// @Summary      Undo a delivery (ACTIVE to SCHEDULED)
// @Tags         rentals
// @Produce      json
// @Param        id path string true "Rental ID" format(uuid)
// @Success      200 {object} APIResponse[apprental.RentalResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rentals/{id}/undo-delivery [post]
func (h *RentalHandler) UndoDelivery(c *gin.Context) {
	h.named(c, h.status.UndoDelivery)
}

func (h *RentalHandler) named(c *gin.Context, op func(ctx context.Context, tenantID, rentalID uuid.UUID) (*apprental.RentalResponse, error)) {
	tenantID, rentalID, ok := h.ids(c)
	if !ok {
		return
	}
	resp, err := op(c.Request.Context(), tenantID, rentalID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

func (h *RentalHandler) ids(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	rentalID, ok := h.pathUUID(c, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, rentalID, true
}
