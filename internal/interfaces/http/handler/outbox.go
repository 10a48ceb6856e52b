package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rental/backend/internal/application/event"
	"github.com/rental/backend/internal/domain/shared"
)

// OutboxService is the operator surface over the event outbox
type OutboxService interface {
	GetDeadLetterEntries(ctx context.Context, filter event.OutboxFilter) (*shared.Paginated[event.OutboxEntryDTO], error)
	GetEntry(ctx context.Context, id uuid.UUID) (*event.OutboxEntryDTO, error)
	RetryDeadEntry(ctx context.Context, id uuid.UUID) (*event.OutboxEntryDTO, error)
	RetryAllDeadEntries(ctx context.Context) (int64, error)
	GetStats(ctx context.Context) (*event.OutboxStatsDTO, error)
}

// OutboxHandler handles outbox management HTTP requests
type OutboxHandler struct {
	BaseHandler
	outbox OutboxService
}

// NewOutboxHandler creates a new outbox handler
func NewOutboxHandler(outbox OutboxService) *OutboxHandler {
	return &OutboxHandler{outbox: outbox}
}

// RetryAllResponse represents the response for retry all operation
type RetryAllResponse struct {
	Count int64 `json:"count"`
}

// GetDeadLetterEntries godoc
// @ID           getOutboxDeadLetterEntries
// @Summary      List dead letter entries
// @Tags         outbox
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]event.OutboxEntryDTO]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /system/outbox/dead [get]
func (h *OutboxHandler) GetDeadLetterEntries(c *gin.Context) {
	var filter event.OutboxFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}

	page, err := h.outbox.GetDeadLetterEntries(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// GetEntry godoc
// @ID           getOutboxEntry
// @Summary      Get an outbox entry by ID
// @Tags         outbox
// @Produce      json
// @Param        id path string true "Outbox Entry ID" format(uuid)
// @Success      200 {object} APIResponse[event.OutboxEntryDTO]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /system/outbox/{id} [get]
func (h *OutboxHandler) GetEntry(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	entry, err := h.outbox.GetEntry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// RetryDeadEntry godoc
// @ID           retryDeadEntryOutbox
// @Summary      Retry a dead letter entry
// @Tags         outbox
// @Produce      json
// @Param        id path string true "Outbox Entry ID" format(uuid)
// @Success      200 {object} APIResponse[event.OutboxEntryDTO]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /system/outbox/{id}/retry [post]
func (h *OutboxHandler) RetryDeadEntry(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	entry, err := h.outbox.RetryDeadEntry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// RetryAllDeadEntries godoc
// @ID           retryAllDeadEntriesOutbox
// @Summary      Retry all dead letter entries
// @Tags         outbox
// @Produce      json
// @Success      200 {object} APIResponse[RetryAllResponse]
// @Security     BearerAuth
// @Router       /system/outbox/dead/retry-all [post]
func (h *OutboxHandler) RetryAllDeadEntries(c *gin.Context) {
	count, err := h.outbox.RetryAllDeadEntries(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, RetryAllResponse{Count: count})
}

// GetStats godoc
// @ID           getOutboxStats
// @Summary      Count outbox entries by status
// @Tags         outbox
// @Produce      json
// @Success      200 {object} APIResponse[event.OutboxStatsDTO]
// @Security     BearerAuth
// @Router       /system/outbox/stats [get]
func (h *OutboxHandler) GetStats(c *gin.Context) {
	stats, err := h.outbox.GetStats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}
