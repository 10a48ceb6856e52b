package rental

import (
	"context"

	"github.com/google/uuid"
	"github.com/rental/backend/internal/domain/rental"
	"github.com/rental/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EventMetrics receives counters derived from rental events
type EventMetrics interface {
	PaymentRecorded(ctx context.Context, tenantID uuid.UUID, method string, amount decimal.Decimal, ledgerLinked bool)
	PaymentReverted(ctx context.Context, tenantID uuid.UUID, amount decimal.Decimal, ledgerReverted bool)
	StatusChanged(ctx context.Context, tenantID uuid.UUID, from, to string)
	RentalCreated(ctx context.Context, tenantID uuid.UUID, total decimal.Decimal)
}

// RentalEventHandler turns rental events delivered by the outbox into
// metrics and audit log lines
type RentalEventHandler struct {
	logger  *zap.Logger
	metrics EventMetrics
}

// NewRentalEventHandler creates a RentalEventHandler. metrics may be nil.
func NewRentalEventHandler(logger *zap.Logger, metrics EventMetrics) *RentalEventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RentalEventHandler{logger: logger, metrics: metrics}
}

// EventTypes returns the event types this handler is interested in
func (h *RentalEventHandler) EventTypes() []string {
	return []string{
		rental.EventTypeRentalCreated,
		rental.EventTypeRentalStatusChanged,
		rental.EventTypePaymentRecorded,
		rental.EventTypePaymentReverted,
	}
}

// Handle processes one rental event
func (h *RentalEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *rental.RentalCreatedEvent:
		if h.metrics != nil {
			h.metrics.RentalCreated(ctx, e.TenantID(), e.TotalAmount)
		}
	case *rental.RentalStatusChangedEvent:
		if h.metrics != nil {
			h.metrics.StatusChanged(ctx, e.TenantID(), e.FromStatus.String(), e.ToStatus.String())
		}
		h.logger.Info("audit: rental status changed",
			zap.String("tenant_id", e.TenantID().String()),
			zap.String("rental_id", e.RentalID.String()),
			zap.String("from", e.FromStatus.String()),
			zap.String("to", e.ToStatus.String()),
			zap.String("reason", e.Reason),
		)
	case *rental.PaymentRecordedEvent:
		if h.metrics != nil {
			h.metrics.PaymentRecorded(ctx, e.TenantID(), e.Method.String(), e.Amount, e.LedgerLinked)
		}
		h.logger.Info("audit: payment recorded",
			zap.String("tenant_id", e.TenantID().String()),
			zap.String("rental_id", e.RentalID.String()),
			zap.String("payment_id", e.PaymentID.String()),
			zap.String("amount", e.Amount.String()),
			zap.String("payment_status", e.PaymentStatus.String()),
		)
	case *rental.PaymentRevertedEvent:
		if h.metrics != nil {
			h.metrics.PaymentReverted(ctx, e.TenantID(), e.Amount, e.LedgerReverted)
		}
		h.logger.Info("audit: payment reverted",
			zap.String("tenant_id", e.TenantID().String()),
			zap.String("rental_id", e.RentalID.String()),
			zap.String("payment_id", e.PaymentID.String()),
			zap.String("amount", e.Amount.String()),
		)
	default:
		h.logger.Warn("unexpected event type", zap.String("event_type", event.EventType()))
	}
	return nil
}

var _ shared.EventHandler = (*RentalEventHandler)(nil)
