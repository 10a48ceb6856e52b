package rental

import (
	"context"

	"github.com/google/uuid"
	"github.com/rental/backend/internal/domain/rental"
	"github.com/rental/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// StatusService drives rentals through the logistics state machine
type StatusService struct {
	scope TransactionScope
	opts  options
}

// NewStatusService creates a StatusService
func NewStatusService(scope TransactionScope, opts ...Option) *StatusService {
	return &StatusService{scope: scope, opts: buildOptions(opts)}
}

// TransitionRentalStatus moves a rental to target inside one locked
// transaction. Illegal moves fail with InvalidTransitionError and change nothing.
func (s *StatusService) TransitionRentalStatus(ctx context.Context, tenantID, rentalID uuid.UUID, target rental.RentalStatus, reason string) (*RentalResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "rental_status", "transition")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrRentalID, rentalID.String(),
		telemetry.SpanAttrRentalStatus, target.String(),
	)

	now := s.opts.now()
	var (
		resp RentalResponse
		from rental.RentalStatus
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		r, err := lockRental(ctx, repos, tenantID, rentalID)
		if err != nil {
			return err
		}
		from = r.EffectiveStatus(now)
		if err := r.TransitionTo(target, reason, now); err != nil {
			return err
		}
		r.PaymentStatus = r.CurrentPaymentStatus(now)
		if err := repos.Rentals().Update(ctx, r); err != nil {
			return err
		}
		if err := repos.Events().Record(ctx, r.GetDomainEvents()...); err != nil {
			return err
		}
		r.ClearDomainEvents()
		resp = toRentalResponse(r, now)
		return nil
	})
	if err = finishTx(err); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.opts.logger.Info("Rental status changed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("rental_id", rentalID.String()),
		zap.String("from", from.String()),
		zap.String("to", target.String()),
	)
	return &resp, nil
}

// ConfirmDelivery marks the equipment as delivered (DRAFT/SCHEDULED → ACTIVE)
func (s *StatusService) ConfirmDelivery(ctx context.Context, tenantID, rentalID uuid.UUID) (*RentalResponse, error) {
	return s.TransitionRentalStatus(ctx, tenantID, rentalID, rental.StatusActive, "")
}

// ConfirmReturn marks the equipment as returned (ACTIVE/LATE → COMPLETED)
func (s *StatusService) ConfirmReturn(ctx context.Context, tenantID, rentalID uuid.UUID) (*RentalResponse, error) {
	return s.TransitionRentalStatus(ctx, tenantID, rentalID, rental.StatusCompleted, "")
}

// Cancel cancels a rental that is not completed. Cancellation is final.
func (s *StatusService) Cancel(ctx context.Context, tenantID, rentalID uuid.UUID, reason string) (*RentalResponse, error) {
	return s.TransitionRentalStatus(ctx, tenantID, rentalID, rental.StatusCancelled, reason)
}

// Reopen moves a completed rental back to ACTIVE
func (s *StatusService) Reopen(ctx context.Context, tenantID, rentalID uuid.UUID) (*RentalResponse, error) {
	return s.TransitionRentalStatus(ctx, tenantID, rentalID, rental.StatusActive, "")
}

// UndoDelivery moves an ACTIVE rental back to SCHEDULED, also once it reads LATE
func (s *StatusService) UndoDelivery(ctx context.Context, tenantID, rentalID uuid.UUID) (*RentalResponse, error) {
	return s.TransitionRentalStatus(ctx, tenantID, rentalID, rental.StatusScheduled, "")
}
