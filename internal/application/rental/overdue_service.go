package rental

import (
	"context"

	"github.com/rental/backend/internal/domain/rental"
	"github.com/rental/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const defaultOverdueBatch = 500

// OverdueService refreshes stored payment statuses that went stale because
// the end date passed without any mutation on the rental
type OverdueService struct {
	scope     TransactionScope
	rentals   rental.RentalRepository
	batchSize int
	opts      options
}

// NewOverdueService creates an OverdueService
func NewOverdueService(scope TransactionScope, rentals rental.RentalRepository, batchSize int, opts ...Option) *OverdueService {
	if batchSize <= 0 {
		batchSize = defaultOverdueBatch
	}
	return &OverdueService{scope: scope, rentals: rentals, batchSize: batchSize, opts: buildOptions(opts)}
}

// RefreshOverdue re-derives the payment status of every candidate rental,
// one locked transaction per rental. It returns how many rentals changed.
// A failure on one rental is logged and does not stop the sweep.
func (s *OverdueService) RefreshOverdue(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "rental_overdue", "refresh")
	defer span.End()

	now := s.opts.now()
	candidates, err := s.rentals.FindOverdueCandidates(ctx, now, s.batchSize)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}

	changed := 0
	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		updated := false
		err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			r, err := repos.Rentals().FindByIDForUpdate(ctx, c.TenantID, c.RentalID)
			if err != nil {
				return err
			}
			status := r.CurrentPaymentStatus(now)
			if status == r.PaymentStatus {
				return nil
			}
			updated = true
			return repos.Rentals().UpdateDerivedFields(ctx, r.TenantID, r.ID, r.AmountPaid, status)
		})
		if err != nil {
			s.opts.logger.Warn("Failed to refresh rental payment status",
				zap.String("tenant_id", c.TenantID.String()),
				zap.String("rental_id", c.RentalID.String()),
				zap.Error(err),
			)
			continue
		}
		if updated {
			changed++
		}
	}

	telemetry.SetAttributes(span, "candidates", len(candidates), "changed", changed)
	s.opts.metrics.OverdueRefreshed(ctx, changed)
	if changed > 0 {
		s.opts.logger.Info("Marked rentals overdue", zap.Int("count", changed), zap.Int("candidates", len(candidates)))
	}
	return changed, nil
}
