package rental

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rental/backend/internal/domain/ledger"
	"github.com/rental/backend/internal/domain/rental"
	"github.com/rental/backend/internal/domain/shared"
	"github.com/rental/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// RentalService creates, reads and edits rentals
type RentalService struct {
	scope   TransactionScope
	rentals rental.RentalRepository
	opts    options
}

// NewRentalService creates a RentalService
func NewRentalService(scope TransactionScope, rentals rental.RentalRepository, opts ...Option) *RentalService {
	return &RentalService{scope: scope, rentals: rentals, opts: buildOptions(opts)}
}

// Create stores a new rental. With the ledger enabled a receivable title for
// the total is opened in the same transaction.
func (s *RentalService) Create(ctx context.Context, tenantID uuid.UUID, req CreateRentalRequest) (*RentalResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "rental", "create")
	defer span.End()

	now := s.opts.now()
	r, err := rental.NewRental(tenantID, rental.RentalStatus(strings.ToUpper(req.Status)), req.toTerms(), now)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrRentalID, r.ID.String(),
		telemetry.SpanAttrAmount, r.TotalAmount.String(),
	)

	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.Rentals().Create(ctx, r); err != nil {
			return err
		}
		if s.opts.ledgerEnabled {
			title := ledger.NewFinancialTitle(tenantID, r.ID, r.TotalAmount, r.EndDate, "Rental "+r.ID.String()[:8])
			if err := repos.Titles().Create(ctx, title); err != nil {
				return err
			}
		}
		if err := repos.Events().Record(ctx, r.GetDomainEvents()...); err != nil {
			return err
		}
		r.ClearDomainEvents()
		return nil
	})
	if err = finishTx(err); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.opts.logger.Info("Rental created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("rental_id", r.ID.String()),
		zap.String("status", r.Status.String()),
		zap.String("total_amount", r.TotalAmount.String()),
	)
	resp := toRentalResponse(r, now)
	return &resp, nil
}

// Get returns a rental by ID
func (s *RentalService) Get(ctx context.Context, tenantID, rentalID uuid.UUID) (*RentalResponse, error) {
	r, err := findRental(ctx, s.rentals, tenantID, rentalID)
	if err != nil {
		return nil, err
	}
	resp := toRentalResponse(r, s.opts.now())
	return &resp, nil
}

// List returns a page of the tenant's rentals
func (s *RentalService) List(ctx context.Context, tenantID uuid.UUID, f ListRentalsFilter) (*RentalListResult, error) {
	now := s.opts.now()
	filter := rental.RentalFilter{
		Filter: shared.Filter{
			Page:     f.Page,
			PageSize: f.PageSize,
			OrderBy:  f.OrderBy,
			OrderDir: f.OrderDir,
		}.Normalize(),
		Status:        rental.RentalStatus(f.Status),
		PaymentStatus: rental.PaymentStatus(f.PaymentStatus),
	}
	if filter.OrderBy == "" {
		filter.OrderBy = "created_at"
	}
	if f.CustomerID != "" {
		id, err := uuid.Parse(f.CustomerID)
		if err != nil {
			return nil, shared.NewValidationError("invalid customer_id").WithDetail("field", "customer_id")
		}
		filter.CustomerID = &id
	}
	if f.Overdue {
		filter.EndingBefore = &now
	}

	rentals, total, err := s.rentals.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	items := make([]RentalResponse, len(rentals))
	for i := range rentals {
		items[i] = toRentalResponse(&rentals[i], now)
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &RentalListResult{
		Items:      page.Items,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	}, nil
}

// UpdateCommercialTerms replaces items, fees, discount and dates while the
// rental is DRAFT or SCHEDULED. The receivable title follows the new total.
func (s *RentalService) UpdateCommercialTerms(ctx context.Context, tenantID, rentalID uuid.UUID, req RentalTermsRequest) (*RentalResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "rental", "update_terms")
	defer span.End()

	now := s.opts.now()
	var resp RentalResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		r, err := lockRental(ctx, repos, tenantID, rentalID)
		if err != nil {
			return err
		}
		if err := r.UpdateTerms(req.toTerms(), now); err != nil {
			return err
		}
		if err := repos.Rentals().Update(ctx, r); err != nil {
			return err
		}
		if s.opts.ledgerEnabled {
			if err := syncTitle(ctx, repos, r); err != nil {
				return err
			}
		}
		resp = toRentalResponse(r, now)
		return nil
	})
	if err = finishTx(err); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return &resp, nil
}

func syncTitle(ctx context.Context, repos TransactionalRepositories, r *rental.Rental) error {
	title, err := repos.Titles().FindByRental(ctx, r.TenantID, r.ID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil
		}
		return err
	}
	title.Reprice(r.TotalAmount, r.EndDate)
	return repos.Titles().Update(ctx, title)
}
