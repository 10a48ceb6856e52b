package rental_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rental/backend/internal/domain/rental"
	"github.com/rental/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockRentalRepository is a mock implementation of rental.RentalRepository
type MockRentalRepository struct {
	mock.Mock
}

func (m *MockRentalRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*rental.Rental, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rental.Rental), args.Error(1)
}

func (m *MockRentalRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*rental.Rental, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rental.Rental), args.Error(1)
}

func (m *MockRentalRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter rental.RentalFilter) ([]rental.Rental, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]rental.Rental), args.Get(1).(int64), args.Error(2)
}

func (m *MockRentalRepository) Create(ctx context.Context, r *rental.Rental) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockRentalRepository) Update(ctx context.Context, r *rental.Rental) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockRentalRepository) UpdateDerivedFields(ctx context.Context, tenantID, id uuid.UUID, amountPaid decimal.Decimal, status rental.PaymentStatus) error {
	return m.Called(ctx, tenantID, id, amountPaid, status).Error(0)
}

func (m *MockRentalRepository) FindOverdueCandidates(ctx context.Context, now time.Time, limit int) ([]rental.OverdueCandidate, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]rental.OverdueCandidate), args.Error(1)
}

// MockEventRecorder is a mock implementation of EventRecorder
type MockEventRecorder struct {
	mock.Mock
}

func (m *MockEventRecorder) Record(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}
