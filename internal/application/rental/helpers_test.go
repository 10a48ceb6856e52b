package rental_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	apprental "github.com/rental/backend/internal/application/rental"
	"github.com/rental/backend/internal/domain/ledger"
	"github.com/rental/backend/internal/domain/rental"
	"github.com/rental/backend/internal/infrastructure/persistence/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fixture struct {
	store    *memory.Store
	tenantID uuid.UUID
	account  *ledger.BankAccount
	recon    *apprental.ReconciliationService
	status   *apprental.StatusService
	rentals  *apprental.RentalService
}

func newFixture(t *testing.T, opts ...apprental.Option) *fixture {
	t.Helper()
	store := memory.NewStore()
	tenantID := uuid.New()
	account := ledger.NewBankAccount(tenantID, "Main account", true)
	store.PutBankAccount(account)

	opts = append([]apprental.Option{apprental.WithClock(clock)}, opts...)
	return &fixture{
		store:    store,
		tenantID: tenantID,
		account:  account,
		recon:    apprental.NewReconciliationService(store, store.Rentals(), store.Payments(), opts...),
		status:   apprental.NewStatusService(store, opts...),
		rentals:  apprental.NewRentalService(store, store.Rentals(), opts...),
	}
}

// createRental stores a SCHEDULED rental whose total is total, ending endOffset days from fixedNow
func (f *fixture) createRental(t *testing.T, total int64, endOffset int) uuid.UUID {
	t.Helper()
	start := fixedNow.AddDate(0, 0, endOffset-5)
	resp, err := f.rentals.Create(context.Background(), f.tenantID, apprental.CreateRentalRequest{
		RentalTermsRequest: apprental.RentalTermsRequest{
			CustomerID: uuid.New(),
			Items: []apprental.LineItemRequest{
				{EquipmentID: uuid.New(), Quantity: 1, UnitPrice: decimal.NewFromInt(total), DepositValue: decimal.NewFromInt(50)},
			},
			StartDate: start,
			EndDate:   fixedNow.AddDate(0, 0, endOffset),
		},
		Status: string(rental.StatusScheduled),
	})
	require.NoError(t, err)
	return resp.ID
}

func (f *fixture) addPayment(t *testing.T, rentalID uuid.UUID, amount int64) *apprental.AddPaymentResult {
	t.Helper()
	res, err := f.recon.AddPayment(context.Background(), f.tenantID, apprental.AddPaymentRequest{
		RentalID:    rentalID,
		Amount:      decimal.NewFromInt(amount),
		Method:      rental.MethodPix,
		PaymentDate: fixedNow,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) financials(t *testing.T, rentalID uuid.UUID) *apprental.RentalFinancials {
	t.Helper()
	fin, err := f.recon.GetRentalFinancials(context.Background(), f.tenantID, rentalID)
	require.NoError(t, err)
	return fin
}

func (f *fixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	a, ok := f.store.BankAccount(f.account.ID)
	require.True(t, ok)
	return a.Balance
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
