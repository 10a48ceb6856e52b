package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	apprental "github.com/rental/backend/internal/application/rental"
	"github.com/rental/backend/internal/domain/ledger"
	"github.com/rental/backend/internal/domain/rental"
	"github.com/rental/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scopeNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

type sqliteFixture struct {
	db       *Database
	scope    *GormTransactionScope
	tenantID uuid.UUID
	account  *ledger.BankAccount
	rentals  *apprental.RentalService
	recon    *apprental.ReconciliationService
}

func newSQLiteFixture(t *testing.T, clock func() time.Time) *sqliteFixture {
	t.Helper()
	db := newTestDatabase(t)
	tenantID := uuid.New()
	account := ledger.NewBankAccount(tenantID, "Main account", true)
	require.NoError(t, NewGormBankAccountRepository(db.DB).Create(context.Background(), account))

	scope := NewGormTransactionScope(db.DB, nil)
	rentals := NewGormRentalRepository(db.DB)
	opt := apprental.WithClock(clock)
	return &sqliteFixture{
		db:       db,
		scope:    scope,
		tenantID: tenantID,
		account:  account,
		rentals:  apprental.NewRentalService(scope, rentals, opt),
		recon:    apprental.NewReconciliationService(scope, rentals, NewGormPaymentRepository(db.DB), opt),
	}
}

func (f *sqliteFixture) createRental(t *testing.T, price int64, end time.Time) uuid.UUID {
	t.Helper()
	resp, err := f.rentals.Create(context.Background(), f.tenantID, apprental.CreateRentalRequest{
		RentalTermsRequest: apprental.RentalTermsRequest{
			CustomerID: uuid.New(),
			Items: []apprental.LineItemRequest{
				{EquipmentID: uuid.New(), Quantity: 2, UnitPrice: decimal.NewFromInt(price), DepositValue: decimal.NewFromInt(25)},
			},
			StartDate: end.AddDate(0, 0, -5),
			EndDate:   end,
		},
		Status: string(rental.StatusScheduled),
	})
	require.NoError(t, err)
	return resp.ID
}

func (f *sqliteFixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	a, err := NewGormBankAccountRepository(f.db.DB).FindByIDForUpdate(context.Background(), f.tenantID, f.account.ID)
	require.NoError(t, err)
	return a.Balance
}

func (f *sqliteFixture) title(t *testing.T, rentalID uuid.UUID) *ledger.FinancialTitle {
	t.Helper()
	title, err := NewGormTitleRepository(f.db.DB).FindByRental(context.Background(), f.tenantID, rentalID)
	require.NoError(t, err)
	return title
}

func (f *sqliteFixture) countMovements(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.DB.Table("financial_movements").Where("tenant_id = ?", f.tenantID).Count(&n).Error)
	return n
}

func TestGormTransactionScope_RollsBackOnError(t *testing.T) {
	f := newSQLiteFixture(t, func() time.Time { return scopeNow })
	boom := errors.New("boom")

	r, err := rental.NewRental(f.tenantID, rental.StatusDraft, rental.Terms{
		CustomerID: uuid.New(),
		Items:      []rental.ItemInput{{EquipmentID: uuid.New(), Quantity: 1, UnitPrice: decimal.NewFromInt(100)}},
		StartDate:  scopeNow,
		EndDate:    scopeNow.AddDate(0, 0, 3),
	}, scopeNow)
	require.NoError(t, err)

	err = f.scope.Execute(context.Background(), func(repos apprental.TransactionalRepositories) error {
		if err := repos.Rentals().Create(context.Background(), r); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = NewGormRentalRepository(f.db.DB).FindByIDForTenant(context.Background(), f.tenantID, r.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	var items int64
	require.NoError(t, f.db.DB.Table("rental_items").Where("rental_id = ?", r.ID).Count(&items).Error)
	assert.Zero(t, items)
}

func TestGormTransactionScope_PaymentLifecycle(t *testing.T) {
	f := newSQLiteFixture(t, func() time.Time { return scopeNow })
	ctx := context.Background()
	rentalID := f.createRental(t, 150, scopeNow.AddDate(0, 0, 5))

	title := f.title(t, rentalID)
	assert.True(t, title.Amount.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, ledger.TitleOpen, title.Status)

	first, err := f.recon.AddPayment(ctx, f.tenantID, apprental.AddPaymentRequest{
		RentalID: rentalID, Amount: decimal.NewFromInt(100), Method: rental.MethodPix, PaymentDate: scopeNow,
	})
	require.NoError(t, err)
	assert.True(t, first.LedgerLinked)
	require.NotNil(t, first.Payment.MovementID)
	assert.Equal(t, string(rental.PaymentPartial), first.Financials.PaymentStatus)
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(100)))
	assert.Equal(t, ledger.TitlePartial, f.title(t, rentalID).Status)

	second, err := f.recon.AddPayment(ctx, f.tenantID, apprental.AddPaymentRequest{
		RentalID: rentalID, Amount: decimal.NewFromInt(200), Method: rental.MethodCash, PaymentDate: scopeNow,
	})
	require.NoError(t, err)
	assert.Equal(t, string(rental.PaymentPaid), second.Financials.PaymentStatus)
	assert.True(t, second.Financials.Outstanding.IsZero())
	assert.Equal(t, ledger.TitleSettled, f.title(t, rentalID).Status)
	assert.Equal(t, int64(2), f.countMovements(t))

	deleted, err := f.recon.DeletePayment(ctx, f.tenantID, first.Payment.ID)
	require.NoError(t, err)
	assert.True(t, deleted.LedgerReverted)
	assert.Empty(t, deleted.LedgerWarning)
	assert.True(t, deleted.Financials.AmountPaid.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, string(rental.PaymentPartial), deleted.Financials.PaymentStatus)
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(200)))
	assert.Equal(t, int64(1), f.countMovements(t))

	payments, err := f.recon.ListPayments(ctx, f.tenantID, rentalID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, second.Payment.ID, payments[0].ID)

	stored, err := f.recon.GetRentalFinancials(ctx, f.tenantID, rentalID)
	require.NoError(t, err)
	assert.True(t, stored.AmountPaid.Equal(decimal.NewFromInt(200)))
}

func TestGormTransactionScope_UnknownRentalLeavesNoPayment(t *testing.T) {
	f := newSQLiteFixture(t, func() time.Time { return scopeNow })

	_, err := f.recon.AddPayment(context.Background(), f.tenantID, apprental.AddPaymentRequest{
		RentalID: uuid.New(), Amount: decimal.NewFromInt(10), Method: rental.MethodPix, PaymentDate: scopeNow,
	})
	assert.True(t, shared.IsNotFound(err))

	var n int64
	require.NoError(t, f.db.DB.Table("rental_payments").Count(&n).Error)
	assert.Zero(t, n)
	assert.True(t, f.balance(t).IsZero())
}

func TestGormTransactionScope_RevertByValueMatch(t *testing.T) {
	f := newSQLiteFixture(t, func() time.Time { return scopeNow })
	ctx := context.Background()
	rentalID := f.createRental(t, 100, scopeNow.AddDate(0, 0, 5))
	title := f.title(t, rentalID)

	// a payment recorded before movement links were stored
	var paymentID uuid.UUID
	require.NoError(t, f.scope.Execute(ctx, func(repos apprental.TransactionalRepositories) error {
		if _, err := repos.Ledger().RegisterPayment(ctx, ledger.RegisterPaymentInput{
			TenantID:      f.tenantID,
			BankAccountID: f.account.ID,
			TitleID:       title.ID,
			Amount:        decimal.NewFromInt(80),
			Date:          scopeNow,
			Type:          ledger.MovementIncome,
			Description:   "legacy",
		}); err != nil {
			return err
		}
		p, err := rental.NewPayment(f.tenantID, rentalID, decimal.NewFromInt(80), rental.MethodBoleto, scopeNow, nil, scopeNow)
		if err != nil {
			return err
		}
		paymentID = p.ID
		return repos.Payments().Create(ctx, p)
	}))
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(80)))

	res, err := f.recon.DeletePayment(ctx, f.tenantID, paymentID)

	require.NoError(t, err)
	assert.True(t, res.LedgerReverted)
	assert.True(t, f.balance(t).IsZero())
	assert.Zero(t, f.countMovements(t))
	assert.Equal(t, ledger.TitleOpen, f.title(t, rentalID).Status)
}

func TestGormTransactionScope_RevertWithoutMovement(t *testing.T) {
	f := newSQLiteFixture(t, func() time.Time { return scopeNow })
	ctx := context.Background()
	rentalID := f.createRental(t, 100, scopeNow.AddDate(0, 0, 5))

	var paymentID uuid.UUID
	require.NoError(t, f.scope.Execute(ctx, func(repos apprental.TransactionalRepositories) error {
		p, err := rental.NewPayment(f.tenantID, rentalID, decimal.NewFromInt(40), rental.MethodCash, scopeNow, nil, scopeNow)
		if err != nil {
			return err
		}
		paymentID = p.ID
		return repos.Payments().Create(ctx, p)
	}))

	res, err := f.recon.DeletePayment(ctx, f.tenantID, paymentID)

	require.NoError(t, err)
	assert.False(t, res.LedgerReverted)
	assert.Equal(t, apprental.LedgerSkipMovementAbsent, res.LedgerWarning)
	assert.True(t, res.Financials.AmountPaid.IsZero())
}

func TestGormTransactionScope_ValueMatchSkipsLinkedMovement(t *testing.T) {
	f := newSQLiteFixture(t, func() time.Time { return scopeNow })
	ctx := context.Background()
	rentalID := f.createRental(t, 100, scopeNow.AddDate(0, 0, 5))

	var unlinkedID uuid.UUID
	require.NoError(t, f.scope.Execute(ctx, func(repos apprental.TransactionalRepositories) error {
		p, err := rental.NewPayment(f.tenantID, rentalID, decimal.NewFromInt(40), rental.MethodCash, scopeNow, nil, scopeNow)
		if err != nil {
			return err
		}
		unlinkedID = p.ID
		return repos.Payments().Create(ctx, p)
	}))
	linked, err := f.recon.AddPayment(ctx, f.tenantID, apprental.AddPaymentRequest{
		RentalID:    rentalID,
		Amount:      decimal.NewFromInt(40),
		Method:      rental.MethodCash,
		PaymentDate: scopeNow,
	})
	require.NoError(t, err)
	require.True(t, linked.LedgerLinked)

	res, err := f.recon.DeletePayment(ctx, f.tenantID, unlinkedID)

	require.NoError(t, err)
	assert.False(t, res.LedgerReverted)
	assert.Equal(t, apprental.LedgerSkipMovementAbsent, res.LedgerWarning)
	assert.Equal(t, int64(1), f.countMovements(t), "the linked payment keeps its movement")
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(40)))

	res, err = f.recon.DeletePayment(ctx, f.tenantID, linked.Payment.ID)
	require.NoError(t, err)
	assert.True(t, res.LedgerReverted)
	assert.Zero(t, f.countMovements(t))
	assert.True(t, f.balance(t).IsZero())
}

func TestGormRentalRepository_FindAllForTenant(t *testing.T) {
	f := newSQLiteFixture(t, func() time.Time { return scopeNow })
	ctx := context.Background()

	early := f.createRental(t, 100, scopeNow.AddDate(0, 0, 1))
	late := f.createRental(t, 100, scopeNow.AddDate(0, 0, 9))
	_, err := f.recon.AddPayment(ctx, f.tenantID, apprental.AddPaymentRequest{
		RentalID: late, Amount: decimal.NewFromInt(50), Method: rental.MethodPix, PaymentDate: scopeNow,
	})
	require.NoError(t, err)

	other := newSQLiteFixture(t, func() time.Time { return scopeNow })
	other.createRental(t, 100, scopeNow.AddDate(0, 0, 1))

	repo := NewGormRentalRepository(f.db.DB)

	all, total, err := repo.FindAllForTenant(ctx, f.tenantID, rental.RentalFilter{
		Filter: shared.Filter{OrderBy: "end_date", OrderDir: "asc"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, all, 2)
	assert.Equal(t, early, all[0].ID)
	assert.Equal(t, late, all[1].ID)
	assert.Len(t, all[0].Items, 1)

	partial, total, err := repo.FindAllForTenant(ctx, f.tenantID, rental.RentalFilter{PaymentStatus: rental.PaymentPartial})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, partial, 1)
	assert.Equal(t, late, partial[0].ID)

	cutoff := rental.DateOnly(scopeNow.AddDate(0, 0, 5))
	ending, _, err := repo.FindAllForTenant(ctx, f.tenantID, rental.RentalFilter{EndingBefore: &cutoff})
	require.NoError(t, err)
	require.Len(t, ending, 1)
	assert.Equal(t, early, ending[0].ID)

	paged, total, err := repo.FindAllForTenant(ctx, f.tenantID, rental.RentalFilter{
		Filter: shared.Filter{Page: 2, PageSize: 1, OrderBy: "end_date", OrderDir: "asc"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, paged, 1)
	assert.Equal(t, late, paged[0].ID)
}

func TestGormRentalRepository_UpdateReplacesItems(t *testing.T) {
	f := newSQLiteFixture(t, func() time.Time { return scopeNow })
	ctx := context.Background()
	rentalID := f.createRental(t, 100, scopeNow.AddDate(0, 0, 5))

	_, err := f.rentals.UpdateCommercialTerms(ctx, f.tenantID, rentalID, apprental.RentalTermsRequest{
		CustomerID: uuid.New(),
		Items: []apprental.LineItemRequest{
			{EquipmentID: uuid.New(), Quantity: 1, UnitPrice: decimal.NewFromInt(40)},
			{EquipmentID: uuid.New(), Quantity: 3, UnitPrice: decimal.NewFromInt(20)},
		},
		DeliveryFee: decimal.NewFromInt(10),
		StartDate:   scopeNow,
		EndDate:     scopeNow.AddDate(0, 0, 7),
	})
	require.NoError(t, err)

	r, err := NewGormRentalRepository(f.db.DB).FindByIDForTenant(ctx, f.tenantID, rentalID)
	require.NoError(t, err)
	assert.Len(t, r.Items, 2)
	assert.True(t, r.TotalAmount.Equal(decimal.NewFromInt(110)))
	assert.Equal(t, rental.DateOnly(scopeNow.AddDate(0, 0, 7)), r.EndDate)
	assert.Equal(t, 2, r.Version)

	var items int64
	require.NoError(t, f.db.DB.Table("rental_items").Where("rental_id = ?", rentalID).Count(&items).Error)
	assert.Equal(t, int64(2), items)

	assert.True(t, f.title(t, rentalID).Amount.Equal(decimal.NewFromInt(110)))
}

func TestOverdueService_WithGorm(t *testing.T) {
	now := scopeNow
	f := newSQLiteFixture(t, func() time.Time { return now })
	ctx := context.Background()

	pastDue := f.createRental(t, 100, scopeNow.AddDate(0, 0, 1))
	f.createRental(t, 100, scopeNow.AddDate(0, 0, 10))

	now = scopeNow.AddDate(0, 0, 3)
	svc := apprental.NewOverdueService(f.scope, NewGormRentalRepository(f.db.DB), 10, apprental.WithClock(func() time.Time { return now }))

	changed, err := svc.RefreshOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	r, err := NewGormRentalRepository(f.db.DB).FindByIDForTenant(ctx, f.tenantID, pastDue)
	require.NoError(t, err)
	assert.Equal(t, rental.PaymentOverdue, r.PaymentStatus)

	changed, err = svc.RefreshOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, changed)
}
