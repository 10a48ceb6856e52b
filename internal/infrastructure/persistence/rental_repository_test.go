package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/rental/backend/internal/domain/rental"
	"github.com/rental/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

var rentalColumns = []string{
	"id", "tenant_id", "version", "customer_id",
	"delivery_fee", "return_fee", "discount", "total_amount", "security_deposit",
	"start_date", "end_date", "status", "amount_paid", "payment_status",
	"created_at", "updated_at",
}

func TestGormRentalRepository_FindByIDForUpdate(t *testing.T) {
	t.Run("locks the rental row then loads items", func(t *testing.T) {
		db, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormRentalRepository(db)

		tenantID := uuid.New()
		rentalID := uuid.New()
		itemID := uuid.New()
		now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

		mock.ExpectQuery(`SELECT \* FROM "rentals" WHERE tenant_id = \$1 AND id = \$2 ORDER BY .* LIMIT .* FOR UPDATE`).
			WithArgs(tenantID, rentalID, 1).
			WillReturnRows(sqlmock.NewRows(rentalColumns).AddRow(
				rentalID, tenantID, 3, uuid.New(),
				"10", "0", "0", "310", "50",
				now.AddDate(0, 0, -5), now.AddDate(0, 0, 2), "ACTIVE", "100", "PARTIAL",
				now, now,
			))
		mock.ExpectQuery(`SELECT \* FROM "rental_items" WHERE rental_id = \$1 ORDER BY id`).
			WithArgs(rentalID).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "tenant_id", "rental_id", "equipment_id", "quantity", "unit_price", "deposit_value",
			}).AddRow(itemID, tenantID, rentalID, uuid.New(), 2, "150", "25"))

		r, err := repo.FindByIDForUpdate(context.Background(), tenantID, rentalID)

		require.NoError(t, err)
		assert.Equal(t, rentalID, r.ID)
		assert.Equal(t, tenantID, r.TenantID)
		assert.Equal(t, 3, r.Version)
		assert.Equal(t, rental.StatusActive, r.Status)
		assert.Equal(t, rental.PaymentPartial, r.PaymentStatus)
		assert.True(t, r.TotalAmount.Equal(decimal.NewFromInt(310)))
		require.Len(t, r.Items, 1)
		assert.Equal(t, itemID, r.Items[0].ID)
		assert.Equal(t, 2, r.Items[0].Quantity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps a missing row to ErrNotFound", func(t *testing.T) {
		db, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormRentalRepository(db)

		tenantID := uuid.New()
		rentalID := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "rentals" WHERE tenant_id = \$1 AND id = \$2 .*FOR UPDATE`).
			WithArgs(tenantID, rentalID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		r, err := repo.FindByIDForUpdate(context.Background(), tenantID, rentalID)

		assert.Nil(t, r)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormRentalRepository_UpdateDerivedFields(t *testing.T) {
	t.Run("writes only the derived columns", func(t *testing.T) {
		db, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormRentalRepository(db)

		tenantID := uuid.New()
		rentalID := uuid.New()
		mock.ExpectExec(`UPDATE "rentals" SET "amount_paid"=\$1,"payment_status"=\$2,"updated_at"=\$3 WHERE tenant_id = \$4 AND id = \$5`).
			WithArgs("150", "PARTIAL", sqlmock.AnyArg(), tenantID, rentalID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.UpdateDerivedFields(context.Background(), tenantID, rentalID, decimal.NewFromInt(150), rental.PaymentPartial)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound when no row matches the tenant", func(t *testing.T) {
		db, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormRentalRepository(db)

		mock.ExpectExec(`UPDATE "rentals" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateDerivedFields(context.Background(), uuid.New(), uuid.New(), decimal.Zero, rental.PaymentPending)

		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormRentalRepository_UpdateVersionCheck(t *testing.T) {
	newRental := func(t *testing.T) *rental.Rental {
		r, err := rental.NewRental(uuid.New(), rental.StatusDraft, rental.Terms{
			CustomerID: uuid.New(),
			Items:      []rental.ItemInput{{EquipmentID: uuid.New(), Quantity: 1, UnitPrice: decimal.NewFromInt(100)}},
			StartDate:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			EndDate:    time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC),
		}, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		require.NoError(t, r.TransitionTo(rental.StatusActive, "", time.Date(2024, 6, 1, 1, 0, 0, 0, time.UTC)))
		return r
	}

	t.Run("reports a conflict when the stored version moved on", func(t *testing.T) {
		db, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormRentalRepository(db)
		r := newRental(t)

		mock.ExpectExec(`UPDATE "rentals" SET .* WHERE tenant_id = \$\d+ AND id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT count\(\*\) FROM "rentals" WHERE tenant_id = \$1 AND id = \$2`).
			WithArgs(r.TenantID, r.ID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		err := repo.Update(context.Background(), r)

		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports ErrNotFound when the row is gone", func(t *testing.T) {
		db, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormRentalRepository(db)
		r := newRental(t)

		mock.ExpectExec(`UPDATE "rentals" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT count\(\*\) FROM "rentals"`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		err := repo.Update(context.Background(), r)

		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormRentalRepository_FindOverdueCandidates(t *testing.T) {
	db, mock, mockDB := newMockGormDB(t)
	defer mockDB.Close()
	repo := NewGormRentalRepository(db)

	today := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	t1, r1 := uuid.New(), uuid.New()
	t2, r2 := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT tenant_id, id FROM "rentals" WHERE end_date < \$1 AND payment_status IN \(\$2,\$3\) ORDER BY end_date ASC LIMIT`).
		WithArgs(today, "PENDING", "PARTIAL", 50).
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "id"}).
			AddRow(t1, r1).
			AddRow(t2, r2))

	got, err := repo.FindOverdueCandidates(context.Background(), today, 50)

	require.NoError(t, err)
	assert.Equal(t, []rental.OverdueCandidate{
		{TenantID: t1, RentalID: r1},
		{TenantID: t2, RentalID: r2},
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormPaymentRepository_DeleteByID(t *testing.T) {
	t.Run("deletes within the tenant", func(t *testing.T) {
		db, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormPaymentRepository(db)

		tenantID := uuid.New()
		paymentID := uuid.New()
		mock.ExpectExec(`DELETE FROM "rental_payments" WHERE tenant_id = \$1 AND id = \$2`).
			WithArgs(tenantID, paymentID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.DeleteByID(context.Background(), tenantID, paymentID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound when nothing was deleted", func(t *testing.T) {
		db, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormPaymentRepository(db)

		mock.ExpectExec(`DELETE FROM "rental_payments"`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.DeleteByID(context.Background(), uuid.New(), uuid.New())

		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPaymentRepository_ListByRental(t *testing.T) {
	db, mock, mockDB := newMockGormDB(t)
	defer mockDB.Close()
	repo := NewGormPaymentRepository(db)

	tenantID := uuid.New()
	rentalID := uuid.New()
	movementID := uuid.New()
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM "rental_payments" WHERE tenant_id = \$1 AND rental_id = \$2 ORDER BY payment_date ASC,created_at ASC`).
		WithArgs(tenantID, rentalID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "rental_id", "amount", "payment_method", "payment_date", "notes", "movement_id", "created_at",
		}).
			AddRow(uuid.New(), tenantID, rentalID, "100", "PIX", day, nil, movementID, day).
			AddRow(uuid.New(), tenantID, rentalID, "50.5", "CASH", day.AddDate(0, 0, 1), "front desk", nil, day))

	got, err := repo.ListByRental(context.Background(), tenantID, rentalID)

	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].MovementID)
	assert.Equal(t, movementID, *got[0].MovementID)
	assert.Nil(t, got[1].MovementID)
	require.NotNil(t, got[1].Notes)
	assert.Equal(t, "front desk", *got[1].Notes)
	assert.True(t, rental.SumPayments(got).Equal(decimal.RequireFromString("150.5")))
	assert.NoError(t, mock.ExpectationsWereMet())
}
