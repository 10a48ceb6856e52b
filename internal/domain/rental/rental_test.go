package rental

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rental/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func testTerms() Terms {
	return Terms{
		CustomerID: uuid.New(),
		Items: []ItemInput{
			{EquipmentID: uuid.New(), Quantity: 2, UnitPrice: decimal.NewFromInt(300), DepositValue: decimal.NewFromInt(100)},
			{EquipmentID: uuid.New(), Quantity: 1, UnitPrice: decimal.NewFromInt(350), DepositValue: decimal.NewFromInt(50)},
		},
		DeliveryFee: decimal.NewFromInt(80),
		ReturnFee:   decimal.NewFromInt(70),
		Discount:    decimal.NewFromInt(100),
		StartDate:   testNow,
		EndDate:     testNow.AddDate(0, 0, 7),
	}
}

func newTestRental(t *testing.T) *Rental {
	r, err := NewRental(uuid.New(), StatusScheduled, testTerms(), testNow)
	require.NoError(t, err)
	return r
}

func TestNewRental_ComputesTotals(t *testing.T) {
	r := newTestRental(t)

	// 2*300 + 350 + 80 + 70 - 100
	assert.True(t, r.TotalAmount.Equal(decimal.NewFromInt(1000)), r.TotalAmount.String())
	assert.True(t, r.SecurityDeposit.Equal(decimal.NewFromInt(250)))
	assert.True(t, r.AmountPaid.IsZero())
	assert.Equal(t, PaymentPending, r.PaymentStatus)
	assert.Equal(t, StatusScheduled, r.Status)
	assert.Equal(t, 7, r.DurationDays())
	for _, it := range r.Items {
		assert.Equal(t, r.ID, it.RentalID)
	}

	events := r.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeRentalCreated, events[0].EventType())
}

func TestNewRental_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Terms)
	}{
		{"no items", func(tm *Terms) { tm.Items = nil }},
		{"zero quantity", func(tm *Terms) { tm.Items[0].Quantity = 0 }},
		{"negative price", func(tm *Terms) { tm.Items[0].UnitPrice = decimal.NewFromInt(-1) }},
		{"missing equipment", func(tm *Terms) { tm.Items[1].EquipmentID = uuid.Nil }},
		{"missing customer", func(tm *Terms) { tm.CustomerID = uuid.Nil }},
		{"end before start", func(tm *Terms) { tm.EndDate = tm.StartDate.AddDate(0, 0, -1) }},
		{"negative fee", func(tm *Terms) { tm.ReturnFee = decimal.NewFromInt(-5) }},
		{"discount above value", func(tm *Terms) { tm.Discount = decimal.NewFromInt(5000) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms := testTerms()
			tt.mutate(&terms)
			_, err := NewRental(uuid.New(), StatusDraft, terms, testNow)
			assert.True(t, shared.IsValidation(err), "got %v", err)
		})
	}
}

func TestNewRental_RejectsActiveStart(t *testing.T) {
	_, err := NewRental(uuid.New(), StatusActive, testTerms(), testNow)
	assert.True(t, shared.IsValidation(err))
}

func TestDurationDays_MinimumOne(t *testing.T) {
	terms := testTerms()
	terms.EndDate = terms.StartDate
	r, err := NewRental(uuid.New(), StatusDraft, terms, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, r.DurationDays())
}

func TestApplyPayments(t *testing.T) {
	r := newTestRental(t)

	r.ApplyPayments(decimal.NewFromInt(400), testNow)
	assert.Equal(t, PaymentPartial, r.PaymentStatus)
	assert.True(t, r.OutstandingBalance().Equal(decimal.NewFromInt(600)))

	r.ApplyPayments(decimal.NewFromInt(1000), testNow)
	assert.Equal(t, PaymentPaid, r.PaymentStatus)
	assert.True(t, r.OutstandingBalance().IsZero())

	r.ApplyPayments(decimal.NewFromInt(400), testNow.AddDate(0, 0, 30))
	assert.Equal(t, PaymentOverdue, r.PaymentStatus)
}

func TestTransitionTo_Lifecycle(t *testing.T) {
	r := newTestRental(t)
	r.ClearDomainEvents()
	startVersion := r.GetVersion()

	require.NoError(t, r.TransitionTo(StatusActive, "", testNow))
	require.NotNil(t, r.DeliveredAt)

	require.NoError(t, r.TransitionTo(StatusScheduled, "", testNow))
	assert.Nil(t, r.DeliveredAt)

	require.NoError(t, r.TransitionTo(StatusActive, "", testNow))
	require.NoError(t, r.TransitionTo(StatusCompleted, "", testNow))
	require.NotNil(t, r.ReturnedAt)

	require.NoError(t, r.TransitionTo(StatusActive, "", testNow))
	assert.Nil(t, r.ReturnedAt)

	assert.Equal(t, startVersion+5, r.GetVersion())
	assert.Len(t, r.GetDomainEvents(), 5)
}

func TestTransitionTo_CancelKeepsReason(t *testing.T) {
	r := newTestRental(t)

	require.NoError(t, r.TransitionTo(StatusCancelled, "customer gave up", testNow))

	assert.Equal(t, StatusCancelled, r.Status)
	assert.Equal(t, "customer gave up", r.CancelReason)
	require.NotNil(t, r.CancelledAt)

	err := r.TransitionTo(StatusActive, "", testNow)
	assert.True(t, shared.IsInvalidTransition(err))
}

func TestTransitionTo_LateRentalCanBeReturned(t *testing.T) {
	r := newTestRental(t)
	require.NoError(t, r.TransitionTo(StatusActive, "", testNow))

	later := testNow.AddDate(0, 0, 10)
	assert.Equal(t, StatusLate, r.EffectiveStatus(later))

	err := r.TransitionTo(StatusActive, "", later)
	assert.True(t, shared.IsInvalidTransition(err))

	require.NoError(t, r.TransitionTo(StatusCompleted, "", later))
	events := r.GetDomainEvents()
	last := events[len(events)-1].(*RentalStatusChangedEvent)
	assert.Equal(t, StatusLate, last.FromStatus)
}

func TestTransitionTo_UndoDeliveryOfLateRental(t *testing.T) {
	r := newTestRental(t)
	require.NoError(t, r.TransitionTo(StatusActive, "", testNow))

	later := testNow.AddDate(0, 0, 10)
	require.NoError(t, r.TransitionTo(StatusScheduled, "", later))

	assert.Equal(t, StatusScheduled, r.Status)
	assert.Nil(t, r.DeliveredAt)
	events := r.GetDomainEvents()
	last := events[len(events)-1].(*RentalStatusChangedEvent)
	assert.Equal(t, StatusLate, last.FromStatus)
	assert.Equal(t, StatusScheduled, last.ToStatus)
}

func TestTransitionTo_DraftCannotComplete(t *testing.T) {
	r, err := NewRental(uuid.New(), StatusDraft, testTerms(), testNow)
	require.NoError(t, err)

	err = r.TransitionTo(StatusCompleted, "", testNow)
	assert.True(t, shared.IsInvalidTransition(err))
	assert.Equal(t, StatusDraft, r.Status)
}

func TestUpdateTerms(t *testing.T) {
	r := newTestRental(t)
	r.ApplyPayments(decimal.NewFromInt(500), testNow)

	terms := testTerms()
	terms.Discount = decimal.NewFromInt(600)
	require.NoError(t, r.UpdateTerms(terms, testNow))
	assert.True(t, r.TotalAmount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, PaymentPaid, r.PaymentStatus)

	require.NoError(t, r.TransitionTo(StatusActive, "", testNow))
	err := r.UpdateTerms(testTerms(), testNow)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}
