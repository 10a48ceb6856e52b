package event

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rental/backend/internal/domain/rental"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRental(t *testing.T) *rental.Rental {
	t.Helper()
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	r, err := rental.NewRental(uuid.New(), rental.StatusScheduled, rental.Terms{
		CustomerID: uuid.New(),
		Items: []rental.ItemInput{
			{EquipmentID: uuid.New(), Quantity: 3, UnitPrice: decimal.RequireFromString("33.34")},
		},
		StartDate: now,
		EndDate:   now.AddDate(0, 0, 5),
	}, now)
	require.NoError(t, err)
	return r
}

func TestEventSerializer_RoundTrip(t *testing.T) {
	s := NewEventSerializer()
	RegisterRentalEvents(s)

	r := newTestRental(t)
	original := rental.NewRentalCreatedEvent(r, time.Now())

	data, err := s.Serialize(original)
	require.NoError(t, err)

	decoded, err := s.Deserialize(rental.EventTypeRentalCreated, data)
	require.NoError(t, err)

	got, ok := decoded.(*rental.RentalCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, original.EventID(), got.EventID())
	assert.Equal(t, r.TenantID, got.TenantID())
	assert.Equal(t, r.ID, got.RentalID)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("100.02")))
	assert.Equal(t, rental.StatusScheduled, got.Status)
}

func TestEventSerializer_UnknownType(t *testing.T) {
	s := NewEventSerializer()
	_, err := s.Deserialize("Nope", []byte(`{}`))
	assert.Error(t, err)
}

func TestEventSerializer_TypeMismatch(t *testing.T) {
	s := NewEventSerializer()
	RegisterRentalEvents(s)

	data, err := s.Serialize(rental.NewRentalCreatedEvent(newTestRental(t), time.Now()))
	require.NoError(t, err)

	_, err = s.Deserialize(rental.EventTypePaymentRecorded, data)
	assert.Error(t, err)
}

func TestEventSerializer_MalformedPayload(t *testing.T) {
	s := NewEventSerializer()
	RegisterRentalEvents(s)

	_, err := s.Deserialize(rental.EventTypePaymentReverted, []byte(`{not json`))
	assert.Error(t, err)
}

func TestEventSerializer_RegisteredTypes(t *testing.T) {
	s := NewEventSerializer()
	RegisterRentalEvents(s)

	assert.Equal(t, []string{
		rental.EventTypePaymentRecorded,
		rental.EventTypePaymentReverted,
		rental.EventTypeRentalCreated,
		rental.EventTypeRentalStatusChanged,
	}, s.RegisteredTypes())
	assert.True(t, s.IsRegistered(rental.EventTypePaymentRecorded))
	assert.False(t, s.IsRegistered("Other"))
}
