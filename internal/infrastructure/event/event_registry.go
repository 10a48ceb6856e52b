package event

import "github.com/rental/backend/internal/domain/rental"

// RegisterRentalEvents registers every rental event type so the outbox
// processor can rebuild them from stored payloads
func RegisterRentalEvents(s *EventSerializer) {
	s.Register(rental.EventTypeRentalCreated, &rental.RentalCreatedEvent{})
	s.Register(rental.EventTypeRentalStatusChanged, &rental.RentalStatusChangedEvent{})
	s.Register(rental.EventTypePaymentRecorded, &rental.PaymentRecordedEvent{})
	s.Register(rental.EventTypePaymentReverted, &rental.PaymentRevertedEvent{})
}
