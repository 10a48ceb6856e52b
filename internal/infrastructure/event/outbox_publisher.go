package event

import (
	"context"
	"fmt"

	"github.com/rental/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// OutboxPublisher writes domain events into the outbox on the caller's
// transaction, so they commit or roll back with the business change
type OutboxPublisher struct {
	serializer *EventSerializer
	maxRetries int
}

// NewOutboxPublisher creates an OutboxPublisher. maxRetries <= 0 keeps the
// entry default.
func NewOutboxPublisher(serializer *EventSerializer, maxRetries int) *OutboxPublisher {
	return &OutboxPublisher{serializer: serializer, maxRetries: maxRetries}
}

// PublishWithTx stores events as pending outbox entries through tx
func (p *OutboxPublisher) PublishWithTx(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	entries := make([]*shared.OutboxEntry, 0, len(events))
	for _, event := range events {
		payload, err := p.serializer.Serialize(event)
		if err != nil {
			return err
		}
		entry := shared.NewOutboxEntry(event, payload)
		if p.maxRetries > 0 {
			entry.MaxRetries = p.maxRetries
		}
		entries = append(entries, entry)
	}
	return NewGormOutboxRepository(tx).Save(ctx, entries...)
}

// SaveEvents implements shared.OutboxEventSaver for the gorm unit of work
func (p *OutboxPublisher) SaveEvents(ctx context.Context, tx any, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	gtx, ok := tx.(*gorm.DB)
	if !ok {
		return fmt.Errorf("outbox: expected *gorm.DB transaction, got %T", tx)
	}
	return p.PublishWithTx(ctx, gtx, events...)
}

var _ shared.OutboxEventSaver = (*OutboxPublisher)(nil)
