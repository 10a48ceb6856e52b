package shared

import "context"

// EventHandler reacts to domain events delivered from the outbox.
// EventTypes lists the types it wants; an empty list subscribes to all.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	EventTypes() []string
}

// EventPublisher hands events to whoever is subscribed
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus is a publisher with a subscription registry and a lifecycle
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// OutboxEventSaver writes events to the outbox inside an open transaction.
// tx is the handle of the active unit of work, *gorm.DB for the SQL store.
type OutboxEventSaver interface {
	SaveEvents(ctx context.Context, tx any, events ...DomainEvent) error
}
