package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/rental/backend/internal/domain/shared"
)

// EventSerializer turns domain events into outbox payloads and back.
// Deserialization needs the concrete type registered under its event type.
type EventSerializer struct {
	mu       sync.RWMutex
	registry map[string]reflect.Type
}

// NewEventSerializer creates a serializer with no registered types
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{registry: make(map[string]reflect.Type)}
}

// Register maps eventType to the concrete type of instance
func (s *EventSerializer) Register(eventType string, instance shared.DomainEvent) {
	t := reflect.TypeOf(instance)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	s.mu.Lock()
	s.registry[eventType] = t
	s.mu.Unlock()
}

// Serialize encodes the event as JSON
func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s: %w", event.EventType(), err)
	}
	return data, nil
}

// Deserialize decodes data into a new value of the type registered for
// eventType. The decoded event must carry the same type name.
func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	s.mu.RLock()
	t, ok := s.registry[eventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	ptr := reflect.New(t).Interface()
	if err := json.Unmarshal(data, ptr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", eventType, err)
	}
	event, ok := ptr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("registered type for %s does not implement DomainEvent", eventType)
	}
	if event.EventType() != eventType {
		return nil, fmt.Errorf("payload carries event type %q, expected %q", event.EventType(), eventType)
	}
	return event, nil
}

// IsRegistered reports whether eventType can be deserialized
func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.registry[eventType]
	return ok
}

// RegisteredTypes returns the registered event types, sorted
func (s *EventSerializer) RegisteredTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.registry))
	for t := range s.registry {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
