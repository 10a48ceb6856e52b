package event

import (
	"sync"

	"github.com/rental/backend/internal/domain/shared"
)

// HandlerRegistry maps event types to handlers
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string][]shared.EventHandler
	wildcard []shared.EventHandler
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string][]shared.EventHandler)}
}

// Register adds handler for eventTypes, or for every type when none is given
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(eventTypes) == 0 {
		r.wildcard = appendUnique(r.wildcard, handler)
		return
	}
	for _, t := range eventTypes {
		r.handlers[t] = appendUnique(r.handlers[t], handler)
	}
}

// Unregister removes handler everywhere
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.wildcard = without(r.wildcard, handler)
	for t, hs := range r.handlers {
		if rest := without(hs, handler); len(rest) > 0 {
			r.handlers[t] = rest
		} else {
			delete(r.handlers, t)
		}
	}
}

// GetHandlers returns the typed handlers followed by wildcard ones. A handler
// registered both ways appears once.
func (r *HandlerRegistry) GetHandlers(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]shared.EventHandler, 0, len(r.handlers[eventType])+len(r.wildcard))
	out = append(out, r.handlers[eventType]...)
	for _, h := range r.wildcard {
		out = appendUnique(out, h)
	}
	return out
}

// EventTypes lists the event types with at least one typed handler
func (r *HandlerRegistry) EventTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	return out
}

func appendUnique(hs []shared.EventHandler, h shared.EventHandler) []shared.EventHandler {
	for _, existing := range hs {
		if existing == h {
			return hs
		}
	}
	return append(hs, h)
}

func without(hs []shared.EventHandler, target shared.EventHandler) []shared.EventHandler {
	out := hs[:0:0]
	for _, h := range hs {
		if h != target {
			out = append(out, h)
		}
	}
	return out
}
