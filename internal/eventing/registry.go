package eventing

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Handler consumes one delivered envelope.
type Handler func(ctx context.Context, env Envelope) error

type consumer struct {
	name    string
	handler Handler
}

// Registry maps event types to named consumers.
type Registry struct {
	mu        sync.RWMutex
	consumers map[string][]consumer
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{consumers: make(map[string][]consumer)}
}

// Subscribe registers handler under consumerName for eventType.
// The consumer name keys idempotency records, so it must be stable across restarts.
func (r *Registry) Subscribe(eventType, consumerName string, handler Handler) error {
	if eventType == "" || consumerName == "" {
		return errors.New("eventing: empty event type or consumer name")
	}
	if handler == nil {
		return errors.New("eventing: nil handler")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.consumers[eventType] {
		if c.name == consumerName {
			return errors.New("eventing: duplicate consumer " + consumerName)
		}
	}
	r.consumers[eventType] = append(r.consumers[eventType], consumer{name: consumerName, handler: handler})
	return nil
}

// Consumers returns the consumer names for eventType, sorted.
func (r *Registry) Consumers(eventType string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.consumers[eventType]))
	for _, c := range r.consumers[eventType] {
		names = append(names, c.name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) handlers(eventType string) []consumer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]consumer(nil), r.consumers[eventType]...)
}
