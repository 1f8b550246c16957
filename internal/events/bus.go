// Package events implements the typed event bus shared across the core:
// reliability primitives, security layer and drivers all publish through
// it rather than holding direct references to listeners.
package events

import (
	"fmt"
	"sync"
)

// Handler receives an event payload. Payloads are whatever the emitting
// package documents for that event name (state transitions, audit
// records, health status, ...).
type Handler func(payload any)

// Unsubscribe removes the listener it was returned for. Safe to call more
// than once.
type Unsubscribe func()

// Bus is a map from event name to an ordered set of subscribers. Listeners
// for a given event fire in registration order; a panic in one listener is
// recovered and does not prevent the others from firing.
type Bus struct {
	mu           sync.Mutex
	listeners    map[string][]*subscription
	seq          uint64
	panicHandler func(event string, err error)
}

type subscription struct {
	id      uint64
	handler Handler
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{listeners: make(map[string][]*subscription)}
}

// On registers h for event name, returning a handle to remove it.
func (b *Bus) On(name string, h Handler) Unsubscribe {
	b.mu.Lock()
	b.seq++
	id := b.seq
	sub := &subscription{id: id, handler: h}
	b.listeners[name] = append(b.listeners[name], sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.listeners[name]
		for i, s := range subs {
			if s.id == id {
				b.listeners[name] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Emit fires every listener registered for name, in registration order.
// A listener that panics is recovered and reported via onPanic (if set);
// it never prevents later listeners for the same emission from running.
func (b *Bus) Emit(name string, payload any) {
	b.mu.Lock()
	subs := make([]*subscription, len(b.listeners[name]))
	copy(subs, b.listeners[name])
	b.mu.Unlock()

	for _, s := range subs {
		b.invoke(s, name, payload)
	}
}

func (b *Bus) invoke(s *subscription, name string, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.onPanic(name, r)
		}
	}()
	s.handler(payload)
}

// onPanic is overridable via SetPanicHandler; defaults to a no-op so the
// bus never depends on a logging package on its own.
func (b *Bus) onPanic(name string, r any) {
	if b.panicHandler != nil {
		b.panicHandler(name, fmt.Errorf("listener panic: %v", r))
	}
}

// SetPanicHandler installs a callback invoked whenever a listener panics.
// Exactly one handler is kept; passing nil disables reporting.
func (b *Bus) SetPanicHandler(h func(event string, err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.panicHandler = h
}
