// Package hooks provides the in-process event bus that connects the session
// lifecycle to the learning subsystems. Publishing is always fire-and-forget:
// a subscriber that errors, hangs, or panics is contained and counted, and
// can never fail or block the operation that triggered the event beyond its
// invocation timeout.
package hooks

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// EventKind names one of the two bus events.
type EventKind string

const (
	// SessionEnded fires after a session has been marked terminal.
	SessionEnded EventKind = "session_ended"
	// ObservationSaved fires after an observation has been persisted.
	ObservationSaved EventKind = "observation_saved"
)

// IsValid checks if the event kind is one of the two bus events.
func (k EventKind) IsValid() bool {
	return k == SessionEnded || k == ObservationSaved
}

// Event is what subscribers receive. Events carry identifiers, not payloads;
// handlers read current state from storage so they never act on stale copies.
type Event struct {
	Kind          EventKind
	SessionID     string
	ObservationID string
	At            time.Time
}

// NewSessionEnded builds a session_ended event.
func NewSessionEnded(sessionID string) Event {
	return Event{Kind: SessionEnded, SessionID: sessionID, At: time.Now()}
}

// NewObservationSaved builds an observation_saved event.
func NewObservationSaved(observationID, sessionID string) Event {
	return Event{Kind: ObservationSaved, ObservationID: observationID, SessionID: sessionID, At: time.Now()}
}

// Handler processes one event. Errors are counted against the subscriber but
// never surface to the publisher.
type Handler func(ctx context.Context, event Event) error

// Subscriber is a named handler bound to one event kind.
type Subscriber struct {
	Name    string
	Kind    EventKind
	Handler Handler
}

// DefaultTimeout bounds a single handler invocation.
const DefaultTimeout = 5 * time.Second

// maxConsecutiveFailures is how many failures in a row trip a subscriber's
// breaker. A tripped subscriber stays off until process restart.
const maxConsecutiveFailures = 3

// subscriberState wraps a subscriber with its runtime bookkeeping. enabled is
// the configuration toggle; tripped is the breaker, and only a restart clears
// it.
type subscriberState struct {
	Subscriber
	enabled  bool
	tripped  bool
	failures int
}

// SubscriberStatus is a read-only snapshot of one subscriber for the status
// surfaces.
type SubscriberStatus struct {
	Name                string    `json:"name"`
	Kind                EventKind `json:"kind"`
	Enabled             bool      `json:"enabled"`
	Disabled            bool      `json:"disabled"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// Bus dispatches events to subscribers sequentially, in registration order.
type Bus struct {
	timeout time.Duration

	mu   sync.Mutex
	subs []*subscriberState
}

// Config holds bus configuration.
type Config struct {
	// Timeout bounds each handler invocation. Zero means DefaultTimeout.
	Timeout time.Duration
}

// New creates an empty bus.
func New(cfg *Config) *Bus {
	timeout := DefaultTimeout
	if cfg != nil && cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	return &Bus{timeout: timeout}
}

// Subscribe registers a named handler. Names must be unique across the bus;
// dispatch order is registration order.
func (b *Bus) Subscribe(sub Subscriber) error {
	if sub.Name == "" {
		return fmt.Errorf("subscriber name is required")
	}
	if !sub.Kind.IsValid() {
		return fmt.Errorf("unknown event kind: %s", sub.Kind)
	}
	if sub.Handler == nil {
		return fmt.Errorf("subscriber %q has no handler", sub.Name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		if s.Name == sub.Name {
			return fmt.Errorf("subscriber %q already registered", sub.Name)
		}
	}
	b.subs = append(b.subs, &subscriberState{Subscriber: sub, enabled: true})
	return nil
}

// SetEnabled toggles a subscriber. Disabling is a configuration choice and is
// independent of the breaker: re-enabling does not clear a tripped breaker.
func (b *Bus) SetEnabled(name string, enabled bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		if s.Name == name {
			s.enabled = enabled
			return nil
		}
	}
	return fmt.Errorf("subscriber %q not registered", name)
}

// Status reports every subscriber in registration order.
func (b *Bus) Status() []SubscriberStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]SubscriberStatus, 0, len(b.subs))
	for _, s := range b.subs {
		out = append(out, SubscriberStatus{
			Name:                s.Name,
			Kind:                s.Kind,
			Enabled:             s.enabled,
			Disabled:            s.tripped,
			ConsecutiveFailures: s.failures,
		})
	}
	return out
}

// Publish delivers the event to every enabled subscriber of its kind, one at
// a time. It never returns an error: handler errors, timeouts, and panics are
// logged and counted against the subscriber, and after three consecutive
// failures the subscriber is disabled until restart. A success resets the
// count.
func (b *Bus) Publish(ctx context.Context, event Event) {
	for _, sub := range b.matching(event.Kind) {
		if !b.runnable(sub) {
			continue
		}
		b.record(sub, event, b.invoke(ctx, sub.Handler, event))
	}
}

// matching snapshots the dispatch list so handlers run outside the bus lock.
func (b *Bus) matching(kind EventKind) []*subscriberState {
	b.mu.Lock()
	defer b.mu.Unlock()
	matched := make([]*subscriberState, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.Kind == kind {
			matched = append(matched, sub)
		}
	}
	return matched
}

func (b *Bus) runnable(sub *subscriberState) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sub.enabled && !sub.tripped
}

func (b *Bus) record(sub *subscriberState, event Event, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		sub.failures = 0
		return
	}
	sub.failures++
	log.Printf("[HOOKS] subscriber %q failed on %s (%d consecutive): %v",
		sub.Name, event.Kind, sub.failures, err)
	if sub.failures >= maxConsecutiveFailures && !sub.tripped {
		sub.tripped = true
		log.Printf("[HOOKS] subscriber %q disabled until restart after %d consecutive failures",
			sub.Name, sub.failures)
	}
}

// invoke runs one handler with panic recovery and a timeout. A handler that
// outruns the timeout is abandoned; it keeps the cancelled context and its
// eventual result goes nowhere.
func (b *Bus) invoke(ctx context.Context, handler Handler, event Event) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("handler panic: %v", r)
			}
		}()
		done <- handler(ctx, event)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("handler timeout after %v", b.timeout)
	}
}
