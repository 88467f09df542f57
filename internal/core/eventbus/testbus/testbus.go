// Package testbus wraps a running EventBus and records everything published
// on it so tests can assert on events.
package testbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mindprints/diff-commit/internal/core/eventbus"
)

// RecordedEvent is one published event.
type RecordedEvent struct {
	Event   eventbus.Event
	Payload any
}

// Bus is a started EventBus with a publish recorder attached.
type Bus struct {
	*eventbus.EventBus

	mu      sync.Mutex
	events  []RecordedEvent
	changed chan struct{}
}

// New starts a bus for the duration of the test. Events are recorded when
// they are published, before subscribers run.
func New(t *testing.T) *Bus {
	t.Helper()

	tb := &Bus{
		EventBus: eventbus.New(64),
		changed:  make(chan struct{}),
	}
	tb.OnPublish(tb.record)

	ctx, cancel := context.WithCancel(context.Background())
	go tb.Start(ctx)
	t.Cleanup(cancel)

	return tb
}

func (tb *Bus) record(event eventbus.Event, payload any) {
	tb.mu.Lock()
	tb.events = append(tb.events, RecordedEvent{Event: event, Payload: payload})
	close(tb.changed)
	tb.changed = make(chan struct{})
	tb.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (tb *Bus) Events() []RecordedEvent {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return append([]RecordedEvent(nil), tb.events...)
}

// Payloads returns the payloads recorded for event in publish order.
func (tb *Bus) Payloads(event eventbus.Event) []any {
	var out []any
	for _, e := range tb.Events() {
		if e.Event == event {
			out = append(out, e.Payload)
		}
	}
	return out
}

// Reset forgets recorded events.
func (tb *Bus) Reset() {
	tb.mu.Lock()
	tb.events = nil
	tb.mu.Unlock()
}

// WaitFor reports whether event is recorded before timeout elapses.
func (tb *Bus) WaitFor(event eventbus.Event, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		tb.mu.Lock()
		found := tb.hasLocked(event)
		changed := tb.changed
		tb.mu.Unlock()

		if found {
			return true
		}
		select {
		case <-changed:
		case <-deadline.C:
			return false
		}
	}
}

func (tb *Bus) hasLocked(event eventbus.Event) bool {
	for _, e := range tb.events {
		if e.Event == event {
			return true
		}
	}
	return false
}

// AssertPublished fails the test unless event is published within 500ms.
func (tb *Bus) AssertPublished(t *testing.T, event eventbus.Event) {
	t.Helper()
	if !tb.WaitFor(event, 500*time.Millisecond) {
		t.Errorf("expected event %q to be published, but it was not", event)
	}
}

// AssertNotPublished fails the test if event is published within wait.
func (tb *Bus) AssertNotPublished(t *testing.T, event eventbus.Event, wait time.Duration) {
	t.Helper()
	if tb.WaitFor(event, wait) {
		t.Errorf("expected event %q to NOT be published, but it was", event)
	}
}
