package eventbus

import (
	"sync"
	"sync/atomic"
)

// hookList is an append-only list of callbacks that is safe to read while
// other goroutines register.
type hookList[F any] struct {
	mu  sync.RWMutex
	fns []F
}

func (l *hookList[F]) add(fn F) {
	l.mu.Lock()
	l.fns = append(l.fns, fn)
	l.mu.Unlock()
}

func (l *hookList[F]) snapshot() []F {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]F, len(l.fns))
	copy(out, l.fns)
	return out
}

type hooks struct {
	published  hookList[func(Event, any)]
	dropped    hookList[func(Event, any)]
	subscribed hookList[func(Event)]
	panicked   hookList[func(Event, any, any)]

	drops atomic.Uint64
}

// OnPublish registers fn to run after an event is queued for delivery.
func (bus *EventBus) OnPublish(fn func(Event, any)) { bus.hooks.published.add(fn) }

// OnDrop registers fn to run when an event is discarded because the buffer
// is full.
func (bus *EventBus) OnDrop(fn func(Event, any)) { bus.hooks.dropped.add(fn) }

// OnSubscribe registers fn to run after a handler subscribes to an event.
func (bus *EventBus) OnSubscribe(fn func(Event)) { bus.hooks.subscribed.add(fn) }

// OnPanic registers fn to run when a handler panics. Panics raised by fn
// itself are swallowed.
func (bus *EventBus) OnPanic(fn func(Event, any, any)) { bus.hooks.panicked.add(fn) }

// Dropped reports how many events were discarded since the bus was created.
func (bus *EventBus) Dropped() uint64 { return bus.hooks.drops.Load() }

func (bus *EventBus) send(event Event, payload any) {
	select {
	case bus.ch <- envelope{event: event, payload: payload}:
		for _, fn := range bus.hooks.published.snapshot() {
			fn(event, payload)
		}
	default:
		bus.hooks.drops.Add(1)
		for _, fn := range bus.hooks.dropped.snapshot() {
			fn(event, payload)
		}
	}
}

func (bus *EventBus) runOnSubscribe(event Event) {
	for _, fn := range bus.hooks.subscribed.snapshot() {
		fn(event)
	}
}

func (bus *EventBus) runOnPanic(event Event, payload any, recovered any) {
	for _, fn := range bus.hooks.panicked.snapshot() {
		func() {
			defer func() { recover() }() //nolint:errcheck
			fn(event, payload, recovered)
		}()
	}
}
