package eventbus

import (
	"context"
	"sync"
)

type envelope struct {
	event   Event
	payload any
}

// EventBus delivers published events to subscribers on a single goroutine
// started with Start. Publishing never blocks: events are dropped when the
// buffer is full.
type EventBus struct {
	ch    chan envelope
	hooks hooks

	mu   sync.RWMutex
	subs map[Event][]func(any)
}

// New creates a bus with the given buffer size.
func New(size int) *EventBus {
	return &EventBus{
		ch:   make(chan envelope, size),
		subs: make(map[Event][]func(any)),
	}
}

// Start dispatches events until ctx is cancelled.
func (bus *EventBus) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-bus.ch:
			bus.dispatch(env)
		}
	}
}

func (bus *EventBus) dispatch(env envelope) {
	bus.mu.RLock()
	handlers := make([]func(any), len(bus.subs[env.event]))
	copy(handlers, bus.subs[env.event])
	bus.mu.RUnlock()

	for _, fn := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					bus.runOnPanic(env.event, env.payload, r)
				}
			}()
			fn(env.payload)
		}()
	}
}

func (bus *EventBus) subscribe(event Event, fn func(any)) {
	bus.mu.Lock()
	bus.subs[event] = append(bus.subs[event], fn)
	bus.mu.Unlock()
	bus.runOnSubscribe(event)
}

func (bus *EventBus) PublishCommitCreated(p CommitCreatedPayload) {
	bus.send(EventCommitCreated, p)
}

func (bus *EventBus) SubscribeCommitCreated(fn func(CommitCreatedPayload)) {
	bus.subscribe(EventCommitCreated, func(v any) { fn(v.(CommitCreatedPayload)) })
}

func (bus *EventBus) PublishDirtyChanged(p DirtyChangedPayload) {
	bus.send(EventDirtyChanged, p)
}

func (bus *EventBus) SubscribeDirtyChanged(fn func(DirtyChangedPayload)) {
	bus.subscribe(EventDirtyChanged, func(v any) { fn(v.(DirtyChangedPayload)) })
}

func (bus *EventBus) PublishDocumentChanged(p DocumentChangedPayload) {
	bus.send(EventDocumentChanged, p)
}

func (bus *EventBus) SubscribeDocumentChanged(fn func(DocumentChangedPayload)) {
	bus.subscribe(EventDocumentChanged, func(v any) { fn(v.(DocumentChangedPayload)) })
}

func (bus *EventBus) PublishDraftRecovered(p DraftRecoveredPayload) {
	bus.send(EventDraftRecovered, p)
}

func (bus *EventBus) SubscribeDraftRecovered(fn func(DraftRecoveredPayload)) {
	bus.subscribe(EventDraftRecovered, func(v any) { fn(v.(DraftRecoveredPayload)) })
}

func (bus *EventBus) PublishNotificationPublished(p NotificationPublishedPayload) {
	bus.send(EventNotificationPublished, p)
}

func (bus *EventBus) SubscribeNotificationPublished(fn func(NotificationPublishedPayload)) {
	bus.subscribe(EventNotificationPublished, func(v any) { fn(v.(NotificationPublishedPayload)) })
}

func (bus *EventBus) PublishOperationFinished(p OperationFinishedPayload) {
	bus.send(EventOperationFinished, p)
}

func (bus *EventBus) SubscribeOperationFinished(fn func(OperationFinishedPayload)) {
	bus.subscribe(EventOperationFinished, func(v any) { fn(v.(OperationFinishedPayload)) })
}

func (bus *EventBus) PublishOperationProgress(p OperationProgressPayload) {
	bus.send(EventOperationProgress, p)
}

func (bus *EventBus) SubscribeOperationProgress(fn func(OperationProgressPayload)) {
	bus.subscribe(EventOperationProgress, func(v any) { fn(v.(OperationProgressPayload)) })
}

func (bus *EventBus) PublishOperationStarted(p OperationStartedPayload) {
	bus.send(EventOperationStarted, p)
}

func (bus *EventBus) SubscribeOperationStarted(fn func(OperationStartedPayload)) {
	bus.subscribe(EventOperationStarted, func(v any) { fn(v.(OperationStartedPayload)) })
}

func (bus *EventBus) PublishSegmentsUpdated(p SegmentsUpdatedPayload) {
	bus.send(EventSegmentsUpdated, p)
}

func (bus *EventBus) SubscribeSegmentsUpdated(fn func(SegmentsUpdatedPayload)) {
	bus.subscribe(EventSegmentsUpdated, func(v any) { fn(v.(SegmentsUpdatedPayload)) })
}

func (bus *EventBus) PublishStaleResult(p StaleResultPayload) {
	bus.send(EventStaleResult, p)
}

func (bus *EventBus) SubscribeStaleResult(fn func(StaleResultPayload)) {
	bus.subscribe(EventStaleResult, func(v any) { fn(v.(StaleResultPayload)) })
}
