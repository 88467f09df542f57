package eventbus

import (
	"fmt"

	"github.com/rs/zerolog"
)

// RegisterDebugLogger logs published events at debug level, dropped events
// as warnings and handler panics as errors.
func RegisterDebugLogger(bus *EventBus, logger zerolog.Logger) {
	bus.OnPublish(func(event Event, payload any) {
		logger.Debug().
			Str("event", string(event)).
			Str("document_id", documentOf(payload)).
			Msg("event fired")
	})

	bus.OnDrop(func(event Event, payload any) {
		logger.Warn().
			Str("event", string(event)).
			Str("document_id", documentOf(payload)).
			Uint64("total_dropped", bus.Dropped()).
			Msg("event dropped: buffer full")
	})

	bus.OnPanic(func(event Event, _ any, recovered any) {
		logger.Error().
			Str("event", string(event)).
			Str("panic", fmt.Sprint(recovered)).
			Msg("subscriber panicked")
	})
}

func documentOf(payload any) string {
	switch p := payload.(type) {
	case CommitCreatedPayload:
		return p.Commit.DocumentID
	case DraftRecoveredPayload:
		return p.Draft.DocumentID
	case DirtyChangedPayload:
		return p.DocumentID
	case DocumentChangedPayload:
		return p.DocumentID
	case SegmentsUpdatedPayload:
		return p.DocumentID
	case OperationStartedPayload:
		return p.DocumentID
	case OperationProgressPayload:
		return p.DocumentID
	case OperationFinishedPayload:
		return p.DocumentID
	case StaleResultPayload:
		return p.DocumentID
	}
	return ""
}
