package eventbus

import (
	"fmt"

	"github.com/mindprints/diff-commit/internal/core/operation"
)

// NotificationRouter maps domain events to user-facing notifications.
type NotificationRouter struct {
	bus *EventBus
}

// NewNotificationRouter constructs a router for event-to-notification mappings.
func NewNotificationRouter(bus *EventBus) *NotificationRouter {
	return &NotificationRouter{bus: bus}
}

// Register subscribes all supported event mappings.
func (r *NotificationRouter) Register() {
	if r == nil || r.bus == nil {
		return
	}

	r.bus.SubscribeCommitCreated(func(p CommitCreatedPayload) {
		r.notifyf(LevelInfo, "%s: checkpoint #%d created", p.Commit.DocumentID, p.Commit.Seq)
	})

	r.bus.SubscribeDraftRecovered(func(p DraftRecoveredPayload) {
		r.notifyf(LevelWarning, "%s: unsaved draft from %s can be restored",
			p.Draft.DocumentID, p.Draft.UpdatedAt.Format("2006-01-02 15:04"))
	})

	r.bus.SubscribeDocumentChanged(func(p DocumentChangedPayload) {
		r.notifyf(LevelInfo, "%s: %s changed on disk", p.DocumentID, p.Path)
	})

	r.bus.SubscribeStaleResult(func(p StaleResultPayload) {
		r.notifyf(LevelWarning, "%s: %s result is out of date, review it against the current text",
			p.DocumentID, p.Result.Operation.Kind)
	})

	r.bus.SubscribeOperationFinished(func(p OperationFinishedPayload) {
		if p.Operation.Status != operation.StatusError {
			return
		}
		r.notifyf(LevelError, "%s: %v", p.DocumentID, p.Operation.Err)
	})
}

func (r *NotificationRouter) notifyf(level Level, format string, args ...any) {
	r.bus.PublishNotificationPublished(NotificationPublishedPayload{
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	})
}
