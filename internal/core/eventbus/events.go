// Package eventbus provides a typed publish/subscribe event bus. It is the
// read-only subscription surface for segments, commits, drafts and
// operation status.
package eventbus

import (
	"github.com/mindprints/diff-commit/internal/core/history"
	"github.com/mindprints/diff-commit/internal/core/operation"
)

// Event names a published event.
type Event string

// Keep list sorted A-Z.
const (
	EventCommitCreated         Event = "commit.created"
	EventDirtyChanged          Event = "document.dirty-changed"
	EventDocumentChanged       Event = "document.changed-on-disk"
	EventDraftRecovered        Event = "draft.recovered"
	EventNotificationPublished Event = "notification.published"
	EventOperationFinished     Event = "operation.finished"
	EventOperationProgress     Event = "operation.progress"
	EventOperationStarted      Event = "operation.started"
	EventSegmentsUpdated       Event = "document.segments-updated"
	EventStaleResult           Event = "operation.stale-result"
)

// CommitCreatedPayload is emitted after a checkpoint is persisted.
type CommitCreatedPayload struct {
	Commit history.Commit
}

// DirtyChangedPayload is emitted when a document's dirty flag flips.
type DirtyChangedPayload struct {
	DocumentID string
	Dirty      bool
}

// DocumentChangedPayload is emitted when a watched document file changes
// outside the application.
type DocumentChangedPayload struct {
	DocumentID string
	Path       string
}

// DraftRecoveredPayload is emitted when a document opens with an unsaved
// draft newer than its head commit.
type DraftRecoveredPayload struct {
	Draft history.Draft
}

// SegmentsUpdatedPayload is emitted when segments are recomputed. Segment
// ids from earlier generations are no longer valid.
type SegmentsUpdatedPayload struct {
	DocumentID string
	Generation uint64
	Segments   int
}

// OperationStartedPayload is emitted when a transform is dispatched.
type OperationStartedPayload struct {
	DocumentID string
	Operation  operation.Operation
}

// OperationProgressPayload is emitted when a transform reports progress.
type OperationProgressPayload struct {
	DocumentID string
	Operation  operation.Operation
}

// OperationFinishedPayload is emitted on every terminal transition and on
// stale result decisions.
type OperationFinishedPayload struct {
	DocumentID string
	Operation  operation.Operation
}

// StaleResultPayload is emitted when a result arrives for text the user has
// since changed.
type StaleResultPayload struct {
	DocumentID string
	Result     operation.StaleResult
}

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// NotificationPublishedPayload is a user-facing message derived from domain
// events.
type NotificationPublishedPayload struct {
	Level   Level
	Message string
}
