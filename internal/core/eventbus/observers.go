package eventbus

import (
	"github.com/mindprints/diff-commit/internal/core/history"
	"github.com/mindprints/diff-commit/internal/core/operation"
	"github.com/mindprints/diff-commit/internal/core/session"
)

var (
	_ session.Observer   = (*SessionPublisher)(nil)
	_ operation.Observer = (*OperationPublisher)(nil)
)

// SessionPublisher forwards session notifications to the bus.
type SessionPublisher struct {
	bus *EventBus
}

// NewSessionPublisher returns a session.Observer publishing on bus.
func NewSessionPublisher(bus *EventBus) *SessionPublisher {
	return &SessionPublisher{bus: bus}
}

func (p *SessionPublisher) SegmentsUpdated(documentID string, generation uint64, segments int) {
	p.bus.PublishSegmentsUpdated(SegmentsUpdatedPayload{
		DocumentID: documentID,
		Generation: generation,
		Segments:   segments,
	})
}

func (p *SessionPublisher) DirtyChanged(documentID string, dirty bool) {
	p.bus.PublishDirtyChanged(DirtyChangedPayload{DocumentID: documentID, Dirty: dirty})
}

func (p *SessionPublisher) CommitCreated(c history.Commit) {
	p.bus.PublishCommitCreated(CommitCreatedPayload{Commit: c})
}

func (p *SessionPublisher) DraftRecovered(d history.Draft) {
	p.bus.PublishDraftRecovered(DraftRecoveredPayload{Draft: d})
}

// OperationPublisher forwards operation notifications for one document to
// the bus.
type OperationPublisher struct {
	bus        *EventBus
	documentID string
}

// NewOperationPublisher returns an operation.Observer publishing on bus.
func NewOperationPublisher(bus *EventBus, documentID string) *OperationPublisher {
	return &OperationPublisher{bus: bus, documentID: documentID}
}

func (p *OperationPublisher) OperationStarted(op operation.Operation) {
	p.bus.PublishOperationStarted(OperationStartedPayload{DocumentID: p.documentID, Operation: op})
}

func (p *OperationPublisher) OperationProgress(op operation.Operation) {
	p.bus.PublishOperationProgress(OperationProgressPayload{DocumentID: p.documentID, Operation: op})
}

func (p *OperationPublisher) OperationFinished(op operation.Operation) {
	p.bus.PublishOperationFinished(OperationFinishedPayload{DocumentID: p.documentID, Operation: op})
}

func (p *OperationPublisher) StaleResult(sr operation.StaleResult) {
	p.bus.PublishStaleResult(StaleResultPayload{DocumentID: p.documentID, Result: sr})
}
