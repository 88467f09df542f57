// Package operation runs document transforms asynchronously and reconciles
// their results against the live editor text.
package operation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mindprints/diff-commit/internal/core/diff"
)

// Sentinel errors for operation management.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrClosed       = errors.New("operation manager closed")
	ErrNotFound     = errors.New("operation not found")
	ErrNotStale     = errors.New("operation has no pending stale result")
)

// Status is the lifecycle state of an operation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// IsTerminal returns true for every status except pending.
func (s Status) IsTerminal() bool {
	return s != StatusPending
}

// Resolution records what happened to a successful result.
type Resolution string

const (
	ResolutionNone           Resolution = ""
	ResolutionApplied        Resolution = "applied"
	ResolutionStale          Resolution = "stale"
	ResolutionStaleAccepted  Resolution = "stale-accepted"
	ResolutionStaleDiscarded Resolution = "stale-discarded"
)

// Operation is a snapshot of one dispatched transform.
type Operation struct {
	ID            string     `json:"id"`
	Kind          string     `json:"kind"`
	Status        Status     `json:"status"`
	IssuedAgainst string     `json:"issued_against"`
	Result        string     `json:"result,omitempty"`
	Err           error      `json:"-"`
	Progress      string     `json:"progress,omitempty"`
	Resolution    Resolution `json:"resolution,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    time.Time  `json:"resolved_at,omitzero"`
}

// Request is the input handed to a Transformer.
type Request struct {
	Kind string
	Text string
	// Progress reports a human readable label. Safe to call from any
	// goroutine; ignored once the operation is terminal.
	Progress func(label string)
}

// Transformer performs a transform. Implementations should return promptly
// when ctx is cancelled, but results arriving after cancellation are
// discarded either way.
type Transformer interface {
	Transform(ctx context.Context, req Request) (string, error)
}

// TransformFunc adapts a function to Transformer.
type TransformFunc func(ctx context.Context, req Request) (string, error)

// Transform calls f.
func (f TransformFunc) Transform(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Target is the live document results are reconciled against.
type Target interface {
	// ApplyIfCurrent installs candidate only if the editor text still equals
	// expected, returning whether it did and the text it compared against.
	ApplyIfCurrent(expected, candidate string) (bool, string)
	// ApplyCandidate installs text unconditionally.
	ApplyCandidate(text string)
}

// StaleResult is a successful result whose input no longer matches the live
// editor text. Preview diffs the current text against the result.
type StaleResult struct {
	Operation Operation      `json:"operation"`
	Current   string         `json:"current"`
	Preview   []diff.Segment `json:"preview"`
}

// TransformError is the retained failure of an operation.
type TransformError struct {
	Kind   string
	Reason string
	Err    error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %q failed: %s", e.Kind, e.Reason)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// Observer receives operation lifecycle notifications.
type Observer interface {
	OperationStarted(op Operation)
	OperationProgress(op Operation)
	OperationFinished(op Operation)
	StaleResult(sr StaleResult)
}
