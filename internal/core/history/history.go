// Package history defines commit and draft domain types and the persistence
// interfaces the document session depends on.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for history operations.
var (
	ErrNoDraft     = errors.New("no draft found")
	ErrPersistence = errors.New("persistence failure")
	ErrSeqConflict = errors.New("commit sequence conflict")
)

// Commit is an immutable checkpoint in a document's linear history.
type Commit struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Seq        int       `json:"seq"`                 // 1-based position in the log
	ParentID   string    `json:"parent_id,omitempty"` // empty for the first commit
	Content    string    `json:"content"`
	Message    string    `json:"message,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsRoot returns true for the first commit of a document.
func (c Commit) IsRoot() bool {
	return c.ParentID == ""
}

// Draft is the unsaved editor buffer kept for crash recovery.
type Draft struct {
	DocumentID string    `json:"document_id"`
	Content    string    `json:"content"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DocumentInfo summarizes a document known to a store.
type DocumentInfo struct {
	DocumentID  string    `json:"document_id"`
	Commits     int       `json:"commits"`
	LastCommit  time.Time `json:"last_commit"`
	HasDraft    bool      `json:"has_draft"`
	DraftUpdate time.Time `json:"draft_updated_at,omitzero"`
}

// CommitLog persists the ordered commit list of documents.
type CommitLog interface {
	// SaveCommit appends a commit. Implementations reject a commit whose Seq
	// is not the next position for the document with ErrSeqConflict.
	SaveCommit(ctx context.Context, c Commit) error

	// LoadCommits returns all commits for a document ordered by Seq.
	LoadCommits(ctx context.Context, documentID string) ([]Commit, error)
}

// DraftSlot persists a single recovery draft per document.
type DraftSlot interface {
	// SaveDraft replaces the draft for the document.
	SaveDraft(ctx context.Context, d Draft) error

	// LoadDraft returns the draft for a document. Returns ErrNoDraft if none.
	LoadDraft(ctx context.Context, documentID string) (Draft, error)

	// ClearDraft removes the draft for a document. Clearing a missing draft is
	// not an error.
	ClearDraft(ctx context.Context, documentID string) error
}

// Store combines commit and draft persistence.
type Store interface {
	CommitLog
	DraftSlot
}

// Documents lists documents with recorded history.
type Documents interface {
	ListDocuments(ctx context.Context) ([]DocumentInfo, error)
}

// Combine builds a Store from separate commit and draft backends.
func Combine(commits CommitLog, drafts DraftSlot) Store {
	return combined{CommitLog: commits, DraftSlot: drafts}
}

type combined struct {
	CommitLog
	DraftSlot
}

// PersistenceError reports a failed durable-storage call. It matches
// ErrPersistence with errors.Is.
type PersistenceError struct {
	Op  string // e.g. "save commit", "load draft"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is reports ErrPersistence as a match so callers can classify failures
// without knowing the operation.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// Persistence wraps err as a PersistenceError for op. A nil err stays nil.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
