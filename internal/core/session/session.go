// Package session owns the editing state of one document: baseline, live
// editor text, segment review decisions, commit history, dirty tracking and
// draft recovery.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mindprints/diff-commit/internal/core/diff"
	"github.com/mindprints/diff-commit/internal/core/history"
	"github.com/mindprints/diff-commit/internal/core/review"
)

// Sentinel errors for session operations.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrEmptyCheckpoint  = fmt.Errorf("%w: checkpoint content is empty", ErrInvalidInput)
	ErrNoRecoveredDraft = errors.New("no recovered draft pending")
	ErrNoStash          = errors.New("no stashed state")
	ErrCommitNotFound   = errors.New("commit not found")
	ErrStaleHistory     = errors.New("history changed in the store; review against the new head")
	ErrExport           = errors.New("export failed")
)

// Observer receives state change notifications. Calls happen after the
// session lock is released, in mutation order for a single writer.
type Observer interface {
	SegmentsUpdated(documentID string, generation uint64, segments int)
	DirtyChanged(documentID string, dirty bool)
	CommitCreated(c history.Commit)
	DraftRecovered(d history.Draft)
}

// Exporter writes checkpointed content outside the store, e.g. back to the
// document's file.
type Exporter interface {
	Export(ctx context.Context, documentID, content string) error
}

// ExporterFunc adapts a function to Exporter.
type ExporterFunc func(ctx context.Context, documentID, content string) error

// Export calls f.
func (f ExporterFunc) Export(ctx context.Context, documentID, content string) error {
	return f(ctx, documentID, content)
}

// Options configures Open.
type Options struct {
	DocumentID string
	// Initial is the baseline and editor text when the document has no commits.
	Initial  string
	Store    history.Store
	Diff     diff.Options
	Observer Observer
	Exporter Exporter
	Logger   zerolog.Logger

	Now   func() time.Time
	NewID func() string
}

// CheckpointOptions configures a checkpoint.
type CheckpointOptions struct {
	Message string
	// Save also hands the merged text to the Exporter.
	Save bool
}

// Session is the editing state of one document. All methods are safe for
// concurrent use; mutations are applied one at a time in call order.
type Session struct {
	mu      sync.Mutex
	pending []func()

	id       string
	store    history.Store
	diffOpts diff.Options
	observer Observer
	exporter Exporter
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string

	original  string
	editor    string
	model     *review.Model
	commits   []history.Commit
	dirty     bool
	recovered *history.Draft
	stash     *Stash
	lastDraft string
}

// Open loads a document's history and draft slot and returns its session.
// A draft newer than the head commit with different content is surfaced via
// RecoveredDraft and is never merged automatically.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.DocumentID == "" {
		return nil, fmt.Errorf("%w: document id is required", ErrInvalidInput)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidInput)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Diff.Granularity == "" {
		opts.Diff = diff.DefaultOptions()
	}

	commits, err := opts.Store.LoadCommits(ctx, opts.DocumentID)
	if err != nil {
		return nil, history.Persistence("load commits", err)
	}

	s := &Session{
		id:       opts.DocumentID,
		store:    opts.Store,
		diffOpts: opts.Diff,
		observer: opts.Observer,
		exporter: opts.Exporter,
		log:      opts.Logger.With().Str("document_id", opts.DocumentID).Logger(),
		now:      opts.Now,
		newID:    opts.NewID,
		commits:  commits,
	}

	s.original = opts.Initial
	if head, ok := s.head(); ok {
		s.original = head.Content
	}
	s.editor = s.original
	s.lastDraft = s.original

	draft, err := opts.Store.LoadDraft(ctx, opts.DocumentID)
	switch {
	case errors.Is(err, history.ErrNoDraft):
	case err != nil:
		return nil, history.Persistence("load draft", err)
	default:
		if s.isRecoverable(draft) {
			s.recovered = &draft
			s.log.Info().Time("updated_at", draft.UpdatedAt).Msg("recovered unsaved draft")
		}
	}

	s.mu.Lock()
	s.recompute()
	s.updateDirty()
	if s.recovered != nil {
		d := *s.recovered
		s.notify(func(o Observer) { o.DraftRecovered(d) })
	}
	s.unlock()

	return s, nil
}

func (s *Session) isRecoverable(d history.Draft) bool {
	head, ok := s.head()
	if !ok {
		return d.Content != s.editor
	}
	return d.UpdatedAt.After(head.CreatedAt) && d.Content != head.Content
}

// unlock releases the lock and then delivers queued notifications.
func (s *Session) unlock() {
	notes := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, fn := range notes {
		fn()
	}
}

func (s *Session) notify(fn func(Observer)) {
	if s.observer == nil {
		return
	}
	o := s.observer
	s.pending = append(s.pending, func() { fn(o) })
}

func (s *Session) head() (history.Commit, bool) {
	if len(s.commits) == 0 {
		return history.Commit{}, false
	}
	return s.commits[len(s.commits)-1], true
}

func (s *Session) headContent() string {
	head, _ := s.head()
	return head.Content
}

// recompute rebuilds the review model; all previous segment ids become stale.
func (s *Session) recompute() {
	s.model = review.New(diff.ComputeWith(s.original, s.editor, s.diffOpts))
	gen, n := s.model.Generation(), s.model.Len()
	s.notify(func(o Observer) { o.SegmentsUpdated(s.id, gen, n) })
}

func (s *Session) updateDirty() {
	dirty := s.model.Materialize() != s.headContent()
	if dirty == s.dirty {
		return
	}
	s.dirty = dirty
	s.notify(func(o Observer) { o.DirtyChanged(s.id, dirty) })
}

func (s *Session) setEditor(text string) {
	if text == s.editor {
		return
	}
	s.editor = text
	s.recompute()
	s.updateDirty()
}

// DocumentID returns the document this session edits.
func (s *Session) DocumentID() string {
	return s.id
}

// Baseline returns the original text diffs are computed against.
func (s *Session) Baseline() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.original
}

// EditorText returns the live editor buffer.
func (s *Session) EditorText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor
}

// SetEditorText replaces the editor buffer with user input and recomputes
// the segments. Setting identical text keeps the current segment ids.
func (s *Session) SetEditorText(text string) {
	s.mu.Lock()
	defer s.unlock()
	s.setEditor(text)
}

// ApplyCandidate installs text as the new candidate against the current
// baseline, typically an accepted transform result.
func (s *Session) ApplyCandidate(text string) {
	s.mu.Lock()
	defer s.unlock()
	s.log.Debug().Int("len", len(text)).Msg("applying candidate")
	s.setEditor(text)
}

// ApplyIfCurrent installs candidate only when the editor still holds
// expected. It returns whether it applied and the editor text it compared
// against, atomically with respect to other mutations.
func (s *Session) ApplyIfCurrent(expected, candidate string) (bool, string) {
	s.mu.Lock()
	defer s.unlock()
	if s.editor != expected {
		return false, s.editor
	}
	s.setEditor(candidate)
	return true, expected
}

// Fold makes the merged text the new editor buffer so further edits and
// transforms start from the reviewed state.
func (s *Session) Fold() {
	s.mu.Lock()
	defer s.unlock()
	s.setEditor(s.model.Materialize())
}

// Items returns the current segments with their review state.
func (s *Session) Items() []review.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Items()
}

// Generation returns the generation of the current segment ids.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Generation()
}

// Toggle flips one segment's decision. Unknown or stale ids are ignored and
// reported with false.
func (s *Session) Toggle(id review.ID) bool {
	s.mu.Lock()
	defer s.unlock()
	if !s.model.Toggle(id) {
		return false
	}
	s.updateDirty()
	return true
}

// AcceptAll keeps every change.
func (s *Session) AcceptAll() {
	s.mu.Lock()
	defer s.unlock()
	s.model.AcceptAll()
	s.updateDirty()
}

// RejectAll drops every insertion and restores every deletion.
func (s *Session) RejectAll() {
	s.mu.Lock()
	defer s.unlock()
	s.model.RejectAll()
	s.updateDirty()
}

// Materialize returns the merged text implied by current decisions.
func (s *Session) Materialize() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Materialize()
}

// Stats summarizes current review decisions.
func (s *Session) Stats() review.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Stats()
}

// Dirty reports whether the merged text differs from the head commit.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Commits returns a copy of the commit history, oldest first.
func (s *Session) Commits() []history.Commit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]history.Commit, len(s.commits))
	copy(out, s.commits)
	return out
}

// Head returns the latest commit.
func (s *Session) Head() (history.Commit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.head()
}

// Checkpoint appends the merged text as a new commit whose parent is the
// current head. Whitespace-only content is rejected with ErrEmptyCheckpoint.
// The commit is persisted before any in-memory state changes; a persistence
// failure leaves the session untouched.
//
// When another writer has appended to the log first, the store rejects the
// commit with history.ErrSeqConflict. The session then reloads the log and
// rebases onto the new head, keeping the editor text, and returns
// ErrStaleHistory so the caller can review and checkpoint again.
//
// With opts.Save the merged text is also exported. An export failure is
// returned wrapped in ErrExport together with the valid commit.
func (s *Session) Checkpoint(ctx context.Context, opts CheckpointOptions) (history.Commit, error) {
	s.mu.Lock()
	defer s.unlock()

	merged := s.model.Materialize()
	if strings.TrimSpace(merged) == "" {
		return history.Commit{}, ErrEmptyCheckpoint
	}

	c := history.Commit{
		ID:         s.newID(),
		DocumentID: s.id,
		Seq:        len(s.commits) + 1,
		Content:    merged,
		Message:    opts.Message,
		CreatedAt:  s.now(),
	}
	if head, ok := s.head(); ok {
		c.ParentID = head.ID
	}

	if err := s.store.SaveCommit(ctx, c); err != nil {
		err = history.Persistence("save commit", err)
		if errors.Is(err, history.ErrSeqConflict) {
			return history.Commit{}, s.reload(ctx, err)
		}
		return history.Commit{}, err
	}

	s.commits = append(s.commits, c)
	s.original = merged
	s.editor = merged
	s.lastDraft = merged
	s.recompute()
	s.updateDirty()
	s.notify(func(o Observer) { o.CommitCreated(c) })

	s.log.Info().Str("commit_id", c.ID).Int("seq", c.Seq).Msg("checkpoint created")

	if err := s.store.ClearDraft(ctx, s.id); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear draft after checkpoint")
	}

	if opts.Save && s.exporter != nil {
		if err := s.exporter.Export(ctx, s.id, merged); err != nil {
			return c, fmt.Errorf("%w: %w", ErrExport, err)
		}
	}

	return c, nil
}

// reload replaces the in-memory log with the stored one after a sequence
// conflict and moves the baseline to the stored head.
func (s *Session) reload(ctx context.Context, cause error) error {
	commits, err := s.store.LoadCommits(ctx, s.id)
	if err != nil {
		return fmt.Errorf("%w: %w (reload: %w)", ErrStaleHistory, cause, history.Persistence("load commits", err))
	}

	s.commits = commits
	if head, ok := s.head(); ok {
		s.original = head.Content
	}
	s.recompute()
	s.updateDirty()

	s.log.Warn().Int("commits", len(commits)).Msg("commit log changed underneath the session; reloaded")
	return fmt.Errorf("%w: %w", ErrStaleHistory, cause)
}

// Revert loads a previous commit's content into the editor so it can be
// reviewed against the head like any other candidate.
func (s *Session) Revert(commitID string) error {
	s.mu.Lock()
	defer s.unlock()
	for _, c := range s.commits {
		if c.ID == commitID {
			s.setEditor(c.Content)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrCommitNotFound, commitID)
}

// Stash is a saved baseline and editor pair together with the review
// decision of every segment, restorable with RestoreStash.
type Stash struct {
	Baseline  string            `json:"baseline"`
	Editor    string            `json:"editor"`
	Decisions []review.Decision `json:"decisions,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Stash saves the current review state, replacing any earlier stash.
func (s *Session) Stash() Stash {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stash{
		Baseline:  s.original,
		Editor:    s.editor,
		Decisions: s.model.Decisions(),
		CreatedAt: s.now(),
	}
	s.stash = &st
	return st
}

// Stashed returns the saved stash, if any.
func (s *Session) Stashed() (Stash, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stash == nil {
		return Stash{}, false
	}
	return *s.stash, true
}

// RestoreStash reinstates the stashed baseline, editor text and decisions
// and empties the stash.
func (s *Session) RestoreStash() error {
	s.mu.Lock()
	defer s.unlock()
	if s.stash == nil {
		return ErrNoStash
	}
	st := *s.stash
	s.stash = nil

	s.original = st.Baseline
	s.editor = st.Editor
	s.recompute()
	s.model.ApplyDecisions(st.Decisions)
	s.updateDirty()
	return nil
}

// RecoveredDraft returns the draft surfaced at Open, if it is still pending.
func (s *Session) RecoveredDraft() (history.Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recovered == nil {
		return history.Draft{}, false
	}
	return *s.recovered, true
}

// RestoreRecoveredDraft loads the recovered draft into the editor.
func (s *Session) RestoreRecoveredDraft() error {
	s.mu.Lock()
	defer s.unlock()
	if s.recovered == nil {
		return ErrNoRecoveredDraft
	}
	d := *s.recovered
	s.recovered = nil
	s.setEditor(d.Content)
	s.log.Info().Msg("restored recovered draft")
	return nil
}

// DiscardRecoveredDraft drops the recovered draft and clears the slot.
func (s *Session) DiscardRecoveredDraft(ctx context.Context) error {
	s.mu.Lock()
	defer s.unlock()
	if s.recovered == nil {
		return ErrNoRecoveredDraft
	}
	if err := s.store.ClearDraft(ctx, s.id); err != nil {
		return history.Persistence("clear draft", err)
	}
	s.recovered = nil
	s.log.Info().Msg("discarded recovered draft")
	return nil
}

// SaveDraft persists the editor buffer to the recovery slot. It does nothing
// while a recovered draft awaits a decision, so that draft is not overwritten.
func (s *Session) SaveDraft(ctx context.Context) error {
	s.mu.Lock()
	defer s.unlock()
	return s.saveDraft(ctx)
}

func (s *Session) saveDraft(ctx context.Context) error {
	if s.recovered != nil {
		s.log.Debug().Msg("draft save skipped: recovered draft pending")
		return nil
	}
	d := history.Draft{DocumentID: s.id, Content: s.editor, UpdatedAt: s.now()}
	if err := s.store.SaveDraft(ctx, d); err != nil {
		return history.Persistence("save draft", err)
	}
	s.lastDraft = d.Content
	return nil
}

// clearDraft empties the slot once the editor is back at the head content,
// unless a recovered draft is still pending.
func (s *Session) clearDraft(ctx context.Context) error {
	if s.recovered != nil {
		return nil
	}
	if err := s.store.ClearDraft(ctx, s.id); err != nil {
		return history.Persistence("clear draft", err)
	}
	s.lastDraft = s.editor
	return nil
}

// Autosave saves a draft every interval while the editor text differs from
// the last saved draft. When the editor returns to the head content the slot
// is cleared instead, so no outdated draft survives. It blocks until ctx is
// done.
func (s *Session) Autosave(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			var err error
			switch {
			case s.editor == s.lastDraft:
			case s.editor == s.headContent():
				err = s.clearDraft(ctx)
			default:
				err = s.saveDraft(ctx)
			}
			s.unlock()
			if err != nil {
				s.log.Warn().Err(err).Msg("autosave failed")
			}
		}
	}
}
