package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindprints/diff-commit/internal/core/diff"
	"github.com/mindprints/diff-commit/internal/core/history"
	"github.com/mindprints/diff-commit/internal/core/history/historytest"
	"github.com/mindprints/diff-commit/internal/core/review"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type recorder struct {
	mu        sync.Mutex
	commits   []history.Commit
	dirty     []bool
	recovered []history.Draft
	segments  int
}

func (r *recorder) SegmentsUpdated(string, uint64, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments++
}

func (r *recorder) DirtyChanged(_ string, dirty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirty = append(r.dirty, dirty)
}

func (r *recorder) CommitCreated(c history.Commit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, c)
}

func (r *recorder) DraftRecovered(d history.Draft) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recovered = append(r.recovered, d)
}

func open(t *testing.T, store history.Store, initial string, mods ...func(*Options)) *Session {
	t.Helper()
	opts := Options{
		DocumentID: "doc",
		Initial:    initial,
		Store:      store,
		Now:        newClock().Now,
	}
	for _, mod := range mods {
		mod(&opts)
	}
	s, err := Open(context.Background(), opts)
	require.NoError(t, err)
	return s
}

func itemOfKind(t *testing.T, s *Session, kind diff.Kind) review.Item {
	t.Helper()
	for _, it := range s.Items() {
		if it.Kind == kind {
			return it
		}
	}
	require.Failf(t, "no item", "no %s item", kind)
	return review.Item{}
}

func TestOpen_RequiresDocumentAndStore(t *testing.T) {
	_, err := Open(context.Background(), Options{Store: historytest.NewMemory()})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Open(context.Background(), Options{DocumentID: "doc"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestOpen_FreshDocument(t *testing.T) {
	s := open(t, historytest.NewMemory(), "hello")

	assert.Equal(t, "hello", s.Baseline())
	assert.Equal(t, "hello", s.EditorText())
	assert.True(t, s.Dirty(), "never checkpointed content is dirty")

	_, ok := s.Head()
	assert.False(t, ok)
}

func TestCheckpoint_RejectsEmptyContent(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t "} {
		store := historytest.NewMemory()
		s := open(t, store, text)

		_, err := s.Checkpoint(context.Background(), CheckpointOptions{})
		require.ErrorIs(t, err, ErrEmptyCheckpoint)
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Empty(t, s.Commits())
	}
}

func TestCheckpoint_BuildsLinearHistory(t *testing.T) {
	ctx := context.Background()
	s := open(t, historytest.NewMemory(), "first draft")

	c1, err := s.Checkpoint(ctx, CheckpointOptions{Message: "one"})
	require.NoError(t, err)
	assert.True(t, c1.IsRoot())
	assert.Equal(t, 1, c1.Seq)
	assert.Equal(t, "first draft", c1.Content)
	assert.False(t, s.Dirty())

	c2, err := s.Checkpoint(ctx, CheckpointOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, c1.ID, c2.ID)
	assert.Equal(t, c1.ID, c2.ParentID)
	assert.Equal(t, 2, c2.Seq)

	s.SetEditorText("second draft")
	assert.True(t, s.Dirty())

	c3, err := s.Checkpoint(ctx, CheckpointOptions{})
	require.NoError(t, err)
	assert.Equal(t, c2.ID, c3.ParentID)
	assert.Equal(t, "second draft", s.Baseline())

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, diff.Unchanged, items[0].Kind)
}

func TestCheckpoint_UsesReviewDecisions(t *testing.T) {
	ctx := context.Background()
	s := open(t, historytest.NewMemory(), "The cat sat.")
	_, err := s.Checkpoint(ctx, CheckpointOptions{})
	require.NoError(t, err)

	s.SetEditorText("The big cat sat.")
	ins := itemOfKind(t, s, diff.Inserted)
	require.True(t, s.Toggle(ins.ID))
	assert.False(t, s.Dirty(), "rejecting the only change matches the head")

	require.True(t, s.Toggle(ins.ID))
	c, err := s.Checkpoint(ctx, CheckpointOptions{})
	require.NoError(t, err)
	assert.Equal(t, "The big cat sat.", c.Content)
}

func TestCheckpoint_ConcurrentCallsStayLinear(t *testing.T) {
	ctx := context.Background()
	store := historytest.NewMemory()
	s := open(t, store, "content")

	const n = 20
	var wg sync.WaitGroup
	for range n {
		wg.Go(func() {
			_, err := s.Checkpoint(ctx, CheckpointOptions{})
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	commits, err := store.LoadCommits(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, commits, n)

	ids := make(map[string]bool)
	for i, c := range commits {
		assert.Equal(t, i+1, c.Seq)
		assert.False(t, ids[c.ID], "duplicate id %s", c.ID)
		ids[c.ID] = true
		if i > 0 {
			assert.Equal(t, commits[i-1].ID, c.ParentID)
		}
	}
}

func TestCheckpoint_PersistenceFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	store := historytest.NewMemory()
	s := open(t, store, "base")
	_, err := s.Checkpoint(ctx, CheckpointOptions{})
	require.NoError(t, err)

	s.SetEditorText("changed")
	before := s.Items()

	store.SetFailCommits(errors.New("disk full"))
	_, err = s.Checkpoint(ctx, CheckpointOptions{})
	require.ErrorIs(t, err, history.ErrPersistence)

	var pe *history.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "save commit", pe.Op)

	assert.Len(t, s.Commits(), 1)
	assert.Equal(t, "base", s.Baseline())
	assert.Equal(t, "changed", s.EditorText())
	assert.Equal(t, before, s.Items())
	assert.True(t, s.Dirty())
}

func TestCheckpoint_SeqConflictReloadsHistory(t *testing.T) {
	ctx := context.Background()
	store := historytest.NewMemory()

	s := open(t, store, "base")
	_, err := s.Checkpoint(ctx, CheckpointOptions{})
	require.NoError(t, err)

	other := open(t, store, "")
	other.SetEditorText("from another writer")
	theirs, err := other.Checkpoint(ctx, CheckpointOptions{})
	require.NoError(t, err)

	s.SetEditorText("from this session")
	_, err = s.Checkpoint(ctx, CheckpointOptions{})
	require.ErrorIs(t, err, ErrStaleHistory)
	assert.ErrorIs(t, err, history.ErrSeqConflict)
	assert.ErrorIs(t, err, history.ErrPersistence)

	assert.Len(t, s.Commits(), 2)
	assert.Equal(t, "from another writer", s.Baseline())
	assert.Equal(t, "from this session", s.EditorText())
	assert.True(t, s.Dirty())

	c, err := s.Checkpoint(ctx, CheckpointOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, c.Seq)
	assert.Equal(t, theirs.ID, c.ParentID)
}

func TestCheckpoint_SaveExports(t *testing.T) {
	ctx := context.Background()
	var exported string
	exp := ExporterFunc(func(_ context.Context, _, content string) error {
		exported = content
		return nil
	})

	s := open(t, historytest.NewMemory(), "body", func(o *Options) { o.Exporter = exp })

	_, err := s.Checkpoint(ctx, CheckpointOptions{})
	require.NoError(t, err)
	assert.Empty(t, exported)

	_, err = s.Checkpoint(ctx, CheckpointOptions{Save: true})
	require.NoError(t, err)
	assert.Equal(t, "body", exported)
}

func TestCheckpoint_ExportFailureKeepsCommit(t *testing.T) {
	exp := ExporterFunc(func(context.Context, string, string) error {
		return errors.New("read-only")
	})
	s := open(t, historytest.NewMemory(), "body", func(o *Options) { o.Exporter = exp })

	c, err := s.Checkpoint(context.Background(), CheckpointOptions{Save: true})
	require.ErrorIs(t, err, ErrExport)
	assert.NotEmpty(t, c.ID)
	assert.Len(t, s.Commits(), 1)
}

func TestCheckpoint_ClearsDraft(t *testing.T) {
	ctx := context.Background()
	store := historytest.NewMemory()
	s := open(t, store, "base")

	s.SetEditorText("edited")
	require.NoError(t, s.SaveDraft(ctx))
	_, ok := store.Draft("doc")
	require.True(t, ok)

	_, err := s.Checkpoint(ctx, CheckpointOptions{})
	require.NoError(t, err)
	_, ok = store.Draft("doc")
	assert.False(t, ok)
}

func TestObserver_Notifications(t *testing.T) {
	rec := &recorder{}
	s := open(t, historytest.NewMemory(), "text", func(o *Options) { o.Observer = rec })

	_, err := s.Checkpoint(context.Background(), CheckpointOptions{})
	require.NoError(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.commits, 1)
	assert.Equal(t, []bool{true, false}, rec.dirty)
	assert.Equal(t, 2, rec.segments)
}

func TestToggle_StaleIDAfterEdit(t *testing.T) {
	s := open(t, historytest.NewMemory(), "a b")
	s.SetEditorText("a c")
	old := itemOfKind(t, s, diff.Inserted)

	s.SetEditorText("a d")
	before := s.Materialize()
	assert.False(t, s.Toggle(old.ID))
	assert.Equal(t, before, s.Materialize())
}

func TestSetEditorText_SameTextKeepsIDs(t *testing.T) {
	s := open(t, historytest.NewMemory(), "a b")
	s.SetEditorText("a c")
	gen := s.Generation()

	s.SetEditorText("a c")
	assert.Equal(t, gen, s.Generation())
}

func TestApplyIfCurrent(t *testing.T) {
	s := open(t, historytest.NewMemory(), "start")

	ok, current := s.ApplyIfCurrent("start", "next")
	assert.True(t, ok)
	assert.Equal(t, "start", current)
	assert.Equal(t, "next", s.EditorText())

	ok, current = s.ApplyIfCurrent("start", "other")
	assert.False(t, ok)
	assert.Equal(t, "next", current)
	assert.Equal(t, "next", s.EditorText())
}

func TestFold(t *testing.T) {
	s := open(t, historytest.NewMemory(), "The cat sat.")
	s.SetEditorText("The big cat sat.")
	require.True(t, s.Toggle(itemOfKind(t, s, diff.Inserted).ID))

	s.Fold()
	assert.Equal(t, "The cat sat.", s.EditorText())
	assert.Len(t, s.Items(), 1)
}

func TestRejectAllAndAcceptAll(t *testing.T) {
	s := open(t, historytest.NewMemory(), "one two")
	_, err := s.Checkpoint(context.Background(), CheckpointOptions{})
	require.NoError(t, err)

	s.SetEditorText("one three")
	s.RejectAll()
	assert.Equal(t, "one two", s.Materialize())
	assert.False(t, s.Dirty())

	s.AcceptAll()
	assert.Equal(t, "one three", s.Materialize())
	assert.True(t, s.Dirty())
	assert.Equal(t, 2, s.Stats().Accepted)
}

func TestRevert(t *testing.T) {
	ctx := context.Background()
	s := open(t, historytest.NewMemory(), "v1")
	c1, err := s.Checkpoint(ctx, CheckpointOptions{})
	require.NoError(t, err)

	s.SetEditorText("v2")
	_, err = s.Checkpoint(ctx, CheckpointOptions{})
	require.NoError(t, err)

	require.NoError(t, s.Revert(c1.ID))
	assert.Equal(t, "v1", s.Materialize())
	assert.True(t, s.Dirty())

	assert.ErrorIs(t, s.Revert("missing"), ErrCommitNotFound)
}

func TestStash(t *testing.T) {
	s := open(t, historytest.NewMemory(), "one two three")
	s.SetEditorText("one 2 three")
	require.True(t, s.Toggle(itemOfKind(t, s, diff.Deleted).ID))
	want := s.Materialize()

	st := s.Stash()
	assert.Equal(t, "one 2 three", st.Editor)
	assert.NotEmpty(t, st.Decisions)

	s.SetEditorText("something else")
	require.NoError(t, s.RestoreStash())
	assert.Equal(t, want, s.Materialize())
	assert.Equal(t, "one 2 three", s.EditorText())

	assert.ErrorIs(t, s.RestoreStash(), ErrNoStash)
}

func TestStash_KeepsAcceptedDecisions(t *testing.T) {
	s := open(t, historytest.NewMemory(), "one two three")
	s.SetEditorText("one 2 three 4")
	s.AcceptAll()
	deleted := itemOfKind(t, s, diff.Deleted)
	require.True(t, s.Toggle(deleted.ID))
	want := s.Stats()
	require.Positive(t, want.Accepted)

	s.Stash()
	s.SetEditorText("something else")
	require.NoError(t, s.RestoreStash())

	got := s.Stats()
	assert.Equal(t, want, got)
	assert.Zero(t, got.Pending, "accepted changes must not come back as pending")

	// Un-rejecting the restored item returns it to accepted.
	id := review.ID{Generation: s.Generation(), Index: deleted.ID.Index}
	require.True(t, s.Toggle(id))
	assert.Equal(t, want.Accepted+1, s.Stats().Accepted)
}

func seedHistory(t *testing.T, store *historytest.Memory, head time.Time, draft time.Time, draftContent string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.SaveCommit(ctx, history.Commit{
		ID: "c1", DocumentID: "doc", Seq: 1, Content: "committed", CreatedAt: head,
	}))
	require.NoError(t, store.SaveDraft(ctx, history.Draft{
		DocumentID: "doc", Content: draftContent, UpdatedAt: draft,
	}))
}

func TestRecoveredDraft_Restore(t *testing.T) {
	ctx := context.Background()
	store := historytest.NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedHistory(t, store, base, base.Add(time.Hour), "unsaved work")

	rec := &recorder{}
	s := open(t, store, "", func(o *Options) { o.Observer = rec })

	d, ok := s.RecoveredDraft()
	require.True(t, ok)
	assert.Equal(t, "unsaved work", d.Content)
	assert.Len(t, rec.recovered, 1)

	assert.Equal(t, "committed", s.EditorText(), "draft is not merged automatically")

	s.SetEditorText("newer edit")
	require.NoError(t, s.SaveDraft(ctx))
	stored, _ := store.Draft("doc")
	assert.Equal(t, "unsaved work", stored.Content, "pending draft must not be overwritten")

	require.NoError(t, s.RestoreRecoveredDraft())
	assert.Equal(t, "unsaved work", s.EditorText())
	assert.ErrorIs(t, s.RestoreRecoveredDraft(), ErrNoRecoveredDraft)
}

func TestRecoveredDraft_Discard(t *testing.T) {
	store := historytest.NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedHistory(t, store, base, base.Add(time.Hour), "unsaved work")

	s := open(t, store, "")
	require.NoError(t, s.DiscardRecoveredDraft(context.Background()))

	_, ok := store.Draft("doc")
	assert.False(t, ok)
	assert.ErrorIs(t, s.DiscardRecoveredDraft(context.Background()), ErrNoRecoveredDraft)
}

func TestRecoveredDraft_IgnoredWhenStale(t *testing.T) {
	tests := []struct {
		name    string
		offset  time.Duration
		content string
	}{
		{"older than head", -time.Hour, "old work"},
		{"same as head", time.Hour, "committed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := historytest.NewMemory()
			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			seedHistory(t, store, base, base.Add(tt.offset), tt.content)

			s := open(t, store, "")
			_, ok := s.RecoveredDraft()
			assert.False(t, ok)
		})
	}
}

func TestOpen_LoadFailure(t *testing.T) {
	store := historytest.NewMemory()
	store.SetFailCommits(errors.New("corrupt"))

	_, err := Open(context.Background(), Options{DocumentID: "doc", Store: store})
	assert.ErrorIs(t, err, history.ErrPersistence)
}

func TestSaveDraft_PersistenceFailure(t *testing.T) {
	store := historytest.NewMemory()
	s := open(t, store, "base")

	store.SetFailDrafts(errors.New("locked"))
	s.SetEditorText("edited")
	assert.ErrorIs(t, s.SaveDraft(context.Background()), history.ErrPersistence)
}

func TestAutosave(t *testing.T) {
	store := historytest.NewMemory()
	s := open(t, store, "base")
	_, err := s.Checkpoint(context.Background(), CheckpointOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Autosave(ctx, 5*time.Millisecond)

	s.SetEditorText("typed more")
	assert.Eventually(t, func() bool {
		d, ok := store.Draft("doc")
		return ok && d.Content == "typed more"
	}, time.Second, 5*time.Millisecond)
}

func TestAutosave_ClearsDraftWhenBackAtHead(t *testing.T) {
	store := historytest.NewMemory()
	s := open(t, store, "base")
	_, err := s.Checkpoint(context.Background(), CheckpointOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Autosave(ctx, 5*time.Millisecond)

	s.SetEditorText("typed more")
	require.Eventually(t, func() bool {
		d, ok := store.Draft("doc")
		return ok && d.Content == "typed more"
	}, time.Second, 5*time.Millisecond)

	s.SetEditorText("base")
	assert.Eventually(t, func() bool {
		_, ok := store.Draft("doc")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestAutosave_KeepsPendingRecoveredDraft(t *testing.T) {
	store := historytest.NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedHistory(t, store, base, base.Add(time.Hour), "unsaved work")
	s := open(t, store, "")

	ctx, cancel := context.WithCancel(context.Background())
	go s.Autosave(ctx, 2*time.Millisecond)
	s.SetEditorText("elsewhere")
	s.SetEditorText("committed")
	time.Sleep(30 * time.Millisecond)
	cancel()

	d, ok := store.Draft("doc")
	require.True(t, ok)
	assert.Equal(t, "unsaved work", d.Content)
}
