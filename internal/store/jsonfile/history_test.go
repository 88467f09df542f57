package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindprints/diff-commit/internal/core/history"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestHistoryStore_Commits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewHistoryStore(filepath.Join(t.TempDir(), "history"))

	doc := "notes/today.md"
	first := history.Commit{ID: "c1", DocumentID: doc, Seq: 1, Content: "one", CreatedAt: epoch}
	second := history.Commit{ID: "c2", DocumentID: doc, Seq: 2, ParentID: "c1", Content: "two", Message: "edit", CreatedAt: epoch.Add(time.Minute)}

	require.NoError(t, store.SaveCommit(ctx, first))
	require.NoError(t, store.SaveCommit(ctx, second))

	err := store.SaveCommit(ctx, history.Commit{ID: "c3", DocumentID: doc, Seq: 2})
	require.ErrorIs(t, err, history.ErrSeqConflict)

	got, err := store.LoadCommits(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, []history.Commit{first, second}, got)

	// Path separators are escaped into a single file.
	entries, err := os.ReadDir(store.dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "notes%2Ftoday.md.json", entries[0].Name())
}

func TestHistoryStore_LoadMissing(t *testing.T) {
	t.Parallel()
	store := NewHistoryStore(t.TempDir())

	got, err := store.LoadCommits(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, got)

	docs, err := NewHistoryStore(filepath.Join(t.TempDir(), "absent")).ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestHistoryStore_Drafts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewHistoryStore(t.TempDir())

	_, err := store.LoadDraft(ctx, "doc")
	require.ErrorIs(t, err, history.ErrNoDraft)

	draft := history.Draft{DocumentID: "doc", Content: "unsaved", UpdatedAt: epoch}
	require.NoError(t, store.SaveDraft(ctx, draft))

	got, err := store.LoadDraft(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, draft, got)

	require.NoError(t, store.ClearDraft(ctx, "doc"))
	require.NoError(t, store.ClearDraft(ctx, "doc"))
	_, err = store.LoadDraft(ctx, "doc")
	require.ErrorIs(t, err, history.ErrNoDraft)

	// A draft-only document leaves no file behind once cleared.
	entries, err := os.ReadDir(store.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHistoryStore_ClearDraftKeepsCommits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewHistoryStore(t.TempDir())

	require.NoError(t, store.SaveCommit(ctx, history.Commit{ID: "c1", DocumentID: "doc", Seq: 1, Content: "x", CreatedAt: epoch}))
	require.NoError(t, store.SaveDraft(ctx, history.Draft{DocumentID: "doc", Content: "y", UpdatedAt: epoch}))
	require.NoError(t, store.ClearDraft(ctx, "doc"))

	got, err := store.LoadCommits(ctx, "doc")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestHistoryStore_ListDocuments(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	store := NewHistoryStore(dir)

	require.NoError(t, store.SaveCommit(ctx, history.Commit{ID: "c1", DocumentID: "b", Seq: 1, Content: "x", CreatedAt: epoch}))
	require.NoError(t, store.SaveDraft(ctx, history.Draft{DocumentID: "a", Content: "y", UpdatedAt: epoch}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignored"), 0o644))

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].DocumentID)
	assert.True(t, docs[0].HasDraft)
	assert.Equal(t, "b", docs[1].DocumentID)
	assert.Equal(t, 1, docs[1].Commits)
	assert.Equal(t, epoch, docs[1].LastCommit)
}

func TestHistoryStore_CorruptFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := NewHistoryStore(dir)
	require.NoError(t, os.WriteFile(store.path("doc"), []byte("{not json"), 0o644))

	_, err := store.LoadCommits(context.Background(), "doc")
	assert.Error(t, err)
}
