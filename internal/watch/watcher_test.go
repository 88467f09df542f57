package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWatcher(t *testing.T) *DocumentWatcher {
	t.Helper()
	w, err := NewDocumentWatcher(0, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func collect(events <-chan Event, window time.Duration) []string {
	timeout := time.After(window)
	var paths []string
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return paths
			}
			paths = append(paths, filepath.Base(ev.Path))
		case <-timeout:
			return paths
		}
	}
}

func TestDocumentWatcher_TrackedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	doc := filepath.Join(dir, "notes.md")
	w := newWatcher(t)
	require.NoError(t, w.Add(doc))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events, err := w.Watch(ctx, "")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(doc, []byte("hello"), 0o644))

	select {
	case ev := <-events:
		assert.Equal(t, "notes.md", filepath.Base(ev.Path))
		assert.False(t, ev.Timestamp.IsZero())
	case <-ctx.Done():
		t.Fatal("timeout waiting for event")
	}
}

func TestDocumentWatcher_IgnoresUntrackedAndScratch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	doc := filepath.Join(dir, "doc.md")
	w := newWatcher(t)
	require.NoError(t, w.Add(doc))

	events, err := w.Watch(context.Background(), "")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.md"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.md.tmp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.md~"), []byte("x"), 0o644))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(doc, []byte("x"), 0o644))

	assert.Equal(t, []string{"doc.md"}, collect(events, 300*time.Millisecond))
}

func TestDocumentWatcher_Pattern(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	md := filepath.Join(dir, "a.md")
	txt := filepath.Join(dir, "b.txt")
	w := newWatcher(t)
	require.NoError(t, w.Add(md))
	require.NoError(t, w.Add(txt))

	events, err := w.Watch(context.Background(), "**/*.md")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(md, []byte("x"), 0o644))

	assert.Equal(t, []string{"a.md"}, collect(events, 300*time.Millisecond))
}

func TestDocumentWatcher_BadPattern(t *testing.T) {
	t.Parallel()

	w := newWatcher(t)
	_, err := w.Watch(context.Background(), "[")
	assert.Error(t, err)
}

func TestDocumentWatcher_Debounce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	doc := filepath.Join(dir, "debounce.md")
	w := newWatcher(t)
	require.NoError(t, w.Add(doc))

	events, err := w.Watch(context.Background(), "")
	require.NoError(t, err)

	for range 5 {
		require.NoError(t, os.WriteFile(doc, []byte("x"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	assert.Len(t, collect(events, 300*time.Millisecond), 1, "should receive exactly one debounced event")
}

func TestDocumentWatcher_Remove(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	doc := filepath.Join(dir, "gone.md")
	w := newWatcher(t)
	require.NoError(t, w.Add(doc))
	require.NoError(t, w.Remove(doc))
	require.NoError(t, w.Remove(doc))

	events, err := w.Watch(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(doc, []byte("x"), 0o644))

	assert.Empty(t, collect(events, 200*time.Millisecond))
}

func TestDocumentWatcher_ContextCancellation(t *testing.T) {
	t.Parallel()

	w := newWatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	events, err := w.Watch(ctx, "")
	require.NoError(t, err)

	cancel()

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond, "channel should close after cancellation")
}

func TestDocumentWatcher_Close(t *testing.T) {
	t.Parallel()

	w, err := NewDocumentWatcher(0, zerolog.Nop())
	require.NoError(t, err)

	events, err := w.Watch(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, ok := <-events
	assert.False(t, ok, "channel should be closed after watcher close")
}

func TestIsScratchFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"doc.md", false},
		{"doc.md.tmp", true},
		{"doc.md.swp", true},
		{"doc.md~", true},
		{".#doc.md", true},
		{"index.lock", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isScratchFile(tt.name))
		})
	}
}
