package review

import (
	"testing"

	"github.com/mindprints/diff-commit/internal/core/diff"
)

// FuzzReview drives review decisions over arbitrary diffs and checks the
// merged text at each step.
func FuzzReview(f *testing.F) {
	for _, p := range pairs {
		f.Add(p[0], p[1], uint8(0))
	}
	f.Add("ab\xffcd", "abcd", uint8(0))
	f.Add("ab\xffcd", "ab\xfecd", uint8(2))
	f.Add("one\xff two", "one two\n\xff", uint8(1))

	granularities := []diff.Granularity{diff.GranularityWord, diff.GranularityLine, diff.GranularityChar}

	f.Fuzz(func(t *testing.T, original, modified string, g uint8) {
		if len(original) > 2048 || len(modified) > 2048 {
			return
		}
		gran := granularities[int(g)%len(granularities)]
		segs := diff.ComputeWith(original, modified, diff.Options{Granularity: gran})

		m := New(segs)
		if got := m.Materialize(); got != modified {
			t.Fatalf("fresh model: got %q, want %q", got, modified)
		}

		for _, it := range m.Items() {
			before, _ := m.Item(it.ID)
			m.Toggle(it.ID)
			m.Toggle(it.ID)
			after, _ := m.Item(it.ID)
			if after.State != before.State {
				t.Fatalf("double toggle of %s changed state %s -> %s", it.ID, before.State, after.State)
			}
		}
		if got := m.Materialize(); got != modified {
			t.Fatalf("after double toggles: got %q, want %q", got, modified)
		}

		for _, it := range m.Items() {
			m.Toggle(it.ID)
		}
		if got := m.Materialize(); got != original {
			t.Fatalf("all toggled: got %q, want %q", got, original)
		}

		m.AcceptAll()
		if got := m.Materialize(); got != modified {
			t.Fatalf("accept all: got %q, want %q", got, modified)
		}

		m.RejectAll()
		if got := m.Materialize(); got != original {
			t.Fatalf("reject all: got %q, want %q", got, original)
		}

		replayed := New(segs)
		replayed.ApplyDecisions(m.Decisions())
		if got := replayed.Materialize(); got != original {
			t.Fatalf("replayed decisions: got %q, want %q", got, original)
		}
	})
}
