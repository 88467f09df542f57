package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindprints/diff-commit/internal/core/diff"
)

var pairs = [][2]string{
	{"The cat sat.", "The big cat sat."},
	{"The cat sat on the mat.", "The cat sat."},
	{"one two three four", "four three two one"},
	{"alpha\nbeta\ngamma\n", "alpha\ndelta\ngamma\nepsilon\n"},
	{"", "fresh text"},
	{"old text", ""},
	{"unchanged", "unchanged"},
}

func findKind(t *testing.T, m *Model, kind diff.Kind) Item {
	t.Helper()
	for _, it := range m.Items() {
		if it.Kind == kind {
			return it
		}
	}
	require.Failf(t, "no item", "no %s item found", kind)
	return Item{}
}

func TestMaterialize_DefaultIsModified(t *testing.T) {
	for _, p := range pairs {
		m := New(diff.Compute(p[0], p[1]))
		assert.Equal(t, p[1], m.Materialize(), "%q -> %q", p[0], p[1])
		assert.Equal(t, m.Materialize(), m.Materialize(), "materialize must be idempotent")
	}
}

func TestRejectAll_RestoresOriginal(t *testing.T) {
	for _, p := range pairs {
		m := New(diff.Compute(p[0], p[1]))
		m.RejectAll()
		assert.Equal(t, p[0], m.Materialize(), "%q -> %q", p[0], p[1])

		m.AcceptAll()
		assert.Equal(t, p[1], m.Materialize(), "accept all after reject all")
	}
}

func TestToggle_TwiceIsIdentity(t *testing.T) {
	for _, p := range pairs {
		m := New(diff.Compute(p[0], p[1]))
		before := m.Materialize()

		for _, it := range m.Items() {
			m.Toggle(it.ID)
			m.Toggle(it.ID)

			got, ok := m.Item(it.ID)
			require.True(t, ok)
			assert.Equal(t, it.State, got.State)
		}
		assert.Equal(t, before, m.Materialize())
	}
}

func TestToggle_AcceptedReturnsToAccepted(t *testing.T) {
	m := New(diff.Compute("The cat sat.", "The big cat sat."))
	m.AcceptAll()

	ins := findKind(t, m, diff.Inserted)
	require.True(t, m.Toggle(ins.ID))
	got, _ := m.Item(ins.ID)
	assert.Equal(t, StateRejected, got.State)

	require.True(t, m.Toggle(ins.ID))
	got, _ = m.Item(ins.ID)
	assert.Equal(t, StateAccepted, got.State)
}

func TestToggle_RejectInsertion(t *testing.T) {
	m := New(diff.Compute("The cat sat.", "The big cat sat."))

	ins := findKind(t, m, diff.Inserted)
	assert.Equal(t, "big ", ins.Text)
	require.True(t, m.Toggle(ins.ID))

	assert.Equal(t, "The cat sat.", m.Materialize())
}

func TestToggle_RestoreDeletion(t *testing.T) {
	m := New(diff.Compute("The cat sat on the mat.", "The cat sat."))
	assert.Equal(t, "The cat sat.", m.Materialize())

	del := findKind(t, m, diff.Deleted)
	assert.Equal(t, " on the mat", del.Text)
	require.True(t, m.Toggle(del.ID))

	got, _ := m.Item(del.ID)
	assert.True(t, got.Restored())
	assert.Equal(t, "The cat sat on the mat.", m.Materialize())
	assert.Equal(t, 1, m.Stats().Restored)
}

func TestToggle_UnknownIDsAreNoops(t *testing.T) {
	old := New(diff.Compute("a b", "a c"))
	m := New(diff.Compute("a b", "a c"))
	before := m.Materialize()

	tests := []struct {
		name string
		id   ID
	}{
		{"foreign generation", old.Items()[1].ID},
		{"negative index", ID{Generation: m.Generation(), Index: -1}},
		{"out of range", ID{Generation: m.Generation(), Index: 99}},
		{"unchanged segment", m.Items()[0].ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, m.Toggle(tt.id))
			assert.Equal(t, before, m.Materialize())
		})
	}
}

func TestNew_FreshGenerations(t *testing.T) {
	a := New(diff.Compute("x", "y"))
	b := New(diff.Compute("x", "y"))
	assert.NotEqual(t, a.Generation(), b.Generation())
}

func TestDecisionsRoundTrip(t *testing.T) {
	segs := diff.Compute("one two three", "one 2 three 4")
	m := New(segs)
	m.AcceptAll()
	deleted := findKind(t, m, diff.Deleted)
	require.True(t, m.Toggle(deleted.ID))

	restored := New(segs)
	restored.ApplyDecisions(m.Decisions())

	assert.Equal(t, m.Materialize(), restored.Materialize())
	assert.Equal(t, m.Stats(), restored.Stats())

	// The rejected deletion returns to accepted, not pending.
	id := ID{Generation: restored.Generation(), Index: deleted.ID.Index}
	require.True(t, restored.Toggle(id))
	it, ok := restored.Item(id)
	require.True(t, ok)
	assert.Equal(t, StateAccepted, it.State)
}

func TestApplyDecisions_IgnoresInvalid(t *testing.T) {
	m := New(diff.Compute("a b", "a c"))
	before := m.Materialize()

	m.ApplyDecisions([]Decision{
		{Index: -1, State: StateRejected},
		{Index: 99, State: StateRejected},
		{Index: 0, State: StateRejected},
	})

	assert.Equal(t, before, m.Materialize())
	assert.Empty(t, m.Decisions())
}

func TestParseID(t *testing.T) {
	id := ID{Generation: 12, Index: 3}

	got, err := ParseID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseID("nope")
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	m := New(diff.Compute("a quick fox", "a slow fox"))
	s := m.Stats()
	assert.Equal(t, 2, s.Changes)
	assert.Equal(t, 2, s.Pending)

	m.RejectAll()
	s = m.Stats()
	assert.Equal(t, 2, s.Rejected)
	assert.Equal(t, 1, s.Restored)
}
