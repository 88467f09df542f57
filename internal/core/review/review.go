// Package review holds per-segment accept/reject decisions over a diff and
// materializes the merged text they imply.
package review

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/mindprints/diff-commit/internal/core/diff"
)

// State is the review decision of a changed segment.
type State uint8

const (
	// StatePending is the initial state; it behaves like accepted.
	StatePending State = iota
	// StateAccepted explicitly keeps the change.
	StateAccepted
	// StateRejected undoes the change: an insertion is dropped, a deletion is
	// restored.
	StateRejected
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAccepted:
		return "accepted"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ID identifies a segment within one diff computation. Ids from an earlier
// generation never match a later model.
type ID struct {
	Generation uint64 `json:"generation"`
	Index      int    `json:"index"`
}

// String formats the id as "g<generation>-<index>".
func (id ID) String() string {
	return fmt.Sprintf("g%d-%d", id.Generation, id.Index)
}

// ParseID parses the output of ID.String.
func ParseID(s string) (ID, error) {
	var id ID
	if _, err := fmt.Sscanf(s, "g%d-%d", &id.Generation, &id.Index); err != nil {
		return ID{}, fmt.Errorf("parse segment id %q: %w", s, err)
	}
	return id, nil
}

// Item is a segment together with its review decision.
type Item struct {
	ID    ID        `json:"id"`
	Kind  diff.Kind `json:"kind"`
	Text  string    `json:"text"`
	State State     `json:"state"`

	// prior is the non-rejected state to return to when a rejection is toggled off.
	prior State
}

// Included reports whether the item's text is part of the merged output.
func (it Item) Included() bool {
	switch it.Kind {
	case diff.Inserted:
		return it.State != StateRejected
	case diff.Deleted:
		return it.State == StateRejected
	default:
		return true
	}
}

// Restored reports whether the item is a deletion that was rejected, keeping
// the original text.
func (it Item) Restored() bool {
	return it.Kind == diff.Deleted && it.State == StateRejected
}

var generations atomic.Uint64

// Model is the review state over one segment sequence. It is not safe for
// concurrent use; the owning session serializes access.
type Model struct {
	generation uint64
	items      []Item
}

// New wraps segs in a fresh generation with every change pending.
func New(segs []diff.Segment) *Model {
	m := &Model{
		generation: generations.Add(1),
		items:      make([]Item, len(segs)),
	}
	for i, s := range segs {
		m.items[i] = Item{
			ID:   ID{Generation: m.generation, Index: i},
			Kind: s.Kind,
			Text: s.Text,
		}
	}
	return m
}

// Generation returns the generation stamped on this model's ids.
func (m *Model) Generation() uint64 {
	return m.generation
}

// Len returns the number of segments.
func (m *Model) Len() int {
	return len(m.items)
}

// Items returns a copy of all items in order.
func (m *Model) Items() []Item {
	out := make([]Item, len(m.items))
	copy(out, m.items)
	return out
}

// Item returns the item for id.
func (m *Model) Item(id ID) (Item, bool) {
	idx, ok := m.lookup(id)
	if !ok {
		return Item{}, false
	}
	return m.items[idx], true
}

func (m *Model) lookup(id ID) (int, bool) {
	if id.Generation != m.generation || id.Index < 0 || id.Index >= len(m.items) {
		return 0, false
	}
	return id.Index, true
}

// Toggle flips a change between rejected and its prior decision. It returns
// false without changing anything when id belongs to another generation,
// is out of range, or names an unchanged segment.
func (m *Model) Toggle(id ID) bool {
	idx, ok := m.lookup(id)
	if !ok {
		return false
	}
	it := &m.items[idx]
	if it.Kind == diff.Unchanged {
		return false
	}

	if it.State == StateRejected {
		it.State = it.prior
	} else {
		it.prior = it.State
		it.State = StateRejected
	}
	return true
}

// AcceptAll marks every change accepted.
func (m *Model) AcceptAll() {
	for i := range m.items {
		if m.items[i].Kind == diff.Unchanged {
			continue
		}
		m.items[i].State = StateAccepted
		m.items[i].prior = StateAccepted
	}
}

// RejectAll rejects every change, which drops all insertions and restores
// all deletions. Materializing afterwards yields the original text.
func (m *Model) RejectAll() {
	for i := range m.items {
		it := &m.items[i]
		if it.Kind == diff.Unchanged || it.State == StateRejected {
			continue
		}
		it.prior = it.State
		it.State = StateRejected
	}
}

// Materialize returns the merged text implied by the current decisions.
func (m *Model) Materialize() string {
	var sb strings.Builder
	for _, it := range m.items {
		if it.Included() {
			sb.WriteString(it.Text)
		}
	}
	return sb.String()
}

// Decision is the recorded state of one changed item, addressed by position
// so it can be replayed onto a model built from the same segments.
type Decision struct {
	Index int   `json:"index"`
	State State `json:"state"`
	// Prior is the state a rejected item returns to when toggled.
	Prior State `json:"prior,omitempty"`
}

// Decisions returns every change that is not plain pending, in order.
func (m *Model) Decisions() []Decision {
	var out []Decision
	for i, it := range m.items {
		if it.Kind == diff.Unchanged || (it.State == StatePending && it.prior == StatePending) {
			continue
		}
		out = append(out, Decision{Index: i, State: it.State, Prior: it.prior})
	}
	return out
}

// ApplyDecisions replays ds onto the model. Out of range indices and
// unchanged segments are ignored.
func (m *Model) ApplyDecisions(ds []Decision) {
	for _, d := range ds {
		if d.Index < 0 || d.Index >= len(m.items) {
			continue
		}
		it := &m.items[d.Index]
		if it.Kind == diff.Unchanged {
			continue
		}
		it.State = d.State
		it.prior = d.Prior
		if d.State != StateRejected {
			it.prior = d.State
		}
	}
}

// Summary counts decisions across the model.
type Summary struct {
	Changes  int `json:"changes"`
	Pending  int `json:"pending"`
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
	Restored int `json:"restored"`
}

// Stats summarizes the current decisions.
func (m *Model) Stats() Summary {
	var s Summary
	for _, it := range m.items {
		if it.Kind == diff.Unchanged {
			continue
		}
		s.Changes++
		switch it.State {
		case StatePending:
			s.Pending++
		case StateAccepted:
			s.Accepted++
		case StateRejected:
			s.Rejected++
			if it.Restored() {
				s.Restored++
			}
		}
	}
	return s
}
