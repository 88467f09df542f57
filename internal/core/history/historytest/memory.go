// Package historytest provides an in-memory history.Store for tests.
package historytest

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/mindprints/diff-commit/internal/core/history"
)

// Memory is a history.Store backed by maps. Setting FailCommits or
// FailDrafts makes the matching calls return that error.
type Memory struct {
	mu      sync.Mutex
	commits map[string][]history.Commit
	drafts  map[string]history.Draft

	FailCommits error
	FailDrafts  error
}

var (
	_ history.Store     = (*Memory)(nil)
	_ history.Documents = (*Memory)(nil)
)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		commits: make(map[string][]history.Commit),
		drafts:  make(map[string]history.Draft),
	}
}

// SetFailCommits sets the error returned by commit calls.
func (m *Memory) SetFailCommits(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailCommits = err
}

// SetFailDrafts sets the error returned by draft calls.
func (m *Memory) SetFailDrafts(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailDrafts = err
}

func (m *Memory) SaveCommit(_ context.Context, c history.Commit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCommits != nil {
		return m.FailCommits
	}
	existing := m.commits[c.DocumentID]
	if c.Seq != len(existing)+1 {
		return fmt.Errorf("%w: seq %d for %s", history.ErrSeqConflict, c.Seq, c.DocumentID)
	}
	m.commits[c.DocumentID] = append(existing, c)
	return nil
}

func (m *Memory) LoadCommits(_ context.Context, documentID string) ([]history.Commit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCommits != nil {
		return nil, m.FailCommits
	}
	return slices.Clone(m.commits[documentID]), nil
}

func (m *Memory) SaveDraft(_ context.Context, d history.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDrafts != nil {
		return m.FailDrafts
	}
	m.drafts[d.DocumentID] = d
	return nil
}

func (m *Memory) LoadDraft(_ context.Context, documentID string) (history.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDrafts != nil {
		return history.Draft{}, m.FailDrafts
	}
	d, ok := m.drafts[documentID]
	if !ok {
		return history.Draft{}, history.ErrNoDraft
	}
	return d, nil
}

func (m *Memory) ClearDraft(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDrafts != nil {
		return m.FailDrafts
	}
	delete(m.drafts, documentID)
	return nil
}

func (m *Memory) ListDocuments(_ context.Context) ([]history.DocumentInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]*history.DocumentInfo)
	for id, cs := range m.commits {
		info := &history.DocumentInfo{DocumentID: id, Commits: len(cs)}
		if len(cs) > 0 {
			info.LastCommit = cs[len(cs)-1].CreatedAt
		}
		seen[id] = info
	}
	for id, d := range m.drafts {
		info, ok := seen[id]
		if !ok {
			info = &history.DocumentInfo{DocumentID: id}
			seen[id] = info
		}
		info.HasDraft = true
		info.DraftUpdate = d.UpdatedAt
	}

	out := make([]history.DocumentInfo, 0, len(seen))
	for _, info := range seen {
		out = append(out, *info)
	}
	slices.SortFunc(out, func(a, b history.DocumentInfo) int {
		return cmp.Compare(a.DocumentID, b.DocumentID)
	})
	return out, nil
}

// Draft returns the stored draft without going through the interface.
func (m *Memory) Draft(documentID string) (history.Draft, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[documentID]
	return d, ok
}
