// Package jsonfile persists document history as one JSON file per document.
package jsonfile

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/mindprints/diff-commit/internal/core/history"
)

const fileExt = ".json"

// DocumentFile is the root JSON structure stored on disk for one document.
type DocumentFile struct {
	DocumentID string           `json:"document_id"`
	Commits    []history.Commit `json:"commits"`
	Draft      *history.Draft   `json:"draft,omitempty"`
}

// HistoryStore implements history.Store using a directory of JSON files.
type HistoryStore struct {
	dir string
	mu  sync.RWMutex
}

var (
	_ history.Store     = (*HistoryStore)(nil)
	_ history.Documents = (*HistoryStore)(nil)
)

// NewHistoryStore creates a store rooted at dir. The directory is created on
// first write.
func NewHistoryStore(dir string) *HistoryStore {
	return &HistoryStore{dir: dir}
}

// SaveCommit appends c when its seq follows the stored log.
func (s *HistoryStore) SaveCommit(_ context.Context, c history.Commit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load(c.DocumentID)
	if err != nil {
		return err
	}
	if c.Seq != len(file.Commits)+1 {
		return fmt.Errorf("%w: seq %d, log has %d", history.ErrSeqConflict, c.Seq, len(file.Commits))
	}

	file.Commits = append(file.Commits, c)
	return s.save(file)
}

// LoadCommits returns the stored commits, oldest first.
func (s *HistoryStore) LoadCommits(_ context.Context, documentID string) ([]history.Commit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.load(documentID)
	if err != nil {
		return nil, err
	}
	return file.Commits, nil
}

// SaveDraft replaces the document's draft.
func (s *HistoryStore) SaveDraft(_ context.Context, d history.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load(d.DocumentID)
	if err != nil {
		return err
	}
	file.Draft = &d
	return s.save(file)
}

// LoadDraft returns history.ErrNoDraft when none is stored.
func (s *HistoryStore) LoadDraft(_ context.Context, documentID string) (history.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.load(documentID)
	if err != nil {
		return history.Draft{}, err
	}
	if file.Draft == nil {
		return history.Draft{}, history.ErrNoDraft
	}
	return *file.Draft, nil
}

// ClearDraft removes the draft. Documents without commits lose their file.
func (s *HistoryStore) ClearDraft(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load(documentID)
	if err != nil {
		return err
	}
	if file.Draft == nil {
		return nil
	}
	if len(file.Commits) == 0 {
		err := os.Remove(s.path(documentID))
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	file.Draft = nil
	return s.save(file)
}

// ListDocuments reads every document file in the directory.
func (s *HistoryStore) ListDocuments(_ context.Context) ([]history.DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var docs []history.DocumentInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}

		file, err := s.read(filepath.Join(s.dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		info := history.DocumentInfo{DocumentID: file.DocumentID, Commits: len(file.Commits)}
		if n := len(file.Commits); n > 0 {
			info.LastCommit = file.Commits[n-1].CreatedAt
		}
		if file.Draft != nil {
			info.HasDraft = true
			info.DraftUpdate = file.Draft.UpdatedAt
		}
		docs = append(docs, info)
	}

	slices.SortFunc(docs, func(a, b history.DocumentInfo) int {
		return cmp.Compare(a.DocumentID, b.DocumentID)
	})
	return docs, nil
}

// path maps a document ID to a file name. IDs are usually file paths, so
// they are escaped to a single path segment.
func (s *HistoryStore) path(documentID string) string {
	return filepath.Join(s.dir, url.PathEscape(documentID)+fileExt)
}

// load returns an empty file for unknown documents.
func (s *HistoryStore) load(documentID string) (DocumentFile, error) {
	file, err := s.read(s.path(documentID))
	if err != nil {
		if os.IsNotExist(err) {
			return DocumentFile{DocumentID: documentID}, nil
		}
		return DocumentFile{}, err
	}
	if file.DocumentID == "" {
		file.DocumentID = documentID
	}
	return file, nil
}

func (s *HistoryStore) read(path string) (DocumentFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DocumentFile{}, err
	}
	var file DocumentFile
	if len(data) == 0 {
		return file, nil
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return DocumentFile{}, err
	}
	return file, nil
}

// save writes the document file atomically.
func (s *HistoryStore) save(file DocumentFile) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}

	path := s.path(file.DocumentID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
