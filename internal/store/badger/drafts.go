// Package badger keeps recovery drafts in an embedded BadgerDB, separate from
// the commit log so autosave writes never contend with checkpoints.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/mindprints/diff-commit/internal/core/history"
)

const keyPrefix = "draft/"

// Config controls how the draft database is opened.
type Config struct {
	Path       string
	InMemory   bool
	SyncWrites bool
	// GCInterval runs value log GC periodically. Zero disables it.
	GCInterval     time.Duration
	GCDiscardRatio float64
	Logger         zerolog.Logger
}

// DefaultConfig returns a persistent configuration rooted at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
		Logger:         zerolog.Nop(),
	}
}

// InMemoryConfig is used by tests.
func InMemoryConfig() Config {
	return Config{InMemory: true, Logger: zerolog.Nop()}
}

// DraftStore implements history.DraftSlot.
type DraftStore struct {
	db     *badger.DB
	logger zerolog.Logger
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

var _ history.DraftSlot = (*DraftStore)(nil)

// Open opens the database described by cfg.
func Open(cfg Config) (*DraftStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent draft store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create draft directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&logAdapter{logger: cfg.Logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open draft store: %w", err)
	}

	s := &DraftStore{
		db:     db,
		logger: cfg.Logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		go s.gcLoop(cfg.GCInterval, cfg.GCDiscardRatio)
	} else {
		close(s.done)
	}
	return s, nil
}

// Close stops GC and closes the database.
func (s *DraftStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	<-s.done
	return s.db.Close()
}

// SaveDraft replaces the draft for the document.
func (s *DraftStore) SaveDraft(_ context.Context, d history.Draft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(d.DocumentID), data)
	})
}

// LoadDraft returns history.ErrNoDraft when the document has none.
func (s *DraftStore) LoadDraft(_ context.Context, documentID string) (history.Draft, error) {
	var d history.Draft
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(documentID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &d)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return history.Draft{}, history.ErrNoDraft
	}
	if err != nil {
		return history.Draft{}, fmt.Errorf("load draft: %w", err)
	}
	return d, nil
}

// ClearDraft deletes the draft. Missing drafts are ignored.
func (s *DraftStore) ClearDraft(_ context.Context, documentID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(documentID))
	})
}

// ListDrafts returns every stored draft ordered by document ID.
func (s *DraftStore) ListDrafts(_ context.Context) ([]history.Draft, error) {
	var drafts []history.Draft
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var d history.Draft
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &d)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			drafts = append(drafts, d)
		}
		return nil
	})
	return drafts, err
}

func (s *DraftStore) gcLoop(interval time.Duration, ratio float64) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn().Err(err).Msg("draft store value log GC failed")
			}
		}
	}
}

func key(documentID string) []byte {
	return []byte(keyPrefix + documentID)
}

// logAdapter routes badger's logger through zerolog. Info output is demoted
// to debug; badger is chatty at startup.
type logAdapter struct {
	logger zerolog.Logger
}

func (l *logAdapter) Errorf(format string, args ...any) {
	l.logger.Error().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *logAdapter) Warningf(format string, args ...any) {
	l.logger.Warn().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *logAdapter) Infof(format string, args ...any) {
	l.logger.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *logAdapter) Debugf(format string, args ...any) {
	l.logger.Trace().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
