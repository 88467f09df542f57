package diffcommit

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/rs/zerolog"

	"github.com/mindprints/diff-commit/internal/core/config"
	"github.com/mindprints/diff-commit/internal/core/doctor"
	"github.com/mindprints/diff-commit/internal/core/history"
	"github.com/mindprints/diff-commit/internal/core/logging"
	"github.com/mindprints/diff-commit/internal/data/db"
	"github.com/mindprints/diff-commit/internal/data/stores"
	badgerstore "github.com/mindprints/diff-commit/internal/store/badger"
	"github.com/mindprints/diff-commit/internal/store/jsonfile"
)

// storage is the set of persistence collaborators selected by the config.
type storage struct {
	store   history.Store
	docs    history.Documents
	drafts  *badgerstore.DraftStore // nil unless storage.drafts is badger
	db      *db.DB                  // nil for the json backend
	info    doctor.StorageInfo
	closers []func() error
}

func openStorage(cfg *config.Config, log zerolog.Logger) (*storage, error) {
	s := &storage{info: doctor.StorageInfo{Backend: cfg.Storage.Backend, Drafts: cfg.Storage.Drafts}}

	switch cfg.Storage.Backend {
	case config.BackendJSON:
		js := jsonfile.NewHistoryStore(cfg.HistoryDir())
		s.store, s.docs = js, js
	default:
		database, err := openDatabase(cfg.DataDir, log)
		if err != nil {
			return nil, err
		}
		hs := stores.NewHistoryStore(database)
		s.store, s.docs = hs, hs
		s.db = database
		s.closers = append(s.closers, database.Close)
	}

	if cfg.Storage.Drafts == config.DraftsBadger {
		bcfg := badgerstore.DefaultConfig(cfg.DraftsDir())
		bcfg.Logger = logging.Component("badger")
		drafts, err := badgerstore.Open(bcfg)
		if err != nil {
			_ = s.close()
			return nil, err
		}
		s.drafts = drafts
		s.store = history.Combine(s.store, drafts)
		s.closers = append(s.closers, drafts.Close)
	}

	return s, nil
}

// openDatabase opens the SQLite database, moving a corrupt file aside and
// starting fresh when it cannot be read.
func openDatabase(dataDir string, log zerolog.Logger) (*db.DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	database, err := db.Open(dataDir, db.DefaultOpenOptions())
	if err == nil {
		return database, nil
	}
	if !stores.IsCorruptionError(err) {
		return nil, err
	}

	backup, rerr := stores.RecoverFromCorruption(dataDir)
	if rerr != nil {
		return nil, errors.Join(err, rerr)
	}
	log.Warn().Err(err).Str("backup", backup).Msg("database was corrupt, moved aside and recreated")

	return db.Open(dataDir, db.DefaultOpenOptions())
}

// listDocuments lists the backend's documents and folds in drafts held in
// the separate draft store.
func (s *storage) listDocuments(ctx context.Context) ([]history.DocumentInfo, error) {
	docs, err := s.docs.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	if s.drafts == nil {
		return docs, nil
	}

	drafts, err := s.drafts.ListDrafts(ctx)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(docs))
	for i, d := range docs {
		index[d.DocumentID] = i
	}
	for _, d := range drafts {
		i, ok := index[d.DocumentID]
		if !ok {
			docs = append(docs, history.DocumentInfo{DocumentID: d.DocumentID})
			i = len(docs) - 1
			index[d.DocumentID] = i
		}
		docs[i].HasDraft = true
		docs[i].DraftUpdate = d.UpdatedAt
	}

	slices.SortFunc(docs, func(a, b history.DocumentInfo) int {
		return cmp.Compare(a.DocumentID, b.DocumentID)
	})
	return docs, nil
}

func (s *storage) describe(ctx context.Context) (doctor.StorageInfo, error) {
	info := s.info
	if s.db == nil {
		return info, nil
	}

	var err error
	if info.SchemaVersion, err = db.SchemaVersion(ctx, s.db.Conn()); err != nil {
		return info, err
	}
	if info.LatestSchema, err = db.LatestVersion(); err != nil {
		return info, err
	}
	return info, nil
}

func (s *storage) close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}
