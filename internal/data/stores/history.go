package stores

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/mindprints/diff-commit/internal/core/history"
	"github.com/mindprints/diff-commit/internal/data/db"
)

const busyAttempts = 5

// HistoryStore implements history.Store and history.Documents using SQLite.
type HistoryStore struct {
	db *db.DB
}

var (
	_ history.Store     = (*HistoryStore)(nil)
	_ history.Documents = (*HistoryStore)(nil)
)

// NewHistoryStore creates a SQLite-backed history store.
func NewHistoryStore(db *db.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// SaveCommit appends c after checking it extends the document's log.
func (s *HistoryStore) SaveCommit(ctx context.Context, c history.Commit) error {
	return retryBusy(ctx, busyAttempts, func() error {
		return s.db.WithTx(ctx, func(q *db.Queries) error {
			n, err := q.CountCommits(ctx, c.DocumentID)
			if err != nil {
				return fmt.Errorf("failed to count commits: %w", err)
			}
			if int64(c.Seq) != n+1 {
				return fmt.Errorf("%w: seq %d, log has %d", history.ErrSeqConflict, c.Seq, n)
			}

			err = q.InsertCommit(ctx, db.Commit{
				ID:         c.ID,
				DocumentID: c.DocumentID,
				Seq:        int64(c.Seq),
				ParentID:   sql.NullString{String: c.ParentID, Valid: c.ParentID != ""},
				Content:    c.Content,
				Message:    c.Message,
				CreatedAt:  c.CreatedAt.UnixMilli(),
			})
			if IsConstraintError(err) {
				return fmt.Errorf("%w: %v", history.ErrSeqConflict, err)
			}
			if err != nil {
				return fmt.Errorf("failed to insert commit: %w", err)
			}
			return nil
		})
	})
}

// LoadCommits returns the document's commits ordered by seq.
func (s *HistoryStore) LoadCommits(ctx context.Context, documentID string) ([]history.Commit, error) {
	var rows []db.Commit
	err := retryBusy(ctx, busyAttempts, func() error {
		var err error
		rows, err = s.db.Queries().ListCommits(ctx, documentID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list commits: %w", err)
	}

	commits := make([]history.Commit, 0, len(rows))
	for _, row := range rows {
		commits = append(commits, rowToCommit(row))
	}
	return commits, nil
}

// SaveDraft replaces the document's draft.
func (s *HistoryStore) SaveDraft(ctx context.Context, d history.Draft) error {
	err := retryBusy(ctx, busyAttempts, func() error {
		return s.db.Queries().UpsertDraft(ctx, db.Draft{
			DocumentID: d.DocumentID,
			Content:    d.Content,
			UpdatedAt:  d.UpdatedAt.UnixMilli(),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// LoadDraft returns history.ErrNoDraft when the document has no draft.
func (s *HistoryStore) LoadDraft(ctx context.Context, documentID string) (history.Draft, error) {
	row, err := s.db.Queries().GetDraft(ctx, documentID)
	if IsNotFoundError(err) {
		return history.Draft{}, history.ErrNoDraft
	}
	if err != nil {
		return history.Draft{}, fmt.Errorf("failed to get draft: %w", err)
	}
	return rowToDraft(row), nil
}

// ClearDraft deletes the document's draft, if any.
func (s *HistoryStore) ClearDraft(ctx context.Context, documentID string) error {
	err := retryBusy(ctx, busyAttempts, func() error {
		return s.db.Queries().DeleteDraft(ctx, documentID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// ListDocuments merges commit summaries with drafts, sorted by document ID.
func (s *HistoryStore) ListDocuments(ctx context.Context) ([]history.DocumentInfo, error) {
	summaries, err := s.db.Queries().SummarizeCommits(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize commits: %w", err)
	}
	drafts, err := s.db.Queries().ListDrafts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}

	byID := make(map[string]*history.DocumentInfo, len(summaries))
	for _, sum := range summaries {
		byID[sum.DocumentID] = &history.DocumentInfo{
			DocumentID: sum.DocumentID,
			Commits:    int(sum.Commits),
			LastCommit: time.UnixMilli(sum.LastCommit),
		}
	}
	for _, d := range drafts {
		info, ok := byID[d.DocumentID]
		if !ok {
			info = &history.DocumentInfo{DocumentID: d.DocumentID}
			byID[d.DocumentID] = info
		}
		info.HasDraft = true
		info.DraftUpdate = time.UnixMilli(d.UpdatedAt)
	}

	docs := make([]history.DocumentInfo, 0, len(byID))
	for _, info := range byID {
		docs = append(docs, *info)
	}
	slices.SortFunc(docs, func(a, b history.DocumentInfo) int {
		return cmp.Compare(a.DocumentID, b.DocumentID)
	})
	return docs, nil
}

func rowToCommit(row db.Commit) history.Commit {
	return history.Commit{
		ID:         row.ID,
		DocumentID: row.DocumentID,
		Seq:        int(row.Seq),
		ParentID:   row.ParentID.String,
		Content:    row.Content,
		Message:    row.Message,
		CreatedAt:  time.UnixMilli(row.CreatedAt),
	}
}

func rowToDraft(row db.Draft) history.Draft {
	return history.Draft{
		DocumentID: row.DocumentID,
		Content:    row.Content,
		UpdatedAt:  time.UnixMilli(row.UpdatedAt),
	}
}
