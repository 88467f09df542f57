package db

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the prepared statement text for commit and draft rows.
type Queries struct {
	db DBTX
}

// New returns queries bound to db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx rebinds the queries to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Commit is a row of the commits table. Timestamps are unix milliseconds.
type Commit struct {
	ID         string
	DocumentID string
	Seq        int64
	ParentID   sql.NullString
	Content    string
	Message    string
	CreatedAt  int64
}

// Draft is a row of the drafts table.
type Draft struct {
	DocumentID string
	Content    string
	UpdatedAt  int64
}

// CommitSummary aggregates commits per document.
type CommitSummary struct {
	DocumentID string
	Commits    int64
	LastCommit int64
}

const insertCommit = `
INSERT INTO commits (id, document_id, seq, parent_id, content, message, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertCommit(ctx context.Context, c Commit) error {
	_, err := q.db.ExecContext(ctx, insertCommit,
		c.ID, c.DocumentID, c.Seq, c.ParentID, c.Content, c.Message, c.CreatedAt)
	return err
}

const countCommits = `SELECT COUNT(*) FROM commits WHERE document_id = ?`

func (q *Queries) CountCommits(ctx context.Context, documentID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countCommits, documentID).Scan(&n)
	return n, err
}

const listCommits = `
SELECT id, document_id, seq, parent_id, content, message, created_at
FROM commits
WHERE document_id = ?
ORDER BY seq`

func (q *Queries) ListCommits(ctx context.Context, documentID string) ([]Commit, error) {
	rows, err := q.db.QueryContext(ctx, listCommits, documentID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Commit
	for rows.Next() {
		var c Commit
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Seq, &c.ParentID, &c.Content, &c.Message, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const summarizeCommits = `
SELECT document_id, COUNT(*), MAX(created_at)
FROM commits
GROUP BY document_id
ORDER BY document_id`

func (q *Queries) SummarizeCommits(ctx context.Context) ([]CommitSummary, error) {
	rows, err := q.db.QueryContext(ctx, summarizeCommits)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []CommitSummary
	for rows.Next() {
		var s CommitSummary
		if err := rows.Scan(&s.DocumentID, &s.Commits, &s.LastCommit); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const upsertDraft = `
INSERT INTO drafts (document_id, content, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (document_id) DO UPDATE SET
    content = excluded.content,
    updated_at = excluded.updated_at`

func (q *Queries) UpsertDraft(ctx context.Context, d Draft) error {
	_, err := q.db.ExecContext(ctx, upsertDraft, d.DocumentID, d.Content, d.UpdatedAt)
	return err
}

const getDraft = `SELECT document_id, content, updated_at FROM drafts WHERE document_id = ?`

func (q *Queries) GetDraft(ctx context.Context, documentID string) (Draft, error) {
	var d Draft
	err := q.db.QueryRowContext(ctx, getDraft, documentID).Scan(&d.DocumentID, &d.Content, &d.UpdatedAt)
	return d, err
}

const deleteDraft = `DELETE FROM drafts WHERE document_id = ?`

func (q *Queries) DeleteDraft(ctx context.Context, documentID string) error {
	_, err := q.db.ExecContext(ctx, deleteDraft, documentID)
	return err
}

const listDrafts = `SELECT document_id, content, updated_at FROM drafts ORDER BY document_id`

func (q *Queries) ListDrafts(ctx context.Context) ([]Draft, error) {
	rows, err := q.db.QueryContext(ctx, listDrafts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Draft
	for rows.Next() {
		var d Draft
		if err := rows.Scan(&d.DocumentID, &d.Content, &d.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}
