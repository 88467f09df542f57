// Package db owns the SQLite connection, schema migrations and the query
// layer for commit and draft rows.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// FileName is the database file created inside the data directory.
const FileName = "diffcommit.db"

// OpenOptions tunes the connection pool and retry behaviour.
type OpenOptions struct {
	MaxOpenConns int
	MaxIdleConns int
	BusyTimeout  time.Duration
	PingRetries  int
	PingWait     time.Duration
}

// DefaultOpenOptions returns the options used by the CLI.
func DefaultOpenOptions() OpenOptions {
	return OpenOptions{
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		BusyTimeout:  5 * time.Second,
		PingRetries:  5,
		PingWait:     100 * time.Millisecond,
	}
}

// DB wraps a SQL connection pool and its queries.
type DB struct {
	conn    *sql.DB
	queries *Queries
}

// Open opens (creating if needed) the database in dataDir and applies
// pending migrations.
func Open(dataDir string, opts OpenOptions) (*DB, error) {
	path := filepath.Join(dataDir, FileName)
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)",
		path, opts.BusyTimeout.Milliseconds())

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(opts.MaxOpenConns)
	conn.SetMaxIdleConns(opts.MaxIdleConns)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn, queries: New(conn)}

	ctx := context.Background()
	if err := db.ping(ctx, opts); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := migrateUp(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn exposes the underlying pool for migrations and tests.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Queries returns the non-transactional query set.
func (db *DB) Queries() *Queries {
	return db.queries
}

// WithTx runs fn inside a transaction, rolling back when fn fails.
func (db *DB) WithTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(db.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ping retries with exponential backoff.
func (db *DB) ping(ctx context.Context, opts OpenOptions) error {
	retries := max(opts.PingRetries, 1)
	wait := opts.PingWait
	var err error
	for i := range retries {
		if err = db.conn.PingContext(ctx); err == nil {
			return nil
		}
		if i < retries-1 {
			time.Sleep(wait)
			wait *= 2
		}
	}
	return fmt.Errorf("ping failed after %d attempts: %w", retries, err)
}
