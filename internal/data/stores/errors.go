package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mindprints/diff-commit/internal/data/db"
)

// IsBusyError reports whether err is SQLITE_BUSY or SQLITE_LOCKED.
func IsBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return false
}

// IsConstraintError reports whether err is a uniqueness or primary key
// violation.
func IsConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT ||
			code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// IsCorruptionError reports whether err indicates an unreadable database.
func IsCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CORRUPT ||
			code == sqlite3.SQLITE_NOTADB ||
			code == sqlite3.SQLITE_CANTOPEN
	}

	msg := err.Error()
	return strings.Contains(msg, "database disk image is malformed") ||
		strings.Contains(msg, "file is not a database") ||
		strings.Contains(msg, "database corruption")
}

// IsNotFoundError reports whether err is sql.ErrNoRows.
func IsNotFoundError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// retryBusy runs fn until it succeeds, fails with a non-busy error, or the
// attempts run out.
func retryBusy(ctx context.Context, attempts int, fn func() error) error {
	wait := 20 * time.Millisecond
	var err error
	for i := range attempts {
		if err = fn(); err == nil || !IsBusyError(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}

// RecoverFromCorruption moves the database in dataDir aside, along with its
// WAL and SHM files, so the next Open starts from an empty database. It
// returns the backup path.
func RecoverFromCorruption(dataDir string) (string, error) {
	dbPath := filepath.Join(dataDir, db.FileName)
	backupPath := fmt.Sprintf("%s.corrupt.%s", dbPath, time.Now().Format("20060102-150405"))

	if err := os.Rename(dbPath, backupPath); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("backup corrupted database: %w", err)
	}

	// Orphaned WAL/SHM files would be replayed against the new database.
	for _, suffix := range []string{"-wal", "-shm"} {
		src := dbPath + suffix
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := os.Rename(src, backupPath+suffix); err != nil {
			if delErr := os.Remove(src); delErr != nil {
				return "", fmt.Errorf("backup or remove %s file: %w", strings.TrimPrefix(suffix, "-"), err)
			}
		}
	}

	return backupPath, nil
}
