package db

import (
	"cmp"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mindprints/diff-commit/internal/core/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migration is one schema version: the SQL that applies it and the SQL that
// takes it back out.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// migrationFile is a parsed "NNNN_name.up.sql" or "NNNN_name.down.sql".
type migrationFile struct {
	version int
	name    string
	up      bool
}

func (f migrationFile) direction() string {
	if f.up {
		return "up"
	}
	return "down"
}

func loadMigrations() ([]Migration, error) {
	return parseMigrations(migrationsFS, "migrations")
}

// parseMigrations reads every file in dir. Each version must have exactly
// one up and one down file. The result is ordered by version.
func parseMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		f, err := parseFilename(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("invalid migration filename %q: %w", entry.Name(), err)
		}

		body, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		m, ok := byVersion[f.version]
		if !ok {
			m = &Migration{Version: f.version, Name: f.name}
			byVersion[f.version] = m
		}

		slot := &m.DownSQL
		if f.up {
			slot = &m.UpSQL
			m.Name = f.name
		}
		if *slot != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %04d", f.direction(), f.version)
		}
		*slot = string(body)
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		switch {
		case m.UpSQL == "":
			return nil, fmt.Errorf("migration %04d has down file but no up file", m.Version)
		case m.DownSQL == "":
			return nil, fmt.Errorf("migration %04d has up file but no down file", m.Version)
		}
		out = append(out, *m)
	}

	slices.SortFunc(out, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return out, nil
}

func parseFilename(filename string) (migrationFile, error) {
	var f migrationFile

	stem, ok := strings.CutSuffix(filename, ".up.sql")
	if ok {
		f.up = true
	} else if stem, ok = strings.CutSuffix(filename, ".down.sql"); !ok {
		return f, fmt.Errorf("expected .up.sql or .down.sql suffix, got %q", filename)
	}

	num, name, found := strings.Cut(stem, "_")
	if !found || name == "" {
		return f, errors.New("expected format NNNN_name.{up,down}.sql")
	}

	version, err := strconv.Atoi(num)
	if err != nil {
		return f, fmt.Errorf("version %q is not a valid integer: %w", num, err)
	}
	if version <= 0 {
		return f, fmt.Errorf("version must be positive, got %d", version)
	}

	f.version = version
	f.name = name
	return f, nil
}

// migrateUp applies every migration not yet recorded in schema_migrations.
func migrateUp(ctx context.Context, conn *sql.DB) error {
	migrations, applied, err := migrationState(ctx, conn)
	if err != nil {
		return err
	}

	log := logging.Component("db")
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("applying migration")
		err := inTx(ctx, conn, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
				return fmt.Errorf("executing SQL: %w", err)
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
				m.Version, m.Name, time.Now().UnixNano(),
			)
			if err != nil {
				return fmt.Errorf("recording migration: %w", err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("migration %04d (%s): %w", m.Version, m.Name, err)
		}
	}

	return nil
}

// MigrateDown reverts the newest n applied migrations, newest first.
func MigrateDown(ctx context.Context, conn *sql.DB, n int) error {
	if n <= 0 {
		return fmt.Errorf("n must be positive, got %d", n)
	}

	migrations, applied, err := migrationState(ctx, conn)
	if err != nil {
		return err
	}

	var revert []Migration
	for _, m := range slices.Backward(migrations) {
		if applied[m.Version] {
			revert = append(revert, m)
		}
	}
	if n > len(revert) {
		return fmt.Errorf("requested %d down migrations but only %d are applied", n, len(revert))
	}

	log := logging.Component("db")
	for _, m := range revert[:n] {
		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("reverting migration")
		err := inTx(ctx, conn, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.DownSQL); err != nil {
				return fmt.Errorf("executing SQL: %w", err)
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", m.Version); err != nil {
				return fmt.Errorf("removing migration record: %w", err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("revert migration %04d (%s): %w", m.Version, m.Name, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration version, or 0 for an
// empty database.
func SchemaVersion(ctx context.Context, conn *sql.DB) (int, error) {
	if err := ensureMigrationsTable(ctx, conn); err != nil {
		return 0, err
	}
	var v sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("querying schema version: %w", err)
	}
	return int(v.Int64), nil
}

func migrationState(ctx context.Context, conn *sql.DB) ([]Migration, map[int]bool, error) {
	migrations, err := loadMigrations()
	if err != nil {
		return nil, nil, fmt.Errorf("loading migrations: %w", err)
	}
	if err := ensureMigrationsTable(ctx, conn); err != nil {
		return nil, nil, err
	}

	rows, err := conn.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, nil, fmt.Errorf("querying applied versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, nil, fmt.Errorf("scanning version: %w", err)
		}
		applied[v] = true
	}
	return migrations, applied, rows.Err()
}

func ensureMigrationsTable(ctx context.Context, conn *sql.DB) error {
	_, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}
	return nil
}

func inTx(ctx context.Context, conn *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// LatestVersion returns the version of the newest embedded migration.
func LatestVersion() (int, error) {
	migrations, err := loadMigrations()
	if err != nil {
		return 0, err
	}
	if len(migrations) == 0 {
		return 0, nil
	}
	return migrations[len(migrations)-1].Version, nil
}
