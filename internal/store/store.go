// Package store is the storage gateway for ClipHub. It owns the SQLite
// database, schema migrations, and the handles that units of work use to
// talk to it.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// Migration is a single versioned schema change.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// SQLiteStore is the process-wide connection pool backed by SQLite via
// modernc.org/sqlite. Callers never query it directly; they Open a Handle.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// New opens (or creates) a SQLite database at the given path and applies
// recommended pragmas for WAL mode, foreign keys, and performance. The parent
// directory of path is created if it does not exist.
func New(path string) (*SQLiteStore, error) {
	if isFilePath(path) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// SQLite performs best with a single write connection. WAL enables concurrent readers.
	db.SetMaxOpenConns(1)

	// Verify the connection works.
	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}

	// Apply recommended pragmas (modernc.org/sqlite requires SQL statements, not DSN params).
	// busy_timeout is the retry policy for lock contention.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA cache_size=-20000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the location the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Open returns a handle for the unit of work carried by ctx. If ctx belongs
// to a scope (see WithScope) that already holds a handle for this store, that
// handle is returned. Without a scope the caller owns the handle and must
// Close it.
func (s *SQLiteStore) Open(ctx context.Context) (*Handle, error) {
	sc := scopeFrom(ctx)
	if sc == nil {
		return s.acquire(ctx, false)
	}
	return sc.handle(ctx, s)
}

func (s *SQLiteStore) acquire(ctx context.Context, scoped bool) (*Handle, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire sqlite connection: %w", err)
	}
	return &Handle{conn: conn, scoped: scoped}, nil
}

// Migrate runs pending migrations for the named component on a dedicated
// handle. Already-applied migrations (tracked in the shared _migrations
// table) are skipped. Every statement involved is idempotent, so calling
// Migrate again is safe. Migrations must be provided in ascending Version
// order.
func (s *SQLiteStore) Migrate(ctx context.Context, name string, migrations []Migration) error {
	h, err := s.acquire(ctx, false)
	if err != nil {
		return err
	}
	defer h.Close()

	if err := ensureMigrationsTable(ctx, h); err != nil {
		return err
	}

	for _, m := range migrations {
		applied, err := isMigrationApplied(ctx, h, name, m.Version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		if err := applyMigration(ctx, h, name, m); err != nil {
			return fmt.Errorf("migration %s/%d (%s): %w", name, m.Version, m.Description, err)
		}
	}

	return nil
}

// Checkpoint flushes the WAL into the main database file so the file alone
// is a consistent copy.
func (s *SQLiteStore) Checkpoint(ctx context.Context) error {
	h, err := s.acquire(ctx, false)
	if err != nil {
		return err
	}
	defer h.Close()

	if _, err := h.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable. It waits for the pooled
// connection, so it must not be called while holding a scoped handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection pool.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ensureMigrationsTable creates the shared _migrations tracking table if it
// doesn't already exist.
func ensureMigrationsTable(ctx context.Context, h *Handle) error {
	_, err := h.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _migrations (
			component TEXT    NOT NULL,
			version     INTEGER NOT NULL,
			description TEXT    NOT NULL,
			applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (component, version)
		)
	`)
	if err != nil {
		return fmt.Errorf("create _migrations table: %w", err)
	}
	return nil
}

func isMigrationApplied(ctx context.Context, h *Handle, name string, version int) (bool, error) {
	var count int
	err := h.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM _migrations WHERE component = ? AND version = ?",
		name, version,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check migration %s/%d: %w", name, version, err)
	}
	return count > 0, nil
}

func applyMigration(ctx context.Context, h *Handle, name string, m Migration) error {
	return h.Tx(ctx, func(tx *sql.Tx) error {
		if err := m.Up(tx); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO _migrations (component, version, description) VALUES (?, ?, ?)",
			name, m.Version, m.Description,
		)
		return err
	})
}

// isFilePath reports whether path names a file on disk rather than an
// in-memory database or a URI.
func isFilePath(path string) bool {
	return path != "" && path != ":memory:" && !strings.HasPrefix(path, "file:")
}
