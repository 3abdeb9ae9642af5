// Package storage keeps the persisted tab, group and folder records in a
// local SQLite database.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// migration is a numbered schema change. Migrations are applied in order
// and tracked in the schema_migrations table so each runs exactly once.
type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "key-value records",
		SQL: `
CREATE TABLE IF NOT EXISTS kv (
    namespace   TEXT NOT NULL,
    key         TEXT NOT NULL,
    value       BLOB NOT NULL,
    updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (namespace, key)
);`,
	},
	{
		Version:     2,
		Description: "window state snapshots",
		SQL: `
CREATE TABLE IF NOT EXISTS window_states (
    window_id       INTEGER NOT NULL,
    space_id        TEXT NOT NULL,
    active_tab_id   TEXT NOT NULL DEFAULT '',
    focused_tab_id  TEXT NOT NULL DEFAULT '',
    updated_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (window_id, space_id)
);`,
	},
}

// OpenDB opens (or creates) a SQLite database at the given path.
// It creates parent directories if needed, enables WAL mode, and runs any
// pending migrations.
func OpenDB(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode so the inspector can read while the saver writes.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// runMigrations ensures the schema_migrations table exists and runs any
// pending migrations.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if exists > 0 {
			continue
		}

		if _, err := db.Exec(m.SQL); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := db.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// DefaultDBPath returns the default database file path:
// ~/.local/share/flowtabs/flowtabs.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "flowtabs", "flowtabs.db"), nil
}

// Store wraps an open database.
type Store struct {
	db *sql.DB
}

// Open opens the database at path.
func Open(path string) (*Store, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) DB() *sql.DB  { return s.db }
func (s *Store) Close() error { return s.db.Close() }

// Namespace returns the key-value view of one record namespace.
func (s *Store) Namespace(name string) *Namespace {
	return &Namespace{db: s.db, name: name}
}

// Namespace is a key-value table slice. Values are opaque bytes.
type Namespace struct {
	db   *sql.DB
	name string
}

func (n *Namespace) Name() string { return n.name }

// Get returns the value stored under key, or ok=false.
func (n *Namespace) Get(ctx context.Context, key string) (value []byte, ok bool, err error) {
	err = n.db.QueryRowContext(ctx,
		"SELECT value FROM kv WHERE namespace = ? AND key = ?", n.name, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", n.name, key, err)
	}
	return value, true, nil
}

// Set inserts or replaces the value under key.
func (n *Namespace) Set(ctx context.Context, key string, value []byte) error {
	_, err := n.db.ExecContext(ctx, `
INSERT INTO kv (namespace, key, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		n.name, key, value)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", n.name, key, err)
	}
	return nil
}

// GetAll returns every value of the namespace keyed by key.
func (n *Namespace) GetAll(ctx context.Context) (map[string][]byte, error) {
	rows, err := n.db.QueryContext(ctx, "SELECT key, value FROM kv WHERE namespace = ? ORDER BY key", n.name)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", n.name, err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan %s: %w", n.name, err)
		}
		out[key] = value
	}
	return out, rows.Err()
}

// Remove deletes key. It reports whether anything was deleted.
func (n *Namespace) Remove(ctx context.Context, key string) (bool, error) {
	res, err := n.db.ExecContext(ctx, "DELETE FROM kv WHERE namespace = ? AND key = ?", n.name, key)
	if err != nil {
		return false, fmt.Errorf("remove %s/%s: %w", n.name, key, err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// Wipe deletes the whole namespace.
func (n *Namespace) Wipe(ctx context.Context) error {
	if _, err := n.db.ExecContext(ctx, "DELETE FROM kv WHERE namespace = ?", n.name); err != nil {
		return fmt.Errorf("wipe %s: %w", n.name, err)
	}
	return nil
}
