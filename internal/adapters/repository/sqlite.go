package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS preferences (
	client_id  TEXT PRIMARY KEY,
	dark_mode  INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore persists preferences in a SQLite database.
type SQLiteStore struct {
	cfg    storeConfig
	conn   *sql.DB
	path   string
	closed atomic.Bool
}

var _ PreferenceStore = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path with WAL mode
// and ensures the schema exists. ":memory:" gives a private database.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	conn.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("setting WAL mode: %w", err)
		}
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{cfg: newStoreConfig(opts), conn: conn, path: path}, nil
}

// Path returns the database location.
func (s *SQLiteStore) Path() string { return s.path }

// Get implements PreferenceStore.
func (s *SQLiteStore) Get(ctx context.Context, clientID string) (Preference, error) {
	if s.closed.Load() {
		return Preference{}, ErrClosed
	}
	if !validClientID(clientID) {
		return Preference{}, fmt.Errorf("%w: %q", ErrInvalidClientID, clientID)
	}
	var (
		dark    int
		updated int64
	)
	err := s.conn.QueryRowContext(ctx,
		"SELECT dark_mode, updated_at FROM preferences WHERE client_id = ?", clientID,
	).Scan(&dark, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Preference{}, ErrNotFound
	}
	if err != nil {
		return Preference{}, fmt.Errorf("query preference %s: %w", clientID, err)
	}
	return Preference{
		ClientID:  clientID,
		DarkMode:  dark != 0,
		UpdatedAt: time.UnixMilli(updated).UTC(),
	}, nil
}

// Put implements PreferenceStore.
func (s *SQLiteStore) Put(ctx context.Context, p Preference) (Preference, error) {
	if s.closed.Load() {
		return Preference{}, ErrClosed
	}
	if !validClientID(p.ClientID) {
		return Preference{}, fmt.Errorf("%w: %q", ErrInvalidClientID, p.ClientID)
	}
	p.UpdatedAt = s.cfg.now().UTC().Truncate(time.Millisecond)
	dark := 0
	if p.DarkMode {
		dark = 1
	}
	_, err := s.conn.ExecContext(ctx, `
INSERT INTO preferences (client_id, dark_mode, updated_at) VALUES (?, ?, ?)
ON CONFLICT(client_id) DO UPDATE SET dark_mode = excluded.dark_mode, updated_at = excluded.updated_at`,
		p.ClientID, dark, p.UpdatedAt.UnixMilli())
	if err != nil {
		return Preference{}, fmt.Errorf("store preference %s: %w", p.ClientID, err)
	}
	return p, nil
}

// Close implements PreferenceStore.
func (s *SQLiteStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.conn.Close()
}
