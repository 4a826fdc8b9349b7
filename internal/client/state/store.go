// Package state persists the only values that survive a sync run: the
// watermark and the remote sync-root id.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/vaultsync/vaultsync/internal/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_state (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

const (
	keyWatermark    = "watermark"
	keyRemoteRootID = "remote_root_id"
)

// Store is a small SQLite-backed key/value store implementing the core's
// StateStore port.
type Store struct {
	db     *sqlx.DB
	dbPath string
}

// New creates a Store; Open must be called before use.
func New(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

// Open connects the underlying database and initializes the schema.
func (s *Store) Open() error {
	if s.db != nil {
		return fmt.Errorf("state store already open")
	}

	conn, err := db.NewSqliteDb(db.WithPath(s.dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return fmt.Errorf("initialize state schema: %w", err)
	}

	s.db = conn
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return fmt.Errorf("state store not open")
	}
	return s.db.Close()
}

// Watermark returns the persisted watermark in unix millis, zero when no
// successful sync has happened yet.
func (s *Store) Watermark() (int64, error) {
	value, err := s.get(keyWatermark)
	if err != nil {
		return 0, err
	}
	if value == "" {
		return 0, nil
	}

	ts, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt watermark %q: %w", value, err)
	}
	return ts, nil
}

// SetWatermark persists a new watermark.
func (s *Store) SetWatermark(ts int64) error {
	return s.set(keyWatermark, strconv.FormatInt(ts, 10))
}

// RemoteRootID returns the cached sync-root container id, empty when the
// root has not been created yet.
func (s *Store) RemoteRootID() (string, error) {
	return s.get(keyRemoteRootID)
}

// SetRemoteRootID persists the sync-root container id.
func (s *Store) SetRemoteRootID(id string) error {
	return s.set(keyRemoteRootID, id)
}

func (s *Store) get(key string) (string, error) {
	var value string
	err := s.db.Get(&value, "SELECT value FROM sync_state WHERE key = ?", key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("query state %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) set(key, value string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO sync_state (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		return fmt.Errorf("set state %q: %w", key, err)
	}
	return nil
}
