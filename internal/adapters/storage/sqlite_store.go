package storage

import (
	"context"
	"fmt"
	"sync"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/harborapp/telemetry/internal/domain/providers"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS telemetry_state (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);
`

// SQLiteStore implements the StateStore interface on a single SQLite file.
// It survives power loss better than plain files and keeps all state keys
// in one place, at the cost of a compiled-in sqlite. A single connection is
// enough: the store sees one small read or write at a time, always under
// the owning component's lock.
type SQLiteStore struct {
	mu   sync.Mutex
	conn *sqlite.Conn
}

// NewSQLiteStore opens (and if needed creates) the database at path.
func NewSQLiteStore(path string) (providers.StateStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store path is required")
	}
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite|sqlite.OpenCreate|sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	if err := sqlitex.ExecuteScript(conn, sqliteSchema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}
	return &SQLiteStore{conn: conn}, nil
}

// Get retrieves the value for a key, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value []byte
	found := false
	err := sqlitex.Execute(s.conn, `SELECT value FROM telemetry_state WHERE key = ?`, &sqlitex.ExecOptions{
		Args: []any{key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = true
			value = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, value)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read state key %s: %w", key, err)
	}
	if !found {
		return nil, providers.ErrNotFound
	}
	return value, nil
}

// Set writes the value for a key, replacing any previous value.
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := sqlitex.Execute(s.conn,
		`INSERT INTO telemetry_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		&sqlitex.ExecOptions{Args: []any{key, value}})
	if err != nil {
		return fmt.Errorf("failed to write state key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := sqlitex.Execute(s.conn, `DELETE FROM telemetry_state WHERE key = ?`,
		&sqlitex.ExecOptions{Args: []any{key}})
	if err != nil {
		return fmt.Errorf("failed to delete state key %s: %w", key, err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}
