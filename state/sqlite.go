package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps flags in a SQLite database shared by every namespace.
type SQLiteStore struct {
	db        *sql.DB
	namespace string
}

// OpenSQLite opens <dir>/state.db and prepares the schema.
func OpenSQLite(dir, namespace string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "state.db"))
	if err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db, namespace: namespace}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS flags (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		value INTEGER NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (namespace, key)
	);`)
	if err != nil {
		return fmt.Errorf("failed to create flags table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(key string) (bool, error) {
	var value int
	err := s.db.QueryRow(
		`SELECT value FROM flags WHERE namespace = ? AND key = ?`,
		s.namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read flag %s: %w", key, err)
	}
	return value != 0, nil
}

func (s *SQLiteStore) Set(key string, value bool) error {
	v := 0
	if value {
		v = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO flags (namespace, key, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.namespace, key, v, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to write flag %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
