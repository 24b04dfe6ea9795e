package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store persists boolean flags across process restarts. Keys that were
// never set read as false.
type Store interface {
	Get(key string) (bool, error)
	Set(key string, value bool) error
	Close() error
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open returns the store for backend, rooted in dir and scoped to namespace.
func Open(backend, dir, namespace string) (Store, error) {
	if namespace == "" {
		return nil, fmt.Errorf("state namespace is required")
	}

	switch backend {
	case "", BackendFile:
		return NewFileStore(dir, namespace)
	case BackendSQLite:
		return OpenSQLite(dir, namespace)
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}

type fileState struct {
	Flags     map[string]bool `json:"flags"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// FileStore keeps the flags of one namespace in a JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates dir if needed and returns a store writing
// <dir>/<namespace>.state.json.
func NewFileStore(dir, namespace string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStore{path: filepath.Join(dir, namespace+".state.json")}, nil
}

// Path returns the state file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(key string) (bool, error) {
	st, err := s.read()
	if err != nil {
		return false, err
	}
	return st.Flags[key], nil
}

func (s *FileStore) Set(key string, value bool) error {
	st, err := s.read()
	if err != nil {
		return err
	}
	st.Flags[key] = value
	st.UpdatedAt = time.Now().UTC()
	return s.write(st)
}

func (s *FileStore) Close() error {
	return nil
}

// read returns an empty state when the file does not exist yet.
func (s *FileStore) read() (*fileState, error) {
	st := &fileState{Flags: make(map[string]bool)}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if st.Flags == nil {
		st.Flags = make(map[string]bool)
	}
	return st, nil
}

// write replaces the state file atomically.
func (s *FileStore) write(st *fileState) error {
	data, err := json.MarshalIndent(st, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename state file: %w", err)
	}

	return nil
}
