package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestStoreBackends(t *testing.T) {
	for _, backend := range []string{BackendFile, BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()

			s, err := Open(backend, dir, "moduleinstaller")
			if err != nil {
				t.Fatalf("failed to open store: %v", err)
			}

			got, err := s.Get("moduleInstalled")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got {
				t.Error("expected unset flag to read false")
			}

			if err := s.Set("moduleInstalled", true); err != nil {
				t.Fatalf("failed to set flag: %v", err)
			}
			if err := s.Close(); err != nil {
				t.Fatalf("failed to close store: %v", err)
			}

			// A fresh handle simulates the next process start.
			s, err = Open(backend, dir, "moduleinstaller")
			if err != nil {
				t.Fatalf("failed to reopen store: %v", err)
			}
			defer s.Close()

			got, err = s.Get("moduleInstalled")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got {
				t.Error("expected flag to survive reopen")
			}

			other, err := Open(backend, dir, "other-component")
			if err != nil {
				t.Fatalf("failed to open second namespace: %v", err)
			}
			defer other.Close()
			if got, _ := other.Get("moduleInstalled"); got {
				t.Error("expected namespaces to be isolated")
			}
		})
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	if _, err := Open("etcd", t.TempDir(), "moduleinstaller"); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if _, err := Open(BackendFile, t.TempDir(), ""); err == nil {
		t.Fatal("expected error for empty namespace")
	}
}

func TestFileStoreAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, "moduleinstaller")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := s.Set("moduleInstalled", true); err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("failed to read state file: %v", err)
	}

	var parsed fileState
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("state file contains invalid JSON: %v", err)
	}
	if !parsed.Flags["moduleInstalled"] {
		t.Error("expected flag in state file")
	}
	if parsed.UpdatedAt.IsZero() {
		t.Error("expected updated_at to be set")
	}

	if _, err := os.Stat(filepath.Join(dir, "moduleinstaller.state.json.tmp")); !os.IsNotExist(err) {
		t.Error("temp file should not exist after successful write")
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, "moduleinstaller")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := os.WriteFile(s.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to write corrupt file: %v", err)
	}

	if _, err := s.Get("moduleInstalled"); err == nil {
		t.Error("expected error for corrupt state file")
	}
}
