package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"moduleinstaller/config"
	"moduleinstaller/installer"
)

func TestReleaseURL(t *testing.T) {
	tests := map[string]string{
		"1.2.3":      "https://github.com/moduleinstaller/moduleinstaller/releases/tag/v1.2.3",
		"v1.2.3-rc1": "https://github.com/moduleinstaller/moduleinstaller/releases/tag/v1.2.3-rc1",
		"dev":        "https://github.com/moduleinstaller/moduleinstaller/releases/latest",
	}
	for version, want := range tests {
		if got := releaseURL(version); got != want {
			t.Errorf("releaseURL(%q) = %q, want %q", version, got, want)
		}
	}
}

func TestTryGetConfigCacheDirOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"cache_dir": "/from/file"}`), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	oldConfig, oldCache := configFile, cacheDir
	t.Cleanup(func() { configFile, cacheDir = oldConfig, oldCache })

	configFile, cacheDir = path, ""
	cfg, err := TryGetConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CacheDir != "/from/file" {
		t.Errorf("expected cache dir from file, got %q", cfg.CacheDir)
	}

	cacheDir = filepath.Join(dir, "cache")
	cfg, err = TryGetConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CacheDir != cacheDir {
		t.Errorf("expected flag to override cache dir, got %q", cfg.CacheDir)
	}
}

func TestNewAppWiresLocalCatalog(t *testing.T) {
	dir := t.TempDir()
	index := filepath.Join(dir, "catalog.json")
	if err := os.WriteFile(index, []byte(`{"units": [{"code_name": "`+config.DefaultCodeName+`", "updates": []}]}`), 0644); err != nil {
		t.Fatalf("failed to write index: %v", err)
	}
	path := filepath.Join(dir, "config.json")
	content := `{
		"catalog": {"sources": [{"name": "local", "url": "file://` + filepath.ToSlash(index) + `"}]},
		"install": {"modules_dir": "` + filepath.ToSlash(filepath.Join(dir, "modules")) + `"},
		"state": {"dir": "` + filepath.ToSlash(filepath.Join(dir, "state")) + `"},
		"cache_dir": "` + filepath.ToSlash(filepath.Join(dir, "cache")) + `"
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	oldConfig, oldCache := configFile, cacheDir
	t.Cleanup(func() { configFile, cacheDir = oldConfig, oldCache })
	configFile, cacheDir = path, ""

	cfg, err := TryGetConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, err := newApp(cfg, 0)
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	defer a.Close()

	// No updates listed: the run completes without installing.
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	result := a.sequencer().Run(ctx)
	if result.Outcome != installer.OutcomeNoUpdate {
		t.Fatalf("expected no-update, got %+v", result)
	}
	if done, _ := a.store.Get(cfg.Unit.FlagKey); !done {
		t.Error("expected flag to be set")
	}
}
