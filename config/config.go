package config

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultConfigFile = "/etc/moduleinstaller/config.json"
	DefaultCodeName   = "it.enricoscantamburlo.installme"
	DefaultFlagKey    = "moduleInstalled"
	DefaultNamespace  = "moduleinstaller"
	DefaultStateDir   = "/var/lib/moduleinstaller"
	DefaultModulesDir = "/var/lib/moduleinstaller/modules"
	DefaultCacheDir   = "/var/cache/moduleinstaller"

	defaultCatalogTTLSeconds = 300
)

// Config represents the complete application configuration
type Config struct {
	Unit     *UnitConfig     `json:"unit"`
	Catalog  *CatalogConfig  `json:"catalog"`
	Install  *InstallConfig  `json:"install"`
	State    *StateConfig    `json:"state"`
	Progress *ProgressConfig `json:"progress,omitempty"`
	Logging  *LoggingConfig  `json:"logging,omitempty"`
	CacheDir string          `json:"cache_dir,omitempty"`
}

// UnitConfig names the unit that must be present.
type UnitConfig struct {
	CodeName string `json:"code_name"`
	FlagKey  string `json:"flag_key,omitempty"`
}

type CatalogConfig struct {
	Sources []SourceConfig `json:"sources"`

	// TTLSeconds is how long a fetched index is reused by commands that
	// only read the catalog. The install run always revalidates.
	TTLSeconds int `json:"ttl_seconds,omitempty"`
}

// SourceConfig is one catalog location: an http(s) URL or a local path.
type SourceConfig struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type InstallConfig struct {
	ModulesDir  string `json:"modules_dir,omitempty"`
	HostVersion string `json:"host_version,omitempty"`
}

type StateConfig struct {
	Backend   string `json:"backend,omitempty"` // "file" or "sqlite"
	Dir       string `json:"dir,omitempty"`
	Namespace string `json:"namespace,omitempty"`
}

type ProgressConfig struct {
	WebSocketURL string `json:"websocket_url,omitempty"`
}

type LoggingConfig struct {
	Sinks map[string]map[string]interface{} `json:"sinks,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the configuration file at path and fills in defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("[config] Loaded configuration from %s (unit: %s, sources: %d)", path, cfg.Unit.CodeName, len(cfg.Catalog.Sources))
	return &cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		log.Printf("[config] %s not found, using defaults", path)
		return Default(), nil
	}
	return nil, err
}

func (c *Config) applyDefaults() {
	if c.Unit == nil {
		c.Unit = &UnitConfig{}
	}
	if c.Unit.CodeName == "" {
		c.Unit.CodeName = DefaultCodeName
	}
	if c.Unit.FlagKey == "" {
		c.Unit.FlagKey = DefaultFlagKey
	}

	if c.Catalog == nil {
		c.Catalog = &CatalogConfig{}
	}
	if c.Catalog.TTLSeconds <= 0 {
		c.Catalog.TTLSeconds = defaultCatalogTTLSeconds
	}
	for i := range c.Catalog.Sources {
		if c.Catalog.Sources[i].Name == "" {
			c.Catalog.Sources[i].Name = fmt.Sprintf("source-%d", i+1)
		}
	}

	if c.Install == nil {
		c.Install = &InstallConfig{}
	}
	if c.Install.ModulesDir == "" {
		c.Install.ModulesDir = DefaultModulesDir
	}

	if c.State == nil {
		c.State = &StateConfig{}
	}
	if c.State.Backend == "" {
		c.State.Backend = "file"
	}
	if c.State.Dir == "" {
		c.State.Dir = DefaultStateDir
	}
	if c.State.Namespace == "" {
		c.State.Namespace = DefaultNamespace
	}

	if c.Progress == nil {
		c.Progress = &ProgressConfig{}
	}
	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	if c.CacheDir == "" {
		c.CacheDir = DefaultCacheDir
	}
}

// Validate checks the values defaults cannot fix.
func (c *Config) Validate() error {
	switch c.State.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("unknown state backend %q (expected file or sqlite)", c.State.Backend)
	}

	seen := make(map[string]bool)
	for _, s := range c.Catalog.Sources {
		if s.URL == "" {
			return fmt.Errorf("catalog source %s has no url", s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate catalog source name %s", s.Name)
		}
		seen[s.Name] = true
	}

	if u := c.Progress.WebSocketURL; u != "" {
		parsed, err := url.Parse(u)
		if err != nil || (parsed.Scheme != "ws" && parsed.Scheme != "wss") {
			return fmt.Errorf("progress websocket_url must be a ws:// or wss:// URL, got %q", u)
		}
	}

	return nil
}

// IsRemote reports whether the source is fetched over HTTP.
func (s SourceConfig) IsRemote() bool {
	return strings.HasPrefix(s.URL, "http://") || strings.HasPrefix(s.URL, "https://")
}

// LocalPath returns the filesystem path of a local source.
func (s SourceConfig) LocalPath() string {
	return filepath.FromSlash(strings.TrimPrefix(s.URL, "file://"))
}

// CatalogTTL returns the reuse window for fetched indexes.
func (c *Config) CatalogTTL() time.Duration {
	return time.Duration(c.Catalog.TTLSeconds) * time.Second
}
