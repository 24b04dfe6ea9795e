package catalog

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"moduleinstaller/cache"
)

// Source is one catalog location that can be refreshed from its remote origin.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// Refresh reloads the index. On failure the source keeps whatever
	// units it had before.
	Refresh(ctx context.Context) error

	// Units returns the units from the last successful load.
	Units() []Unit
}

// HTTPSource serves an index fetched over HTTP through the download cache.
type HTTPSource struct {
	name   string
	url    string
	maxAge time.Duration
	cache  *cache.Cache
	units  []Unit
	mu     sync.RWMutex
}

// NewHTTPSource creates a source for the index at url. maxAge is how long a
// fetched index may be reused before it is revalidated; zero always asks the
// server.
func NewHTTPSource(name, url string, maxAge time.Duration, c *cache.Cache) *HTTPSource {
	return &HTTPSource{
		name:   name,
		url:    url,
		maxAge: maxAge,
		cache:  c,
	}
}

func (s *HTTPSource) Name() string {
	return s.name
}

// Refresh fetches the index. When the fetch fails and nothing has been loaded
// yet, the last cached copy is used so a stale catalog is still available.
func (s *HTTPSource) Refresh(ctx context.Context) error {
	entry, err := s.cache.Fetch(ctx, s.url, s.maxAge)
	if err != nil {
		s.loadStale()
		return fmt.Errorf("refresh %s: %w", s.name, err)
	}

	index, err := ParseIndex(entry.Data, s.url, entry.ContentType)
	if err != nil {
		s.loadStale()
		return fmt.Errorf("refresh %s: %w", s.name, err)
	}

	s.mu.Lock()
	s.units = index.toUnits(s.name)
	s.mu.Unlock()

	return nil
}

func (s *HTTPSource) loadStale() {
	s.mu.RLock()
	loaded := s.units != nil
	s.mu.RUnlock()
	if loaded {
		return
	}

	entry, err := s.cache.Load(s.url)
	if err != nil {
		return
	}
	index, err := ParseIndex(entry.Data, s.url, entry.ContentType)
	if err != nil {
		return
	}

	log.Printf("[catalog] Using stale index for %s (fetched %s)", s.name, entry.Timestamp.Format(time.RFC3339))
	s.mu.Lock()
	s.units = index.toUnits(s.name)
	s.mu.Unlock()
}

func (s *HTTPSource) Units() []Unit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.units
}

// FileSource serves an index from local disk.
type FileSource struct {
	name  string
	path  string
	units []Unit
	mu    sync.RWMutex
}

// NewFileSource creates a source for the index file at path.
func NewFileSource(name, path string) *FileSource {
	return &FileSource{name: name, path: path}
}

func (s *FileSource) Name() string {
	return s.name
}

func (s *FileSource) Refresh(ctx context.Context) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", s.name, err)
	}

	index, err := ParseIndex(data, s.path, "")
	if err != nil {
		return fmt.Errorf("refresh %s: %w", s.name, err)
	}

	s.mu.Lock()
	s.units = index.toUnits(s.name)
	s.mu.Unlock()
	return nil
}

func (s *FileSource) Units() []Unit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.units
}
