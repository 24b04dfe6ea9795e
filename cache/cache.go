package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotCached is returned by Load when no entry exists for a URL.
var ErrNotCached = errors.New("no cached entry")

// Cache stores catalog documents and downloaded artifacts on disk, keyed by URL.
type Cache struct {
	cacheDir   string
	userAgent  string
	verbose    bool
	httpClient *http.Client
}

// Entry is a cached document with its validator metadata.
type Entry struct {
	Data        []byte    `json:"data"`
	ETag        string    `json:"etag,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type fileMeta struct {
	URL       string    `json:"url"`
	ETag      string    `json:"etag,omitempty"`
	Size      int64     `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates the cache directory if needed and returns a cache rooted there.
func New(cacheDir, userAgent string, verbose bool) (*Cache, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &Cache{
		cacheDir:  cacheDir,
		userAgent: userAgent,
		verbose:   verbose,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.cacheDir
}

// Fetch returns the document at url. A cached copy younger than maxAge is
// returned without a request; otherwise the server is asked with the stored
// ETag. Unlike Load, a failed request is always reported as an error.
func (c *Cache) Fetch(ctx context.Context, url string, maxAge time.Duration) (*Entry, error) {
	if c == nil {
		return nil, fmt.Errorf("cache not initialized")
	}
	cacheFile := c.entryPath(url)

	entry, err := c.loadEntry(cacheFile)
	if err == nil && maxAge > 0 && time.Since(entry.Timestamp) < maxAge {
		if c.verbose {
			log.Printf("[cache] Using cached data for %s (age: %v)", url, time.Since(entry.Timestamp).Round(time.Second))
		}
		return entry, nil
	}

	var etag string
	if entry != nil {
		etag = entry.ETag
	}

	resp, err := c.get(ctx, url, etag)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && entry != nil {
		entry.Timestamp = time.Now()
		if err := c.saveEntry(cacheFile, entry); err != nil {
			log.Printf("[cache] Failed to update cache timestamp for %s: %v", url, err)
		}
		return entry, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}

	fresh := &Entry{
		Data:        body,
		ETag:        resp.Header.Get("ETag"),
		ContentType: strings.TrimSpace(strings.SplitN(resp.Header.Get("Content-Type"), ";", 2)[0]),
		Timestamp:   time.Now(),
	}
	if err := c.saveEntry(cacheFile, fresh); err != nil {
		log.Printf("[cache] Failed to save to cache for %s: %v", url, err)
	}

	return fresh, nil
}

// Load returns the cached document for url without touching the network.
func (c *Cache) Load(url string) (*Entry, error) {
	entry, err := c.loadEntry(c.entryPath(url))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotCached
		}
		return nil, err
	}
	return entry, nil
}

// FetchFile downloads url into the cache and returns the local path. A file
// already downloaded is revalidated with its ETag and reused on 304.
func (c *Cache) FetchFile(ctx context.Context, url string) (string, int64, error) {
	if c == nil {
		return "", 0, fmt.Errorf("cache not initialized")
	}

	key := hashKey(url)
	cacheFile := filepath.Join(c.cacheDir, key+"_file.bin")
	metaFile := filepath.Join(c.cacheDir, key+"_file.meta")

	var meta fileMeta
	if data, err := os.ReadFile(metaFile); err == nil {
		if err := json.Unmarshal(data, &meta); err != nil {
			meta = fileMeta{}
		}
	}
	if _, err := os.Stat(cacheFile); err != nil {
		meta.ETag = ""
	}

	resp, err := c.get(ctx, url, meta.ETag)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		meta.Timestamp = time.Now()
		c.writeMeta(metaFile, &meta)
		log.Printf("[cache] File not modified for %s", url)
		return cacheFile, meta.Size, nil
	}

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, url)
	}

	tempFile := cacheFile + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create %s: %w", tempFile, err)
	}

	size, err := io.Copy(out, resp.Body)
	out.Close()
	if err != nil {
		os.Remove(tempFile)
		return "", 0, fmt.Errorf("failed to download %s: %w", url, err)
	}

	if err := os.Rename(tempFile, cacheFile); err != nil {
		os.Remove(tempFile)
		return "", 0, fmt.Errorf("failed to store download: %w", err)
	}

	meta = fileMeta{
		URL:       url,
		ETag:      resp.Header.Get("ETag"),
		Size:      size,
		Timestamp: time.Now(),
	}
	c.writeMeta(metaFile, &meta)

	log.Printf("[cache] Downloaded %s (size: %.2f MB)", url, float64(size)/1024/1024)
	return cacheFile, size, nil
}

// Clear removes every cached document and file and reports how many were removed.
func (c *Cache) Clear() (int, error) {
	entries, err := os.ReadDir(c.cacheDir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".json"),
			strings.HasSuffix(name, "_file.bin"),
			strings.HasSuffix(name, "_file.meta"):
		default:
			continue
		}
		if err := os.Remove(filepath.Join(c.cacheDir, name)); err != nil {
			log.Printf("[cache] Failed to remove cache file %s: %v", name, err)
			continue
		}
		removed++
	}
	return removed, nil
}

func (c *Cache) get(ctx context.Context, url, etag string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	return resp, nil
}

func (c *Cache) entryPath(url string) string {
	return filepath.Join(c.cacheDir, hashKey(url)+".json")
}

func (c *Cache) loadEntry(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}

	return &entry, nil
}

func (c *Cache) saveEntry(path string, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (c *Cache) writeMeta(path string, meta *fileMeta) {
	data, err := json.Marshal(meta)
	if err != nil {
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Printf("[cache] Failed to write metadata %s: %v", path, err)
	}
}

func hashKey(url string) string {
	hash := sha256.Sum256([]byte(url))
	return hex.EncodeToString(hash[:])
}
