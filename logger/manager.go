package logger

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
)

// managedSink is a configured sink with the lowest level it receives.
type managedSink struct {
	sink     Sink
	hash     string
	minLevel Level
}

// Manager fans install events out to the configured sinks.
type Manager struct {
	sinks map[string]*managedSink
	mu    sync.RWMutex
}

// NewManager creates a manager with no sinks.
func NewManager() *Manager {
	return &Manager{sinks: make(map[string]*managedSink)}
}

// Write passes entry to every sink whose min_level admits it.
func (m *Manager) Write(entry *LogEntry) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, ms := range m.sinks {
		if !entry.Level.AtLeast(ms.minLevel) {
			continue
		}
		if err := ms.sink.Write(entry); err != nil {
			log.Printf("[logger] Failed to write to sink %s: %v", name, err)
		}
	}
}

// UpdateSinks replaces the sink set. Sinks whose configuration hash is
// unchanged are kept open; sinks that fail to build are skipped and
// reported together.
func (m *Manager) UpdateSinks(sinksConfig map[string]map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, ms := range m.sinks {
		if _, ok := sinksConfig[name]; !ok {
			log.Printf("[logger] Removing sink: %s", name)
			m.closeLocked(name, ms)
		}
	}

	names := make([]string, 0, len(sinksConfig))
	for name := range sinksConfig {
		names = append(names, name)
	}
	sort.Strings(names)

	var failed []string
	for _, name := range names {
		config := sinksConfig[name]
		hash := computeConfigHash(config)

		if existing, ok := m.sinks[name]; ok {
			if existing.hash == hash {
				continue
			}
			log.Printf("[logger] Sink %s config changed, recreating", name)
			m.closeLocked(name, existing)
		}

		minLevel, err := parseMinLevel(config)
		if err != nil {
			log.Printf("[logger] Failed to create sink %s: %v", name, err)
			failed = append(failed, name)
			continue
		}

		sink, err := CreateSink(name, config)
		if err != nil {
			log.Printf("[logger] Failed to create sink %s: %v", name, err)
			failed = append(failed, name)
			continue
		}

		m.sinks[name] = &managedSink{sink: sink, hash: hash, minLevel: minLevel}
	}

	if len(failed) > 0 {
		return fmt.Errorf("invalid sinks: %v", failed)
	}
	return nil
}

// Close flushes and closes every sink. The first close error is returned.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstError error
	for name, ms := range m.sinks {
		if err := m.closeLocked(name, ms); err != nil && firstError == nil {
			firstError = err
		}
	}
	return firstError
}

// SinkCount returns the number of configured sinks
func (m *Manager) SinkCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sinks)
}

func (m *Manager) closeLocked(name string, ms *managedSink) error {
	delete(m.sinks, name)
	err := ms.sink.Close()
	if err != nil {
		log.Printf("[logger] Error closing sink %s: %v", name, err)
	}
	return err
}

func parseMinLevel(config map[string]interface{}) (Level, error) {
	raw, ok := config["min_level"]
	if !ok {
		return LevelInfo, nil
	}
	s, _ := raw.(string)
	level := Level(s)
	if level.rank() == 0 {
		return "", fmt.Errorf("invalid min_level %v", raw)
	}
	return level, nil
}

func computeConfigHash(config map[string]interface{}) string {
	jsonBytes, err := json.Marshal(config)
	if err != nil {
		return fmt.Sprintf("error-%d", len(config))
	}

	hash := sha256.Sum256(jsonBytes)
	return fmt.Sprintf("%x", hash)
}
