package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileSink appends entries as JSON lines to a file.
type FileSink struct {
	name       string
	path       string
	file       *os.File
	configHash string
	mu         sync.Mutex
}

// FileSinkConfig represents the configuration for a file sink
type FileSinkConfig struct {
	Path string `json:"path"`
}

func init() {
	RegisterSinkFactory("file", NewFileSink)
}

// NewFileSink creates a new file sink
func NewFileSink(name string, config map[string]interface{}) (Sink, error) {
	var sinkConfig FileSinkConfig
	if err := decodeSinkConfig(config, &sinkConfig); err != nil {
		return nil, fmt.Errorf("failed to parse file sink config: %w", err)
	}

	if sinkConfig.Path == "" {
		return nil, fmt.Errorf("file sink requires 'path' field")
	}

	if err := os.MkdirAll(filepath.Dir(sinkConfig.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(sinkConfig.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", sinkConfig.Path, err)
	}

	return &FileSink{
		name:       name,
		path:       sinkConfig.Path,
		file:       file,
		configHash: computeConfigHash(config),
	}, nil
}

// Write appends one JSON line.
func (s *FileSink) Write(entry *LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return fmt.Errorf("file sink %s is closed", s.name)
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	if _, err := s.file.Write(append(jsonBytes, '\n')); err != nil {
		return fmt.Errorf("failed to write to log file: %w", err)
	}

	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *FileSink) Name() string {
	return s.name
}

func (s *FileSink) ConfigHash() string {
	return s.configHash
}
