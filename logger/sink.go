package logger

import (
	"encoding/json"
	"fmt"
	"time"
)

// Level is the severity of an install event.
type Level string

const (
	LevelSevere  Level = "SEVERE"
	LevelWarning Level = "WARNING"
	LevelInfo    Level = "INFO"
)

func (l Level) rank() int {
	switch l {
	case LevelInfo:
		return 1
	case LevelWarning:
		return 2
	case LevelSevere:
		return 3
	}
	return 0
}

// AtLeast reports whether l is as severe as threshold.
func (l Level) AtLeast(threshold Level) bool {
	return l.rank() >= threshold.rank()
}

// Sink is a destination for structured install events.
type Sink interface {
	// Write writes a log entry to the sink
	Write(entry *LogEntry) error

	// Close flushes and releases the sink
	Close() error

	// Name returns the configured name of this sink
	Name() string

	// ConfigHash returns a hash of the sink configuration so unchanged
	// sinks survive a reload
	ConfigHash() string
}

// Fields are extra structured attributes attached to an entry.
type Fields map[string]interface{}

// LogEntry is one structured event.
type LogEntry struct {
	Level Level
	Data  map[string]interface{}
}

// NewEntry builds an entry with the common attributes set.
func NewEntry(level Level, component, event, message string, fields Fields) *LogEntry {
	data := make(map[string]interface{}, len(fields)+5)
	for k, v := range fields {
		data[k] = v
	}
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	data["level"] = string(level)
	data["component"] = component
	data["event"] = event
	data["message"] = message
	return &LogEntry{Level: level, Data: data}
}

// MarshalJSON marshals the log entry to JSON
func (e *LogEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Data)
}

// SinkFactory creates a sink from a configuration
type SinkFactory func(name string, config map[string]interface{}) (Sink, error)

var sinkFactories = make(map[string]SinkFactory)

// RegisterSinkFactory registers a sink factory for a specific type
func RegisterSinkFactory(sinkType string, factory SinkFactory) {
	sinkFactories[sinkType] = factory
}

// CreateSink creates a sink from configuration
func CreateSink(name string, config map[string]interface{}) (Sink, error) {
	sinkType, ok := config["type"].(string)
	if !ok {
		return nil, fmt.Errorf("sink %s: missing or invalid 'type' field", name)
	}

	factory, ok := sinkFactories[sinkType]
	if !ok {
		return nil, fmt.Errorf("sink %s: unknown sink type '%s'", name, sinkType)
	}

	return factory(name, config)
}

// decodeSinkConfig round-trips the raw config map into a typed struct.
func decodeSinkConfig(config map[string]interface{}, out interface{}) error {
	configJSON, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return json.Unmarshal(configJSON, out)
}
