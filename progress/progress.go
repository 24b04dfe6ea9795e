// Package progress reports the indeterminate progress of an install run.
// Reporters never affect control flow: failures are logged and dropped.
package progress

import (
	"log"
	"time"
)

// Reporter receives the start and end of a long-running task.
type Reporter interface {
	Start(label string)
	Finish()
}

// Event is the payload sent to remote progress listeners.
type Event struct {
	Type          string    `json:"type"` // "start" or "finish"
	Label         string    `json:"label"`
	Indeterminate bool      `json:"indeterminate"`
	Time          time.Time `json:"time"`
	ElapsedMillis int64     `json:"elapsed_ms,omitempty"`
}

// Nop discards progress.
type Nop struct{}

func (Nop) Start(string) {}
func (Nop) Finish()      {}

// LogReporter writes progress to the process log.
type LogReporter struct {
	label   string
	started time.Time
}

func (r *LogReporter) Start(label string) {
	r.label = label
	r.started = time.Now()
	log.Printf("[progress] %s", label)
}

func (r *LogReporter) Finish() {
	log.Printf("[progress] %s finished in %v", r.label, time.Since(r.started).Round(time.Millisecond))
}

// Multi forwards to every reporter in order.
type Multi []Reporter

func (m Multi) Start(label string) {
	for _, r := range m {
		r.Start(label)
	}
}

func (m Multi) Finish() {
	for _, r := range m {
		r.Finish()
	}
}
