package logger

import (
	"fmt"
	"log"
	"sort"
	"strings"
)

// Writer receives structured entries. *Manager implements it.
type Writer interface {
	Write(entry *LogEntry)
}

// Emitter writes leveled events both to the process log and, when a Writer
// is attached, to the structured sinks. A nil *Emitter logs to the process
// log only.
type Emitter struct {
	component string
	writer    Writer
	verbose   bool
	fields    Fields
}

// NewEmitter creates an emitter for component. writer may be nil.
func NewEmitter(component string, writer Writer, verbose bool) *Emitter {
	return &Emitter{component: component, writer: writer, verbose: verbose}
}

// Component returns a copy of the emitter that logs under another component.
func (e *Emitter) Component(component string) *Emitter {
	if e == nil {
		return &Emitter{component: component}
	}
	c := *e
	c.component = component
	return &c
}

// With returns a copy of the emitter that attaches fields to every entry.
func (e *Emitter) With(fields Fields) *Emitter {
	c := Emitter{}
	if e != nil {
		c = *e
	}
	merged := make(Fields, len(c.fields)+len(fields))
	for k, v := range c.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	c.fields = merged
	return &c
}

func (e *Emitter) Severe(event, message string, fields Fields) {
	e.emit(LevelSevere, event, message, fields)
}

func (e *Emitter) Warning(event, message string, fields Fields) {
	e.emit(LevelWarning, event, message, fields)
}

func (e *Emitter) Info(event, message string, fields Fields) {
	e.emit(LevelInfo, event, message, fields)
}

// Debugf writes to the process log only, and only in verbose mode.
func (e *Emitter) Debugf(format string, args ...interface{}) {
	if e == nil || !e.verbose {
		return
	}
	log.Printf("[%s] "+format, append([]interface{}{e.component}, args...)...)
}

func (e *Emitter) emit(level Level, event, message string, fields Fields) {
	component := "moduleinstaller"
	var base Fields
	var writer Writer
	if e != nil {
		component = e.component
		base = e.fields
		writer = e.writer
	}

	all := make(Fields, len(base)+len(fields))
	for k, v := range base {
		all[k] = v
	}
	for k, v := range fields {
		all[k] = v
	}

	log.Printf("[%s] %s %s%s", component, level, message, formatFields(all))

	if writer != nil {
		writer.Write(NewEntry(level, component, event, message, all))
	}
}

func formatFields(fields Fields) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	return b.String()
}
