// Package message carries structured scheduling diagnostics. The scheduler
// never returns warnings as Go errors; it reports them to a Sink and keeps
// going.
package message

import (
	"fmt"
	"sync"

	"github.com/kilianp07/slotplan/core/logger"
)

// Severity classifies a diagnostic.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// SourceLocation points at the declaration a message refers to.
type SourceLocation struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

func (l SourceLocation) String() string {
	if l.Line > 0 {
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
	return l.File
}

// Message is one diagnostic record.
type Message struct {
	ID       string          `json:"id"`
	Severity Severity        `json:"severity"`
	Text     string          `json:"text"`
	Scenario string          `json:"scenario,omitempty"`
	Property string          `json:"property,omitempty"`
	Source   *SourceLocation `json:"source,omitempty"`
}

func (m Message) String() string {
	s := m.Severity.String() + " [" + m.ID + "]"
	if m.Source != nil {
		s = m.Source.String() + ": " + s
	}
	if m.Scenario != "" {
		s += " (" + m.Scenario + ")"
	}
	return s + " " + m.Text
}

// Sink receives diagnostics.
type Sink interface {
	Report(Message)
}

// Collector stores every reported message.
type Collector struct {
	mu       sync.Mutex
	messages []Message
}

// Report appends m.
func (c *Collector) Report(m Message) {
	c.mu.Lock()
	c.messages = append(c.messages, m)
	c.mu.Unlock()
}

// Messages returns a copy of all collected messages.
func (c *Collector) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

// Count returns the number of messages with severity sev.
func (c *Collector) Count(sev Severity) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, m := range c.messages {
		if m.Severity == sev {
			n++
		}
	}
	return n
}

// ByID returns all messages with the given id.
func (c *Collector) ByID(id string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var res []Message
	for _, m := range c.messages {
		if m.ID == id {
			res = append(res, m)
		}
	}
	return res
}

// LogSink forwards diagnostics to a logger.
type LogSink struct {
	Log logger.Logger
}

// Report logs m at the level matching its severity.
func (s LogSink) Report(m Message) {
	switch m.Severity {
	case Error:
		s.Log.Errorf("%s", m)
	case Warning:
		s.Log.Warnf("%s", m)
	default:
		s.Log.Infof("%s", m)
	}
}

// MultiSink fans a message out to several sinks.
type MultiSink []Sink

// Report forwards m to every sink.
func (ms MultiSink) Report(m Message) {
	for _, s := range ms {
		s.Report(m)
	}
}

// NopSink drops everything.
type NopSink struct{}

func (NopSink) Report(Message) {}
