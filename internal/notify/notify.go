// Package notify is the outbound message surface of the editor: operations
// report outcomes here and hosts decide how to show them.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

type Severity string

const (
	Success Severity = "success"
	Error   Severity = "error"
	Warning Severity = "warning"
	Info    Severity = "info"
)

type Message struct {
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Text     string   `json:"message"`
}

// Notifier is fire-and-forget; implementations must not block.
type Notifier interface {
	Notify(sev Severity, title, message string)
}

// Discard drops every message.
type Discard struct{}

func (Discard) Notify(Severity, string, string) {}

// Log writes messages to a slog.Logger, mapping severities to levels.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(sev Severity, title, message string) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	switch sev {
	case Error:
		level = slog.LevelError
	case Warning:
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, title, "severity", string(sev), "message", message)
}

// Recorder queues messages until a host drains them.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *Recorder) Notify(sev Severity, title, message string) {
	r.mu.Lock()
	r.msgs = append(r.msgs, Message{Severity: sev, Title: title, Text: message})
	r.mu.Unlock()
}

// Drain returns the queued messages and empties the queue.
func (r *Recorder) Drain() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.msgs
	r.msgs = nil
	return out
}

// Last returns the newest message, if any.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return Message{}, false
	}
	return r.msgs[len(r.msgs)-1], true
}

// Tee forwards each message to every notifier.
type Tee []Notifier

func (t Tee) Notify(sev Severity, title, message string) {
	for _, n := range t {
		n.Notify(sev, title, message)
	}
}
