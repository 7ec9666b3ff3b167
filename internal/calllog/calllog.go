// Package calllog records every boundary call the pipeline makes so operators
// can inspect request and response payloads after the fact.
package calllog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultCapacity = 200

// Entry is one recorded boundary call.
type Entry struct {
	ID         uuid.UUID `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Method     string    `json:"method"`
	Endpoint   string    `json:"endpoint"`
	Request    any       `json:"request,omitempty"`
	Response   any       `json:"response,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

// Sink receives a copy of every entry, e.g. for durable storage.
type Sink interface {
	WriteCallLog(ctx context.Context, e Entry) error
}

// Recorder keeps the most recent entries in memory and forwards each one to
// the logger and an optional sink.
type Recorder struct {
	logger   *slog.Logger
	sink     Sink
	capacity int

	mu      sync.RWMutex
	entries []Entry
}

func NewRecorder(capacity int, sink Sink, logger *slog.Logger) *Recorder {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Recorder{
		logger:   logger,
		sink:     sink,
		capacity: capacity,
	}
}

// Record stores e, filling in ID and Timestamp when unset. Sink failures are
// logged and never surface to the caller.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	r.mu.Lock()
	r.entries = append(r.entries, e)
	if over := len(r.entries) - r.capacity; over > 0 {
		r.entries = append([]Entry(nil), r.entries[over:]...)
	}
	r.mu.Unlock()

	attrs := []any{
		"method", e.Method,
		"endpoint", e.Endpoint,
		"duration_ms", e.DurationMS,
	}
	if e.Error != "" {
		r.logger.Warn("boundary call failed", append(attrs, "error", e.Error)...)
	} else {
		r.logger.Debug("boundary call", attrs...)
	}

	if r.sink != nil {
		if err := r.sink.WriteCallLog(ctx, e); err != nil {
			r.logger.Warn("failed to write call log", "endpoint", e.Endpoint, "error", err)
		}
	}
}

// Entries returns recorded calls, oldest first.
func (r *Recorder) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
