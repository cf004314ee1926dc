// Package planlog implements a bounded, per-session activity buffer for plan
// operations.
//
// The buffer is process-lifetime state: it is constructed once in main,
// passed by handle to the engine, never persisted, and reset on restart.
package planlog

import (
	"sync"
	"time"
)

// DefaultCapacity is the per-session entry cap when none is configured.
const DefaultCapacity = 100

// Entry is one recorded plan event for a session.
type Entry struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	StepIndex *int           `json:"step_index,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	AtMs      int64          `json:"at_ms"`
}

// Buffer holds a fixed-capacity ring of entries per session key. Oldest
// entries are evicted first.
type Buffer struct {
	mu       sync.Mutex
	capacity int
	entries  map[string][]Entry
}

// New creates a Buffer with the given per-session capacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		capacity: capacity,
		entries:  make(map[string][]Entry),
	}
}

// Append records an entry for the session, evicting the oldest entry when
// the session is at capacity. A zero AtMs is stamped with the current time.
func (b *Buffer) Append(sessionKey string, e Entry) {
	if sessionKey == "" {
		return
	}
	if e.AtMs == 0 {
		e.AtMs = time.Now().UnixMilli()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	buf := append(b.entries[sessionKey], e)
	if len(buf) > b.capacity {
		trimFrom := len(buf) - b.capacity
		buf = append([]Entry(nil), buf[trimFrom:]...)
	}
	b.entries[sessionKey] = buf
}

// Recent returns up to n most recent entries for the session, newest-last.
// n <= 0 returns everything retained.
func (b *Buffer) Recent(sessionKey string, n int) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf := b.entries[sessionKey]
	if len(buf) == 0 {
		return nil
	}
	start := 0
	if n > 0 && n < len(buf) {
		start = len(buf) - n
	}
	out := make([]Entry, len(buf)-start)
	copy(out, buf[start:])
	return out
}

// Len returns the number of retained entries for the session.
func (b *Buffer) Len(sessionKey string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries[sessionKey])
}
