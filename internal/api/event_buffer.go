package api

import (
	"sync"
	"time"

	"github.com/padfleet/status-monitor/internal/feed"
)

// EventRecord is one connection state transition
type EventRecord struct {
	At       time.Time `json:"at"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Attempts int       `json:"reconnect_attempts"`
	Error    string    `json:"error,omitempty"`
}

// EventBuffer is a thread-safe ring buffer of connection state transitions
type EventBuffer struct {
	mu      sync.RWMutex
	entries []EventRecord
	cap     int
}

// NewEventBuffer creates a new event buffer with the given capacity
func NewEventBuffer(capacity int) *EventBuffer {
	if capacity <= 0 {
		capacity = 100
	}
	return &EventBuffer{
		entries: make([]EventRecord, 0, capacity),
		cap:     capacity,
	}
}

// Record converts a feed state event and adds it to the buffer.
// It has the shape of a feed state listener.
func (eb *EventBuffer) Record(ev feed.StateEvent) {
	rec := EventRecord{
		At:       ev.At,
		From:     ev.Old.String(),
		To:       ev.New.String(),
		Attempts: ev.Attempts,
	}
	if ev.Err != nil {
		rec.Error = ev.Err.Error()
	}
	eb.Add(rec)
}

// Add adds an event record to the buffer
func (eb *EventBuffer) Add(rec EventRecord) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if len(eb.entries) >= eb.cap {
		copy(eb.entries, eb.entries[1:])
		eb.entries[len(eb.entries)-1] = rec
	} else {
		eb.entries = append(eb.entries, rec)
	}
}

// Entries returns all event records (newest first)
func (eb *EventBuffer) Entries() []EventRecord {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	result := make([]EventRecord, len(eb.entries))
	// Reverse order so newest is first
	for i, j := 0, len(eb.entries)-1; j >= 0; i, j = i+1, j-1 {
		result[i] = eb.entries[j]
	}
	return result
}
