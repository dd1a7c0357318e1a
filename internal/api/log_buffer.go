package api

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogEntry represents a single log entry
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// LogBuffer is a thread-safe ring buffer for log entries. It is a
// zerolog.LevelWriter, so it can sit next to the console in a multi writer.
type LogBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	cap     int
}

var _ zerolog.LevelWriter = (*LogBuffer)(nil)

// NewLogBuffer creates a new log buffer with the given capacity
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = 500
	}
	return &LogBuffer{
		entries: make([]LogEntry, 0, capacity),
		cap:     capacity,
	}
}

// Add adds a log entry to the buffer
func (lb *LogBuffer) Add(entry LogEntry) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if len(lb.entries) >= lb.cap {
		// Shift everything left by 1, drop oldest
		copy(lb.entries, lb.entries[1:])
		lb.entries[len(lb.entries)-1] = entry
	} else {
		lb.entries = append(lb.entries, entry)
	}
}

// Write takes one JSON-encoded zerolog event.
func (lb *LogBuffer) Write(p []byte) (int, error) {
	return lb.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel records one zerolog event. The level, message and time fields
// become entry columns; everything else lands in Fields.
func (lb *LogBuffer) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	var fields map[string]any
	if err := json.Unmarshal(p, &fields); err != nil {
		msg := strings.TrimSpace(string(p))
		if msg != "" {
			lb.Add(LogEntry{Level: levelName(level), Message: msg})
		}
		return len(p), nil
	}

	entry := LogEntry{Level: levelName(level)}
	if s, ok := fields[zerolog.LevelFieldName].(string); ok && level == zerolog.NoLevel {
		entry.Level = s
	}
	if s, ok := fields[zerolog.MessageFieldName].(string); ok {
		entry.Message = s
	}
	if s, ok := fields[zerolog.TimestampFieldName].(string); ok {
		if ts, err := time.Parse(zerolog.TimeFieldFormat, s); err == nil {
			entry.Timestamp = ts
		}
	}
	delete(fields, zerolog.LevelFieldName)
	delete(fields, zerolog.MessageFieldName)
	delete(fields, zerolog.TimestampFieldName)
	if len(fields) > 0 {
		entry.Fields = fields
	}

	lb.Add(entry)
	return len(p), nil
}

// Entries returns all entries, optionally filtered by level
func (lb *LogBuffer) Entries(levels []string) []LogEntry {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	if len(levels) == 0 {
		result := make([]LogEntry, len(lb.entries))
		copy(result, lb.entries)
		return result
	}

	levelSet := make(map[string]bool)
	for _, l := range levels {
		levelSet[strings.ToLower(strings.TrimSpace(l))] = true
	}

	result := make([]LogEntry, 0)
	for _, e := range lb.entries {
		if levelSet[strings.ToLower(e.Level)] {
			result = append(result, e)
		}
	}
	return result
}

// Clear removes all entries
func (lb *LogBuffer) Clear() {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.entries = lb.entries[:0]
}

func levelName(level zerolog.Level) string {
	if level == zerolog.NoLevel {
		return "info"
	}
	return level.String()
}
