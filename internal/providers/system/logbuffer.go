package system

import (
	"sync"
	"time"
)

// CircularLogBuffer is a thread-safe circular buffer for log entries
type CircularLogBuffer struct {
	entries []*LogEntry
	head    int
	size    int
	maxSize int
	mu      sync.RWMutex
}

// LogEntry is one line an extension wrote through system.log
type LogEntry struct {
	Timestamp   time.Time              `json:"timestamp"`
	Level       string                 `json:"level"`
	Message     string                 `json:"message"`
	ExtensionID string                 `json:"extension_id,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty"`
}

// NewCircularLogBuffer creates a new circular buffer for logs
func NewCircularLogBuffer(maxSize int) *CircularLogBuffer {
	if maxSize < 1 {
		maxSize = 1
	}
	return &CircularLogBuffer{
		entries: make([]*LogEntry, maxSize),
		maxSize: maxSize,
	}
}

// Add inserts a log entry, overwriting the oldest when full
func (cb *CircularLogBuffer) Add(entry *LogEntry) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.entries[cb.head] = entry
	cb.head = (cb.head + 1) % cb.maxSize
	if cb.size < cb.maxSize {
		cb.size++
	}
}

// Len returns the number of buffered entries
func (cb *CircularLogBuffer) Len() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.size
}

// GetRecent retrieves up to limit entries, newest first, optionally filtered by level
func (cb *CircularLogBuffer) GetRecent(limit int, levelFilter string) []LogEntry {
	return cb.collect(limit, func(e *LogEntry) bool {
		return levelFilter == "" || e.Level == levelFilter
	})
}

// ForExtension retrieves up to limit entries written by extensionID, newest first
func (cb *CircularLogBuffer) ForExtension(extensionID string, limit int) []LogEntry {
	return cb.collect(limit, func(e *LogEntry) bool {
		return e.ExtensionID == extensionID
	})
}

func (cb *CircularLogBuffer) collect(limit int, keep func(*LogEntry) bool) []LogEntry {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if limit > cb.size {
		limit = cb.size
	}
	result := make([]LogEntry, 0, limit)

	// Walk backwards from the newest entry
	for i := 0; i < cb.size && len(result) < limit; i++ {
		idx := (cb.head - 1 - i + cb.maxSize) % cb.maxSize
		if entry := cb.entries[idx]; entry != nil && keep(entry) {
			result = append(result, *entry)
		}
	}
	return result
}
