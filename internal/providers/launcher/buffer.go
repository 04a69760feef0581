package launcher

import "sync"

// Buffer is a thread-safe bounded buffer keeping the most recent output
type Buffer struct {
	mu    sync.Mutex
	data  []byte
	max   int
	total int64
}

// NewBuffer creates a buffer holding at most max bytes
func NewBuffer(max int) *Buffer {
	return &Buffer{max: max}
}

// Write appends p, discarding the oldest bytes beyond capacity
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total += int64(len(p))
	b.data = append(b.data, p...)
	if over := len(b.data) - b.max; over > 0 {
		b.data = append(b.data[:0], b.data[over:]...)
	}
	return len(p), nil
}

// Bytes returns a copy of the retained output
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.data...)
}

// Total returns the number of bytes ever written
func (b *Buffer) Total() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}
