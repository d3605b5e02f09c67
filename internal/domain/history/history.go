// Package history keeps a rolling window of evaluated attempts.
package history

import (
	"sync"

	"github.com/okian/xsteal/internal/domain/model"
)

// Buffer is a bounded FIFO of attempts. Appending to a full buffer drops
// the oldest attempt first, so Len never exceeds Cap.
type Buffer struct {
	mu       sync.RWMutex
	items    []model.Attempt // ring storage, len == capacity once full
	head     int             // index of the oldest attempt
	size     int
	capacity int
}

// New creates an empty buffer.
func New(opts ...Option) *Buffer {
	b := &Buffer{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(b)
	}
	b.items = make([]model.Attempt, 0, b.capacity)
	return b
}

// Record appends a and reports whether the oldest attempt was evicted.
func (b *Buffer) Record(a model.Attempt) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size < b.capacity {
		b.items = append(b.items, a)
		b.size++
		return false
	}

	// Full: overwrite the oldest slot and advance head.
	b.items[b.head] = a
	b.head = (b.head + 1) % b.capacity
	return true
}

// All returns a copy of the attempts, oldest first.
func (b *Buffer) All() []model.Attempt {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]model.Attempt, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.head+i)%b.capacity]
	}
	return out
}

// Recent returns a copy of the attempts, newest first.
func (b *Buffer) Recent() []model.Attempt {
	out := b.All()
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Len returns the number of attempts held.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Cap returns the maximum number of attempts held.
func (b *Buffer) Cap() int {
	return b.capacity
}

// Reset drops every attempt.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = b.items[:0]
	b.head = 0
	b.size = 0
}
