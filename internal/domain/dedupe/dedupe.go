// Package dedupe remembers client attempt IDs so a retried request does not
// record the same attempt twice.
package dedupe

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// DefaultMaxSize is the number of IDs kept when no size is configured.
const DefaultMaxSize = 10000

// Deduper records seen attempt IDs.
type Deduper interface {
	// SeenAndRecord reports whether id was already seen and records it if not.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so it can be submitted again, used when the
	// attempt was marked seen but failed to evaluate.
	Unrecord(ctx context.Context, id string)

	// Claim marks id as being evaluated. It fails with ErrInFlight while
	// another caller holds the claim. Every successful Claim must be
	// followed by Release.
	Claim(ctx context.Context, id string) error

	// Release drops the claim on id.
	Release(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper evicts the oldest ID once maxSize is reached. With
// maxSize <= 0 it never evicts.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front is oldest
	claims  map[string]struct{}
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	d.claims = make(map[string]struct{})
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		d.evictOldest()
	}

	d.seen[id] = d.order.PushBack(id)
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[id]; ok {
		d.order.Remove(el)
		delete(d.seen, id)
		d.size.Add(-1)
	}
}

func (d *inMemoryDeduper) Claim(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.claims[id]; ok {
		return fmt.Errorf("%w: %s", ErrInFlight, id)
	}
	d.claims[id] = struct{}{}
	return nil
}

func (d *inMemoryDeduper) Release(_ context.Context, id string) {
	d.mu.Lock()
	delete(d.claims, id)
	d.mu.Unlock()
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	el := d.order.Front()
	if el == nil {
		return
	}
	d.order.Remove(el)
	delete(d.seen, el.Value.(string))
	d.size.Add(-1)
}

// Size returns the number of IDs currently remembered.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
