// Package dedupe tracks which matches have already been accepted so a replay
// uploaded twice is only folded into standings once.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
)

// Default dedupe configuration constants.
const (
	defaultMaxSize       = 50_000
	defaultFalsePositive = 0.001
	unboundedBloomSize   = 1_000_000
)

// Deduper records seen match IDs to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so the match can be retried, e.g. when archiving
	// failed after the id was recorded.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper keeps an insertion-ordered set of ids. A bloom filter
// answers most "never seen" lookups without touching the map; since bloom
// filters cannot delete, a positive answer always falls through to the map.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front = newest
	filter  *bloom.BloomFilter
	maxSize int // <= 0 means unbounded
	fpRate  float64
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
		fpRate:  defaultFalsePositive,
	}
	for _, opt := range opts {
		opt(d)
	}

	capacity := uint(d.maxSize)
	if d.maxSize <= 0 {
		capacity = unboundedBloomSize
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	d.filter = bloom.NewWithEstimates(capacity, d.fpRate)
	return d
}

// SeenAndRecord reports whether id was already recorded and records it if not.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.filter.TestString(id) {
		if _, ok := d.seen[id]; ok {
			return true
		}
	}

	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}
	d.seen[id] = d.order.PushFront(id)
	d.filter.AddString(id)
	d.size.Add(1)
	return false
}

// Unrecord removes id from the seen set.
func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[id]; ok {
		d.order.Remove(el)
		delete(d.seen, id)
		d.size.Add(-1)
	}
}

// evictOldest drops the earliest recorded id. Must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	el := d.order.Back()
	if el == nil {
		return
	}
	d.order.Remove(el)
	delete(d.seen, el.Value.(string))
	d.size.Add(-1)
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
