// Package dedupe tracks client event ids for at-most-once completions and
// selects the final completion of each game.
package dedupe

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMaxSize = 50000

// Deduper remembers event IDs that are already stored. It is a cache in
// front of the store, which stays the authority on duplicates: record an id
// only once its write succeeded.
type Deduper interface {
	// Seen reports whether id was recorded, without recording it.
	Seen(ctx context.Context, id string) bool

	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	Size() int64
}

// inMemoryDeduper keeps ids in a bounded LRU (maxSize > 0, oldest evicted
// first) or in a plain set (maxSize <= 0, never evicts).
type inMemoryDeduper struct {
	maxSize int

	bounded *lru.Cache[string, struct{}]

	mu  sync.Mutex
	set map[string]struct{}
}

// NewInMemoryDeduper creates a new in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}

	if d.maxSize > 0 {
		// lru.New only fails for a non-positive size.
		d.bounded, _ = lru.New[string, struct{}](d.maxSize)
	} else {
		d.set = make(map[string]struct{})
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	if d.bounded != nil {
		seen, _ := d.bounded.ContainsOrAdd(id, struct{}{})
		return seen
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.set[id]; ok {
		return true
	}
	d.set[id] = struct{}{}
	return false
}

func (d *inMemoryDeduper) Seen(_ context.Context, id string) bool {
	if d.bounded != nil {
		return d.bounded.Contains(id)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.set[id]
	return ok
}

// Size returns the current number of recorded ids.
func (d *inMemoryDeduper) Size() int64 {
	if d.bounded != nil {
		return int64(d.bounded.Len())
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.set))
}
