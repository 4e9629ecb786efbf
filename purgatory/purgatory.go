// Package purgatory implements the disk cache's staging map (spec
// component C3): entries accepted by the facade but not yet persisted.
//
// Mutation of an Item's Spoolable flag must happen only while the
// corresponding key's write lock (see diskcache/lockreg) is held — that
// serialization is what makes the "fetch-and-validate" contract between
// this package and the event queue worker race-free. Purgatory itself only
// guarantees atomicity of its own map operations; it has no idea about
// locks, and does not need to.
package purgatory

import "sync"

type (
	// Item wraps an Entry inside the staging map. Entry is an opaque blob
	// to this package - callers decide what it contains. Keeping it a type
	// parameter means purgatory has no dependency on the root package's
	// concrete Entry type.
	Item[E any] struct {
		Entry E

		// Spoolable indicates whether the event queue worker is still
		// permitted to write this item to the backend. It starts true,
		// and is flipped to false exactly once, by a racing Get/cancel.
		// Mutation is only safe under the item's key's write lock.
		Spoolable bool
	}

	// Purgatory is a concurrent key -> *Item map. All operations are O(1)
	// average; iteration is not supported, by design (spec.md §4.2).
	Purgatory[K comparable, E any] struct {
		mu   sync.RWMutex
		rows map[K]*Item[E]
	}
)

// New constructs an empty Purgatory.
func New[K comparable, E any]() *Purgatory[K, E] {
	return &Purgatory[K, E]{rows: make(map[K]*Item[E])}
}

// Put inserts item under key, overwriting any prior item for that key. The
// prior item, if any, becomes unreachable: its queued Put event will find
// no live item (via Get) and no-op, per spec.md §4.1.
func (p *Purgatory[K, E]) Put(key K, entry E) *Item[E] {
	item := &Item[E]{Entry: entry, Spoolable: true}
	p.mu.Lock()
	p.rows[key] = item
	p.mu.Unlock()
	return item
}

// Get returns the item stored for key, if any.
func (p *Purgatory[K, E]) Get(key K) (*Item[E], bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	item, ok := p.rows[key]
	return item, ok
}

// Contains reports whether key currently has a staged item.
func (p *Purgatory[K, E]) Contains(key K) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.rows[key]
	return ok
}

// Remove deletes key unconditionally, ignoring absence, returning the
// removed item if there was one.
func (p *Purgatory[K, E]) Remove(key K) (*Item[E], bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	item, ok := p.rows[key]
	if ok {
		delete(p.rows, key)
	}
	return item, ok
}

// RemoveMatching deletes key only if the currently-stored item is exactly
// item (pointer identity). This is the primitive the event queue worker
// uses after a successful backend write: it must not delete an item that
// was replaced by a newer Put for the same key while the write was
// in-flight (spec.md §4.1, overwrite-then-cancel race).
func (p *Purgatory[K, E]) RemoveMatching(key K, item *Item[E]) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if current, ok := p.rows[key]; ok && current == item {
		delete(p.rows, key)
		return true
	}
	return false
}

// SwapEmpty atomically replaces the entire map with a fresh empty one,
// returning the replaced map's length - used by RemoveAll (spec.md §4.1):
// any events already queued for the old map become no-ops because their
// referenced keys are gone.
func (p *Purgatory[K, E]) SwapEmpty() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.rows)
	p.rows = make(map[K]*Item[E])
	return n
}

// Len reports the number of currently staged items.
func (p *Purgatory[K, E]) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.rows)
}
