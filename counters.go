package diskcache

import "sync/atomic"

// Counters holds the atomic, always-on statistics spec.md §5 requires as
// the "shared-resource policy" for monitoring: update_count, get_count,
// purgatory_hits, plus remove_count and error_count rounding out the
// surface §7 names ("monitoring is expected via the statistics surface").
// All fields are accessed only through atomic ops; Counters has no mutex.
type Counters struct {
	updateCount   uint64
	getCount      uint64
	removeCount   uint64
	purgatoryHits uint64
	errorCount    uint64
}

func (c *Counters) incUpdate()        { atomic.AddUint64(&c.updateCount, 1) }
func (c *Counters) incGet()           { atomic.AddUint64(&c.getCount, 1) }
func (c *Counters) incRemove()        { atomic.AddUint64(&c.removeCount, 1) }
func (c *Counters) incPurgatoryHit()  { atomic.AddUint64(&c.purgatoryHits, 1) }
func (c *Counters) incError()         { atomic.AddUint64(&c.errorCount, 1) }

// Stats is a point-in-time snapshot of Counters plus the current purgatory
// occupancy, returned by Cache.Stats.
type Stats struct {
	UpdateCount   uint64
	GetCount      uint64
	RemoveCount   uint64
	PurgatoryHits uint64
	ErrorCount    uint64
	PurgatorySize int
}

func (c *Counters) snapshot() Stats {
	return Stats{
		UpdateCount:   atomic.LoadUint64(&c.updateCount),
		GetCount:      atomic.LoadUint64(&c.getCount),
		RemoveCount:   atomic.LoadUint64(&c.removeCount),
		PurgatoryHits: atomic.LoadUint64(&c.purgatoryHits),
		ErrorCount:    atomic.LoadUint64(&c.errorCount),
	}
}
