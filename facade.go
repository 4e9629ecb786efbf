package diskcache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cachekit/diskcache/backend"
	"github.com/cachekit/diskcache/dclog"
	"github.com/cachekit/diskcache/evqueue"
	"github.com/cachekit/diskcache/lockreg"
	"github.com/cachekit/diskcache/purgatory"
)

type (
	// Config configures a Cache. Backend is the only required field; the
	// zero value of everything else selects a sensible default (see New).
	Config struct {
		// Backend is the durable persistence target (spec component C2).
		// Required; New panics if this is nil.
		Backend backend.Backend

		// QueueCapacity bounds the event queue (spec.md §6,
		// queue_capacity). <= 0 selects evqueue's own default.
		QueueCapacity int

		// LockIdle configures how long an unheld per-key lock lingers
		// before lockreg reclaims it. <= 0 selects lockreg's default.
		LockIdle time.Duration

		// Logger receives diagnostic logging for backend/queue failures.
		// Defaults to dclog.Discard.
		Logger dclog.Logger

		// Metrics, if set, receives Prometheus observations. A nil
		// Metrics records nothing.
		Metrics *Metrics
	}

	// Cache is the write-back auxiliary disk cache facade (spec component
	// C6): it wires the purgatory (C3), the event queue (C4), and the
	// lock registry (C5), and delegates durable persistence to a Backend
	// (C2). The zero value is not usable; construct with New.
	Cache struct {
		backend   backend.Backend
		purgatory *purgatory.Purgatory[string, Entry]
		locks     *lockreg.Registry
		queue     *evqueue.Queue
		logger    dclog.Logger
		metrics   *Metrics
		counters  Counters

		state       int32 // atomic State
		disposeOnce sync.Once
	}

	// queueHandler is what the event queue's worker actually holds. It
	// carries handles to Purgatory, the lock registry, and the Backend
	// only — never back to the Cache itself. This breaks the cyclic
	// handle (queue -> listener -> facade -> queue) the source's inner
	// class produces (spec.md §9); the facade owns the queue's stop
	// signal, the worker never needs to reach back into it.
	queueHandler struct {
		backend   backend.Backend
		purgatory *purgatory.Purgatory[string, Entry]
		locks     *lockreg.Registry
		logger    dclog.Logger
		metrics   *Metrics
		counters  *Counters
	}
)

var _ evqueue.Handler = (*queueHandler)(nil)

// ErrNotAlive is returned (or, for Get, implied by a false ok) by public
// operations invoked outside the Alive state (spec.md §3).
var ErrNotAlive = errors.New(`diskcache: cache is not alive`)

// New constructs a ready-to-use Cache, starting in StateAlive, and starts
// its background event-queue worker. Panics if config.Backend is nil.
func New(config Config) *Cache {
	if config.Backend == nil {
		panic(`diskcache: nil Backend`)
	}

	logger := config.Logger
	if logger == nil {
		logger = dclog.Discard{}
	}

	c := &Cache{
		backend:   config.Backend,
		purgatory: purgatory.New[string, Entry](),
		locks:     lockreg.New(config.LockIdle),
		logger:    logger,
		metrics:   config.Metrics,
	}
	c.storeState(StateAlive)

	handler := &queueHandler{
		backend:   c.backend,
		purgatory: c.purgatory,
		locks:     c.locks,
		logger:    c.logger,
		metrics:   c.metrics,
		counters:  &c.counters,
	}
	c.queue = evqueue.New(config.QueueCapacity, handler)

	return c
}

// Update stages entry for asynchronous persistence (spec.md §4.1). It
// never blocks on the Backend: the only suspension point is the event
// queue's backpressure, bounded by ctx.
func (c *Cache) Update(ctx context.Context, entry Entry) error {
	if c.loadState() != StateAlive {
		return ErrNotAlive
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	if entry.Attributes.CreateTimeMS == 0 {
		entry.Attributes.CreateTimeMS = time.Now().UnixMilli()
	}

	c.purgatory.Put(entry.Key, entry)
	c.counters.incUpdate()
	c.metrics.observeUpdate()
	c.metrics.setPurgatorySize(c.purgatory.Len())
	c.metrics.setQueueDepth(c.queue.Len())

	if err := c.queue.Append(ctx, evqueue.Event{Action: evqueue.ActionPut, Key: entry.Key}); err != nil {
		c.counters.incError()
		if errors.Is(err, evqueue.ErrDestroyed) {
			// spec.md §4.1: a failed append enters Disposing and destroys
			// the queue (already destroyed, in this branch, by definition).
			if c.beginDispose() {
				c.logger.WithField(`key`, entry.Key).Warn(`diskcache: event queue destroyed, entering disposing`)
			}
			c.queue.Destroy()
		}
		return err
	}

	return nil
}

// Get returns the entry for key and true, or the zero Entry and false if
// absent (spec.md §4.1). A purgatory hit cancels the pending write before
// it ever reaches the Backend.
func (c *Cache) Get(ctx context.Context, key string) (Entry, bool) {
	if c.loadState() != StateAlive {
		return Entry{}, false
	}
	c.counters.incGet()

	unlock := c.locks.Lock(key)
	item, ok := c.purgatory.Get(key)
	if ok {
		// Mutate spoolable before removing: a worker racing on this key
		// either observes the item still present and now non-spoolable
		// (skips the write) or observes it already gone (also skips).
		item.Spoolable = false
		c.purgatory.RemoveMatching(key, item)
	}
	unlock.Unlock()

	if ok {
		c.counters.incPurgatoryHit()
		c.metrics.observeGet(true)
		c.metrics.setPurgatorySize(c.purgatory.Len())
		return item.Entry, true
	}
	c.metrics.observeGet(false)

	be, found, err := c.backend.Get(ctx, key)
	if err != nil {
		c.counters.incError()
		c.metrics.observeBackendError(backendErrorKind(err))
		c.logger.WithError(err).WithField(`key`, key).Error(`diskcache: backend get failed`)
		c.queue.Destroy()
		return Entry{}, false
	}
	if !found {
		return Entry{}, false
	}
	return fromBackendEntry(be), true
}

// Remove deletes key synchronously, bypassing the event queue entirely
// (spec.md §4.1). Removing an absent key is not an error.
func (c *Cache) Remove(ctx context.Context, key string) bool {
	if c.loadState() != StateAlive {
		return false
	}

	unlock := c.locks.Lock(key)
	defer unlock.Unlock()

	c.purgatory.Remove(key)

	removed, err := c.backend.Remove(ctx, key)
	if err != nil {
		c.counters.incError()
		c.metrics.observeBackendError(backendErrorKind(err))
		c.logger.WithError(err).WithField(`key`, key).Error(`diskcache: backend remove failed`)
		return false
	}
	c.counters.incRemove()
	c.metrics.observeRemove()
	c.metrics.setPurgatorySize(c.purgatory.Len())
	return removed
}

// RemoveAll swaps the purgatory for an empty map, then asks the Backend to
// remove everything it holds (spec.md §4.1). Events already queued for the
// discarded purgatory become no-ops: their keys are gone.
func (c *Cache) RemoveAll(ctx context.Context) error {
	if c.loadState() != StateAlive {
		return ErrNotAlive
	}

	c.purgatory.SwapEmpty()
	c.metrics.setPurgatorySize(0)

	if err := c.backend.RemoveAll(ctx); err != nil {
		c.counters.incError()
		c.metrics.observeBackendError(backendErrorKind(err))
		c.logger.WithError(err).Error(`diskcache: backend remove_all failed`)
		return err
	}
	return nil
}

// Dispose transitions Alive/Disposing -> Disposed exactly once. Per the
// chosen open-question resolution (spec.md §9), it destroys the event
// queue (immediate stop, discarding anything still queued) before calling
// Backend.Dispose. All errors are logged and swallowed, matching spec.md
// §7's "dispose swallows all errors".
func (c *Cache) Dispose(context.Context) {
	if c.loadState() == StateUninitialized {
		return
	}
	c.beginDispose() // no-op if already Disposing (e.g. via a prior queue failure)

	c.disposeOnce.Do(func() {
		if err := c.queue.Close(); err != nil {
			c.logger.WithError(err).Warn(`diskcache: event queue close failed during dispose`)
		}
		if err := c.backend.Dispose(); err != nil {
			c.logger.WithError(err).Warn(`diskcache: backend dispose failed`)
		}
		c.storeState(StateDisposed)
	})
}

// Size reports the number of entries the Backend currently persists.
func (c *Cache) Size(ctx context.Context) (uint64, error) {
	if c.loadState() != StateAlive {
		return 0, ErrNotAlive
	}
	return c.backend.Size(ctx)
}

// Status reports the cache's current lifecycle state.
func (c *Cache) Status() State {
	return c.loadState()
}

// GetGroupKeys lists keys sharing group as a prefix, if the configured
// Backend implements backend.GroupLister (spec.md §6, optional operation).
func (c *Cache) GetGroupKeys(ctx context.Context, group string) ([]string, error) {
	if c.loadState() != StateAlive {
		return nil, ErrNotAlive
	}
	lister, ok := c.backend.(backend.GroupLister)
	if !ok {
		return nil, backend.ErrUnsupported
	}
	return lister.GetGroupKeys(ctx, group)
}

// Stats returns a point-in-time snapshot of the cache's counters, the
// concrete form of spec.md §7's "statistics surface".
func (c *Cache) Stats() Stats {
	s := c.counters.snapshot()
	if c.purgatory != nil {
		s.PurgatorySize = c.purgatory.Len()
	}
	return s
}

// backendErrorKind classifies err for the BackendErrorsTotal metric label.
func backendErrorKind(err error) string {
	switch {
	case backend.IsFatal(err):
		return `fatal`
	case backend.IsSerialization(err):
		return `serialization`
	case backend.IsTransient(err):
		return `transient`
	default:
		return `unknown`
	}
}

// OnPut implements evqueue.Handler: the queue worker's "fetch-and-validate"
// contract (spec.md §4.2/§4.3). It acquires key's write lock, re-reads the
// purgatory item, and only writes to the Backend if it is still present
// and spoolable — this is how a racing Get's cancellation is observed
// without the queue itself ever being scanned.
func (h *queueHandler) OnPut(ctx context.Context, key string) {
	unlock := h.locks.Lock(key)
	defer unlock.Unlock()

	item, ok := h.purgatory.Get(key)
	if !ok || !item.Spoolable {
		return
	}

	if err := h.backend.Put(ctx, toBackendEntry(item.Entry)); err != nil {
		h.counters.incError()
		h.metrics.observeBackendError(backendErrorKind(err))
		h.logger.WithError(err).WithField(`key`, key).Error(`diskcache: backend put failed`)
		return
	}

	h.purgatory.RemoveMatching(key, item)
	h.metrics.setPurgatorySize(h.purgatory.Len())
}

// OnRemove, OnRemoveAll and OnDispose complete the evqueue.Handler
// contract. Cache.Remove/RemoveAll/Dispose never enqueue these actions
// themselves (spec.md §4.1 makes remove/remove_all synchronous and §9's
// chosen dispose ordering uses Queue.Close rather than a queued Dispose
// event), so in this facade they only run if a future caller enqueues
// them directly via the Queue.
func (h *queueHandler) OnRemove(ctx context.Context, key string) {
	unlock := h.locks.Lock(key)
	defer unlock.Unlock()

	if _, err := h.backend.Remove(ctx, key); err != nil {
		h.counters.incError()
		h.metrics.observeBackendError(backendErrorKind(err))
		h.logger.WithError(err).WithField(`key`, key).Error(`diskcache: queued backend remove failed`)
	}
}

func (h *queueHandler) OnRemoveAll(ctx context.Context) {
	if err := h.backend.RemoveAll(ctx); err != nil {
		h.counters.incError()
		h.metrics.observeBackendError(backendErrorKind(err))
		h.logger.WithError(err).Error(`diskcache: queued backend remove_all failed`)
	}
}

func (h *queueHandler) OnDispose(context.Context) {}
