// Package lockreg implements a per-key reader/writer lock registry (spec
// component C5): the facade and the event queue worker serialize their
// "is it still spoolable?" decisions on a per-key basis through locks
// obtained here, rather than through one global mutex.
//
// Entries are reference-counted and reclaimed once neither readers nor
// writers hold them, to bound memory under key churn - the same shape as
// the sliding-window category cleanup this package is grounded on, just
// applied to lock lifetime instead of rate-limit retention.
package lockreg

import (
	"sync"
	"sync/atomic"
	"time"
)

type (
	// Registry hands out per-key reader/writer locks. The zero value is
	// not usable; construct with New.
	Registry struct {
		running *int32
		keys    sync.Map // string -> *keyLock
		// idle is how long a key may sit unheld before its keyLock is
		// eligible for reclamation by the cleanup worker.
		idle time.Duration
		mu   sync.RWMutex
	}

	keyLock struct {
		mu  sync.RWMutex
		ref int32 // outstanding Lock/RLock holders
	}

	// Unlocker releases a lock obtained from Registry. Calling Unlock more
	// than once has undefined behavior, matching sync.Mutex.
	Unlocker interface {
		Unlock()
	}
)

var keyLockPool = sync.Pool{New: func() any { return new(keyLock) }}

const defaultIdle = time.Minute

// New constructs a Registry. idle configures how long an unreferenced
// per-key lock lingers before the background sweep reclaims it; zero or
// negative selects a one-minute default.
func New(idle time.Duration) *Registry {
	if idle <= 0 {
		idle = defaultIdle
	}
	return &Registry{running: new(int32), idle: idle}
}

func (r *Registry) load(key string) *keyLock {
	// avoid racing with cleanup deleting the entry out from under us
	r.mu.RLock()
	defer r.mu.RUnlock()

	if atomic.CompareAndSwapInt32(r.running, 0, 1) {
		go r.worker()
	}

	poolValue := keyLockPool.Get().(*keyLock)
	value, loaded := r.keys.LoadOrStore(key, poolValue)
	if loaded {
		keyLockPool.Put(poolValue)
	}
	kl := value.(*keyLock)
	atomic.AddInt32(&kl.ref, 1)
	return kl
}

func (r *Registry) release(kl *keyLock) {
	atomic.AddInt32(&kl.ref, -1)
}

// Lock acquires the exclusive (write) lock for key, returning an Unlocker
// that must be called to release it.
func (r *Registry) Lock(key string) Unlocker {
	kl := r.load(key)
	kl.mu.Lock()
	return &writeUnlocker{r: r, kl: kl}
}

// RLock acquires the shared (read) lock for key.
func (r *Registry) RLock(key string) Unlocker {
	kl := r.load(key)
	kl.mu.RLock()
	return &readUnlocker{r: r, kl: kl}
}

type (
	writeUnlocker struct {
		r  *Registry
		kl *keyLock
	}
	readUnlocker struct {
		r  *Registry
		kl *keyLock
	}
)

func (u *writeUnlocker) Unlock() {
	u.kl.mu.Unlock()
	u.r.release(u.kl)
}

func (u *readUnlocker) Unlock() {
	u.kl.mu.RUnlock()
	u.r.release(u.kl)
}

// worker periodically reclaims keyLocks with no outstanding holders,
// stopping itself once the registry is empty (restarted lazily by the
// next Lock/RLock call, per the CompareAndSwap in load).
func (r *Registry) worker() {
	ticker := time.NewTicker(r.idle)
	defer ticker.Stop()

	for range ticker.C {
		var toDelete []string
		chanceOfStop := true
		r.keys.Range(func(key, value any) bool {
			kl := value.(*keyLock)
			if atomic.LoadInt32(&kl.ref) == 0 {
				toDelete = append(toDelete, key.(string))
			} else {
				chanceOfStop = false
			}
			return true
		})

		if len(toDelete) != 0 {
			if r.cleanup(toDelete, chanceOfStop) {
				return
			}
		} else if chanceOfStop {
			if r.cleanup(nil, true) {
				return
			}
		}
	}
}

func (r *Registry) cleanup(toDelete []string, chanceOfStop bool) (mustStop bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range toDelete {
		value, ok := r.keys.Load(key)
		if !ok {
			continue
		}
		kl := value.(*keyLock)
		if atomic.LoadInt32(&kl.ref) != 0 {
			chanceOfStop = false
			continue
		}
		r.keys.Delete(key)
		keyLockPool.Put(kl)
	}

	if chanceOfStop {
		r.keys.Range(func(_, _ any) bool {
			chanceOfStop = false
			return false
		})
		if chanceOfStop {
			*r.running = 0
			return true
		}
	}

	return false
}
