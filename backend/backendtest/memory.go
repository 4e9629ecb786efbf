// Package backendtest provides an in-memory backend.Backend, used by this
// repository's own tests so facade/purgatory/queue behavior can be
// exercised without a real database. It is not a spec component; it plays
// the same role catrate/export's Unimplemented* stand-ins play for the
// teacher's own test suites.
package backendtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cachekit/diskcache/backend"
)

type (
	// Memory is a backend.Backend backed by a plain map, guarded by a
	// mutex. Entries with MaxLifeSeconds > 0 expire based on a Now func,
	// which defaults to time.Now and may be overridden for tests.
	Memory struct {
		mu       sync.Mutex
		rows     map[string]backend.Entry
		disposed bool

		// Now, if set, overrides time.Now for expiry checks in Get/Sweep.
		Now func() time.Time

		// AllowRemoveAll mirrors the reference backend's configuration
		// switch (spec.md §4.6). Defaults to true.
		AllowRemoveAll bool

		// PutErr, if set, is returned by Put instead of succeeding, to
		// simulate backend failures in tests.
		PutErr error
		// GetErr, if set, is returned by Get instead of succeeding.
		GetErr error
	}
)

var _ backend.Backend = (*Memory)(nil)
var _ backend.GroupLister = (*Memory)(nil)

// NewMemory constructs a ready-to-use Memory backend.
func NewMemory() *Memory {
	return &Memory{
		rows:           make(map[string]backend.Entry),
		AllowRemoveAll: true,
	}
}

func (m *Memory) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Memory) Put(_ context.Context, entry backend.Entry) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[entry.Key] = entry
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (backend.Entry, bool, error) {
	if m.GetErr != nil {
		return backend.Entry{}, false, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.rows[key]
	if !ok {
		return backend.Entry{}, false, nil
	}
	if m.expired(entry) {
		delete(m.rows, key)
		return backend.Entry{}, false, nil
	}
	return entry, true, nil
}

func (m *Memory) expired(entry backend.Entry) bool {
	if entry.IsEternal || entry.MaxLifeSeconds <= 0 {
		return false
	}
	expireAt := time.UnixMilli(entry.CreateTimeMS).Add(time.Duration(entry.MaxLifeSeconds) * time.Second)
	return m.now().After(expireAt)
}

func (m *Memory) Remove(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prefix, ok := groupPrefix(key); ok {
		var removed bool
		for k := range m.rows {
			if strings.HasPrefix(k, prefix) {
				delete(m.rows, k)
				removed = true
			}
		}
		return removed, nil
	}
	if _, ok := m.rows[key]; !ok {
		return false, nil
	}
	delete(m.rows, key)
	return true, nil
}

func (m *Memory) RemoveAll(_ context.Context) error {
	if !m.AllowRemoveAll {
		return backend.ErrRemoveAllDisallowed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = make(map[string]backend.Entry)
	return nil
}

func (m *Memory) Size(_ context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.rows)), nil
}

func (m *Memory) Dispose() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disposed = true
	return nil
}

func (m *Memory) GetGroupKeys(_ context.Context, group string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.rows {
		if strings.HasPrefix(k, group) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Sweep removes expired, non-eternal entries, mirroring the reference
// backend's periodic expiry sweep (spec.md §4.6).
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for k, entry := range m.rows {
		if m.expired(entry) {
			delete(m.rows, k)
			n++
		}
	}
	return n
}

// groupPrefix recognizes a trailing name-component delimiter ('.') as a
// group prefix marker, per spec.md §4.6.
func groupPrefix(key string) (string, bool) {
	if strings.HasSuffix(key, `.`) {
		return key, true
	}
	return ``, false
}
