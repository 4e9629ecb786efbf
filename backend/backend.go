// Package backend defines the contract between the disk cache facade and a
// pluggable persistence backend (spec component C2), plus the error kinds a
// conforming backend is expected to surface.
package backend

import (
	"context"
	"errors"
)

type (
	// Entry is the minimal shape a Backend needs of a cache entry. It
	// mirrors diskcache.Entry without importing the root package, so
	// backend implementations never need to depend on the facade.
	Entry struct {
		Key            string
		Value          []byte
		CreateTimeMS   int64
		MaxLifeSeconds int64
		IsEternal      bool
	}

	// Backend executes get/put/remove/remove_all/size against durable
	// storage. Implementations must be safe for concurrent use.
	//
	// Semantics required of any conforming Backend (spec.md §4.5):
	//   - Remove is idempotent: removing an absent key succeeds and
	//     reports false.
	//   - Put overwrites on key collision (upsert semantics).
	//   - Get returns (Entry{}, false, nil) for expired or absent entries.
	Backend interface {
		// Put upserts entry. Errors should be classified by the caller as
		// Transient or Fatal using IsTransient/IsFatal, or wrapped as such
		// if the backend doesn't do it itself.
		Put(ctx context.Context, entry Entry) error

		// Get returns the entry for key, or ok=false if absent or expired.
		Get(ctx context.Context, key string) (entry Entry, ok bool, err error)

		// Remove deletes key, reporting whether a row was actually
		// removed. Removing an absent key is success, not an error.
		Remove(ctx context.Context, key string) (removed bool, err error)

		// RemoveAll deletes every entry the backend holds. Implementations
		// may refuse this (see ErrRemoveAllDisallowed) when bulk deletion is
		// considered dangerous for the deployment.
		RemoveAll(ctx context.Context) error

		// Size reports the number of entries currently persisted.
		Size(ctx context.Context) (uint64, error)

		// Dispose releases any resources (connections, timers) held by the
		// backend. It must be safe to call more than once.
		Dispose() error
	}

	// GroupLister is an optional Backend capability: listing keys sharing a
	// group prefix (spec.md §6, GetGroupKeys). Backends that don't support
	// it should simply not implement this interface; the facade falls back
	// to ErrUnsupported.
	GroupLister interface {
		GetGroupKeys(ctx context.Context, group string) ([]string, error)
	}
)

var (
	// ErrUnsupported is returned for optional operations (e.g. group key
	// listing) a given Backend does not implement.
	ErrUnsupported = errors.New(`diskcache/backend: unsupported operation`)

	// ErrRemoveAllDisallowed is returned by RemoveAll when a backend has
	// been configured to refuse bulk deletion (spec.md §4.6,
	// allow_remove_all).
	ErrRemoveAllDisallowed = errors.New(`diskcache/backend: remove_all disallowed by configuration`)
)

type (
	// TransientError wraps a recoverable Backend error: I/O, timeout,
	// connection loss. Callers should log and continue; a single event is
	// dropped, the queue keeps running.
	TransientError struct{ Err error }

	// FatalError wraps an unrecoverable Backend error, such as repeated
	// transient failures. The facade uses it only to label the backend
	// error metric: a FatalError returned by a queued Put is logged like
	// any other error and does not destroy the event queue.
	FatalError struct{ Err error }

	// SerializationError indicates an entry could not be encoded/decoded.
	// The single affected event is dropped; the cache remains healthy.
	SerializationError struct{ Err error }
)

func (e *TransientError) Error() string      { return `diskcache: transient backend error: ` + e.Err.Error() }
func (e *TransientError) Unwrap() error      { return e.Err }
func (e *FatalError) Error() string          { return `diskcache: fatal backend error: ` + e.Err.Error() }
func (e *FatalError) Unwrap() error          { return e.Err }
func (e *SerializationError) Error() string  { return `diskcache: serialization error: ` + e.Err.Error() }
func (e *SerializationError) Unwrap() error  { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsFatal reports whether err is (or wraps) a FatalError.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}

// IsSerialization reports whether err is (or wraps) a SerializationError.
func IsSerialization(err error) bool {
	var s *SerializationError
	return errors.As(err, &s)
}
