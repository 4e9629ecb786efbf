package diskcache

import (
	"errors"
	"time"

	"github.com/cachekit/diskcache/backend"
)

type (
	// Attributes models the metadata carried alongside an Entry's value.
	Attributes struct {
		// CreateTimeMS is set at first acceptance of the entry, in unix
		// milliseconds. Backends that don't need millisecond precision may
		// derive CreateTimeS from this value.
		CreateTimeMS int64

		// MaxLifeSeconds is the entry's time-to-live, from CreateTimeMS. It
		// is ignored if IsEternal is true.
		MaxLifeSeconds int64

		// IsEternal marks the entry as exempt from expiry sweeps.
		IsEternal bool
	}

	// Entry is the unit of caching. Key must be non-empty.
	Entry struct {
		Key        string
		Value      []byte
		Attributes Attributes
	}
)

// ErrEmptyKey is returned when an Entry is submitted with an empty Key.
var ErrEmptyKey = errors.New(`diskcache: empty key`)

// Validate enforces the Entry invariant: Key is non-empty.
func (e *Entry) Validate() error {
	if e == nil || e.Key == `` {
		return ErrEmptyKey
	}
	return nil
}

// NewEntry constructs an Entry, stamping CreateTimeMS with the current time.
func NewEntry(key string, value []byte, maxLife time.Duration, eternal bool) Entry {
	return Entry{
		Key:   key,
		Value: value,
		Attributes: Attributes{
			CreateTimeMS:   time.Now().UnixMilli(),
			MaxLifeSeconds: int64(maxLife / time.Second),
			IsEternal:      eternal,
		},
	}
}

// toBackendEntry narrows an Entry to the shape backend.Backend consumes.
func toBackendEntry(e Entry) backend.Entry {
	return backend.Entry{
		Key:            e.Key,
		Value:          e.Value,
		CreateTimeMS:   e.Attributes.CreateTimeMS,
		MaxLifeSeconds: e.Attributes.MaxLifeSeconds,
		IsEternal:      e.Attributes.IsEternal,
	}
}

// fromBackendEntry widens a backend.Entry back into an Entry.
func fromBackendEntry(be backend.Entry) Entry {
	return Entry{
		Key:   be.Key,
		Value: be.Value,
		Attributes: Attributes{
			CreateTimeMS:   be.CreateTimeMS,
			MaxLifeSeconds: be.MaxLifeSeconds,
			IsEternal:      be.IsEternal,
		},
	}
}
