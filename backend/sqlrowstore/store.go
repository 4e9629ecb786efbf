package sqlrowstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cachekit/diskcache/backend"
)

type (
	// DB is the subset of *sql.DB (or *sql.Tx) this package needs. Callers
	// inject an already-opened handle; Store never calls sql.Open or
	// registers anything in database/sql's global driver table (spec.md
	// §9's "avoid a global driver registry" redesign note).
	DB interface {
		ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
		QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
		QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	}

	// Config is the subset of spec.md §6's recognized options this
	// backend understands.
	Config struct {
		// TableName is the table to target (option: table_name).
		TableName string
		// Region scopes keys within the shared table (option: cache_name
		// / region).
		Region string
		// TestBeforeInsert pre-checks existence with a SELECT before
		// attempting INSERT, instead of relying on the unique-violation
		// catch (option: test_before_insert).
		TestBeforeInsert bool
		// AllowRemoveAll honours RemoveAll; when false, RemoveAll returns
		// backend.ErrRemoveAllDisallowed (option: allow_remove_all).
		AllowRemoveAll bool
	}

	// Store is the reference tabular backend (spec component C7): a
	// `(region, key)` row store with TTL columns, generic over the
	// caller's DB handle.
	Store[C DB] struct {
		DB      C
		Dialect Dialect
		Config  Config

		// Now, if set, overrides time.Now — used by tests to control
		// expiry/sweep behavior deterministically.
		Now func() time.Time
	}
)

var (
	_ backend.Backend     = (*Store[*sql.DB])(nil)
	_ backend.GroupLister = (*Store[*sql.DB])(nil)
	_ Sweepable           = (*Store[*sql.DB])(nil)
)

func (s *Store[C]) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Store[C]) wrapErr(err error) error {
	if err == nil {
		return nil
	}
	return &backend.TransientError{Err: err}
}

// Put upserts entry: attempt INSERT, and on a unique-key violation fall
// through to UPDATE, per spec.md §4.6's upsert protocol. When
// Config.TestBeforeInsert is set, existence is checked with a SELECT
// first instead of relying on the violation catch.
func (s *Store[C]) Put(ctx context.Context, entry backend.Entry) error {
	now := s.now()
	createTimeMS := entry.CreateTimeMS
	if createTimeMS == 0 {
		createTimeMS = now.UnixMilli()
	}
	expireTimeS := int64(0)
	if !entry.IsEternal && entry.MaxLifeSeconds > 0 {
		expireTimeS = createTimeMS/1000 + entry.MaxLifeSeconds
	}

	args := &PutArgs{
		Table:        s.Config.TableName,
		Region:       s.Config.Region,
		Key:          entry.Key,
		Blob:         entry.Value,
		CreateTimeMS: createTimeMS,
		CreateTimeS:  createTimeMS / 1000,
		MaxLifeS:     entry.MaxLifeSeconds,
		ExpireTimeS:  expireTimeS,
		Eternal:      entry.IsEternal,
	}

	if s.Config.TestBeforeInsert {
		exists, err := s.exists(ctx, entry.Key)
		if err != nil {
			return s.wrapErr(err)
		}
		if exists {
			return s.exec(ctx, s.Dialect.Update, args)
		}
		return s.exec(ctx, s.Dialect.Insert, args)
	}

	if err := s.exec(ctx, s.Dialect.Insert, args); err != nil {
		if s.Dialect.IsUniqueViolation(err) {
			return s.exec(ctx, s.Dialect.Update, args)
		}
		return s.wrapErr(err)
	}
	return nil
}

func (s *Store[C]) exists(ctx context.Context, key string) (bool, error) {
	snippet, err := s.Dialect.ExistsCheck(&GetArgs{Table: s.Config.TableName, Region: s.Config.Region, Key: key})
	if err != nil {
		return false, err
	}
	var got string
	err = s.DB.QueryRowContext(ctx, snippet.SQL, snippet.Args...).Scan(&got)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, err
	default:
		return true, nil
	}
}

func (s *Store[C]) exec(ctx context.Context, build func(*PutArgs) (*Snippet, error), args *PutArgs) error {
	snippet, err := build(args)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, snippet.SQL, snippet.Args...)
	return err
}

// Get returns the entry for key, or ok=false if absent or expired (an
// expired row is left for the sweeper to reclaim, not deleted here).
func (s *Store[C]) Get(ctx context.Context, key string) (backend.Entry, bool, error) {
	snippet, err := s.Dialect.Get(&GetArgs{Table: s.Config.TableName, Region: s.Config.Region, Key: key})
	if err != nil {
		return backend.Entry{}, false, s.wrapErr(err)
	}

	var (
		blob            []byte
		createTimeS     int64
		maxLifeS        int64
		expireTimeS     int64
		eternal         string
	)
	row := s.DB.QueryRowContext(ctx, snippet.SQL, snippet.Args...)
	err = row.Scan(&blob, &createTimeS, &maxLifeS, &expireTimeS, &eternal)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return backend.Entry{}, false, nil
	case err != nil:
		return backend.Entry{}, false, s.wrapErr(err)
	}

	isEternal := eternal == `T`
	if !isEternal && expireTimeS > 0 && expireTimeS < s.now().Unix() {
		return backend.Entry{}, false, nil
	}

	return backend.Entry{
		Key:            key,
		Value:          blob,
		CreateTimeMS:   createTimeS * 1000,
		MaxLifeSeconds: maxLifeS,
		IsEternal:      isEternal,
	}, true, nil
}

// Remove deletes key, or every key sharing a group prefix if key carries
// the trailing delimiter marker (spec.md §4.6/§6). Removing an absent key
// is success, per backend.Backend's contract.
func (s *Store[C]) Remove(ctx context.Context, key string) (bool, error) {
	var (
		snippet *Snippet
		err     error
	)
	if prefix, ok := groupPrefix(key); ok {
		snippet, err = s.Dialect.RemoveGroup(&RemoveGroupArgs{Table: s.Config.TableName, Region: s.Config.Region, Prefix: prefix})
	} else {
		snippet, err = s.Dialect.Remove(&RemoveArgs{Table: s.Config.TableName, Region: s.Config.Region, Key: key})
	}
	if err != nil {
		return false, s.wrapErr(err)
	}

	result, err := s.DB.ExecContext(ctx, snippet.SQL, snippet.Args...)
	if err != nil {
		return false, s.wrapErr(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, s.wrapErr(err)
	}
	return n > 0, nil
}

// RemoveAll deletes every row in this Store's region, if configured to
// allow it (spec.md §6, allow_remove_all).
func (s *Store[C]) RemoveAll(ctx context.Context) error {
	if !s.Config.AllowRemoveAll {
		return backend.ErrRemoveAllDisallowed
	}
	snippet, err := s.Dialect.RemoveAll(&RemoveAllArgs{Table: s.Config.TableName, Region: s.Config.Region})
	if err != nil {
		return s.wrapErr(err)
	}
	_, err = s.DB.ExecContext(ctx, snippet.SQL, snippet.Args...)
	return s.wrapErr(err)
}

// Size reports the number of rows in this Store's region.
func (s *Store[C]) Size(ctx context.Context) (uint64, error) {
	snippet, err := s.Dialect.Size(&SizeArgs{Table: s.Config.TableName, Region: s.Config.Region})
	if err != nil {
		return 0, s.wrapErr(err)
	}
	var n uint64
	if err := s.DB.QueryRowContext(ctx, snippet.SQL, snippet.Args...).Scan(&n); err != nil {
		return 0, s.wrapErr(err)
	}
	return n, nil
}

// Dispose is a no-op: the DB handle's lifecycle belongs to whoever
// constructed it (spec.md §9's "prefer injecting a pool handle" note), not
// to Store.
func (s *Store[C]) Dispose() error { return nil }

// GetGroupKeys lists every key sharing the given group prefix.
func (s *Store[C]) GetGroupKeys(ctx context.Context, group string) ([]string, error) {
	snippet, err := s.Dialect.GroupKeys(&GroupKeysArgs{Table: s.Config.TableName, Region: s.Config.Region, Prefix: group})
	if err != nil {
		return nil, s.wrapErr(err)
	}
	rows, err := s.DB.QueryContext(ctx, snippet.SQL, snippet.Args...)
	if err != nil {
		return nil, s.wrapErr(err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, s.wrapErr(err)
		}
		keys = append(keys, key)
	}
	return keys, s.wrapErr(rows.Err())
}

// Sweep deletes every non-eternal, expired row in this Store's region,
// returning the number of rows removed (spec.md §4.6's expiry sweeper).
func (s *Store[C]) Sweep(ctx context.Context) (int64, error) {
	snippet, err := s.Dialect.Sweep(&SweepArgs{Table: s.Config.TableName, Region: s.Config.Region, NowS: s.now().Unix()})
	if err != nil {
		return 0, s.wrapErr(err)
	}
	result, err := s.DB.ExecContext(ctx, snippet.SQL, snippet.Args...)
	if err != nil {
		return 0, s.wrapErr(err)
	}
	n, err := result.RowsAffected()
	return n, s.wrapErr(err)
}

// groupPrefix recognizes a trailing name-component delimiter ('.') as a
// group prefix marker, per spec.md §4.6 — mirrors backendtest.Memory's
// convention so both backends treat group removal identically.
func groupPrefix(key string) (string, bool) {
	if len(key) > 0 && key[len(key)-1] == '.' {
		return key, true
	}
	return ``, false
}
