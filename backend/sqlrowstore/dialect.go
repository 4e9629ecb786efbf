// Package sqlrowstore implements the reference tabular backend (spec
// component C7): a single-table `(region, key)` row store with TTL
// columns, upsert via insert-then-catch-unique-violation, and a periodic
// expiry sweep.
//
// The Snippet/Dialect split, and the generic wrapper around a caller-
// supplied database handle instead of a global driver registry, follow
// the shape of an SQL export toolkit — scaled down to a single table,
// since this store has no joins, no multi-table schema graph, and no need
// for an AST-based query builder.
package sqlrowstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

type (
	// Snippet is a parameterized SQL statement and its bind arguments.
	Snippet struct {
		SQL  string
		Args []any
	}

	// GetArgs identifies a single row by its primary key.
	GetArgs struct {
		Table, Region, Key string
	}

	// PutArgs carries the full row payload for an insert or update.
	PutArgs struct {
		Table, Region, Key string
		Blob               []byte
		CreateTimeMS       int64
		CreateTimeS        int64
		MaxLifeS           int64
		ExpireTimeS        int64
		Eternal            bool
	}

	RemoveArgs struct {
		Table, Region, Key string
	}

	RemoveGroupArgs struct {
		Table, Region, Prefix string
	}

	RemoveAllArgs struct {
		Table, Region string
	}

	SizeArgs struct {
		Table, Region string
	}

	GroupKeysArgs struct {
		Table, Region, Prefix string
	}

	SweepArgs struct {
		Table, Region string
		NowS          int64
	}

	// Dialect builds the Snippets sqlrowstore needs, and recognizes a
	// unique-key-violation error in a vendor-specific way. Note that all
	// builder methods should return (nil, nil) if args is nil — see
	// UnimplementedDialect.
	Dialect interface {
		Get(args *GetArgs) (*Snippet, error)
		ExistsCheck(args *GetArgs) (*Snippet, error)
		Insert(args *PutArgs) (*Snippet, error)
		Update(args *PutArgs) (*Snippet, error)
		Remove(args *RemoveArgs) (*Snippet, error)
		RemoveGroup(args *RemoveGroupArgs) (*Snippet, error)
		RemoveAll(args *RemoveAllArgs) (*Snippet, error)
		Size(args *SizeArgs) (*Snippet, error)
		GroupKeys(args *GroupKeysArgs) (*Snippet, error)
		Sweep(args *SweepArgs) (*Snippet, error)

		// IsUniqueViolation reports whether err indicates a primary-key
		// collision on the last Insert — the trigger for the
		// insert-then-update upsert fallback (spec.md §4.6).
		IsUniqueViolation(err error) bool

		mustEmbedUnimplementedDialect()
	}

	// UnimplementedDialect may be embedded by a Dialect to satisfy methods
	// it doesn't implement; each returns ErrUnimplemented.
	UnimplementedDialect struct{}
)

var (
	// ErrUnimplemented is returned by UnimplementedDialect's methods.
	ErrUnimplemented = errors.New(`sqlrowstore: unimplemented`)

	_ Dialect = UnimplementedDialect{}
)

func (UnimplementedDialect) Get(*GetArgs) (*Snippet, error)                { return nil, ErrUnimplemented }
func (UnimplementedDialect) ExistsCheck(*GetArgs) (*Snippet, error)        { return nil, ErrUnimplemented }
func (UnimplementedDialect) Insert(*PutArgs) (*Snippet, error)             { return nil, ErrUnimplemented }
func (UnimplementedDialect) Update(*PutArgs) (*Snippet, error)             { return nil, ErrUnimplemented }
func (UnimplementedDialect) Remove(*RemoveArgs) (*Snippet, error)          { return nil, ErrUnimplemented }
func (UnimplementedDialect) RemoveGroup(*RemoveGroupArgs) (*Snippet, error) {
	return nil, ErrUnimplemented
}
func (UnimplementedDialect) RemoveAll(*RemoveAllArgs) (*Snippet, error)     { return nil, ErrUnimplemented }
func (UnimplementedDialect) Size(*SizeArgs) (*Snippet, error)               { return nil, ErrUnimplemented }
func (UnimplementedDialect) GroupKeys(*GroupKeysArgs) (*Snippet, error)     { return nil, ErrUnimplemented }
func (UnimplementedDialect) Sweep(*SweepArgs) (*Snippet, error)             { return nil, ErrUnimplemented }
func (UnimplementedDialect) IsUniqueViolation(error) bool                  { return false }
func (UnimplementedDialect) mustEmbedUnimplementedDialect()                {}

// MySQLDialect targets MySQL/MariaDB via github.com/go-sql-driver/mysql.
// Column order is fixed: region, key, blob, create_time, create_time_s,
// max_life_s, expire_time_s, eternal (spec.md §4.6's schema).
type MySQLDialect struct {
	//lint:ignore U1000 embedded for its methods
	UnimplementedDialect
}

var _ Dialect = (*MySQLDialect)(nil)

const mysqlColumns = `region, ` + "`key`" + `, blob, create_time, create_time_s, max_life_s, expire_time_s, eternal`

func eternalFlag(eternal bool) string {
	if eternal {
		return `T`
	}
	return `F`
}

func (MySQLDialect) Get(args *GetArgs) (*Snippet, error) {
	if args == nil {
		return nil, nil
	}
	return &Snippet{
		SQL:  fmt.Sprintf("SELECT blob, create_time_s, max_life_s, expire_time_s, eternal FROM %s WHERE region = ? AND `key` = ?", args.Table),
		Args: []any{args.Region, args.Key},
	}, nil
}

func (MySQLDialect) ExistsCheck(args *GetArgs) (*Snippet, error) {
	if args == nil {
		return nil, nil
	}
	return &Snippet{
		SQL:  fmt.Sprintf("SELECT `key` FROM %s WHERE region = ? AND `key` = ?", args.Table),
		Args: []any{args.Region, args.Key},
	}, nil
}

func (MySQLDialect) Insert(args *PutArgs) (*Snippet, error) {
	if args == nil {
		return nil, nil
	}
	return &Snippet{
		SQL: fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (?, ?, ?, FROM_UNIXTIME(?), ?, ?, ?, ?)",
			args.Table, mysqlColumns,
		),
		Args: []any{
			args.Region, args.Key, args.Blob, args.CreateTimeMS / 1000,
			args.CreateTimeS, args.MaxLifeS, args.ExpireTimeS, eternalFlag(args.Eternal),
		},
	}, nil
}

func (MySQLDialect) Update(args *PutArgs) (*Snippet, error) {
	if args == nil {
		return nil, nil
	}
	return &Snippet{
		SQL: fmt.Sprintf(
			"UPDATE %s SET blob = ?, create_time = FROM_UNIXTIME(?), create_time_s = ?, max_life_s = ?, expire_time_s = ?, eternal = ? WHERE region = ? AND `key` = ?",
			args.Table,
		),
		Args: []any{
			args.Blob, args.CreateTimeMS / 1000, args.CreateTimeS, args.MaxLifeS,
			args.ExpireTimeS, eternalFlag(args.Eternal), args.Region, args.Key,
		},
	}, nil
}

func (MySQLDialect) Remove(args *RemoveArgs) (*Snippet, error) {
	if args == nil {
		return nil, nil
	}
	return &Snippet{
		SQL:  fmt.Sprintf("DELETE FROM %s WHERE region = ? AND `key` = ?", args.Table),
		Args: []any{args.Region, args.Key},
	}, nil
}

func (MySQLDialect) RemoveGroup(args *RemoveGroupArgs) (*Snippet, error) {
	if args == nil {
		return nil, nil
	}
	return &Snippet{
		SQL:  fmt.Sprintf("DELETE FROM %s WHERE region = ? AND `key` LIKE ?", args.Table),
		Args: []any{args.Region, args.Prefix + `%`},
	}, nil
}

func (MySQLDialect) RemoveAll(args *RemoveAllArgs) (*Snippet, error) {
	if args == nil {
		return nil, nil
	}
	return &Snippet{
		SQL:  fmt.Sprintf("DELETE FROM %s WHERE region = ?", args.Table),
		Args: []any{args.Region},
	}, nil
}

func (MySQLDialect) Size(args *SizeArgs) (*Snippet, error) {
	if args == nil {
		return nil, nil
	}
	return &Snippet{
		SQL:  fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE region = ?", args.Table),
		Args: []any{args.Region},
	}, nil
}

func (MySQLDialect) GroupKeys(args *GroupKeysArgs) (*Snippet, error) {
	if args == nil {
		return nil, nil
	}
	return &Snippet{
		SQL:  fmt.Sprintf("SELECT `key` FROM %s WHERE region = ? AND `key` LIKE ?", args.Table),
		Args: []any{args.Region, args.Prefix + `%`},
	}, nil
}

func (MySQLDialect) Sweep(args *SweepArgs) (*Snippet, error) {
	if args == nil {
		return nil, nil
	}
	return &Snippet{
		SQL:  fmt.Sprintf("DELETE FROM %s WHERE region = ? AND eternal = 'F' AND expire_time_s < ?", args.Table),
		Args: []any{args.Region, args.NowS},
	}, nil
}

// IsUniqueViolation matches spec.md §4.6's required portable text match
// ("Duplicate entry", "Violation of unique index"), preferring the
// vendor-neutral *mysql.MySQLError code (1062, ER_DUP_ENTRY) when the
// driver surfaces it directly (spec.md §9's redesign note).
func (MySQLDialect) IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var merr *mysql.MySQLError
	if errors.As(err, &merr) {
		return merr.Number == 1062
	}
	msg := err.Error()
	return strings.Contains(msg, `Duplicate entry`) || strings.Contains(msg, `Violation of unique index`)
}
