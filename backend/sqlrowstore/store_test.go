package sqlrowstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachekit/diskcache/backend"
)

func testEntry(key, value string, maxLifeS int64, eternal bool) backend.Entry {
	return backend.Entry{
		Key:            key,
		Value:          []byte(value),
		CreateTimeMS:   1_700_000_000_000,
		MaxLifeSeconds: maxLifeS,
		IsEternal:      eternal,
	}
}

func newTestStore(t *testing.T) (*Store[*sql.DB], sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := &Store[*sql.DB]{
		DB:      db,
		Dialect: MySQLDialect{},
		Config: Config{
			TableName:      `cache_entries`,
			Region:          `myregion`,
			AllowRemoveAll:  true,
		},
		Now: func() time.Time { return time.Unix(1_700_000_000, 0).UTC() },
	}
	return store, mock
}

func TestStore_Put_insertSucceeds(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(`INSERT INTO cache_entries`).
		WithArgs(`myregion`, `k`, []byte(`v`), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(60), sqlmock.AnyArg(), `F`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Put(context.Background(), testEntry(`k`, `v`, 60, false))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Put_insertCollisionFallsBackToUpdate(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(`INSERT INTO cache_entries`).
		WillReturnError(errors.New(`Error 1062: Duplicate entry 'myregion-k' for key 'PRIMARY'`))
	mock.ExpectExec(`UPDATE cache_entries`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(60), sqlmock.AnyArg(), `F`, `myregion`, `k`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Put(context.Background(), testEntry(`k`, `v`, 60, false))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Put_testBeforeInsert(t *testing.T) {
	store, mock := newTestStore(t)
	store.Config.TestBeforeInsert = true

	mock.ExpectQuery("SELECT `key` FROM cache_entries").
		WithArgs(`myregion`, `k`).
		WillReturnRows(sqlmock.NewRows([]string{`key`}).AddRow(`k`))
	mock.ExpectExec(`UPDATE cache_entries`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Put(context.Background(), testEntry(`k`, `v`, 60, false))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_found(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT blob, create_time_s, max_life_s, expire_time_s, eternal FROM cache_entries").
		WithArgs(`myregion`, `k`).
		WillReturnRows(sqlmock.NewRows([]string{`blob`, `create_time_s`, `max_life_s`, `expire_time_s`, `eternal`}).
			AddRow([]byte(`v`), int64(1_699_999_000), int64(60), int64(1_700_000_060), `F`))

	entry, ok, err := store.Get(context.Background(), `k`)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`v`), entry.Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_absentIsNotAnError(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT blob").
		WillReturnError(sql.ErrNoRows)

	_, ok, err := store.Get(context.Background(), `missing`)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Get_expiredTreatedAsAbsent(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT blob").
		WillReturnRows(sqlmock.NewRows([]string{`blob`, `create_time_s`, `max_life_s`, `expire_time_s`, `eternal`}).
			AddRow([]byte(`v`), int64(1_600_000_000), int64(60), int64(1_600_000_060), `F`))

	_, ok, err := store.Get(context.Background(), `k`)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Remove_singleKey(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("DELETE FROM cache_entries WHERE region = \\? AND `key` = \\?").
		WithArgs(`myregion`, `k`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	removed, err := store.Remove(context.Background(), `k`)
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestStore_Remove_groupPrefix(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("DELETE FROM cache_entries WHERE region = \\? AND `key` LIKE \\?").
		WithArgs(`myregion`, `group.%`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	removed, err := store.Remove(context.Background(), `group.`)
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestStore_RemoveAll_disallowed(t *testing.T) {
	store, _ := newTestStore(t)
	store.Config.AllowRemoveAll = false

	err := store.RemoveAll(context.Background())
	assert.ErrorIs(t, err, backend.ErrRemoveAllDisallowed)
}

func TestStore_Size(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM cache_entries`).
		WithArgs(`myregion`).
		WillReturnRows(sqlmock.NewRows([]string{`count`}).AddRow(42))

	n, err := store.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)
}

func TestStore_Sweep(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("DELETE FROM cache_entries WHERE region = \\? AND eternal = 'F' AND expire_time_s < \\?").
		WithArgs(`myregion`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 5))

	n, err := store.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestMySQLDialect_IsUniqueViolation(t *testing.T) {
	d := MySQLDialect{}
	assert.True(t, d.IsUniqueViolation(errors.New(`Duplicate entry 'x' for key 'PRIMARY'`)))
	assert.True(t, d.IsUniqueViolation(errors.New(`Violation of unique index`)))
	assert.False(t, d.IsUniqueViolation(errors.New(`connection refused`)))
	assert.False(t, d.IsUniqueViolation(nil))
}
