package dbx

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "dbx.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT);`)
	require.NoError(t, err)
	return db
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
	return n
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('ok')`)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 1, countRows(t, db), "must commit on success")
}

func TestWithTx_RollbackOnFnError(t *testing.T) {
	db := setupDB(t)
	boom := errors.New("boom")

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('first')`)
		require.NoError(t, e)
		_, e = tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('second')`)
		require.NoError(t, e)
		return boom
	})
	require.ErrorIs(t, err, boom, "fn error must be returned unchanged")
	require.Equal(t, 0, countRows(t, db), "both inserts must be undone")
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := setupDB(t)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic to propagate")
		}
		require.Equal(t, 0, countRows(t, db), "must rollback on panic")
	}()

	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('panic')`)
		require.NoError(t, e)
		panic("kaput")
	})
}

func TestWithTx_CancelledContext(t *testing.T) {
	db := setupDB(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('cancelled')`)
		require.NoError(t, e)
		cancel()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, countRows(t, db))
}

func TestWithTx_BeginError(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Close())

	called := false
	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		called = true
		return nil
	})
	require.Error(t, err, "begin should fail when DB is closed")
	require.False(t, called)
}

func TestWithReadOnly_NeverPersists(t *testing.T) {
	db := setupDB(t)
	_, err := db.Exec(`INSERT INTO t(v) VALUES ('seed')`)
	require.NoError(t, err)

	var seen int
	err = WithReadOnly(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM t`).Scan(&seen); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('leak')`)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 1, seen)
	require.Equal(t, 1, countRows(t, db), "read-only unit must not leave durable writes")
}

func TestWithReadOnly_PassesErrorThrough(t *testing.T) {
	db := setupDB(t)
	want := errors.New("lookup failed")

	err := WithReadOnly(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return want
	})
	require.ErrorIs(t, err, want)
}

func TestWithReadOnly_RepanicsAfterRollback(t *testing.T) {
	db := setupDB(t)

	require.Panics(t, func() {
		_ = WithReadOnly(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
			panic("kaput")
		})
	})

	// the single connection must have been released
	require.Equal(t, 0, countRows(t, db))
}
