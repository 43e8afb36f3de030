// Package testutil builds migrated throwaway databases for tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/migrations"
)

// NewSQLiteDB returns a migrated SQLite database in a temp dir. It is closed
// when the test ends.
func NewSQLiteDB(tb testing.TB) *sql.DB {
	tb.Helper()

	ctx := context.Background()
	db, err := dbx.Open(ctx, dbx.DriverSQLite, filepath.Join(tb.TempDir(), "authkeeper.db"))
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })

	if err := migrations.Up(ctx, db, "sqlite3"); err != nil {
		tb.Fatalf("migrate sqlite: %v", err)
	}
	return db
}
