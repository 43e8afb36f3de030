package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// Up applies every pending migration for dialect ("pgx" or "sqlite3").
func Up(ctx context.Context, db *sql.DB, dialect string) error {
	var dir string
	switch dialect {
	case "pgx", "postgres":
		dir = PostgresDir
	case "sqlite3", "sqlite":
		dialect, dir = "sqlite3", SQLiteDir
	default:
		return fmt.Errorf("no migrations for dialect %q", dialect)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(Migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, dir)
}
