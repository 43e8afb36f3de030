// Package migrations embeds the goose migrations of the CLI's local SQLite
// database.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed sqlite/*.sql
var Migrations embed.FS

var gooseMu sync.Mutex

// Up applies every pending migration to db.
func Up(ctx context.Context, db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(Migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "sqlite")
}
