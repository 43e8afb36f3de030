package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/client/migrations"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/filex"
)

// InitDatabase opens the local SQLite file at path, creating its directory
// if needed, and migrates it.
func InitDatabase(ctx context.Context, path string) (*sql.DB, error) {
	path, err := filex.EnsureParentDir(path)
	if err != nil {
		return nil, err
	}

	db, err := dbx.Open(ctx, dbx.DriverSQLite, path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return db, nil
}
