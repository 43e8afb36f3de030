// Package repomanager vends backend-specific repositories bound to a
// dbx.DBTX, and runs the matching schema migrations.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	// ReadOnlyTxOptions are the options passed to dbx.WithReadOnly.
	ReadOnlyTxOptions() *sql.TxOptions
}

// migrateUp is a seam for testing migrations.Up.
var migrateUp = migrations.Up

// New returns the manager for a database/sql driver name.
func New(driver string) (RepositoryManager, error) {
	switch driver {
	case dbx.DriverPostgres:
		return NewPostgresRepositoryManager(), nil
	case dbx.DriverSQLite:
		return NewSQLiteRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("no repository manager for driver %q", driver)
	}
}
