package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
)

// SQLiteRepositoryManager vends SQLite-backed repositories. Used for
// single-node deployments and tests.
type SQLiteRepositoryManager struct{}

func NewSQLiteRepositoryManager() *SQLiteRepositoryManager {
	return &SQLiteRepositoryManager{}
}

func (m *SQLiteRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return refreshtokens.NewSQLiteRepository(db)
}

// ReadOnlyTxOptions returns nil: the sqlite driver rejects read-only
// transaction options, and dbx.WithReadOnly rolls back regardless.
func (m *SQLiteRepositoryManager) ReadOnlyTxOptions() *sql.TxOptions {
	return nil
}

func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrateUp(ctx, db, "sqlite3")
}
