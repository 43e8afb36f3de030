package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/client/migrations"
	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()
	db, err := dbx.Open(ctx, dbx.DriverSQLite, filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(ctx, db))
	return NewSQLiteRepository(db)
}

func TestSQLiteRepository_LoadEmpty(t *testing.T) {
	_, err := newRepo(t).Load(context.Background())
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSQLiteRepository_SaveOverwrites(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, &models.StoredSession{Email: "a@b.io", AccessToken: "a1", RefreshToken: "r1", UpdatedAt: at}))
	require.NoError(t, repo.Save(ctx, &models.StoredSession{Email: "c@d.io", AccessToken: "a2", RefreshToken: "r2", UpdatedAt: at}))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, &models.StoredSession{Email: "c@d.io", AccessToken: "a2", RefreshToken: "r2", UpdatedAt: at}, got)
}

func TestSQLiteRepository_UpdateTokens(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	err := repo.UpdateTokens(ctx, "a", "r", at)
	require.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, repo.Save(ctx, &models.StoredSession{Email: "a@b.io", AccessToken: "a1", RefreshToken: "r1", UpdatedAt: at}))
	require.NoError(t, repo.UpdateTokens(ctx, "a2", "r2", at.Add(time.Minute)))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@b.io", got.Email)
	assert.Equal(t, "a2", got.AccessToken)
	assert.Equal(t, "r2", got.RefreshToken)
	assert.True(t, at.Add(time.Minute).Equal(got.UpdatedAt))
}

func TestSQLiteRepository_Clear(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Clear(ctx))
	require.NoError(t, repo.Save(ctx, &models.StoredSession{Email: "a@b.io", UpdatedAt: time.Now()}))
	require.NoError(t, repo.Clear(ctx))

	_, err := repo.Load(ctx)
	require.ErrorIs(t, err, common.ErrorNotFound)
}
