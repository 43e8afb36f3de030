// Package session stores the CLI's signed-in session in the local SQLite
// database. There is at most one session at a time.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
)

type Repository interface {
	// Load returns common.ErrorNotFound when nobody is signed in.
	Load(ctx context.Context) (*models.StoredSession, error)
	Save(ctx context.Context, s *models.StoredSession) error
	// UpdateTokens replaces the token pair of the stored session.
	UpdateTokens(ctx context.Context, accessToken, refreshToken string, at time.Time) error
	Clear(ctx context.Context) error
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Load(ctx context.Context) (*models.StoredSession, error) {
	query := `SELECT email, access_token, refresh_token, updated_at FROM session WHERE id = 1`

	var (
		s         models.StoredSession
		updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, query).Scan(&s.Email, &s.AccessToken, &s.RefreshToken, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	s.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &s, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, s *models.StoredSession) error {
	query := `
		INSERT INTO session (id, email, access_token, refresh_token, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			email = excluded.email,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, s.Email, s.AccessToken, s.RefreshToken, s.UpdatedAt.UnixMilli()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateTokens(ctx context.Context, accessToken, refreshToken string, at time.Time) error {
	query := `UPDATE session SET access_token = ?, refresh_token = ?, updated_at = ? WHERE id = 1`

	res, err := r.db.ExecContext(ctx, query, accessToken, refreshToken, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
