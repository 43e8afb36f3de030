package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// SQLiteRepository implements Repository for SQLite. Timestamps are unix
// milliseconds. The handle is expected to allow a single connection, which
// serializes transactions and makes an explicit row lock unnecessary.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, t *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (token, user_id, client_ip, user_agent, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, query,
		t.Token, t.UserID, t.ClientIP, t.UserAgent, t.CreatedAt.UnixMilli(), t.ExpiresAt.UnixMilli()); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT token, user_id, client_ip, user_agent, created_at, expires_at
		FROM refresh_tokens WHERE token = ?
	`
	t, err := scanToken(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) FindForUpdate(ctx context.Context, token string) (*models.RefreshToken, error) {
	return r.Find(ctx, token)
}

func (r *SQLiteRepository) Delete(ctx context.Context, token string) error {
	n, err := r.exec(ctx, `DELETE FROM refresh_tokens WHERE token = ?`, token)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteLiveByUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	return r.exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = ? AND expires_at >= ?`, userID, now.UnixMilli())
}

func (r *SQLiteRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	return r.exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = ?`, userID)
}

func (r *SQLiteRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < ?`, now.UnixMilli())
}

func (r *SQLiteRepository) ListLiveByUser(ctx context.Context, userID string, now time.Time) ([]*models.RefreshToken, error) {
	query := `
		SELECT token, user_id, client_ip, user_agent, created_at, expires_at
		FROM refresh_tokens
		WHERE user_id = ? AND expires_at >= ?
		ORDER BY created_at DESC, token
	`
	rows, err := r.db.QueryContext(ctx, query, userID, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.RefreshToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanToken(s scanner) (*models.RefreshToken, error) {
	var (
		t                  models.RefreshToken
		created, expiresAt int64
	)
	if err := s.Scan(&t.Token, &t.UserID, &t.ClientIP, &t.UserAgent, &created, &expiresAt); err != nil {
		return nil, err
	}
	t.CreatedAt = time.UnixMilli(created).UTC()
	t.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	return &t, nil
}
