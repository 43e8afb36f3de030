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

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, t *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (token, user_id, client_ip, user_agent, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.ExecContext(ctx, query,
		t.Token, t.UserID, t.ClientIP, t.UserAgent, t.CreatedAt, t.ExpiresAt); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	return r.find(ctx, `
		SELECT token, user_id, client_ip, user_agent, created_at, expires_at
		FROM refresh_tokens
		WHERE token = $1
	`, token)
}

// FindForUpdate locks the row, so a concurrent rotation of the same token
// blocks until this transaction commits and then finds nothing.
func (r *PostgresRepository) FindForUpdate(ctx context.Context, token string) (*models.RefreshToken, error) {
	return r.find(ctx, `
		SELECT token, user_id, client_ip, user_agent, created_at, expires_at
		FROM refresh_tokens
		WHERE token = $1
		FOR UPDATE
	`, token)
}

func (r *PostgresRepository) find(ctx context.Context, query, token string) (*models.RefreshToken, error) {
	t := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, token).
		Scan(&t.Token, &t.UserID, &t.ClientIP, &t.UserAgent, &t.CreatedAt, &t.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, token string) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE token = $1
	`
	n, err := r.exec(ctx, query, token)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteLiveByUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE user_id = $1 AND expires_at >= $2
	`
	return r.exec(ctx, query, userID, now)
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE user_id = $1
	`
	return r.exec(ctx, query, userID)
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at < $1
	`
	return r.exec(ctx, query, now)
}

func (r *PostgresRepository) ListLiveByUser(ctx context.Context, userID string, now time.Time) ([]*models.RefreshToken, error) {
	query := `
		SELECT token, user_id, client_ip, user_agent, created_at, expires_at
		FROM refresh_tokens
		WHERE user_id = $1 AND expires_at >= $2
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.RefreshToken
	for rows.Next() {
		t := &models.RefreshToken{}
		if err := rows.Scan(&t.Token, &t.UserID, &t.ClientIP, &t.UserAgent, &t.CreatedAt, &t.ExpiresAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
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
