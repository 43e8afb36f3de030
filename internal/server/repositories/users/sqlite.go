package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteRepository implements Repository for SQLite. Timestamps are stored
// as unix milliseconds.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (id, email, username, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Username, user.PasswordHash,
		user.CreatedAt.UnixMilli(), user.UpdatedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("db error: %w", sqliteDuplicate(err))
	}
	return user, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `
		SELECT id, email, username, password_hash, created_at, updated_at
		FROM users WHERE id = ?
	`, id)
}

func (r *SQLiteRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `
		SELECT id, email, username, password_hash, created_at, updated_at
		FROM users WHERE email = ?
	`, email)
}

func (r *SQLiteRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, `
		SELECT id, email, username, password_hash, created_at, updated_at
		FROM users WHERE username = ?
	`, username)
}

func (r *SQLiteRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET email = ?, username = ?, password_hash = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, query,
		user.Email, user.Username, user.PasswordHash, user.UpdatedAt.UnixMilli(), user.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", sqliteDuplicate(err))
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

func (r *SQLiteRepository) getOne(ctx context.Context, query string, arg string) (*models.User, error) {
	var (
		u                models.User
		created, updated int64
	)
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	u.CreatedAt = time.UnixMilli(created).UTC()
	u.UpdatedAt = time.UnixMilli(updated).UTC()
	return &u, nil
}

// sqliteDuplicate recognises UNIQUE failures; the column is only reported in
// the message ("UNIQUE constraint failed: users.email").
func sqliteDuplicate(err error) error {
	var sqErr *sqlite.Error
	if !errors.As(err, &sqErr) || sqErr.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return err
	}
	field := ""
	switch msg := sqErr.Error(); {
	case strings.Contains(msg, "users.email"):
		field = "email"
	case strings.Contains(msg, "users.username"):
		field = "username"
	}
	return &common.DuplicateError{Field: field, Err: err}
}
