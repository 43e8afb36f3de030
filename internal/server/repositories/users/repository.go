// Package users declares the credential store contract and its PostgreSQL
// and SQLite implementations.
package users

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Repository persists credential records. Lookups return common.ErrorNotFound
// when no row matches. Writes rejected by a unique constraint return a
// *common.DuplicateError naming the field.
type Repository interface {
	// Create inserts user as given, including its ID and timestamps.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// Update overwrites email, username, password hash and updated_at.
	Update(ctx context.Context, user *models.User) error
}
