// Package refreshtokens declares the refresh token store contract and its
// PostgreSQL and SQLite implementations. A token is live while its row
// exists and now <= expires_at; revocation deletes the row.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking refresh tokens.
type Repository interface {
	// Create stores a new refresh token row.
	Create(ctx context.Context, token *models.RefreshToken) error

	// Find looks up a refresh token by its opaque value. Returns
	// common.ErrorNotFound when the token is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// FindForUpdate is Find plus a row lock held until the surrounding
	// transaction ends, where the backend supports one.
	FindForUpdate(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes a refresh token. Returns common.ErrorNotFound if no row
	// was deleted, which callers use to detect a lost rotation race.
	Delete(ctx context.Context, token string) error

	// DeleteLiveByUser removes every token of userID still valid at now and
	// returns how many were removed.
	DeleteLiveByUser(ctx context.Context, userID string, now time.Time) (int64, error)

	// DeleteByUser removes every remaining token of userID.
	DeleteByUser(ctx context.Context, userID string) (int64, error)

	// DeleteExpired removes tokens that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// ListLiveByUser returns tokens of userID still valid at now, newest first.
	ListLiveByUser(ctx context.Context, userID string, now time.Time) ([]*models.RefreshToken, error)
}
