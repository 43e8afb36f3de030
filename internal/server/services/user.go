// Package services contains server-side business logic. This file implements
// UserService, the session lifecycle manager: registration, login, refresh
// token rotation, profile updates and revocation. Every operation runs in
// exactly one transaction opened through dbx.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// refreshTokenSize is the number of random bytes behind a refresh token.
const refreshTokenSize = 32

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`
}

// ClientInfo is the request metadata stored with a refresh token.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// ProfileUpdate carries the fields a user wants changed. Nil means keep.
type ProfileUpdate struct {
	Email    *string
	Username *string
	Password *string
}

// UserService coordinates the credential store, the refresh token store and
// the token codec.
type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	codec                        *auth.Codec
	hasher                       cryptox.PasswordHasher
	logger                       logging.Logger
	tracer                       trace.Tracer
	now                          func() time.Time
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	// dummyHash is compared against when a login names an unknown email so
	// that both failure paths cost the same.
	dummyHash string
}

type Option func(*UserService)

// WithClock replaces time.Now. Use the same clock as the codec.
func WithClock(now func() time.Time) Option {
	return func(s *UserService) { s.now = now }
}

func WithLogger(l logging.Logger) Option {
	return func(s *UserService) { s.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *UserService) { s.tracer = t }
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, codec *auth.Codec, hasher cryptox.PasswordHasher,
	cfg *config.Config, opts ...Option) (*UserService, error) {

	s := &UserService{
		db:                           db,
		repomanager:                  m,
		codec:                        codec,
		hasher:                       hasher,
		logger:                       logging.Discard(),
		tracer:                       otel.Tracer("authkeeper/services"),
		now:                          time.Now,
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
	for _, o := range opts {
		o(s)
	}

	dummy, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, fmt.Errorf("error generating dummy password: %w", err)
	}
	if s.dummyHash, err = hasher.Hash(dummy); err != nil {
		return nil, fmt.Errorf("error hashing dummy password: %w", err)
	}
	return s, nil
}

// Register creates a credential record and returns its public profile.
// Email is checked before username, both inside the insert transaction.
func (s *UserService) Register(ctx context.Context, email, username, password string) (*models.Profile, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Register")
	defer span.End()

	email, username = normalize(email), normalize(username)
	if err := errors.Join(validateEmail(email), validateUsername(username), validatePassword(password)); err != nil {
		return nil, s.fail(ctx, span, "register", firstDomainError(err))
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, s.fail(ctx, span, "register", err)
	}

	now := s.timestamp()
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		if err := s.ensureFree(ctx, repo.GetByEmail, email, common.ErrEmailAlreadyExists); err != nil {
			return err
		}
		if err := s.ensureFree(ctx, repo.GetByUsername, username, common.ErrUsernameAlreadyExists); err != nil {
			return err
		}

		if _, err := repo.Create(ctx, user); err != nil {
			return duplicateToConflict(err, user, common.ErrEmailAlreadyExists, common.ErrUsernameAlreadyExists)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, span, "register", err)
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	return user.Profile(), nil
}

// Login verifies the password and, on success, opens a new session.
// An unknown email and a wrong password are indistinguishable.
func (s *UserService) Login(ctx context.Context, email, password string, client ClientInfo) (*TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Login")
	defer span.End()

	email = normalize(email)

	var pair *TokenPair
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.repomanager.Users(tx).GetByEmail(ctx, email)
		if err != nil {
			if !errors.Is(err, common.ErrorNotFound) {
				return err
			}
			_ = s.hasher.Compare(s.dummyHash, password)
			return common.ErrInvalidCredentials
		}

		if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
			if errors.Is(err, cryptox.ErrPasswordMismatch) {
				return common.ErrInvalidCredentials
			}
			return err
		}

		pair, err = s.issueTokenPair(ctx, tx, user.ID, client)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, span, "login", err)
	}
	return pair, nil
}

// Refresh rotates a refresh token: the presented row is deleted and a
// replacement inserted in the same transaction. Of two concurrent calls with
// the same token exactly one succeeds; the other sees the row gone.
func (s *UserService) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Refresh")
	defer span.End()

	var pair *TokenPair
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.RefreshTokens(tx)

		token, err := repo.FindForUpdate(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidRefreshToken
			}
			return err
		}
		// the expired row stays for the sweeper
		if token.Expired(s.now()) {
			return common.ErrExpiredRefreshToken
		}

		if err := repo.Delete(ctx, refreshToken); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidRefreshToken
			}
			return err
		}

		pair, err = s.issueTokenPair(ctx, tx, token.UserID, client)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, span, "refresh", err)
	}
	return pair, nil
}

// Me returns the profile of userID.
func (s *UserService) Me(ctx context.Context, userID string) (*models.Profile, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Me")
	defer span.End()

	var profile *models.Profile
	err := dbx.WithReadOnly(ctx, s.db, s.repomanager.ReadOnlyTxOptions(), func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.getUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		profile = user.Profile()
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, span, "me", err)
	}
	return profile, nil
}

// UpdateProfile applies upd to userID. Email and username are only checked
// and written when they differ from the stored values; if nothing differs
// the stored profile is returned without a write.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*models.Profile, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.UpdateProfile")
	defer span.End()

	var email, username, hash string
	if upd.Email != nil {
		email = normalize(*upd.Email)
		if err := validateEmail(email); err != nil {
			return nil, s.fail(ctx, span, "update profile", err)
		}
	}
	if upd.Username != nil {
		username = normalize(*upd.Username)
		if err := validateUsername(username); err != nil {
			return nil, s.fail(ctx, span, "update profile", err)
		}
	}
	if upd.Password != nil {
		if err := validatePassword(*upd.Password); err != nil {
			return nil, s.fail(ctx, span, "update profile", err)
		}
		var err error
		if hash, err = s.hasher.Hash(*upd.Password); err != nil {
			return nil, s.fail(ctx, span, "update profile", err)
		}
	}

	var profile *models.Profile
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		user, err := s.getUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		changed := false
		if upd.Email != nil && email != user.Email {
			if err := s.ensureFree(ctx, repo.GetByEmail, email, common.ErrEmailInUse); err != nil {
				return err
			}
			user.Email = email
			changed = true
		}
		if upd.Username != nil && username != user.Username {
			if err := s.ensureFree(ctx, repo.GetByUsername, username, common.ErrUsernameInUse); err != nil {
				return err
			}
			user.Username = username
			changed = true
		}
		if hash != "" {
			user.PasswordHash = hash
			changed = true
		}

		if changed {
			user.UpdatedAt = s.timestamp()
			if err := repo.Update(ctx, user); err != nil {
				return duplicateToConflict(err, user, common.ErrEmailInUse, common.ErrUsernameInUse)
			}
		}
		profile = user.Profile()
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, span, "update profile", err)
	}
	return profile, nil
}

// Logout revokes one refresh token. Revoking an unknown token is not an error.
func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	ctx, span := s.tracer.Start(ctx, "UserService.Logout")
	defer span.End()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		err := s.repomanager.RefreshTokens(tx).Delete(ctx, refreshToken)
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return s.fail(ctx, span, "logout", err)
	}
	return nil
}

// LogoutAll revokes every refresh token of userID and returns how many of
// them were still live.
func (s *UserService) LogoutAll(ctx context.Context, userID string) (int, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.LogoutAll")
	defer span.End()

	var revoked int64
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.RefreshTokens(tx)

		var err error
		if revoked, err = repo.DeleteLiveByUser(ctx, userID, s.now()); err != nil {
			return err
		}
		_, err = repo.DeleteByUser(ctx, userID)
		return err
	})
	if err != nil {
		return 0, s.fail(ctx, span, "logout all", err)
	}

	span.SetAttributes(attribute.Int64("tokens.revoked", revoked))
	s.logger.Info(ctx, "sessions revoked", "user_id", userID, "count", revoked)
	return int(revoked), nil
}

// Sessions lists the live sessions of userID, newest first.
func (s *UserService) Sessions(ctx context.Context, userID string) ([]models.Session, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Sessions")
	defer span.End()

	sessions := []models.Session{}
	err := dbx.WithReadOnly(ctx, s.db, s.repomanager.ReadOnlyTxOptions(), func(ctx context.Context, tx dbx.DBTX) error {
		tokens, err := s.repomanager.RefreshTokens(tx).ListLiveByUser(ctx, userID, s.now())
		if err != nil {
			return err
		}
		for _, t := range tokens {
			sessions = append(sessions, t.Session())
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, span, "sessions", err)
	}
	return sessions, nil
}

// PurgeExpired deletes refresh tokens that are past their expiry.
func (s *UserService) PurgeExpired(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.PurgeExpired")
	defer span.End()

	var n int64
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		n, err = s.repomanager.RefreshTokens(tx).DeleteExpired(ctx, s.now())
		return err
	})
	if err != nil {
		return 0, s.fail(ctx, span, "purge expired", err)
	}
	return n, nil
}

// --- helpers below ---

// timestamp is now at the millisecond precision both backends store.
func (s *UserService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *UserService) getUser(ctx context.Context, tx dbx.DBTX, userID string) (*models.User, error) {
	user, err := s.repomanager.Users(tx).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// ensureFree returns conflict if lookup finds a record for value.
func (s *UserService) ensureFree(ctx context.Context, lookup func(context.Context, string) (*models.User, error),
	value string, conflict *common.Error) error {

	_, err := lookup(ctx, value)
	switch {
	case err == nil:
		return conflict.WithField(conflict.Field, value)
	case errors.Is(err, common.ErrorNotFound):
		return nil
	default:
		return err
	}
}

func (s *UserService) issueTokenPair(ctx context.Context, tx dbx.DBTX, userID string, client ClientInfo) (*TokenPair, error) {
	access, err := s.codec.Issue(userID, s.accessTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("error issuing access token: %w", err)
	}
	refresh, err := common.MakeRandHexString(refreshTokenSize)
	if err != nil {
		return nil, fmt.Errorf("error generating refresh token: %w", err)
	}

	now := s.timestamp()
	token := &models.RefreshToken{
		Token:     refresh,
		UserID:    userID,
		ClientIP:  client.IP,
		UserAgent: client.UserAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(s.refreshTokenValidityDuration),
	}
	if err := s.repomanager.RefreshTokens(tx).Create(ctx, token); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    common.TokenType,
		ExpiresIn:    int64(s.accessTokenValidityDuration / time.Second),
	}, nil
}

// fail passes domain errors through and hides everything else behind
// common.ErrorInternal after logging it.
func (s *UserService) fail(ctx context.Context, span trace.Span, op string, err error) error {
	var domainErr *common.Error
	if errors.As(err, &domainErr) {
		span.SetAttributes(attribute.String("error.code", domainErr.Code))
		return err
	}

	s.logger.Error(ctx, "operation failed", "op", op, "error", err)
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	return fmt.Errorf("%s: %w", op, common.ErrorInternal)
}

// duplicateToConflict maps a unique violation raised by the store to the
// conflict for the offending field.
func duplicateToConflict(err error, user *models.User, onEmail, onUsername *common.Error) error {
	var dup *common.DuplicateError
	if !errors.As(err, &dup) {
		return err
	}
	switch dup.Field {
	case "email":
		return onEmail.WithField("email", user.Email)
	case "username":
		return onUsername.WithField("username", user.Username)
	default:
		return err
	}
}

// firstDomainError picks the first *common.Error out of a joined error.
func firstDomainError(err error) error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if e != nil {
				return e
			}
		}
	}
	return err
}
