// Package services contains application services for the authkeeper CLI.
// This file defines the authentication service: register, login, token
// rotation, profile access and logout, with the signed-in session kept in
// the local database between runs.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/client/client"
	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/dmitrijs2005/authkeeper/internal/client/repositories/session"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	pb "github.com/dmitrijs2005/authkeeper/internal/proto"
)

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Register: create a new user on the server.
//   - Login: authenticate and persist the issued token pair.
//   - Restore: pick up the session saved by a previous run, if any.
//   - Refresh: rotate the token pair now.
//   - Logout / LogoutAll: revoke this session or every session and forget
//     the local one.
//
// All methods must honor context cancellation/timeouts.
type AuthService interface {
	Register(ctx context.Context, email, username string, password []byte) (*pb.Profile, error)
	Login(ctx context.Context, email string, password []byte) error
	Restore(ctx context.Context) (string, error)
	Refresh(ctx context.Context) error
	Me(ctx context.Context) (*pb.Profile, error)
	UpdateProfile(ctx context.Context, upd *pb.UpdateProfileRequest) (*pb.Profile, error)
	Sessions(ctx context.Context) ([]pb.Session, error)
	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) (int, error)
	Close(ctx context.Context) error
}

const persistTimeout = 5 * time.Second

// authService is the concrete AuthService backed by a remote Client and a
// local SQL database holding the session.
type authService struct {
	client client.Client
	db     *sql.DB
	logger logging.Logger
	now    func() time.Time

	mu    sync.Mutex
	email string
}

// NewAuthService constructs an AuthService bound to the given API client and
// DB. Every token pair the client starts using is written to the DB.
func NewAuthService(c client.Client, db *sql.DB, logger logging.Logger) AuthService {
	a := &authService{client: c, db: db, logger: logger, now: time.Now}
	c.OnTokens(a.persistTokens)
	return a
}

func (a *authService) getSessionRepo(db dbx.DBTX) session.Repository {
	return session.NewSQLiteRepository(db)
}

func (a *authService) currentEmail() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.email
}

func (a *authService) setEmail(email string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.email = email
}

// persistTokens mirrors the client's token pair into the session table.
// An empty pair removes the session.
func (a *authService) persistTokens(accessToken, refreshToken string) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	repo := a.getSessionRepo(a.db)

	var err error
	if accessToken == "" && refreshToken == "" {
		a.setEmail("")
		err = repo.Clear(ctx)
	} else {
		err = repo.Save(ctx, &models.StoredSession{
			Email:        a.currentEmail(),
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			UpdatedAt:    a.now().UTC(),
		})
	}
	if err != nil {
		a.logger.Error(ctx, "session persist failed", "error", err)
	}
}

func (a *authService) Register(ctx context.Context, email, username string, password []byte) (*pb.Profile, error) {
	return a.client.Register(ctx, email, username, string(password))
}

// Login authenticates email. The session is saved by the token listener
// under the email given here.
func (a *authService) Login(ctx context.Context, email string, password []byte) error {
	prev := a.currentEmail()
	a.setEmail(email)

	if err := a.client.Login(ctx, email, string(password)); err != nil {
		a.setEmail(prev)
		return fmt.Errorf("login error: %w", err)
	}
	return nil
}

// Restore installs the saved session into the client and returns its email.
// An empty email means nobody is signed in.
func (a *authService) Restore(ctx context.Context) (string, error) {
	s, err := a.getSessionRepo(a.db).Load(ctx)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", nil
		}
		return "", err
	}

	a.client.SetTokens(s.AccessToken, s.RefreshToken)
	a.setEmail(s.Email)
	return s.Email, nil
}

func (a *authService) Refresh(ctx context.Context) error {
	return a.client.Refresh(ctx)
}

func (a *authService) Me(ctx context.Context) (*pb.Profile, error) {
	return a.client.Me(ctx)
}

// UpdateProfile changes the profile and keeps the saved email in step.
func (a *authService) UpdateProfile(ctx context.Context, upd *pb.UpdateProfileRequest) (*pb.Profile, error) {
	p, err := a.client.UpdateProfile(ctx, upd)
	if err != nil {
		return nil, err
	}
	if upd.Email == nil || p.Email == a.currentEmail() {
		return p, nil
	}

	a.setEmail(p.Email)
	err = dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := a.getSessionRepo(tx)
		s, err := repo.Load(ctx)
		if err != nil {
			return err
		}
		s.Email = p.Email
		s.UpdatedAt = a.now().UTC()
		return repo.Save(ctx, s)
	})
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return p, fmt.Errorf("session update error: %w", err)
	}
	return p, nil
}

func (a *authService) Sessions(ctx context.Context) ([]pb.Session, error) {
	return a.client.Sessions(ctx)
}

// Logout revokes the current session. The local session is dropped even
// when the server cannot be reached.
func (a *authService) Logout(ctx context.Context) error {
	return a.client.Logout(ctx)
}

func (a *authService) LogoutAll(ctx context.Context) (int, error) {
	return a.client.LogoutAll(ctx)
}

// Close releases resources held by the underlying client.
func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}
