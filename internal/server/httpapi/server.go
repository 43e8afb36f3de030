// Package httpapi exposes the session lifecycle over HTTP/JSON.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
)

const shutdownTimeout = 5 * time.Second

// UserService is the part of services.UserService the API needs.
type UserService interface {
	Register(ctx context.Context, email, username, password string) (*models.Profile, error)
	Login(ctx context.Context, email, password string, client services.ClientInfo) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string, client services.ClientInfo) (*services.TokenPair, error)
	Me(ctx context.Context, userID string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, userID string, upd services.ProfileUpdate) (*models.Profile, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID string) (int, error)
	Sessions(ctx context.Context, userID string) ([]models.Session, error)
}

type Server struct {
	address string
	users   UserService
	gate    *auth.Gate
	logger  logging.Logger
	version string
	now     func() time.Time
}

func NewServer(a string, l logging.Logger, us UserService, gate *auth.Gate, version string) *Server {
	return &Server{
		address: a,
		logger:  l.With("module", "http_server"),
		users:   us,
		gate:    gate,
		version: version,
		now:     time.Now,
	}
}

// Handler returns the routed API wrapped in recovery and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("POST /api/register", s.register)
	mux.HandleFunc("POST /api/login", s.login)
	mux.HandleFunc("POST /api/refresh", s.refresh)
	mux.HandleFunc("POST /api/logout", s.logout)
	mux.Handle("GET /api/me", s.authenticated(s.me))
	mux.Handle("PUT /api/me", s.authenticated(s.updateProfile))
	mux.Handle("POST /api/logout/all", s.authenticated(s.logoutAll))
	mux.Handle("GET /api/sessions", s.authenticated(s.sessions))

	return recovery(s.logger)(requestLogging(s.logger)(mux))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
