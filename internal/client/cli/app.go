package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/client/client"
	"github.com/dmitrijs2005/authkeeper/internal/client/config"
	"github.com/dmitrijs2005/authkeeper/internal/client/services"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
)

type App struct {
	config      *config.Config
	authService services.AuthService
	logger      logging.Logger
	db          *sql.DB
	email       string
	reader      *bufio.Reader
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	db, err := client.InitDatabase(ctx, c.SessionFile)
	if err != nil {
		return nil, err
	}

	apiClient, err := client.NewAuthKeeperClient(c.ServerEndpointAddr, c.RequestTimeout)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	as := services.NewAuthService(apiClient, db, logger)

	return &App{config: c, authService: as, logger: logger, db: db, reader: bufio.NewReader(os.Stdin)}, nil
}

// Run restores the saved session, if any, and serves the REPL until the
// user leaves or input ends.
func (a *App) Run(ctx context.Context) {
	defer a.close(ctx)

	email, err := a.authService.Restore(ctx)
	if err != nil {
		a.logger.Warn(ctx, "saved session unreadable", "error", err)
	}
	if email != "" {
		a.email = email
		printlnFn("Signed in as", email)
	}

	runREPL(ctx, a, a.status, a.reader)
}

func (a *App) close(ctx context.Context) {
	if err := a.authService.Close(ctx); err != nil {
		a.logger.Warn(ctx, "client close failed", "error", err)
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func (a *App) isLoggedIn() bool {
	return a.email != ""
}

func (a *App) status() string {
	if a.isLoggedIn() {
		return a.email
	}
	return "guest"
}

// checkSession forgets the local session when the server no longer
// accepts it, so the user is asked to log in again.
func (a *App) checkSession(ctx context.Context, err error) error {
	if !errors.Is(err, client.ErrUnauthorized) {
		return err
	}
	_ = a.authService.Logout(ctx)
	a.email = ""
	printlnFn("Session expired, please log in again")
	return err
}
