// Package server initializes and runs the authkeeper server.
// It opens the database, runs migrations, builds the session lifecycle
// service and serves it over gRPC and HTTP until a signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/dmitrijs2005/authkeeper/internal/telemetry"

	gs "github.com/dmitrijs2005/authkeeper/internal/server/grpc"
)

const serviceName = "authkeeper"

type App struct {
	config            *config.Config
	logger            logging.Logger
	db                *sql.DB
	gate              *auth.Gate
	userService       *services.UserService
	shutdownTelemetry func(context.Context) error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewJSON(os.Stdout, c.LogLevel).With("service", serviceName, "env", c.Environment)

	shutdown, err := telemetry.Setup(ctx, serviceName, c.Version, c.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("telemetry init error: %w", err)
	}

	db, err := dbx.Open(ctx, c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app, err := newApp(ctx, c, logger, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	app.shutdownTelemetry = shutdown
	return app, nil
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger, db *sql.DB) (*App, error) {
	rm, err := repomanager.New(c.DatabaseDriver)
	if err != nil {
		return nil, err
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	hasher, err := cryptox.NewHasher(c.PasswordHasher, c.BcryptCost)
	if err != nil {
		return nil, err
	}
	codec, err := auth.NewCodec([]byte(c.SecretKey), c.JWTAlgorithm)
	if err != nil {
		return nil, err
	}

	us, err := services.NewUserService(db, rm, codec, hasher, c, services.WithLogger(logger.With("module", "user_service")))
	if err != nil {
		return nil, err
	}

	return &App{
		config:            c,
		logger:            logger,
		db:                db,
		gate:              auth.NewGate(codec),
		userService:       us,
		shutdownTelemetry: func(context.Context) error { return nil },
	}, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case s := <-sigs:
			app.logger.Info(ctx, "Signal received", "signal", s.String())
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.userService, app.gate)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "gRPC server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.logger, app.userService, app.gate, app.config.Version)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "HTTP server failed", "error", err)
		cancelFunc()
	}
}

// purger is the sweeper's view of the user service.
type purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// runSweeper purges expired refresh tokens every interval until ctx ends.
// Failures are logged and retried on the next tick.
func runSweeper(ctx context.Context, p purger, interval time.Duration, logger logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpired(ctx)
			if err != nil {
				logger.Error(ctx, "refresh token purge failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info(ctx, "expired refresh tokens purged", "count", n)
			}
		}
	}
}

// Run serves until ctx is cancelled, a signal arrives, or a server fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "version", app.config.Version, "driver", app.config.DatabaseDriver)

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	if app.config.EndpointAddrGRPC != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}

	if app.config.EndpointAddrHTTP != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startHTTPServer(ctx, cancelFunc)
		}()
	}

	if app.config.TokenCleanupInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runSweeper(ctx, app.userService, app.config.TokenCleanupInterval, app.logger.With("module", "sweeper"))
		}()
	}

	wg.Wait()
	app.close()
}

func (app *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.shutdownTelemetry(ctx); err != nil {
		app.logger.Error(ctx, "telemetry shutdown failed", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close failed", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
