package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	httpapi "github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/http"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store/drivers/postgres"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application holds the gatekeeper service and all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db store.Store

	authService       *service.AuthService
	userService       *service.UserService
	rolesService      *service.RolesService
	superAdminService *service.SuperAdminService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(ctx context.Context, cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gatekeeper",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(cfg.PepperFile)

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Logger returns the application logger.
func (app *Application) Logger() *slog.Logger { return app.logger }

// SuperAdmin exposes the bootstrap controller for the CLI.
func (app *Application) SuperAdmin() *service.SuperAdminService { return app.superAdminService }

// Handler returns the HTTP handler with all routes applied.
func (app *Application) Handler() http.Handler { return app.router }

// Run serves HTTP until ctx is cancelled or SIGINT/SIGTERM arrives, then
// shuts down gracefully.
func (app *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.warnOnOpenBootstrap(ctx)
	app.logger.Info("gatekeeper starting", slog.Int("port", app.cfg.Port), slog.String("version", BuildVersion))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("shutdown requested")
		return app.Shutdown()
	})

	return g.Wait()
}

func (app *Application) warnOnOpenBootstrap(ctx context.Context) {
	if app.cfg.BootstrapToken != "" {
		return
	}
	state, err := app.superAdminService.State(ctx)
	if err != nil {
		app.logger.Error("failed to read SuperAdmin state", slog.Any("err", err))
		return
	}
	app.logger.Warn("BOOTSTRAP_TOKEN not set: POST /v1/superadmin/init is open to anyone who can reach this service",
		slog.String("superadmin", state.String()),
	)
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gatekeeper...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", slog.Any("err", err))
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", slog.Any("err", err))
		}
	}

	if err := app.Close(); err != nil {
		return err
	}
	app.logger.Info("gatekeeper stopped")
	return nil
}

// Close releases the database without touching the HTTP server.
func (app *Application) Close() error {
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", slog.Any("err", err))
		return err
	}
	return nil
}

// initDatabase opens the configured store and applies migrations.
func (app *Application) initDatabase(ctx context.Context) error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.DatabaseDriver {
	case "postgres":
		db, err = postgres.NewStore(ctx, app.cfg.DatabaseURL)
	default:
		db, err = sqlite.NewStore(app.cfg.DatabaseFile)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", slog.String("driver", app.cfg.DatabaseDriver))
	return nil
}

// initServices builds the business services.
func (app *Application) initServices() error {
	signer, verifier, err := InitTokenKeys(app.cfg, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize token keys: %w", err)
	}

	creds := cryptox.PasswordHasher{}
	app.authService = &service.AuthService{
		Store:       app.db,
		Credentials: creds,
		Signer:      signer,
		Verifier:    verifier,
		Issuer:      app.cfg.TokenIssuer,
		TTL:         app.cfg.AccessTokenTTL(),
	}
	app.userService = &service.UserService{Store: app.db, Credentials: creds}
	app.rolesService = &service.RolesService{Store: app.db}
	app.superAdminService = &service.SuperAdminService{
		Store:          app.db,
		Credentials:    creds,
		BootstrapToken: app.cfg.BootstrapToken,
	}
	return nil
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger, app.cfg.IsDevelopment())

	router.AuthService = app.authService
	router.UserService = app.userService
	router.RolesService = app.rolesService
	router.SuperAdminService = app.superAdminService
	router.Limits = app.cfg.RateLimits()
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
