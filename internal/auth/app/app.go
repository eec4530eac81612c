package app

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coursearc/authcore/internal/auth/cache"
	"github.com/coursearc/authcore/internal/auth/service"
	"github.com/coursearc/authcore/internal/auth/store"
	"github.com/coursearc/authcore/internal/auth/store/drivers/sqlite"
	"github.com/coursearc/authcore/pkg/cryptox"
	"github.com/coursearc/authcore/pkg/jwtx"
	"github.com/coursearc/authcore/pkg/ratelimit"
	"github.com/coursearc/authcore/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth core with all its dependencies wired.
// Construction-time composition only; no global registry.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db          store.Store
	redisClient *redis.Client

	// Services
	Auth         *service.AuthService
	Sessions     *service.SessionService
	MFA          *service.MFAService
	Users        *service.UserService
	housekeeping *service.HousekeepingService
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "authcore",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(cfg.PepperFile)

	db, err := sqlite.NewStore(cfg.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.ApplyMigrations(); err != nil {
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	app.db = db

	app.redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	revocations := cache.NewRevocations(app.redisClient)
	if err := revocations.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to reach revocation cache: %w", err)
	}

	key, err := loadOrGenerateSigningKey(cfg.SigningKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize signing key: %w", err)
	}

	app.initServices(key, revocations)

	return app, nil
}

func (app *Application) initServices(key ed25519.PrivateKey, revocations *cache.Revocations) {
	clock := service.SystemClock()

	accessTokens := &service.AccessTokens{
		Signer:      jwtx.NewSigner(key, app.cfg.Issuer),
		Verifier:    jwtx.NewVerifier(key.Public().(ed25519.PublicKey), app.cfg.Issuer),
		Revocations: revocations,
		Clock:       clock,
		TTL:         app.cfg.AccessTokenTTL,
	}
	refreshTokens := &service.RefreshTokens{Length: app.cfg.RefreshTokenLength}

	app.Auth = &service.AuthService{
		Store:         app.db,
		AccessTokens:  accessTokens,
		RefreshTokens: refreshTokens,
		Clock:         clock,
		RefreshTTL:    app.cfg.RefreshTokenTTL,
	}

	totp := &service.TotpService{
		Clock:        clock,
		Issuer:       app.cfg.Issuer,
		SecretLength: app.cfg.TotpSecretLength,
	}

	app.MFA = &service.MFAService{
		Store:    app.db,
		Auth:     app.Auth,
		Totp:     totp,
		Recovery: &service.RecoveryService{Clock: clock},
	}

	app.Sessions = &service.SessionService{
		Store:  app.db,
		Auth:   app.Auth,
		MFA:    app.MFA,
		Clock:  clock,
		Logins: ratelimit.NewKeyed(ratelimit.LoginLimit),
	}

	app.Users = &service.UserService{
		Store: app.db,
		Auth:  app.Auth,
		Clock: clock,
	}

	app.housekeeping = service.NewHousekeepingService(
		app.db,
		app.logger,
		clock,
		app.cfg.RefreshTokenTTL,
		app.cfg.HousekeepingInterval,
	)
}

// Run starts the background workers and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeeping.Start()

	app.logger.Info("auth core started", "version", BuildVersion)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	sig := <-shutdown
	app.logger.Info("shutdown signal received", "signal", sig)

	return app.Shutdown()
}

// Shutdown stops the workers and releases database and cache connections.
// Waiting for the housekeeping worker is bounded by the configured grace
// period; a sweep that overruns it is abandoned rather than blocking exit.
func (app *Application) Shutdown() error {
	stopped := make(chan struct{})
	go func() {
		app.housekeeping.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(app.cfg.ShutdownGracePeriod):
		app.logger.Warn("grace period elapsed before housekeeping stopped",
			"grace_period", app.cfg.ShutdownGracePeriod)
	}

	if err := app.redisClient.Close(); err != nil {
		app.logger.Error("failed to close redis client", "error", err)
	}
	if err := app.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	app.logger.Info("shutdown complete")
	return nil
}
