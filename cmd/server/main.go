package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/chi-demo/middleware"

	"github.com/tendant/simple-upload/pkg/simpleupload/account"
	"github.com/tendant/simple-upload/pkg/simpleupload/config"
	"github.com/tendant/simple-upload/pkg/simpleupload/issuer"
	"github.com/tendant/simple-upload/pkg/simpleupload/provider/server"
)

// Config holds process-level settings. Domain settings are read by
// config.WithEnv using EnvPrefix.
type Config struct {
	EnvPrefix       string        `env:"SIMPLE_UPLOAD_ENV_PREFIX" env-default:""`
	LogLevel        string        `env:"LOG_LEVEL" env-default:"info"`
	LogFormat       string        `env:"LOG_FORMAT" env-default:"text"`
	MigrateSchema   bool          `env:"MIGRATE_SCHEMA" env-default:"true"`
	MaxUploadSize   int64         `env:"MAX_UPLOAD_SIZE" env-default:"26214400"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
	SessionTTL      time.Duration `env:"SESSION_TTL" env-default:"24h"`
}

func newLogger(cfg Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

type resources struct {
	router  *chi.Mux
	closers []func()
}

func (r *resources) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// buildRouter wires the issuer, the optional self-hosted provider and the
// account routes from serverConfig.
func buildRouter(ctx context.Context, cfg Config, serverConfig *config.ServerConfig, logger *slog.Logger) (*resources, error) {
	res := &resources{router: chi.NewRouter()}
	r := res.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	app.RoutesHealthz(r)
	app.RoutesHealthzReady(r)

	sgn := serverConfig.BuildSigner()
	issuer.NewHandlers(sgn, serverConfig.Provider.Name,
		issuer.WithCORS(serverConfig.EnableCORS),
		issuer.WithSessionSecret(serverConfig.SessionSecret),
		issuer.WithLogger(logger),
	).Mount(r)

	if serverConfig.EnableLocalProvider {
		store, err := serverConfig.BuildBlobStore()
		if err != nil {
			res.Close()
			return nil, fmt.Errorf("failed to build blob store: %w", err)
		}
		tokens, err := serverConfig.BuildTokenStore()
		if err != nil {
			res.Close()
			return nil, fmt.Errorf("failed to build token store: %w", err)
		}
		res.closers = append(res.closers, closerFor(tokens, logger))

		server.NewHandlers(sgn, store, tokens,
			server.WithPublicBaseURL(serverConfig.PublicBaseURL),
			server.WithMaxUploadSize(cfg.MaxUploadSize),
			server.WithLogger(logger),
		).Mount(r)
	}

	repo, err := serverConfig.BuildAccountRepository(ctx)
	if err != nil {
		res.Close()
		return nil, fmt.Errorf("failed to build account repository: %w", err)
	}
	res.closers = append(res.closers, closerFor(repo, logger))

	if m, ok := repo.(interface{ EnsureSchema(context.Context) error }); ok && cfg.MigrateSchema {
		if err := m.EnsureSchema(ctx); err != nil {
			res.Close()
			return nil, fmt.Errorf("failed to ensure account schema: %w", err)
		}
	}

	var admin func(http.Handler) http.Handler
	if serverConfig.AdminAPIKeySHA256 != "" {
		admin, err = middleware.ApiKeyMiddleware(middleware.ApiKeyConfig{
			APIKeys: map[string]string{
				"admin": serverConfig.AdminAPIKeySHA256,
			},
		})
		if err != nil {
			res.Close()
			return nil, fmt.Errorf("failed to initialize API key middleware: %w", err)
		}
	}

	accounts := account.NewService(repo, account.WithServiceLogger(logger))
	accountHandlers := account.NewHandlers(accounts, logger,
		account.WithSessionSecret(serverConfig.SessionSecret),
		account.WithSessionTTL(cfg.SessionTTL),
	)
	r.Mount("/api/accounts", accountHandlers.Routes(admin))

	return res, nil
}

// closerFor adapts the shutdown method of a store, if it has one
func closerFor(v interface{}, logger *slog.Logger) func() {
	switch c := v.(type) {
	case interface{ Stop() }:
		return c.Stop
	case interface{ Close() }:
		return c.Close
	case io.Closer:
		return func() {
			if err := c.Close(); err != nil {
				logger.Warn("Failed to close resource", "err", err)
			}
		}
	default:
		return func() {}
	}
}

func main() {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	serverConfig, err := config.Load(config.WithEnv(cfg.EnvPrefix))
	if err != nil {
		logger.Error("Failed to load server configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := buildRouter(ctx, cfg, serverConfig, logger)
	if err != nil {
		logger.Error("Failed to initialize server", "err", err)
		os.Exit(1)
	}
	defer res.Close()

	httpServer := &http.Server{
		Addr:              ":" + serverConfig.Port,
		Handler:           res.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Simple Upload server starting",
			"port", serverConfig.Port,
			"env", serverConfig.Environment,
			"provider", serverConfig.Provider.Name,
			"local_provider", serverConfig.EnableLocalProvider,
			"storage", serverConfig.Storage.Type,
			"database", serverConfig.DatabaseType,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "err", err)
	}
}
