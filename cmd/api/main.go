package main

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

	"github.com/go-auth-sessions/internal/config"
	"github.com/go-auth-sessions/internal/infrastructure/cache"
	"github.com/go-auth-sessions/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-auth-sessions/internal/infrastructure/jwt"
	"github.com/go-auth-sessions/internal/infrastructure/memory"
	"github.com/go-auth-sessions/internal/infrastructure/postgres"
	"github.com/go-auth-sessions/internal/infrastructure/smtp"
	transporthttp "github.com/go-auth-sessions/internal/transport/http"
	"github.com/go-auth-sessions/internal/transport/http/handler"
	appmiddleware "github.com/go-auth-sessions/internal/transport/http/middleware"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg := config.Load()
	setupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	deps, cleanup, err := buildDeps(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "err", err)
	}
	slog.Info("server stopped")
}

func setupLogger(cfg *config.Config) {
	var h slog.Handler
	if cfg.IsProduction() {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(h))
}

// buildDeps wires the storage driver, optional cache, mailer and token provider.
// The returned cleanup closes whatever connections were opened.
func buildDeps(ctx context.Context, cfg *config.Config) (*transporthttp.Deps, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	provider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return nil, cleanup, err
	}
	deps := &transporthttp.Deps{
		Mailer:       smtp.NewMailer(cfg),
		JWTProvider:  provider,
		Metrics:      appmiddleware.NewMetrics(),
		HealthChecks: map[string]handler.HealthCheck{},
	}

	switch cfg.StoreDriver {
	case config.DriverDynamo:
		client := dynamo.NewClient(cfg)
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		store := dynamo.NewStore(client, cfg.DynamoTables)
		deps.Users, deps.RefreshTokens, deps.OneTimeTokens = store.Users(), store.RefreshTokens(), store.OneTimeTokens()
		deps.HealthChecks["dynamo"] = store.Ping
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func() { _ = db.Close() })
		if err := postgres.RunMigrations(ctx, db); err != nil {
			return nil, cleanup, err
		}
		store := postgres.NewStore(db)
		deps.Users, deps.RefreshTokens, deps.OneTimeTokens = store.Users(), store.RefreshTokens(), store.OneTimeTokens()
		deps.HealthChecks["postgres"] = store.Ping
	default:
		slog.Warn("using in-memory store, data is lost on restart")
		store := memory.NewStore()
		deps.Users, deps.RefreshTokens, deps.OneTimeTokens = store.Users(), store.RefreshTokens(), store.OneTimeTokens()
	}

	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func() { _ = rdb.Close() })
		userCache := cache.NewUserCache(rdb, cfg.UserCacheTTL)
		deps.Cache = userCache
		deps.HealthChecks["redis"] = userCache.Ping
	}
	return deps, cleanup, nil
}
