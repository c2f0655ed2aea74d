// Package main implements the entry point for the taskflow API server, which
// serves task CRUD over HTTP and runs the background job consumer and the
// overdue task scanner.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/phrazzld/taskflow-api/internal/cache"
	"github.com/phrazzld/taskflow-api/internal/config"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/platform/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "taskflow-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; a malformed one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(logger.LoggerConfig{Level: cfg.Server.LogLevel})
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.Bool("redis_enabled", cfg.Cache.RedisAddr != ""))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	if err := postgres.Migrate(ctx, db, log); err != nil {
		_ = db.Close()
		return err
	}

	backend, err := newCacheBackend(ctx, cfg.Cache, log)
	if err != nil {
		_ = db.Close()
		return err
	}

	app, err := newApplication(cfg, log, dependencies{
		db:    db,
		tasks: postgres.NewPostgresTaskStore(db, log),
		jobs:  postgres.NewPostgresJobStore(db, log),
		cache: backend,
	})
	if err != nil {
		_ = backend.Close()
		_ = db.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}

// newCacheBackend connects to Redis when an address is configured and falls
// back to the in-process backend otherwise.
func newCacheBackend(ctx context.Context, cfg config.CacheConfig, log *slog.Logger) (cache.Backend, error) {
	if cfg.RedisAddr == "" {
		log.Info("no redis address configured, using in-process cache")
		return cache.NewMemoryBackend(), nil
	}

	backend, err := cache.NewRedisBackend(ctx, cache.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, err
	}

	log.Info("redis cache connected", slog.String("addr", cfg.RedisAddr))
	return backend, nil
}
