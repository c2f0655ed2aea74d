package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/phrazzld/taskflow-api/internal/cache"
	"github.com/phrazzld/taskflow-api/internal/config"
	"github.com/phrazzld/taskflow-api/internal/job"
	"github.com/phrazzld/taskflow-api/internal/processor"
	"github.com/phrazzld/taskflow-api/internal/ratelimit"
	"github.com/phrazzld/taskflow-api/internal/scanner"
	"github.com/phrazzld/taskflow-api/internal/service"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// limiterSweepInterval is how often expired rate limit windows are dropped.
const limiterSweepInterval = time.Minute

// dependencies are the external resources the application is built on.
type dependencies struct {
	db       *sql.DB // optional; closed on shutdown
	tasks    store.TaskStore
	jobs     job.Store
	cache    cache.Backend
	notifier processor.Notifier // optional; defaults to a LogNotifier
}

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	db           *sql.DB
	cacheBackend cache.Backend

	queue       *job.MemoryQueue
	consumer    *job.Consumer
	scanner     *scanner.OverdueScanner
	limiter     *ratelimit.Limiter
	taskService *service.TaskService

	// addr is set once the HTTP listener is bound.
	addr chan string
}

// newApplication wires the components together without starting anything.
func newApplication(cfg *config.Config, logger *slog.Logger, deps dependencies) (*application, error) {
	if deps.tasks == nil || deps.cache == nil {
		return nil, errors.New("task store and cache backend are required")
	}

	app := &application{
		config:       cfg,
		logger:       logger,
		db:           deps.db,
		cacheBackend: deps.cache,
		addr:         make(chan string, 1),
	}

	coordinator := cache.NewCoordinator(deps.cache, cache.Config{
		DefaultTTL: cfg.Cache.DefaultTTL,
		ListTTL:    cfg.Cache.ListTTL,
		OpTimeout:  cfg.Cache.OpTimeout,
	}, logger)

	app.queue = job.NewMemoryQueue(cfg.Queue.QueueSize, logger)
	dispatcher := job.NewDispatcher(app.queue, deps.jobs, job.Policy{
		MaxAttempts: cfg.Queue.MaxAttempts,
		BackoffBase: cfg.Queue.BackoffBase,
		BackoffMax:  cfg.Queue.BackoffMax,
	}, cfg.Queue.EnqueueTimeout, logger)

	var err error
	app.taskService, err = service.NewTaskService(deps.tasks, coordinator, dispatcher, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	notifier := deps.notifier
	if notifier == nil {
		notifier = processor.NewLogNotifier(logger)
	}

	consumerCfg := job.DefaultConsumerConfig()
	consumerCfg.WorkerCount = cfg.Queue.WorkerCount
	app.consumer = job.NewConsumer(app.queue, deps.jobs, consumerCfg, logger)
	processor.New(app.taskService, notifier, logger).Register(app.consumer)

	app.scanner = scanner.New(deps.tasks, dispatcher, scanner.Config{
		Interval:    cfg.Scanner.Interval,
		Concurrency: cfg.Scanner.Concurrency,
	}, logger)

	app.limiter = ratelimit.New(cfg.RateLimit.Limit, cfg.RateLimit.Window, logger)

	logger.Info("application initialized")
	return app, nil
}

// start launches the background workers. The consumer starts first so that
// its recovery pass runs before anything new is dispatched.
func (app *application) start() error {
	if err := app.consumer.Start(); err != nil {
		return fmt.Errorf("failed to start job consumer: %w", err)
	}
	app.scanner.Start()
	return nil
}

// Run starts the background workers and serves HTTP until ctx is canceled,
// then shuts everything down.
func (app *application) Run(ctx context.Context) error {
	if err := app.start(); err != nil {
		app.cleanup()
		return err
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go app.limiter.RunSweeper(sweepCtx, limiterSweepInterval)

	server := &http.Server{
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(app.config.Server.Port)))
	if err != nil {
		app.cleanup()
		return fmt.Errorf("failed to listen: %w", err)
	}
	app.addr <- ln.Addr().String()

	serveErr := make(chan error, 1)
	go func() {
		app.logger.Info("starting server", slog.String("addr", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		app.logger.Info("shutting down server")
	case err := <-serveErr:
		app.logger.Error("server failed", slog.String("error", err.Error()))
		runErr = fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("server shutdown failed", slog.String("error", err.Error()))
		if runErr == nil {
			runErr = fmt.Errorf("server shutdown failed: %w", err)
		}
	}

	app.cleanup()
	return runErr
}

// cleanup stops producers before consumers and closes storage last.
func (app *application) cleanup() {
	app.scanner.Stop()
	app.consumer.Stop()
	app.queue.Close()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}

	if err := app.cacheBackend.Close(); err != nil {
		app.logger.Error("error closing cache backend", slog.String("error", err.Error()))
	}

	app.logger.Info("application shutdown completed")
}
