// Package scanner periodically finds overdue tasks and enqueues one
// notification job per task. It never modifies tasks; state is re-derived
// from the store on every run, so a job lost on one tick is found on the next.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/job"
	"github.com/phrazzld/taskflow-api/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// OverdueFinder returns the IDs of tasks that are overdue at now.
type OverdueFinder interface {
	FindOverdueIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// JobDispatcher submits jobs.
type JobDispatcher interface {
	Enqueue(ctx context.Context, payload job.Payload, opts ...job.Option) (*job.Envelope, error)
}

// Config holds the scan interval and enqueue fan-out.
type Config struct {
	Interval    time.Duration
	Concurrency int
}

// Report summarizes one scan. Found == Enqueued + Failed.
type Report struct {
	Found     int
	Enqueued  int
	Failed    int
	FailedIDs []uuid.UUID
}

// OverdueScanner runs Scan on a ticker.
type OverdueScanner struct {
	finder OverdueFinder
	jobs   JobDispatcher
	config Config
	logger *slog.Logger
	now    func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an OverdueScanner. A zero interval means hourly and a zero
// concurrency means 8 concurrent enqueues.
func New(finder OverdueFinder, jobs JobDispatcher, config Config, logger *slog.Logger) *OverdueScanner {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OverdueScanner{
		finder: finder,
		jobs:   jobs,
		config: config,
		logger: logger.With(slog.String("component", "overdue_scanner")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Scan enqueues an overdue notification for every overdue task. Only a failed
// query is returned as an error; individual enqueue failures are collected in
// the report.
func (s *OverdueScanner) Scan(ctx context.Context) (Report, error) {
	ids, err := s.finder.FindOverdueIDs(ctx, s.now())
	if err != nil {
		metrics.OverdueScansTotal.WithLabelValues("error").Inc()
		return Report{}, fmt.Errorf("failed to find overdue tasks: %w", err)
	}

	report := Report{Found: len(ids)}
	metrics.OverdueTasksFound.Set(float64(len(ids)))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.config.Concurrency)

	for _, id := range ids {
		g.Go(func() error {
			_, err := s.jobs.Enqueue(ctx, job.OverdueNotificationPayload{TaskID: id})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				report.FailedIDs = append(report.FailedIDs, id)
				s.logger.Warn("failed to enqueue overdue notification",
					slog.String("task_id", id.String()),
					slog.String("error", err.Error()))
				return nil
			}
			report.Enqueued++
			return nil
		})
	}
	_ = g.Wait()

	metrics.OverdueScansTotal.WithLabelValues("ok").Inc()
	s.logger.Info("overdue scan finished",
		slog.Int("found", report.Found),
		slog.Int("enqueued", report.Enqueued),
		slog.Int("failed", report.Failed))

	return report, nil
}

// Start runs Scan every interval in a background goroutine until Stop.
func (s *OverdueScanner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Scan(ctx); err != nil {
					s.logger.Error("overdue scan failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	s.logger.Info("overdue scanner started", slog.Duration("interval", s.config.Interval))
}

// Stop cancels the ticker loop and waits for an in-flight scan to finish.
func (s *OverdueScanner) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.logger.Info("overdue scanner stopped")
}
