package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/taskflow-api/internal/metrics"
)

// Result is what a handler reports when it returns without error.
// Success=false is a terminal failure and is never retried.
type Result struct {
	Success bool
	Message string
}

// Handler processes one kind of job. A returned error is transient and
// retried unless it is wrapped with Permanent.
type Handler interface {
	Handle(ctx context.Context, payload Payload, attempt int) (Result, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, payload Payload, attempt int) (Result, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, payload Payload, attempt int) (Result, error) {
	return f(ctx, payload, attempt)
}

// Outcome is the consumer's verdict on one attempt.
type Outcome string

// Possible attempt outcomes
const (
	OutcomeCompleted    Outcome = "completed"
	OutcomeFailed       Outcome = "failed"
	OutcomeRetrying     Outcome = "retrying"
	OutcomeDeadLettered Outcome = "dead_lettered"
)

// Terminal reports whether the job will not be attempted again.
func (o Outcome) Terminal() bool {
	return o != OutcomeRetrying
}

// ConsumerConfig holds configuration for the consumer.
type ConsumerConfig struct {
	// WorkerCount determines how many jobs run concurrently.
	WorkerCount int

	// HandlerTimeout bounds a single handler invocation. Zero means no limit.
	HandlerTimeout time.Duration

	// StuckJobAge defines how long a job can stay processing before it is
	// considered abandoned and redelivered.
	StuckJobAge time.Duration

	// StuckJobCheckInterval defines how often to look for stuck jobs.
	StuckJobCheckInterval time.Duration
}

// DefaultConsumerConfig returns a ConsumerConfig with reasonable defaults.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		WorkerCount:           2,
		HandlerTimeout:        30 * time.Second,
		StuckJobAge:           30 * time.Minute,
		StuckJobCheckInterval: 5 * time.Minute,
	}
}

// TerminalFunc is told exactly once when a job reaches a terminal outcome.
type TerminalFunc func(env *Envelope, outcome Outcome, err error)

// Consumer pulls envelopes from a Queue and runs the handler registered for
// their kind, applying the envelope's retry policy.
type Consumer struct {
	queue  Queue
	store  Store
	config ConsumerConfig
	logger *slog.Logger

	mu         sync.RWMutex
	handlers   map[Kind]Handler
	onTerminal TerminalFunc

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewConsumer creates a Consumer. A nil store skips status bookkeeping.
func NewConsumer(queue Queue, jobs Store, config ConsumerConfig, logger *slog.Logger) *Consumer {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.StuckJobCheckInterval == 0 {
		config.StuckJobCheckInterval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "job_consumer"))

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		queue:      queue,
		store:      jobs,
		config:     config,
		logger:     logger,
		handlers:   make(map[Kind]Handler),
		ctx:        ctx,
		cancelFunc: cancel,
		onTerminal: func(env *Envelope, outcome Outcome, err error) {
			if err != nil && outcome != OutcomeCompleted {
				logger.Error("job finished unsuccessfully",
					slog.String("job_id", env.ID.String()),
					slog.String("kind", string(env.Kind)),
					slog.String("outcome", string(outcome)),
					slog.String("error", err.Error()))
			}
		},
	}
}

// Register routes jobs of kind to h, replacing any previous handler.
func (c *Consumer) Register(kind Kind, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[kind] = h
}

// SetTerminalHandler replaces the callback invoked when a job finishes for good.
func (c *Consumer) SetTerminalHandler(fn TerminalFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTerminal = fn
}

// Start begins processing and recovers unfinished jobs. Workers are running
// before recovery so a backlog larger than the queue buffer drains.
func (c *Consumer) Start() error {
	for i := 0; i < c.config.WorkerCount; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}

	if err := c.Recover(c.ctx); err != nil {
		c.Stop()
		return fmt.Errorf("failed to recover jobs: %w", err)
	}

	if c.store != nil && c.config.StuckJobAge > 0 {
		c.wg.Add(1)
		go c.stuckJobMonitor()
	}

	return nil
}

// Stop signals the workers to exit and waits for in-flight jobs to finish.
func (c *Consumer) Stop() {
	c.cancelFunc()
	c.wg.Wait()
}

// Recover requeues jobs left pending or processing by a previous run.
func (c *Consumer) Recover(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	pending, err := c.store.GetJobs(ctx, StatusPending, 0)
	if err != nil {
		return fmt.Errorf("failed to get pending jobs: %w", err)
	}

	processing, err := c.store.GetJobs(ctx, StatusProcessing, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing jobs: %w", err)
	}

	c.logger.Info("recovering unfinished jobs",
		slog.Int("pending_count", len(pending)),
		slog.Int("processing_count", len(processing)))

	for _, env := range pending {
		c.requeue(ctx, env, "pending")
	}

	for _, env := range processing {
		if err := c.store.UpdateJobStatus(ctx, env.ID, StatusPending, env.Attempt, "reset after recovery"); err != nil {
			c.logger.Error("failed to reset processing job status",
				slog.String("job_id", env.ID.String()),
				slog.String("error", err.Error()))
			continue
		}
		c.requeue(ctx, env, "processing")
	}

	return nil
}

// requeue hands env back to the queue. A full buffer falls back to Schedule,
// which waits for room, so recovered jobs are never left pending.
func (c *Consumer) requeue(ctx context.Context, env *Envelope, from string) {
	err := c.queue.Enqueue(ctx, env)
	if errors.Is(err, ErrQueueFull) {
		c.logger.Debug("queue full, scheduling recovered job",
			slog.String("job_id", env.ID.String()),
			slog.String("from_status", from))
		c.queue.Schedule(env, 0)
		return
	}
	if err != nil {
		c.logger.Error("failed to requeue job",
			slog.String("job_id", env.ID.String()),
			slog.String("kind", string(env.Kind)),
			slog.String("from_status", from),
			slog.String("error", err.Error()))
	}
}

func (c *Consumer) worker(id int) {
	defer c.wg.Done()

	c.logger.Debug("starting worker", slog.Int("worker_id", id))

	for {
		select {
		case <-c.ctx.Done():
			c.logger.Debug("stopping worker", slog.Int("worker_id", id))
			return
		case env := <-c.queue.Channel():
			c.Process(c.ctx, env)
		}
	}
}

// Process runs a single attempt of env and applies the retry policy to the result.
func (c *Consumer) Process(ctx context.Context, env *Envelope) Outcome {
	env.Attempt++
	attempt := env.Attempt

	log := c.logger.With(
		slog.String("job_id", env.ID.String()),
		slog.String("kind", string(env.Kind)),
		slog.Int("attempt", attempt),
		slog.Int("max_attempts", env.Policy.MaxAttempts))

	c.setStatus(ctx, log, env, StatusProcessing, "")

	start := time.Now()
	err := c.invoke(ctx, env, attempt)
	metrics.JobDurationSeconds.WithLabelValues(string(env.Kind)).Observe(time.Since(start).Seconds())

	var outcome Outcome
	switch {
	case err == nil:
		outcome = OutcomeCompleted
		c.setStatus(ctx, log, env, StatusCompleted, "")
		log.Info("job completed")

	case IsPermanent(err):
		outcome = OutcomeFailed
		c.setStatus(ctx, log, env, StatusFailed, err.Error())
		log.Warn("job failed permanently", slog.String("error", err.Error()))

	case env.AttemptsLeft():
		outcome = OutcomeRetrying
		delay := env.Policy.Backoff(attempt)
		c.setStatus(ctx, log, env, StatusPending, err.Error())
		log.Warn("job attempt failed, retrying",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay))
		c.queue.Schedule(env, delay)

	default:
		outcome = OutcomeDeadLettered
		c.setStatus(ctx, log, env, StatusDead, err.Error())
		c.queue.DeadLetter(env, err)
	}

	metrics.JobsProcessedTotal.WithLabelValues(string(env.Kind), string(outcome)).Inc()

	if outcome.Terminal() {
		c.mu.RLock()
		report := c.onTerminal
		c.mu.RUnlock()
		if report != nil {
			report(env, outcome, err)
		}
	}

	return outcome
}

// errUnsuccessful is reported when a handler returns Result{Success: false}.
var errUnsuccessful = errors.New("handler reported failure")

// invoke decodes the payload and calls the handler, folding every way an
// attempt can end into a single error value.
func (c *Consumer) invoke(ctx context.Context, env *Envelope, attempt int) (err error) {
	payload, err := Decode(env)
	if err != nil {
		return err
	}

	c.mu.RLock()
	h, ok := c.handlers[env.Kind]
	c.mu.RUnlock()
	if !ok {
		return Permanent(fmt.Errorf("%w: no handler registered for %q", ErrUnknownKind, env.Kind))
	}

	if c.config.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.HandlerTimeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panicked: %v", p)
		}
	}()

	res, err := h.Handle(ctx, payload, attempt)
	if err != nil {
		return err
	}
	if !res.Success {
		if res.Message != "" {
			return Permanent(fmt.Errorf("%w: %s", errUnsuccessful, res.Message))
		}
		return Permanent(errUnsuccessful)
	}
	return nil
}

func (c *Consumer) setStatus(ctx context.Context, log *slog.Logger, env *Envelope, status Status, errMsg string) {
	if c.store == nil {
		return
	}
	if err := c.store.UpdateJobStatus(ctx, env.ID, status, env.Attempt, errMsg); err != nil {
		log.Error("failed to update job status",
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
	}
}

// stuckJobMonitor periodically redelivers jobs that have been processing for
// longer than StuckJobAge, e.g. after a worker was killed mid-attempt.
func (c *Consumer) stuckJobMonitor() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.StuckJobCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.resetStuckJobs(c.ctx)
		}
	}
}

func (c *Consumer) resetStuckJobs(ctx context.Context) {
	stuck, err := c.store.GetJobs(ctx, StatusProcessing, c.config.StuckJobAge)
	if err != nil {
		c.logger.Error("failed to check for stuck jobs", slog.String("error", err.Error()))
		return
	}
	if len(stuck) == 0 {
		return
	}

	c.logger.Info("found stuck jobs", slog.Int("count", len(stuck)))
	for _, env := range stuck {
		if err := c.store.UpdateJobStatus(ctx, env.ID, StatusPending, env.Attempt,
			"reset after being stuck in processing state"); err != nil {
			c.logger.Error("failed to reset stuck job status",
				slog.String("job_id", env.ID.String()),
				slog.String("error", err.Error()))
			continue
		}
		c.requeue(ctx, env, "processing")
	}
}
