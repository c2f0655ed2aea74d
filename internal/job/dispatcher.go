package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/metrics"
)

// DefaultEnqueueTimeout bounds a single Enqueue call when none is configured.
const DefaultEnqueueTimeout = 2 * time.Second

// Option adjusts a single envelope before it is enqueued.
type Option func(*Envelope)

// WithPolicy overrides the dispatcher's default retry policy.
func WithPolicy(p Policy) Option {
	return func(e *Envelope) {
		e.Policy = p
	}
}

// WithMaxAttempts overrides only the attempt limit.
func WithMaxAttempts(n int) Option {
	return func(e *Envelope) {
		e.Policy.MaxAttempts = n
	}
}

// Dispatcher persists and enqueues jobs. It is called only after the write
// that produced the job has committed.
type Dispatcher struct {
	queue   Enqueuer
	store   Store
	policy  Policy
	timeout time.Duration
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher. A nil store skips persistence.
func NewDispatcher(queue Enqueuer, jobs Store, policy Policy, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if queue == nil {
		panic("queue cannot be nil")
	}
	if timeout <= 0 {
		timeout = DefaultEnqueueTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		queue:   queue,
		store:   jobs,
		policy:  policy,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "job_dispatcher")),
	}
}

// Enqueue wraps payload in an envelope, records it and hands it to the queue,
// all within the dispatcher timeout. Any failure past payload validation is
// reported as domain.ErrDependencyUnavailable.
func (d *Dispatcher) Enqueue(ctx context.Context, payload Payload, opts ...Option) (*Envelope, error) {
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	env, err := NewEnvelope(payload, d.policy)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(env)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	log := d.logger.With(
		slog.String("job_id", env.ID.String()),
		slog.String("kind", string(env.Kind)))

	if d.store != nil {
		if err := d.store.SaveJob(ctx, env); err != nil {
			metrics.JobEnqueueFailuresTotal.WithLabelValues(string(env.Kind)).Inc()
			log.Error("failed to save job", slog.String("error", err.Error()))
			return nil, fmt.Errorf("%w: failed to save job: %w", domain.ErrDependencyUnavailable, err)
		}
	}

	if err := d.queue.Enqueue(ctx, env); err != nil {
		metrics.JobEnqueueFailuresTotal.WithLabelValues(string(env.Kind)).Inc()
		log.Error("failed to enqueue job", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: failed to enqueue job: %w", domain.ErrDependencyUnavailable, err)
	}

	metrics.JobsEnqueuedTotal.WithLabelValues(string(env.Kind)).Inc()
	log.Debug("job enqueued")
	return env, nil
}
