package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Enqueuer accepts envelopes for processing.
type Enqueuer interface {
	// Enqueue hands env to the queue without blocking.
	// Returns ErrQueueFull or ErrQueueClosed when it cannot.
	Enqueue(ctx context.Context, env *Envelope) error
}

// Queue is the broker the consumer reads from.
type Queue interface {
	Enqueuer

	// Channel returns the stream of envelopes ready to run.
	Channel() <-chan *Envelope

	// Schedule redelivers env after delay.
	Schedule(env *Envelope, delay time.Duration)

	// DeadLetter parks env permanently with the error that exhausted it.
	DeadLetter(env *Envelope, reason error)
}

// DeadLetter is a job that exhausted its retry policy.
type DeadLetter struct {
	Envelope Envelope
	Reason   string
	At       time.Time
}

// MemoryQueue is a single-node, in-process Queue backed by a buffered channel.
// Delayed redelivery runs on timers; dead letters are kept for inspection.
type MemoryQueue struct {
	ready  chan *Envelope
	done   chan struct{}
	logger *slog.Logger
	after  func(d time.Duration) <-chan time.Time

	mu     sync.Mutex
	closed bool
	dead   []DeadLetter
	timers sync.WaitGroup
}

// MemoryQueueOption customizes a MemoryQueue.
type MemoryQueueOption func(*MemoryQueue)

// WithDelayFunc replaces time.After for scheduled redelivery.
func WithDelayFunc(after func(d time.Duration) <-chan time.Time) MemoryQueueOption {
	return func(q *MemoryQueue) {
		q.after = after
	}
}

// NewMemoryQueue creates a queue that buffers up to size ready envelopes.
func NewMemoryQueue(size int, logger *slog.Logger, opts ...MemoryQueueOption) *MemoryQueue {
	if logger == nil {
		logger = slog.Default()
	}

	q := &MemoryQueue{
		ready:  make(chan *Envelope, size),
		done:   make(chan struct{}),
		logger: logger.With(slog.String("component", "job_queue")),
		after:  time.After,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

var _ Queue = (*MemoryQueue)(nil)

// Enqueue adds a job to the queue for processing.
// Returns an error if the queue is full or closed.
func (q *MemoryQueue) Enqueue(ctx context.Context, env *Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return ErrQueueClosed
	}

	select {
	case q.ready <- env:
		q.logger.Debug("job enqueued",
			slog.String("job_id", env.ID.String()),
			slog.String("kind", string(env.Kind)),
			slog.Int("queue_len", len(q.ready)),
			slog.Int("queue_cap", cap(q.ready)))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.ready))
	}
}

// Channel returns a read-only channel for consuming jobs.
// It is never closed; consumers stop on their own context.
func (q *MemoryQueue) Channel() <-chan *Envelope {
	return q.ready
}

// Schedule redelivers env once delay has elapsed. A full buffer makes the
// redelivery wait for room rather than drop the job. Pending redeliveries
// are abandoned when the queue closes.
func (q *MemoryQueue) Schedule(env *Envelope, delay time.Duration) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("dropping retry for closed queue",
			slog.String("job_id", env.ID.String()))
		return
	}
	q.timers.Add(1)
	q.mu.Unlock()

	go func() {
		defer q.timers.Done()

		select {
		case <-q.after(delay):
		case <-q.done:
			return
		}

		select {
		case q.ready <- env:
			q.logger.Debug("job redelivered",
				slog.String("job_id", env.ID.String()),
				slog.Int("attempt", env.Attempt))
		case <-q.done:
		}
	}()
}

// DeadLetter records env as permanently failed.
func (q *MemoryQueue) DeadLetter(env *Envelope, reason error) {
	letter := DeadLetter{Envelope: *env, At: time.Now().UTC()}
	if reason != nil {
		letter.Reason = reason.Error()
	}

	q.mu.Lock()
	q.dead = append(q.dead, letter)
	q.mu.Unlock()

	q.logger.Warn("job dead-lettered",
		slog.String("job_id", env.ID.String()),
		slog.String("kind", string(env.Kind)),
		slog.Int("attempts", env.Attempt),
		slog.String("reason", letter.Reason))
}

// DeadLetters returns a snapshot of every dead-lettered job.
func (q *MemoryQueue) DeadLetters() []DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]DeadLetter, len(q.dead))
	copy(out, q.dead)
	return out
}

// Len reports how many envelopes are ready to run.
func (q *MemoryQueue) Len() int {
	return len(q.ready)
}

// Close stops accepting jobs and abandons pending redeliveries.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	q.timers.Wait()
	q.logger.Info("job queue closed")
}
