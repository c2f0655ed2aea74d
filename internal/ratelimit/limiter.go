// Package ratelimit implements an in-process fixed-window request limiter.
//
// Each key gets a counter and a window expiry. The first request after the
// window expires opens a new window. Because windows are fixed rather than
// sliding, a caller can get up to 2×Limit requests through across a window
// boundary.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/taskflow-api/internal/metrics"
)

// ErrRateLimited is wrapped by every *LimitError.
var ErrRateLimited = errors.New("rate limit exceeded")

// LimitError is returned when a key has used up its window.
type LimitError struct {
	// RetryAfter is the number of whole seconds until the window resets,
	// rounded up.
	RetryAfter int
	Limit      int
	ResetAt    time.Time
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: retry after %ds", ErrRateLimited, e.RetryAfter)
}

// Unwrap returns ErrRateLimited.
func (e *LimitError) Unwrap() error {
	return ErrRateLimited
}

// Result describes an admitted request.
type Result struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type record struct {
	count  int
	expiry time.Time
}

// Limiter is a fixed-window counter keyed by caller identity.
// It is safe for concurrent use.
type Limiter struct {
	limit  int
	window time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	records map[string]*record
	now     func() time.Time
}

// New creates a Limiter admitting limit requests per window for each key.
func New(limit int, window time.Duration, logger *slog.Logger) *Limiter {
	if limit <= 0 || window <= 0 {
		panic("ratelimit: limit and window must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		limit:   limit,
		window:  window,
		logger:  logger.With(slog.String("component", "rate_limiter")),
		records: make(map[string]*record),
		now:     time.Now,
	}
}

// Limit returns the number of requests admitted per window.
func (l *Limiter) Limit() int {
	return l.limit
}

// Allow counts one request for key. It returns a *LimitError when the key has
// no requests left in its current window.
func (l *Limiter) Allow(key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.records[key]
	if !ok || !now.Before(rec.expiry) {
		rec = &record{count: 1, expiry: now.Add(l.window)}
		l.records[key] = rec
		return Result{Limit: l.limit, Remaining: l.limit - 1, ResetAt: rec.expiry}, nil
	}

	if rec.count < l.limit {
		rec.count++
		return Result{Limit: l.limit, Remaining: l.limit - rec.count, ResetAt: rec.expiry}, nil
	}

	metrics.RateLimitRejectionsTotal.Inc()
	return Result{Limit: l.limit, ResetAt: rec.expiry}, &LimitError{
		RetryAfter: retryAfterSeconds(rec.expiry.Sub(now)),
		Limit:      l.limit,
		ResetAt:    rec.expiry,
	}
}

// Sweep removes records whose window has expired and returns how many it removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, rec := range l.records {
		if !now.Before(rec.expiry) {
			delete(l.records, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (l *Limiter) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				l.logger.Debug("swept expired rate limit records", slog.Int("removed", n))
			}
		}
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(d / time.Second)
	if d%time.Second > 0 {
		secs++
	}
	return secs
}
