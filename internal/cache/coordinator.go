package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/metrics"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
)

// Config holds the Coordinator's TTLs and per-operation timeout.
type Config struct {
	DefaultTTL time.Duration
	ListTTL    time.Duration
	OpTimeout  time.Duration
}

// DefaultConfig returns an 80s entry TTL, a 30s list TTL and a 250ms timeout.
func DefaultConfig() Config {
	return Config{
		DefaultTTL: 80 * time.Second,
		ListTTL:    30 * time.Second,
		OpTimeout:  250 * time.Millisecond,
	}
}

// Coordinator serializes values to JSON and reads and writes them through a
// Backend. None of its methods return errors.
//
// Readers that fill the cache from the store take a Generation before the
// store read and write back with SetIfCurrent. InvalidateTasks advances the
// generation under the same lock, so a fill that raced a committed write is
// dropped instead of overwriting the invalidation.
type Coordinator struct {
	backend Backend
	cfg     Config
	logger  *slog.Logger

	mu         sync.RWMutex
	generation uint64
}

// NewCoordinator creates a Coordinator. Zero config fields take their defaults.
func NewCoordinator(backend Backend, cfg Config, logger *slog.Logger) *Coordinator {
	if backend == nil {
		panic("cache: backend cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	defaults := DefaultConfig()
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = defaults.DefaultTTL
	}
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = defaults.ListTTL
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = defaults.OpTimeout
	}

	return &Coordinator{
		backend: backend,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "cache")),
	}
}

// ListTTL is the TTL used for parameterized list entries.
func (c *Coordinator) ListTTL() time.Duration {
	return c.cfg.ListTTL
}

// Get decodes the entry stored under key into dest and reports whether it was
// a hit. Backend errors, timeouts and undecodable entries count as misses.
func (c *Coordinator) Get(ctx context.Context, key string, dest any) bool {
	opCtx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()

	raw, ok, err := c.backend.Get(opCtx, key)
	if err != nil {
		c.fail(ctx, "get", key, err)
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		return false
	}
	if !ok {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return false
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		c.fail(ctx, "decode", key, err)
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		c.Delete(ctx, key)
		return false
	}

	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	return true
}

// Set stores value under key. A non-positive ttl selects the default TTL.
func (c *Coordinator) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}

	raw, err := json.Marshal(value)
	if err != nil {
		c.fail(ctx, "encode", key, err)
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()

	if err := c.backend.Set(opCtx, key, raw, ttl); err != nil {
		c.fail(ctx, "set", key, err)
	}
}

// Generation returns the current invalidation generation.
func (c *Coordinator) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// SetIfCurrent stores value under key only if no invalidation has happened
// since gen was taken, and reports whether it did.
func (c *Coordinator) SetIfCurrent(ctx context.Context, gen uint64, key string, value any, ttl time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.generation != gen {
		metrics.CacheStaleFillsTotal.Inc()
		logger.FromContextOrDefault(ctx, c.logger).Debug("skipping stale cache fill",
			slog.String("key", key))
		return false
	}
	c.Set(ctx, key, value, ttl)
	return true
}

// Delete removes keys from the backend.
func (c *Coordinator) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()

	if err := c.backend.Delete(opCtx, keys...); err != nil {
		c.fail(ctx, "delete", keys[0], err, slog.Int("key_count", len(keys)))
	}
}

// InvalidateTasks drops the per-task entries for ids together with the
// "all tasks" list and the stats entry. Filtered list entries cannot be
// enumerated and are left to expire after ListTTL. Must only be called after
// the mutation has committed.
func (c *Coordinator) InvalidateTasks(ctx context.Context, ids ...uuid.UUID) {
	keys := make([]string, 0, len(ids)+2)
	for _, id := range ids {
		keys = append(keys, TaskKey(id))
	}
	keys = append(keys, AllTasksKey, StatsKey)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.Delete(ctx, keys...)
}

func (c *Coordinator) fail(ctx context.Context, op, key string, err error, attrs ...any) {
	metrics.CacheErrorsTotal.WithLabelValues(op).Inc()
	log := logger.FromContextOrDefault(ctx, c.logger)
	args := append([]any{
		slog.String("op", op),
		slog.String("key", key),
		slog.String("error", err.Error()),
	}, attrs...)
	log.Warn("cache operation failed, continuing without cache", args...)
}
