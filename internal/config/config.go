package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Cache     CacheConfig     `mapstructure:"cache" validate:"required"`
	Queue     QueueConfig     `mapstructure:"queue" validate:"required"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" validate:"required"`
	Scanner   ScannerConfig   `mapstructure:"scanner" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"required,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gt=0"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
}

// CacheConfig configures the task cache.
// An empty RedisAddr selects the in-process backend.
type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr" validate:"omitempty,hostname_port"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db" validate:"gte=0"`
	DefaultTTL    time.Duration `mapstructure:"default_ttl" validate:"gt=0"`
	ListTTL       time.Duration `mapstructure:"list_ttl" validate:"gt=0"`
	OpTimeout     time.Duration `mapstructure:"op_timeout" validate:"gt=0"`
}

// QueueConfig configures job dispatch and consumption.
type QueueConfig struct {
	WorkerCount    int           `mapstructure:"worker_count" validate:"gt=0"`
	QueueSize      int           `mapstructure:"queue_size" validate:"gt=0"`
	MaxAttempts    int           `mapstructure:"max_attempts" validate:"gt=0"`
	BackoffBase    time.Duration `mapstructure:"backoff_base" validate:"gt=0"`
	BackoffMax     time.Duration `mapstructure:"backoff_max" validate:"gte=0"`
	EnqueueTimeout time.Duration `mapstructure:"enqueue_timeout" validate:"gt=0"`
}

// RateLimitConfig configures the fixed-window request limiter.
type RateLimitConfig struct {
	Limit  int           `mapstructure:"limit" validate:"gt=0"`
	Window time.Duration `mapstructure:"window" validate:"gt=0"`
}

// ScannerConfig configures the periodic overdue task scan.
type ScannerConfig struct {
	Interval    time.Duration `mapstructure:"interval" validate:"gt=0"`
	Concurrency int           `mapstructure:"concurrency" validate:"gt=0"`
}
