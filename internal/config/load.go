package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the loader reads,
// e.g. TASKFLOW_SERVER_PORT for server.port.
const EnvPrefix = "TASKFLOW"

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file: ./config.yaml
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about; bind the
	// keys without defaults explicitly so Unmarshal sees them.
	for _, key := range []string{"database.url", "cache.redis_addr", "cache.redis_password"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("error binding environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.default_ttl", "80s")
	v.SetDefault("cache.list_ttl", "30s")
	v.SetDefault("cache.op_timeout", "250ms")

	v.SetDefault("queue.worker_count", 2)
	v.SetDefault("queue.queue_size", 100)
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.backoff_base", "1s")
	v.SetDefault("queue.backoff_max", "0s")
	v.SetDefault("queue.enqueue_timeout", "2s")

	v.SetDefault("rate_limit.limit", 100)
	v.SetDefault("rate_limit.window", "1m")

	v.SetDefault("scanner.interval", "1h")
	v.SetDefault("scanner.concurrency", 8)
}
