package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Backend names
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendFile   = "file"
)

// Config holds all configuration for the launch orchestrator
type Config struct {
	// Server configuration. The API can start processes, so it binds to
	// loopback unless told otherwise.
	HTTPHost       string `env:"LAUNCHORCH_HTTP_HOST" envDefault:"127.0.0.1"`
	HTTPPort       int    `env:"LAUNCHORCH_HTTP_PORT" envDefault:"8080"`
	GRPCHost       string `env:"LAUNCHORCH_GRPC_HOST" envDefault:"127.0.0.1"`
	GRPCPort       int    `env:"LAUNCHORCH_GRPC_PORT" envDefault:"9090"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogDevelopment bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`

	// AllowedOrigins are the browser origins, besides the API's own, that may
	// call the API and open websocket streams
	AllowedOrigins []string `env:"LAUNCHORCH_ALLOWED_ORIGINS" envSeparator:","`

	// Simulate runs against the in-memory host instead of Windows
	Simulate bool `env:"LAUNCHORCH_SIMULATE" envDefault:"false"`

	// Backends
	Store  StoreConfig
	Events EventsConfig

	// Redis configuration
	Redis RedisConfig

	// Component configuration
	Validation ValidationConfig
	Activation ActivationConfig
	Resolver   ResolverConfig

	// Worker configuration
	Workers WorkerConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// StoreConfig selects the entry store
type StoreConfig struct {
	Backend     string        `env:"LAUNCHORCH_STORE" envDefault:"file"`
	EntriesFile string        `env:"LAUNCHORCH_ENTRIES_FILE" envDefault:"entries.yaml"`
	RunsFile    string        `env:"LAUNCHORCH_RUNS_FILE" envDefault:"runs.yaml"`
	KeyPrefix   string        `env:"LAUNCHORCH_STORE_PREFIX" envDefault:"launchorch"`
	RunTTL      time.Duration `env:"LAUNCHORCH_RUN_TTL" envDefault:"720h"`
}

// EventsConfig selects the status event transport
type EventsConfig struct {
	Backend      string `env:"LAUNCHORCH_EVENTS" envDefault:"memory"`
	BufferSize   int    `env:"LAUNCHORCH_EVENTS_BUFFER" envDefault:"256"`
	StreamPrefix string `env:"LAUNCHORCH_EVENTS_PREFIX" envDefault:"launchorch"`
	StreamMaxLen int64  `env:"LAUNCHORCH_EVENTS_MAXLEN" envDefault:"10000"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// ValidationConfig holds validation watcher settings
type ValidationConfig struct {
	Scheme          string        `env:"LAUNCHORCH_VALIDATION_SCHEME" envDefault:"steam"`
	ClientPrefix    string        `env:"LAUNCHORCH_VALIDATION_CLIENT" envDefault:"steam"`
	PollInterval    time.Duration `env:"LAUNCHORCH_VALIDATION_POLL" envDefault:"500ms"`
	QuietPeriod     time.Duration `env:"LAUNCHORCH_VALIDATION_QUIET" envDefault:"5s"`
	FallbackCeiling time.Duration `env:"LAUNCHORCH_VALIDATION_CEILING" envDefault:"60s"`
	Keywords        []string      `env:"LAUNCHORCH_VALIDATION_KEYWORDS" envSeparator:"," envDefault:"Validating,Verifying,Updating"`
}

// ActivationConfig holds activation gateway settings
type ActivationConfig struct {
	AttemptTimeout time.Duration `env:"LAUNCHORCH_ACTIVATION_TIMEOUT" envDefault:"15s"`
}

// ResolverConfig holds process resolver settings
type ResolverConfig struct {
	PollInterval time.Duration `env:"LAUNCHORCH_RESOLVER_POLL" envDefault:"250ms"`
	IgnoreImages []string      `env:"LAUNCHORCH_RESOLVER_IGNORE" envSeparator:"," envDefault:"explorer.exe,conhost.exe,powershell.exe"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	PoolSize            int           `env:"WORKER_POOL_SIZE" envDefault:"4"`
	QueueSize           int           `env:"WORKER_QUEUE_SIZE" envDefault:"16"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	RunRetention    time.Duration `env:"LAUNCHORCH_RUN_RETENTION" envDefault:"1h"`
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables. Variables from the
// given .env files (or ./.env) are loaded first without overriding the
// environment; a missing file is not an error.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}
	for _, o := range c.AllowedOrigins {
		u, err := url.Parse(o)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid allowed origin: %q (want scheme://host[:port])", o)
		}
	}

	// Validate backends
	switch c.Store.Backend {
	case BackendMemory, BackendRedis:
	case BackendFile:
		if c.Store.EntriesFile == "" || c.Store.RunsFile == "" {
			return fmt.Errorf("file store needs entries and runs files")
		}
	default:
		return fmt.Errorf("unsupported store backend: %s (must be memory, redis, or file)", c.Store.Backend)
	}
	switch c.Events.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unsupported events backend: %s (must be memory or redis)", c.Events.Backend)
	}
	if c.UsesRedis() && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	// Validate durations
	durations := map[string]time.Duration{
		"validation poll interval":    c.Validation.PollInterval,
		"validation quiet period":     c.Validation.QuietPeriod,
		"validation fallback ceiling": c.Validation.FallbackCeiling,
		"activation attempt timeout":  c.Activation.AttemptTimeout,
		"resolver poll interval":      c.Resolver.PollInterval,
		"run retention":               c.Timeouts.RunRetention,
		"shutdown timeout":            c.Timeouts.ShutdownTimeout,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.Validation.QuietPeriod >= c.Validation.FallbackCeiling {
		return fmt.Errorf("validation quiet period %s must be shorter than the fallback ceiling %s",
			c.Validation.QuietPeriod, c.Validation.FallbackCeiling)
	}

	// Validate keywords
	if len(c.Validation.Keywords) == 0 {
		return fmt.Errorf("at least one validation keyword is required")
	}
	for _, k := range c.Validation.Keywords {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("validation keywords must not be empty")
		}
	}

	// Validate worker config
	if c.Workers.PoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1")
	}
	if c.Workers.QueueSize < 0 {
		return fmt.Errorf("worker queue size must not be negative")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// UsesRedis reports whether any backend needs a Redis connection
func (c *Config) UsesRedis() bool {
	return c.Store.Backend == BackendRedis || c.Events.Backend == BackendRedis
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return net.JoinHostPort(c.HTTPHost, strconv.Itoa(c.HTTPPort))
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return net.JoinHostPort(c.GRPCHost, strconv.Itoa(c.GRPCPort))
}
