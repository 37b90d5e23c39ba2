package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Projection backends
const (
	BackendPostgres = "postgres"
	BackendSurreal  = "surrealdb"
	BackendMemory   = "memory"
)

// Failure policies for events whose handler returned an error
const (
	PolicySkip  = "skip"
	PolicyRetry = "retry"
	PolicyStop  = "stop"
)

// Config holds the worker configuration, populated from environment variables.
type Config struct {
	App       AppConfig
	Redis     RedisConfig
	Stream    StreamConfig
	Surreal   SurrealConfig
	Sync      SyncConfig
	Telemetry TelemetryConfig
}

type AppConfig struct {
	Name              string
	Environment       string // development, staging, production
	LogLevel          string
	ProjectionBackend string
	HealthAddr        string
}

type RedisConfig struct {
	Host     string
	Password string
	DB       int
}

// StreamConfig describes the Redis Streams layout of the change event bus.
type StreamConfig struct {
	Prefix   string        // streams are named <prefix>.<topic>
	Group    string        // consumer group
	Consumer string        // consumer name inside the group
	Block    time.Duration // XREADGROUP block
}

type SurrealConfig struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

type SyncConfig struct {
	FailurePolicy string
	InlineRetries int           // in-place attempts under the retry policy before the queue hand-off
	InlineBackoff time.Duration // first delay between in-place attempts, grown exponentially
	RetryMax      int
	LedgerTTL     time.Duration
	ReconcileCron string // empty disables the scheduled reconcile pass
}

type TelemetryConfig struct {
	MetricsEnabled    bool
	CollectorEndpoint string
	ExportInterval    time.Duration
	Insecure          bool
}

// Load reads config from environment variables
func Load() (*Config, error) {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "worker-1"
	}

	cfg := &Config{
		App: AppConfig{
			Name:              getEnv("APP_NAME", "library-sync"),
			Environment:       getEnv("APP_ENV", "development"),
			LogLevel:          getEnv("LOG_LEVEL", "info"),
			ProjectionBackend: getEnv("PROJECTION_BACKEND", BackendPostgres),
			HealthAddr:        getEnv("HEALTH_ADDR", ":9999"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Stream: StreamConfig{
			Prefix:   getEnv("STREAM_PREFIX", "library"),
			Group:    getEnv("STREAM_GROUP", "projection-sync"),
			Consumer: getEnv("STREAM_CONSUMER", hostname),
			Block:    getEnvDuration("STREAM_BLOCK", 5*time.Second),
		},
		Surreal: SurrealConfig{
			URL:       getEnv("SURREAL_URL", "ws://localhost:8000"),
			Namespace: getEnv("SURREAL_NS", "library"),
			Database:  getEnv("SURREAL_DB", "projection"),
			Username:  getEnv("SURREAL_USER", "root"),
			Password:  getEnv("SURREAL_PASS", "root"),
		},
		Sync: SyncConfig{
			FailurePolicy: getEnv("SYNC_FAILURE_POLICY", PolicySkip),
			InlineRetries: getEnvInt("SYNC_INLINE_RETRIES", 3),
			InlineBackoff: getEnvDuration("SYNC_INLINE_BACKOFF", 200*time.Millisecond),
			RetryMax:      getEnvInt("SYNC_RETRY_MAX", 5),
			LedgerTTL:     getEnvDuration("SYNC_LEDGER_TTL", 24*time.Hour),
			ReconcileCron: getEnv("RECONCILE_CRON", "30 3 * * *"),
		},
		Telemetry: TelemetryConfig{
			MetricsEnabled:    getEnvBool("OTEL_METRICS_ENABLED", false),
			CollectorEndpoint: getEnv("OTEL_COLLECTOR_ENDPOINT", "localhost:4317"),
			ExportInterval:    getEnvDuration("OTEL_EXPORT_INTERVAL", 60*time.Second),
			Insecure:          getEnvBool("OTEL_INSECURE", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the values the worker cannot start without
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.App,
		validation.Field(&c.App.Environment, validation.Required, validation.In("development", "staging", "production")),
		validation.Field(&c.App.ProjectionBackend, validation.Required, validation.In(BackendPostgres, BackendSurreal, BackendMemory)),
		validation.Field(&c.App.HealthAddr, validation.Required),
	); err != nil {
		return fmt.Errorf("app: %w", err)
	}

	if err := validation.ValidateStruct(&c.Stream,
		validation.Field(&c.Stream.Prefix, validation.Required),
		validation.Field(&c.Stream.Group, validation.Required),
		validation.Field(&c.Stream.Consumer, validation.Required),
		validation.Field(&c.Stream.Block, validation.Min(time.Millisecond)),
	); err != nil {
		return fmt.Errorf("stream: %w", err)
	}

	if err := validation.ValidateStruct(&c.Sync,
		validation.Field(&c.Sync.FailurePolicy, validation.Required, validation.In(PolicySkip, PolicyRetry, PolicyStop)),
		validation.Field(&c.Sync.InlineRetries, validation.Min(0)),
		validation.Field(&c.Sync.InlineBackoff, validation.Min(time.Millisecond)),
		validation.Field(&c.Sync.RetryMax, validation.Min(0)),
		validation.Field(&c.Sync.LedgerTTL, validation.Min(time.Second)),
	); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	if c.App.ProjectionBackend == BackendSurreal {
		if err := validation.ValidateStruct(&c.Surreal,
			validation.Field(&c.Surreal.URL, validation.Required),
			validation.Field(&c.Surreal.Namespace, validation.Required),
			validation.Field(&c.Surreal.Database, validation.Required),
		); err != nil {
			return fmt.Errorf("surreal: %w", err)
		}
	}

	// Production must not run against the in-memory projection
	if c.App.Environment == "production" && c.App.ProjectionBackend == BackendMemory {
		return fmt.Errorf("PROJECTION_BACKEND=memory is not allowed in production")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
