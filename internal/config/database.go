package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"library-sync/internal/infrastructure/database"
)

// LoadDatabaseConfig reads the pgx pool settings of the postgres projection
// backend. The worker is the only writer and applies one event at a time, so
// the default pool is small.
func LoadDatabaseConfig() (*database.DBConfig, error) {
	var env dbEnv

	cfg := &database.DBConfig{
		Host:              getEnv("DB_HOST", "localhost"),
		Port:              env.atoi("DB_PORT", 5432),
		Username:          getEnv("DB_USER", "library"),
		Password:          getEnv("DB_PASSWORD", "library"),
		DBName:            getEnv("DB_NAME", "library_projection"),
		SSLMode:           getEnv("DB_SSLMODE", "disable"),
		MaxConns:          int32(env.atoi("DB_MAX_CONNECTIONS", 4)),
		MinConns:          int32(env.atoi("DB_MIN_CONNECTIONS", 1)),
		MaxConnLifetime:   env.duration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
		MaxConnIdleTime:   env.duration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
		HealthCheckPeriod: env.duration("DB_HEALTH_CHECK_PERIOD", time.Minute),
		MaxRetries:        env.atoi("DB_MAX_RETRIES", 5),
		RetryDelay:        env.duration("DB_RETRY_DELAY", time.Second),
		ConnectTimeout:    env.duration("DB_CONNECT_TIMEOUT", 10*time.Second),
	}
	if env.err != nil {
		return nil, env.err
	}

	if cfg.MaxConns < 1 {
		return nil, fmt.Errorf("DB_MAX_CONNECTIONS must be at least 1, got %d", cfg.MaxConns)
	}
	if cfg.MinConns > cfg.MaxConns {
		return nil, fmt.Errorf("DB_MIN_CONNECTIONS (%d) exceeds DB_MAX_CONNECTIONS (%d)", cfg.MinConns, cfg.MaxConns)
	}
	return cfg, nil
}

// dbEnv parses typed DB_* variables. Unlike getEnvInt it does not fall back
// on a malformed value: the first parse error is kept and reported.
type dbEnv struct {
	err error
}

func (e *dbEnv) atoi(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" || e.err != nil {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.err = fmt.Errorf("invalid %s: %w", key, err)
		return def
	}
	return v
}

func (e *dbEnv) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" || e.err != nil {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		e.err = fmt.Errorf("invalid %s: %w", key, err)
		return def
	}
	return v
}
