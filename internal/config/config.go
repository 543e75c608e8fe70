// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Lock store backends selectable with LOCK_BACKEND.
const (
	LockBackendPostgres = "postgres"
	LockBackendValkey   = "valkey"
	LockBackendMemory   = "memory"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host string
	Port string
	Env  string // "development", "production", "testing"

	// PostgreSQL connection
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey (Redis-compatible cache)
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string

	// Edit locks. The heartbeat and poll intervals are not used by the
	// server itself; they are handed to the editor through the config
	// endpoint so client and server agree on the timings.
	LockBackend       string
	LockLease         time.Duration
	LockSweepInterval time.Duration
	HeartbeatInterval time.Duration
	LockPollInterval  time.Duration

	// SecureCookies sets the Secure flag on session and CSRF cookies.
	SecureCookies bool
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. Returns an error if a value is
// malformed, the lock timings are inconsistent, or critical values are
// missing in production mode.
func Load() (*Config, error) {
	cfg := &Config{
		Host: envOrDefault("APP_HOST", "0.0.0.0"),
		Port: envOrDefault("APP_PORT", "8080"),
		Env:  envOrDefault("APP_ENV", "development"),

		DBHost:     envOrDefault("POSTGRES_HOST", "localhost"),
		DBPort:     envOrDefault("POSTGRES_PORT", "5432"),
		DBUser:     envOrDefault("POSTGRES_USER", "guidepress"),
		DBPassword: envOrDefault("POSTGRES_PASSWORD", "changeme"),
		DBName:     envOrDefault("POSTGRES_DB", "guidepress"),

		ValkeyHost:     envOrDefault("VALKEY_HOST", "localhost"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),

		LockBackend: envOrDefault("LOCK_BACKEND", LockBackendPostgres),
	}

	var err error
	if cfg.LockLease, err = envSecondsOrDefault("LOCK_LEASE_SECONDS", 60); err != nil {
		return nil, err
	}
	if cfg.LockSweepInterval, err = envSecondsOrDefault("LOCK_SWEEP_INTERVAL_SECONDS", 10); err != nil {
		return nil, err
	}
	if cfg.HeartbeatInterval, err = envSecondsOrDefault("HEARTBEAT_INTERVAL_SECONDS", 30); err != nil {
		return nil, err
	}
	if cfg.LockPollInterval, err = envSecondsOrDefault("LOCK_POLL_INTERVAL_SECONDS", 5); err != nil {
		return nil, err
	}
	if cfg.SecureCookies, err = envBoolOrDefault("SECURE_COOKIES", cfg.Env == "production"); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.LockBackend {
	case LockBackendPostgres, LockBackendValkey, LockBackendMemory:
	default:
		return fmt.Errorf("LOCK_BACKEND must be postgres, valkey or memory, got %q", c.LockBackend)
	}

	// A lease shorter than the heartbeat interval would expire healthy
	// sessions between heartbeats.
	if c.LockLease <= c.HeartbeatInterval {
		return fmt.Errorf("LOCK_LEASE_SECONDS (%s) must be greater than HEARTBEAT_INTERVAL_SECONDS (%s)",
			c.LockLease, c.HeartbeatInterval)
	}

	if c.Env == "production" {
		if c.DBPassword == "changeme" {
			return fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
		if c.LockBackend == LockBackendMemory {
			return fmt.Errorf("LOCK_BACKEND=memory is not allowed in production")
		}
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envSecondsOrDefault reads a positive whole number of seconds.
func envSecondsOrDefault(key string, fallback int) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(fallback) * time.Second, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a whole number of seconds: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return time.Duration(n) * time.Second, nil
}

// envBoolOrDefault reads a boolean in any form strconv.ParseBool accepts.
func envBoolOrDefault(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}
