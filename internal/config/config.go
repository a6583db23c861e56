// Package config defines service configuration structures and loading hooks.
package config

import (
	"context"
	"fmt"
	"time"
)

// Store and cache backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreBackend is memory or postgres.
	StoreBackend     string `koanf:"store_backend"`
	PostgresDSN      string `koanf:"postgres_dsn"`
	PostgresMaxConns int    `koanf:"postgres_max_conns"`

	// CacheBackend is memory or redis.
	CacheBackend string `koanf:"cache_backend"`
	RedisAddr    string `koanf:"redis_addr"`
	RedisDB      int    `koanf:"redis_db"`

	// BatchLimit caps the number of events accepted by one POST /events.
	BatchLimit int `koanf:"batch_limit"`

	DefaultPageLimit int `koanf:"default_page_limit"`
	MaxPageLimit     int `koanf:"max_page_limit"`

	// TxMaxAttempts bounds optimistic transaction retries.
	TxMaxAttempts   int `koanf:"tx_max_attempts"`
	TxBaseBackoffMS int `koanf:"tx_base_backoff_ms"`

	// StatsConcurrency bounds the stats fan-out of one batch.
	StatsConcurrency int `koanf:"stats_concurrency"`
	// EventDedupeSize sizes the per-event stats deduper. Zero disables it.
	EventDedupeSize int `koanf:"event_dedupe_size"`

	StatsCacheTTLSeconds int `koanf:"stats_cache_ttl_seconds"`
	TagCacheTTLSeconds   int `koanf:"tag_cache_ttl_seconds"`
	ListCacheTTLSeconds  int `koanf:"list_cache_ttl_seconds"`

	// ScanDedupeWindowSeconds short-circuits repeated scans of a uid. Zero disables it.
	ScanDedupeWindowSeconds int `koanf:"scan_dedupe_window_seconds"`

	// HistoryWarnLength logs a warning once a history grows past it.
	HistoryWarnLength int `koanf:"history_warn_length"`

	AllowedScanTypes   []string `koanf:"allowed_scan_types"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":9080",
		StoreBackend:            BackendMemory,
		PostgresMaxConns:        16,
		CacheBackend:            BackendMemory,
		RedisAddr:               "localhost:6379",
		BatchLimit:              500,
		DefaultPageLimit:        100,
		MaxPageLimit:            500,
		TxMaxAttempts:           5,
		TxBaseBackoffMS:         10,
		StatsConcurrency:        64,
		EventDedupeSize:         100_000,
		StatsCacheTTLSeconds:    60,
		TagCacheTTLSeconds:      120,
		ListCacheTTLSeconds:     60,
		ScanDedupeWindowSeconds: 0,
		HistoryWarnLength:       10_000,
		AllowedScanTypes:        []string{"nfc"},
		CORSAllowedOrigins:      []string{"*"},
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.StoreBackend != BackendMemory && c.StoreBackend != BackendPostgres:
		return invalid("store_backend must be memory or postgres, got %q", c.StoreBackend)
	case c.StoreBackend == BackendPostgres && c.PostgresDSN == "":
		return invalid("postgres_dsn is required for the postgres backend")
	case c.CacheBackend != BackendMemory && c.CacheBackend != BackendRedis:
		return invalid("cache_backend must be memory or redis, got %q", c.CacheBackend)
	case c.CacheBackend == BackendRedis && c.RedisAddr == "":
		return invalid("redis_addr is required for the redis cache")
	case c.BatchLimit < 1:
		return invalid("batch_limit must be positive")
	case c.MaxPageLimit < 1:
		return invalid("max_page_limit must be positive")
	case c.DefaultPageLimit < 1 || c.DefaultPageLimit > c.MaxPageLimit:
		return invalid("default_page_limit must be within [1, %d]", c.MaxPageLimit)
	case c.TxMaxAttempts < 1:
		return invalid("tx_max_attempts must be positive")
	case c.TxBaseBackoffMS < 0:
		return invalid("tx_base_backoff_ms must not be negative")
	case c.StatsConcurrency < 1:
		return invalid("stats_concurrency must be positive")
	case c.EventDedupeSize < 0:
		return invalid("event_dedupe_size must not be negative")
	case c.StatsCacheTTLSeconds < 1 || c.TagCacheTTLSeconds < 1 || c.ListCacheTTLSeconds < 1:
		return invalid("cache ttls must be positive")
	case c.ScanDedupeWindowSeconds < 0:
		return invalid("scan_dedupe_window_seconds must not be negative")
	case len(c.AllowedScanTypes) == 0:
		return invalid("allowed_scan_types must not be empty")
	}
	return nil
}

// TxBaseBackoff returns the first retry delay.
func (c *Config) TxBaseBackoff() time.Duration {
	return time.Duration(c.TxBaseBackoffMS) * time.Millisecond
}

// StatsCacheTTL returns the stats and summary cache TTL.
func (c *Config) StatsCacheTTL() time.Duration {
	return time.Duration(c.StatsCacheTTLSeconds) * time.Second
}

// TagCacheTTL returns the single-tag cache TTL.
func (c *Config) TagCacheTTL() time.Duration {
	return time.Duration(c.TagCacheTTLSeconds) * time.Second
}

// ListCacheTTL returns the page cache TTL.
func (c *Config) ListCacheTTL() time.Duration {
	return time.Duration(c.ListCacheTTLSeconds) * time.Second
}

// ScanDedupeWindow returns the recent-scan short-circuit window.
func (c *Config) ScanDedupeWindow() time.Duration {
	return time.Duration(c.ScanDedupeWindowSeconds) * time.Second
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
