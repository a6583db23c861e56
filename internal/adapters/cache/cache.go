// Package cache provides the TTL caches consulted by the read path and the
// recent-scan short-circuit. Values are stored as JSON so memory and Redis
// backends behave identically.
package cache

import (
	"context"
	"time"
)

// Cache is a key to value store with per-entry expiry.
type Cache interface {
	// Has reports whether key holds an unexpired value.
	Has(ctx context.Context, key string) (bool, error)
	// Get decodes the value for key into dst and reports whether it was found.
	Get(ctx context.Context, key string, dst any) (bool, error)
	// Set stores v under key for ttl.
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Close() error
}
