package cache

import "time"

// Option configures a MemoryCache.
type Option func(*MemoryCache)

// WithClock replaces the clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(c *MemoryCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSweepInterval removes expired entries in the background every d.
// Zero disables sweeping; expired entries are still never returned.
func WithSweepInterval(d time.Duration) Option {
	return func(c *MemoryCache) {
		c.sweepEvery = d
	}
}

// WithName labels cache metrics.
func WithName(name string) Option {
	return func(c *MemoryCache) {
		if name != "" {
			c.name = name
		}
	}
}
