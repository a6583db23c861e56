package registry

import (
	"time"

	"github.com/okian/tagtrail/pkg/logger"
)

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces the clock stamping scans.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithHistoryWarn logs once a tag's history grows past n entries. Zero disables it.
func WithHistoryWarn(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.historyWarn = int64(n)
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}
