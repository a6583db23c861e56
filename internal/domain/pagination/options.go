package pagination

import (
	"time"

	"github.com/okian/tagtrail/pkg/logger"
)

const (
	defaultTagTTL   = 120 * time.Second
	defaultStatsTTL = 60 * time.Second
	defaultListTTL  = 60 * time.Second

	// DefaultLimit is used when a list call names no limit.
	DefaultLimit = 100
	// MaxLimit caps any list call.
	MaxLimit = 500
)

// Option configures a Reader.
type Option func(*Reader)

// WithTagTTL sets how long single tag reads are cached.
func WithTagTTL(d time.Duration) Option {
	return func(r *Reader) {
		if d > 0 {
			r.tagTTL = d
		}
	}
}

// WithStatsTTL sets how long stats records and tag summaries are cached.
func WithStatsTTL(d time.Duration) Option {
	return func(r *Reader) {
		if d > 0 {
			r.statsTTL = d
		}
	}
}

// WithListTTL sets how long pages are cached.
func WithListTTL(d time.Duration) Option {
	return func(r *Reader) {
		if d > 0 {
			r.listTTL = d
		}
	}
}

// WithLimits sets the default and maximum page sizes.
func WithLimits(def, max int) Option {
	return func(r *Reader) {
		if max > 0 {
			r.maxLimit = max
		}
		if def > 0 && def <= r.maxLimit {
			r.defLimit = def
		}
	}
}

// WithHistoryWarn logs when a stats record read has more than n history
// entries. Zero disables it.
func WithHistoryWarn(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.historyWarn = n
		}
	}
}

// WithLogger sets the reader logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Reader) {
		if l != nil {
			r.logger = l
		}
	}
}
