package docstore

import "time"

const (
	defaultAttempts   = 5
	defaultBackoff    = 10 * time.Millisecond
	defaultOrderField = "lastSeen"
)

type options struct {
	attempts   int
	backoff    time.Duration
	orderField string
	now        func() time.Time
	maxConns   int32
}

func defaultOptions() options {
	return options{
		attempts:   defaultAttempts,
		backoff:    defaultBackoff,
		orderField: defaultOrderField,
		now:        time.Now,
	}
}

// Option configures a store.
type Option func(*options)

// WithMaxAttempts bounds how often a conflicting transaction is retried.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.attempts = n
		}
	}
}

// WithBaseBackoff sets the delay before the first retry. It doubles per attempt.
func WithBaseBackoff(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.backoff = d
		}
	}
}

// WithOrderField names the timestamp field queries order by. The Postgres
// store indexes it on write.
func WithOrderField(field string) Option {
	return func(o *options) {
		if field != "" {
			o.orderField = field
		}
	}
}

// WithClock replaces the clock used for ServerTimestamp.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMaxConns caps the Postgres pool size.
func WithMaxConns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConns = int32(n) //nolint:gosec // bounded by config validation
		}
	}
}
