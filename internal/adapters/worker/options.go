package worker

import (
	"time"

	"github.com/okian/tagtrail/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithName sets the pool name used in logs and errors.
func WithName(name string) Option {
	return func(p *Pool) {
		if name != "" {
			p.name = name
		}
	}
}

// WithLogger sets a custom logger for the pool.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithTaskTimeout bounds each task's run time.
func WithTaskTimeout(d time.Duration) Option {
	return func(p *Pool) {
		p.timeout = d
	}
}
