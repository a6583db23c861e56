package ingest

import (
	"github.com/okian/tagtrail/internal/domain/dedupe"
	"github.com/okian/tagtrail/pkg/logger"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBatchLimit overrides DefaultBatchLimit.
func WithBatchLimit(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchLimit = n
		}
	}
}

// WithDeduper makes stats deltas idempotent per event id.
func WithDeduper(d dedupe.Deduper) Option {
	return func(p *Pipeline) {
		if d != nil {
			p.seen = d
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}
