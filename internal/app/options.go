package service

import (
	"time"

	"github.com/okian/tagtrail/internal/adapters/cache"
	"github.com/okian/tagtrail/internal/adapters/docstore"
	"github.com/okian/tagtrail/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects a document store instead of opening the configured one.
func WithStore(store docstore.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithCache injects a cache instead of opening the configured one.
func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithClock replaces the clock stamping scans.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
