package api

import "github.com/okian/tagtrail/pkg/logger"

// Option configures a Server.
type Option func(*Server)

// WithScanTypes sets the accepted scanType values.
func WithScanTypes(types ...string) Option {
	return func(s *Server) {
		if len(types) == 0 {
			return
		}
		s.scanTypes = make(map[string]struct{}, len(types))
		for _, t := range types {
			s.scanTypes[t] = struct{}{}
		}
	}
}

// WithCORSOrigins sets the origins allowed by the CORS middleware.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
