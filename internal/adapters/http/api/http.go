// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/tagtrail/internal/domain/apperr"
	"github.com/okian/tagtrail/internal/domain/ingest"
	"github.com/okian/tagtrail/internal/domain/model"
	"github.com/okian/tagtrail/internal/domain/pagination"
	"github.com/okian/tagtrail/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SaveScan(ctx context.Context, scan model.Scan) (model.SaveResult, error)
	BatchInsert(ctx context.Context, events []model.Event) (ingest.Result, error)

	GetTag(ctx context.Context, uid string) (model.TagRecord, error)
	ListTags(ctx context.Context, limit int, cursor string) (pagination.Page[model.TagRecord], error)
	TagSummary(ctx context.Context, uid string) (model.TagSummary, error)
	ListSummaries(ctx context.Context, limit int, cursor string) (pagination.Page[model.TagSummary], error)
	GetStats(ctx context.Context, uid string) (model.StatsRecord, error)
	ListStats(ctx context.Context, limit int, cursor string) (pagination.Page[model.StatsRecord], error)

	Ping(ctx context.Context) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps        Dependencies
	scanTypes   map[string]struct{}
	corsOrigins []string
	logger      logger.Logger

	tags   *TagsHandler
	events *EventsHandler
	stats  *StatsHandler
	health *HealthHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:        deps,
		scanTypes:   map[string]struct{}{"nfc": {}},
		corsOrigins: []string{"*"},
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tags = &TagsHandler{deps: deps, scanTypes: s.scanTypes, logger: s.logger}
	s.events = &EventsHandler{deps: deps, logger: s.logger}
	s.stats = &StatsHandler{deps: deps, logger: s.logger}
	s.health = &HealthHandler{deps: deps}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.health.HandleHealth, "healthz"))
	mux.Handle("GET /metrics", s.health.MetricsHandler())

	mux.HandleFunc("POST /tags", MetricsMiddleware(s.tags.HandlePostTag, "tags"))
	mux.HandleFunc("GET /tags", MetricsMiddleware(s.tags.HandleListTags, "tags"))
	mux.HandleFunc("GET /tags/{uid}", MetricsMiddleware(s.tags.HandleGetTag, "tag"))

	mux.HandleFunc("POST /events", MetricsMiddleware(s.events.HandlePostEvents, "events"))

	mux.HandleFunc("GET /stats", MetricsMiddleware(s.stats.HandleListSummaries, "stats"))
	mux.HandleFunc("GET /stats/{uid}", MetricsMiddleware(s.stats.HandleGetSummary, "stats_uid"))
	mux.HandleFunc("GET /engagement", MetricsMiddleware(s.stats.HandleListStats, "engagement"))
	mux.HandleFunc("GET /engagement/{uid}", MetricsMiddleware(s.stats.HandleGetStats, "engagement_uid"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an error kind to its status and writes the error body.
func writeError(ctx context.Context, w http.ResponseWriter, l logger.Logger, err error) {
	status, code := classify(err)
	msg := apperr.Message(err)
	if status >= http.StatusInternalServerError {
		l.Error(ctx, "request failed", logger.String("requestId", RequestID(ctx)), logger.Int("status", status), logger.Error(err))
		if status == http.StatusInternalServerError {
			msg = http.StatusText(status)
		}
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func classify(err error) (int, string) {
	switch {
	case apperr.IsValidation(err):
		return http.StatusBadRequest, "bad_request"
	case apperr.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case apperr.IsTransient(err), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
