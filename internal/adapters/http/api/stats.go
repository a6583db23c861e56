package api

import (
	"net/http"

	"github.com/okian/tagtrail/pkg/logger"
)

// StatsHandler serves tag summaries and engagement stats.
type StatsHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// HandleGetSummary handles GET /stats/{uid} requests.
func (h *StatsHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sum, err := h.deps.TagSummary(ctx, r.PathValue("uid"))
	if err != nil {
		writeError(ctx, w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// HandleListSummaries handles GET /stats requests.
func (h *StatsHandler) HandleListSummaries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, cursor := pageParams(r)
	page, err := h.deps.ListSummaries(ctx, limit, cursor)
	if err != nil {
		writeError(ctx, w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleGetStats handles GET /engagement/{uid} requests.
func (h *StatsHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, err := h.deps.GetStats(ctx, r.PathValue("uid"))
	if err != nil {
		writeError(ctx, w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleListStats handles GET /engagement requests.
func (h *StatsHandler) HandleListStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, cursor := pageParams(r)
	page, err := h.deps.ListStats(ctx, limit, cursor)
	if err != nil {
		writeError(ctx, w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
