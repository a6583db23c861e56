package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/okian/tagtrail/internal/domain/apperr"
	"github.com/okian/tagtrail/internal/domain/model"
	"github.com/okian/tagtrail/pkg/logger"
)

// maxEventsBody bounds the POST /events body.
const maxEventsBody = 8 << 20

// EventsHandler handles event batch requests.
type EventsHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// HandlePostEvents handles POST /events requests. The body is a JSON array
// of events.
func (h *EventsHandler) HandlePostEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_events"
	ctx := r.Context()

	var raw json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventsBody)).Decode(&raw); err != nil {
		writeError(ctx, w, h.logger, apperr.WrapKind(op, apperr.ErrValidation, err))
		return
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		writeError(ctx, w, h.logger, apperr.New(op, apperr.ErrValidation, "body must be an array of events"))
		return
	}
	var events []model.Event
	if err := json.Unmarshal(raw, &events); err != nil {
		writeError(ctx, w, h.logger, apperr.WrapKind(op, apperr.ErrValidation, err))
		return
	}

	res, err := h.deps.BatchInsert(ctx, events)
	if err != nil {
		writeError(ctx, w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
