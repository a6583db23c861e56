package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/okian/tagtrail/internal/domain/apperr"
	"github.com/okian/tagtrail/internal/domain/model"
	"github.com/okian/tagtrail/internal/domain/pagination"
	"github.com/okian/tagtrail/pkg/logger"
)

// maxScanBody bounds the POST /tags body.
const maxScanBody = 64 << 10

var uidPattern = regexp.MustCompile(`^[0-9a-fA-F]{4,32}$`)

// TagsHandler handles tag scan requests.
type TagsHandler struct {
	deps      Dependencies
	scanTypes map[string]struct{}
	logger    logger.Logger
}

type scanRequest struct {
	UID      string  `json:"uid"`
	URL      string  `json:"url"`
	DeviceID string  `json:"deviceId"`
	ScanType string  `json:"scanType"`
	Location *string `json:"location,omitempty"`
}

func (r scanRequest) validate(scanTypes map[string]struct{}) error {
	const op = "api.validate_scan"
	if err := validateUID(r.UID); err != nil {
		return err
	}
	u, err := url.ParseRequestURI(r.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperr.New(op, apperr.ErrValidation, "url must be an absolute http(s) URL")
	}
	if strings.TrimSpace(r.DeviceID) == "" {
		return apperr.New(op, apperr.ErrValidation, "deviceId is required")
	}
	if _, ok := scanTypes[r.ScanType]; !ok {
		allowed := make([]string, 0, len(scanTypes))
		for t := range scanTypes {
			allowed = append(allowed, t)
		}
		sort.Strings(allowed)
		return apperr.New(op, apperr.ErrValidation, "scanType must be one of %s", strings.Join(allowed, ", "))
	}
	return nil
}

func validateUID(uid string) error {
	if !uidPattern.MatchString(uid) {
		return apperr.New("api.validate_uid", apperr.ErrValidation, "uid must be 4 to 32 hexadecimal characters")
	}
	return nil
}

// HandlePostTag handles POST /tags requests.
func (h *TagsHandler) HandlePostTag(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_tag"
	ctx := r.Context()
	var req scanRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxScanBody)).Decode(&req); err != nil {
		writeError(ctx, w, h.logger, apperr.WrapKind(op, apperr.ErrValidation, err))
		return
	}
	if err := req.validate(h.scanTypes); err != nil {
		writeError(ctx, w, h.logger, err)
		return
	}

	res, err := h.deps.SaveScan(ctx, model.Scan{
		UID:      req.UID,
		URL:      req.URL,
		DeviceID: req.DeviceID,
		ScanType: req.ScanType,
		Location: req.Location,
	})
	if err != nil {
		writeError(ctx, w, h.logger, err)
		return
	}
	if res.Duplicate {
		writeJSON(w, http.StatusOK, res)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// HandleGetTag handles GET /tags/{uid} requests.
func (h *TagsHandler) HandleGetTag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := r.PathValue("uid")
	if err := validateUID(uid); err != nil {
		writeError(ctx, w, h.logger, err)
		return
	}
	tag, err := h.deps.GetTag(ctx, uid)
	if err != nil {
		writeError(ctx, w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

// HandleListTags handles GET /tags?limit=&startAfter= requests.
func (h *TagsHandler) HandleListTags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, cursor := pageParams(r)
	page, err := h.deps.ListTags(ctx, limit, cursor)
	if err != nil {
		writeError(ctx, w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func pageParams(r *http.Request) (int, string) {
	q := r.URL.Query()
	return pagination.ParseLimit(q.Get("limit")), q.Get("startAfter")
}
