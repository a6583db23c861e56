// Package registry owns the create-or-update transaction of a tag.
package registry

import (
	"context"
	"strings"
	"time"

	"github.com/okian/tagtrail/internal/adapters/docstore"
	"github.com/okian/tagtrail/internal/domain/apperr"
	"github.com/okian/tagtrail/internal/domain/model"
	"github.com/okian/tagtrail/pkg/logger"
	"github.com/okian/tagtrail/pkg/metrics"
)

const opSave = "registry.save"

// Registry records tag scans.
type Registry struct {
	store       docstore.Store
	now         func() time.Time
	historyWarn int64
	logger      logger.Logger
}

// New creates a Registry over store.
func New(store docstore.Store, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		now:    time.Now,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Save records one scan. The first scan of a uid creates the tag with
// scanCount 1; later scans increment the counter, append to the history and
// overwrite the last-* fields, all in one transaction.
func (r *Registry) Save(ctx context.Context, scan model.Scan) (model.SaveResult, error) {
	if err := validate(scan); err != nil {
		return model.SaveResult{}, err
	}

	var res model.SaveResult
	err := r.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(ctx, model.CollectionTags, scan.UID)
		if err != nil {
			return err
		}
		now := model.Normalize(r.now())
		entry := map[string]any{
			"timestamp": now,
			"deviceId":  scan.DeviceID,
			"scanType":  scan.ScanType,
			"location":  optional(scan.Location),
		}

		if !snap.Exists {
			tx.Set(docstore.Write{Collection: model.CollectionTags, ID: scan.UID, Data: docstore.Document{
				"uid":          scan.UID,
				"accessedUrl":  scan.URL,
				"scanCount":    int64(1),
				"firstSeen":    now,
				"lastSeen":     now,
				"history":      []any{entry},
				"lastDevice":   scan.DeviceID,
				"lastScanType": scan.ScanType,
				"lastLocation": optional(scan.Location),
			}})
			res = model.SaveResult{UID: scan.UID, Created: true, ScanCount: 1}
			return nil
		}

		var current struct {
			ScanCount int64 `json:"scanCount"`
		}
		if err := snap.DataTo(&current); err != nil {
			return err
		}
		tx.Set(docstore.Write{Collection: model.CollectionTags, ID: scan.UID, Merge: true, Data: docstore.Document{
			"scanCount":    docstore.Increment(1),
			"history":      docstore.ArrayAppend(entry),
			"accessedUrl":  scan.URL,
			"lastSeen":     now,
			"lastDevice":   scan.DeviceID,
			"lastScanType": scan.ScanType,
			"lastLocation": optional(scan.Location),
		}})
		res = model.SaveResult{UID: scan.UID, ScanCount: current.ScanCount + 1}
		return nil
	})
	if err != nil {
		r.logger.Error(ctx, "save scan failed", logger.String("uid", scan.UID), logger.Error(err))
		return model.SaveResult{}, apperr.Wrap(opSave, err)
	}

	metrics.RecordScanSaved(res.Created)
	if r.historyWarn > 0 && res.ScanCount == r.historyWarn+1 {
		metrics.RecordHistoryOversize(model.CollectionTags)
		r.logger.Warn(ctx, "tag history exceeds warning threshold",
			logger.String("uid", scan.UID),
			logger.Int64("scanCount", res.ScanCount),
			logger.Int64("threshold", r.historyWarn),
		)
	}
	return res, nil
}

func validate(scan model.Scan) error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"uid", scan.UID},
		{"url", scan.URL},
		{"deviceId", scan.DeviceID},
		{"scanType", scan.ScanType},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return apperr.New(opSave, apperr.ErrValidation, "missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func optional(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
