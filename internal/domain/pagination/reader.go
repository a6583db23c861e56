// Package pagination serves single-item and paginated reads of tags, tag
// summaries and engagement stats, consulting a TTL cache first.
package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/tagtrail/internal/adapters/cache"
	"github.com/okian/tagtrail/internal/adapters/docstore"
	"github.com/okian/tagtrail/internal/domain/apperr"
	"github.com/okian/tagtrail/internal/domain/model"
	"github.com/okian/tagtrail/pkg/logger"
	"github.com/okian/tagtrail/pkg/metrics"
)

const (
	orderField = "lastSeen"

	kindTags    = "tags"
	kindStats   = "stats"
	kindSummary = "summary"
)

// Page is one slice of an ordered listing. NextCursor is nil on the last page.
type Page[T any] struct {
	Data       []T     `json:"data"`
	NextCursor *string `json:"nextCursor"`
}

// Reader answers read requests.
type Reader struct {
	store       docstore.Store
	cache       cache.Cache
	tagTTL      time.Duration
	statsTTL    time.Duration
	listTTL     time.Duration
	defLimit    int
	maxLimit    int
	historyWarn int
	logger      logger.Logger
}

// New creates a Reader. A nil cache disables caching.
func New(store docstore.Store, c cache.Cache, opts ...Option) *Reader {
	r := &Reader{
		store:    store,
		cache:    c,
		tagTTL:   defaultTagTTL,
		statsTTL: defaultStatsTTL,
		listTTL:  defaultListTTL,
		defLimit: DefaultLimit,
		maxLimit: MaxLimit,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Limit clamps n to the configured page bounds.
func (r *Reader) Limit(n int) int {
	return Clamp(n, r.defLimit, r.maxLimit)
}

// GetTag returns the full record of a tag.
func (r *Reader) GetTag(ctx context.Context, uid string) (model.TagRecord, error) {
	return get(ctx, r, "pagination.get_tag", "tag:"+uid, r.tagTTL, model.CollectionTags, uid,
		decodeTag)
}

// TagSummary returns the counter view of a tag.
func (r *Reader) TagSummary(ctx context.Context, uid string) (model.TagSummary, error) {
	return get(ctx, r, "pagination.tag_summary", "summary:uid:"+uid, r.statsTTL, model.CollectionTags, uid,
		func(s *docstore.Snapshot) (model.TagSummary, error) {
			t, err := decodeTag(s)
			return t.Summary(), err
		})
}

// GetStats returns the engagement stats of a subject.
func (r *Reader) GetStats(ctx context.Context, uid string) (model.StatsRecord, error) {
	return get(ctx, r, "pagination.get_stats", "stats:uid:"+uid, r.statsTTL, model.CollectionStats, uid,
		func(s *docstore.Snapshot) (model.StatsRecord, error) { return decodeStats(ctx, r, s) })
}

// ListTags pages through tags, most recently seen first.
func (r *Reader) ListTags(ctx context.Context, limit int, cursor string) (Page[model.TagRecord], error) {
	return list(ctx, r, kindTags, model.CollectionTags, limit, cursor,
		func(s *docstore.Snapshot) (model.TagRecord, time.Time, error) {
			t, err := decodeTag(s)
			return t, t.LastSeen, err
		})
}

// ListSummaries pages through tag summaries, most recently seen first.
func (r *Reader) ListSummaries(ctx context.Context, limit int, cursor string) (Page[model.TagSummary], error) {
	return list(ctx, r, kindSummary, model.CollectionTags, limit, cursor,
		func(s *docstore.Snapshot) (model.TagSummary, time.Time, error) {
			t, err := decodeTag(s)
			return t.Summary(), t.LastSeen, err
		})
}

// ListStats pages through engagement stats, most recently seen first.
func (r *Reader) ListStats(ctx context.Context, limit int, cursor string) (Page[model.StatsRecord], error) {
	return list(ctx, r, kindStats, model.CollectionStats, limit, cursor,
		func(s *docstore.Snapshot) (model.StatsRecord, time.Time, error) {
			st, err := decodeStats(ctx, r, s)
			return st, st.LastSeen, err
		})
}

func get[T any](ctx context.Context, r *Reader, op, key string, ttl time.Duration,
	collection, id string, decode func(*docstore.Snapshot) (T, error),
) (T, error) {
	var zero T
	if id == "" {
		return zero, apperr.New(op, apperr.ErrValidation, "id is required")
	}

	var cached T
	if r.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	snap, err := r.store.Get(ctx, collection, id)
	if err != nil {
		return zero, apperr.Wrap(op, err)
	}
	if !snap.Exists {
		return zero, apperr.New(op, apperr.ErrNotFound, "%s %q not found", collection, id)
	}
	v, err := decode(snap)
	if err != nil {
		return zero, apperr.Wrap(op, err)
	}
	r.cacheSet(ctx, key, v, ttl)
	return v, nil
}

func list[T any](ctx context.Context, r *Reader, kind, collection string, limit int, raw string,
	decode func(*docstore.Snapshot) (T, time.Time, error),
) (Page[T], error) {
	op := "pagination.list_" + kind
	limit = r.Limit(limit)
	after, err := ParseCursor(raw)
	if err != nil {
		return Page[T]{}, err
	}

	key := listKey(kind, limit, raw)
	var cached Page[T]
	if r.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	snaps, err := r.store.Query(ctx, docstore.Query{
		Collection: collection,
		OrderBy:    orderField,
		Limit:      limit,
		After:      after,
	})
	if err != nil {
		return Page[T]{}, apperr.Wrap(op, err)
	}

	page := Page[T]{Data: make([]T, 0, len(snaps))}
	var lastSeen time.Time
	for _, s := range snaps {
		v, ts, err := decode(s)
		if err != nil {
			return Page[T]{}, apperr.Wrap(op, fmt.Errorf("decode %s/%s: %w", collection, s.ID, err))
		}
		page.Data = append(page.Data, v)
		lastSeen = ts
	}
	if len(snaps) == limit {
		next := EncodeCursor(lastSeen, snaps[len(snaps)-1].ID)
		page.NextCursor = &next
	}
	r.cacheSet(ctx, key, page, r.listTTL)
	return page, nil
}

func listKey(kind string, limit int, cursor string) string {
	if cursor == "" {
		cursor = "init"
	}
	return fmt.Sprintf("%s:list:%d:%s", kind, limit, cursor)
}

// cacheGet treats cache failures as misses.
func (r *Reader) cacheGet(ctx context.Context, key string, dst any) bool {
	if r.cache == nil {
		return false
	}
	ok, err := r.cache.Get(ctx, key, dst)
	if err != nil {
		r.logger.Warn(ctx, "cache read failed", logger.String("key", key), logger.Error(err))
		return false
	}
	return ok
}

func (r *Reader) cacheSet(ctx context.Context, key string, v any, ttl time.Duration) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, key, v, ttl); err != nil {
		r.logger.Warn(ctx, "cache write failed", logger.String("key", key), logger.Error(err))
	}
}

func decodeTag(s *docstore.Snapshot) (model.TagRecord, error) {
	var t model.TagRecord
	if err := s.DataTo(&t); err != nil {
		return model.TagRecord{}, err
	}
	if t.UID == "" {
		t.UID = s.ID
	}
	return t, nil
}

func decodeStats(ctx context.Context, r *Reader, s *docstore.Snapshot) (model.StatsRecord, error) {
	var st model.StatsRecord
	if err := s.DataTo(&st); err != nil {
		return model.StatsRecord{}, err
	}
	if st.UID == "" {
		st.UID = s.ID
	}
	if r.historyWarn > 0 && len(st.History) > r.historyWarn {
		metrics.RecordHistoryOversize(model.CollectionStats)
		r.logger.Warn(ctx, "stats history exceeds warning length",
			logger.String("uid", st.UID), logger.Int("length", len(st.History)))
	}
	return st, nil
}
