// Package ingest writes event batches and folds them into per-subject
// engagement statistics.
package ingest

import (
	"context"

	"github.com/okian/tagtrail/internal/adapters/docstore"
	"github.com/okian/tagtrail/internal/adapters/worker"
	"github.com/okian/tagtrail/internal/domain/apperr"
	"github.com/okian/tagtrail/internal/domain/dedupe"
	"github.com/okian/tagtrail/internal/domain/model"
	"github.com/okian/tagtrail/pkg/logger"
	"github.com/okian/tagtrail/pkg/metrics"
)

// DefaultBatchLimit is the largest accepted batch.
const DefaultBatchLimit = 500

const (
	opBatch = "ingest.batch_insert"
	opStats = "ingest.apply_stats"
)

// Result is reported for an accepted batch.
type Result struct {
	InsertedCount int `json:"insertedCount"`
}

// Pipeline ingests event batches.
type Pipeline struct {
	store      docstore.Store
	pool       *worker.Pool
	seen       dedupe.Deduper
	batchLimit int
	logger     logger.Logger
}

// New creates a Pipeline. Stats deltas of a batch run on pool.
func New(store docstore.Store, pool *worker.Pool, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      store,
		pool:       pool,
		seen:       dedupe.Nop(),
		batchLimit: DefaultBatchLimit,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BatchInsert persists every event that carries an id in one batch write,
// then applies one stats delta per event that carries a uid. Stats failures
// are logged and counted but never fail the call: the result only reflects
// the durable write.
func (p *Pipeline) BatchInsert(ctx context.Context, events []model.Event) (Result, error) {
	switch {
	case len(events) == 0:
		return Result{}, apperr.New(opBatch, apperr.ErrValidation, "no events to process")
	case len(events) > p.batchLimit:
		return Result{}, apperr.New(opBatch, apperr.ErrValidation,
			"batch of %d events exceeds the limit of %d", len(events), p.batchLimit)
	}

	writes := make([]docstore.Write, 0, len(events))
	for i := range events {
		evt := &events[i]
		if evt.ID == "" {
			metrics.RecordEventSkipped()
			p.logger.Warn(ctx, "event without id skipped", logger.Int("index", i), logger.String("uid", evt.UID))
			continue
		}
		doc := docstore.Document(evt.Document())
		doc["receivedAt"] = docstore.ServerTimestamp()
		writes = append(writes, docstore.Write{Collection: model.CollectionEvents, ID: evt.ID, Data: doc, Merge: true})
	}
	if len(writes) > 0 {
		if err := p.store.Batch(ctx, writes); err != nil {
			p.logger.Error(ctx, "event batch write failed", logger.Int("events", len(writes)), logger.Error(err))
			return Result{}, apperr.Wrap(opBatch, err)
		}
	}
	metrics.RecordBatchSize(len(events))
	metrics.RecordEventsWritten(len(writes))

	p.applyStats(ctx, events)
	return Result{InsertedCount: len(writes)}, nil
}

// applyStats fans out the stats deltas and waits for all of them. The
// deltas outlive a cancelled request so an accepted batch is still counted.
func (p *Pipeline) applyStats(ctx context.Context, events []model.Event) {
	ctx = context.WithoutCancel(ctx)

	var (
		tasks []worker.Task
		uids  []string
	)
	for i := range events {
		evt := &events[i]
		if evt.UID == "" {
			continue
		}
		tasks = append(tasks, func(ctx context.Context) error { return p.applyOne(ctx, evt) })
		uids = append(uids, evt.UID)
	}
	if len(tasks) == 0 {
		return
	}

	failed := 0
	for i, err := range p.pool.Settle(ctx, tasks) {
		if err == nil {
			continue
		}
		failed++
		metrics.RecordStatsFailed()
		p.logger.Warn(ctx, "stats update failed", logger.String("uid", uids[i]), logger.Error(err))
	}
	if failed > 0 {
		p.logger.Info(ctx, "batch stats partially applied",
			logger.Int("updates", len(tasks)), logger.Int("failed", failed))
	}
}

func (p *Pipeline) applyOne(ctx context.Context, evt *model.Event) error {
	if evt.ID != "" && p.seen.SeenAndRecord(ctx, evt.ID) {
		metrics.RecordStatsDeduplicated()
		return nil
	}
	delta, err := statsDelta(evt)
	if err == nil {
		err = p.store.Set(ctx, docstore.Write{Collection: model.CollectionStats, ID: evt.UID, Data: delta, Merge: true})
	}
	if err != nil {
		if evt.ID != "" {
			p.seen.Unrecord(ctx, evt.ID)
		}
		return apperr.WrapKind(opStats, apperr.ErrAggregation, err)
	}
	metrics.RecordStatsApplied()
	return nil
}

// statsDelta is the merge write one event contributes to its subject.
func statsDelta(evt *model.Event) (docstore.Document, error) {
	ts, err := evt.Time()
	if err != nil {
		return nil, err
	}
	delta := docstore.Document{
		"uid":           evt.UID,
		"lastSeen":      ts,
		"lastPage":      optional(evt.LastPage()),
		"platform":      evt.Platform(),
		"source":        evt.SourceOrDefault(),
		"lastSessionId": optional(evt.LastSessionID()),
		"history":       docstore.ArrayAppend(ts),
	}
	switch evt.EventType {
	case model.EventPageView:
		delta["pageViews"] = docstore.Increment(1)
	case model.EventButtonClick:
		delta["totalClicks"] = docstore.Increment(1)
	}
	return delta, nil
}

func optional(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
