package loadgen

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/okian/tagtrail/internal/adapters/worker"
	"github.com/okian/tagtrail/pkg/logger"
)

// Run executes a complete load run against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config, log logger.Logger) (*Report, error) {
	start := time.Now()
	c := newClient(cfg.BaseURL, cfg.Timeout)
	pool := worker.NewPool(cfg.Workers, worker.WithName("loadgen"), worker.WithTaskTimeout(cfg.Timeout))

	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("tags", cfg.Tags),
		logger.Int("scansPerTag", cfg.ScansPerTag),
		logger.Int("users", cfg.Users),
		logger.Int("eventsPerUser", cfg.EventsPerUser),
		logger.Int("workers", cfg.Workers))

	// Step 1: Check service health
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, http.StatusOK); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	p := buildPlan(cfg, time.Now())
	rep := &Report{ScansSent: len(p.scans), BatchesSent: len(p.batches)}

	// Step 2: Submit scans and batches concurrently
	var inserted atomic.Int64
	tasks := make([]worker.Task, 0, len(p.scans)+len(p.batches))
	for _, s := range p.scans {
		tasks = append(tasks, func(ctx context.Context) error {
			return c.do(ctx, http.MethodPost, "/tags", s, nil, http.StatusCreated, http.StatusOK)
		})
	}
	for _, b := range p.batches {
		tasks = append(tasks, func(ctx context.Context) error {
			var res struct {
				InsertedCount int64 `json:"insertedCount"`
			}
			if err := c.do(ctx, http.MethodPost, "/events", b, &res, http.StatusOK); err != nil {
				return err
			}
			inserted.Add(res.InsertedCount)
			return nil
		})
	}
	for i, err := range pool.Settle(ctx, tasks) {
		if err == nil {
			continue
		}
		if i < len(p.scans) {
			rep.ScansFailed++
		} else {
			rep.BatchesFailed++
		}
		if cfg.Verbose {
			log.Warn(ctx, "request failed", logger.Error(err))
		}
	}
	rep.EventsInserted = int(inserted.Load())
	log.Info(ctx, "submission completed",
		logger.Int("scansFailed", rep.ScansFailed),
		logger.Int("batchesFailed", rep.BatchesFailed),
		logger.Int("eventsInserted", rep.EventsInserted))

	// Step 3: Verify counters
	rep.Mismatches = verify(ctx, c, cfg, p)
	rep.Duration = time.Since(start)
	for _, m := range rep.Mismatches {
		log.Warn(ctx, "verification mismatch", logger.String("detail", m))
	}
	log.Info(ctx, "load run finished",
		logger.Bool("ok", rep.OK()),
		logger.Duration("duration", rep.Duration))
	return rep, nil
}
