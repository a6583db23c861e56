// Package service composes the tag registry, the event pipeline and the
// paginated reader over the configured store and cache backends, and
// implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/tagtrail/internal/adapters/cache"
	"github.com/okian/tagtrail/internal/adapters/docstore"
	"github.com/okian/tagtrail/internal/adapters/worker"
	"github.com/okian/tagtrail/internal/config"
	"github.com/okian/tagtrail/internal/domain/dedupe"
	"github.com/okian/tagtrail/internal/domain/ingest"
	"github.com/okian/tagtrail/internal/domain/model"
	"github.com/okian/tagtrail/internal/domain/pagination"
	"github.com/okian/tagtrail/internal/domain/registry"
	"github.com/okian/tagtrail/pkg/logger"
	"github.com/okian/tagtrail/pkg/metrics"
)

const redisKeyPrefix = "tagtrail:"

// ErrNotStarted is returned by operations called before Start.
var ErrNotStarted = errors.New("service not started")

// Service implements the API dependencies for the tag tracking system.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	// Backends. Injected ones are used as is and still closed by Stop.
	store docstore.Store
	cache cache.Cache

	// Core components
	registry *registry.Registry
	pipeline *ingest.Pipeline
	reader   *pagination.Reader

	now     func() time.Time
	started bool
	logger  logger.Logger
}

// New constructs a Service from cfg. Nothing is opened until Start.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the configured backends and builds the components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting tag service...")

	if s.store == nil {
		store, err := s.openStore(ctx)
		if err != nil {
			return err
		}
		s.store = store
	}
	if s.cache == nil {
		c, err := s.openCache(ctx)
		if err != nil {
			_ = s.store.Close()
			return err
		}
		s.cache = c
	}

	s.registry = registry.New(s.store,
		registry.WithClock(s.now),
		registry.WithHistoryWarn(s.cfg.HistoryWarnLength),
		registry.WithLogger(s.logger.Named("registry")),
	)

	seen := dedupe.Nop()
	if s.cfg.EventDedupeSize > 0 {
		seen = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.EventDedupeSize))
	}
	pool := worker.NewPool(s.cfg.StatsConcurrency,
		worker.WithName("stats"),
		worker.WithLogger(s.logger.Named("worker")),
	)
	s.pipeline = ingest.New(s.store, pool,
		ingest.WithBatchLimit(s.cfg.BatchLimit),
		ingest.WithDeduper(seen),
		ingest.WithLogger(s.logger.Named("ingest")),
	)

	s.reader = pagination.New(s.store, s.cache,
		pagination.WithTagTTL(s.cfg.TagCacheTTL()),
		pagination.WithStatsTTL(s.cfg.StatsCacheTTL()),
		pagination.WithListTTL(s.cfg.ListCacheTTL()),
		pagination.WithLimits(s.cfg.DefaultPageLimit, s.cfg.MaxPageLimit),
		pagination.WithHistoryWarn(s.cfg.HistoryWarnLength),
		pagination.WithLogger(s.logger.Named("reader")),
	)

	s.started = true
	s.logger.Info(ctx, "tag service started",
		logger.String("store", s.cfg.StoreBackend),
		logger.String("cache", s.cfg.CacheBackend),
		logger.Int("batchLimit", s.cfg.BatchLimit),
		logger.Int("statsConcurrency", s.cfg.StatsConcurrency),
		logger.Duration("scanDedupeWindow", s.cfg.ScanDedupeWindow()),
	)
	return nil
}

func (s *Service) storeOptions() []docstore.Option {
	return []docstore.Option{
		docstore.WithMaxAttempts(s.cfg.TxMaxAttempts),
		docstore.WithBaseBackoff(s.cfg.TxBaseBackoff()),
		docstore.WithMaxConns(s.cfg.PostgresMaxConns),
	}
}

func (s *Service) openStore(ctx context.Context) (docstore.Store, error) {
	switch s.cfg.StoreBackend {
	case config.BackendPostgres:
		if err := docstore.Migrate(s.cfg.PostgresDSN); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		store, err := docstore.NewPostgresStore(ctx, s.cfg.PostgresDSN, s.storeOptions()...)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		s.logger.Info(ctx, "using postgres store")
		return store, nil
	default:
		s.logger.Info(ctx, "using memory store")
		return docstore.NewMemoryStore(s.storeOptions()...), nil
	}
}

func (s *Service) openCache(ctx context.Context) (cache.Cache, error) {
	switch s.cfg.CacheBackend {
	case config.BackendRedis:
		client, err := cache.DialRedis(ctx, s.cfg.RedisAddr, s.cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		s.logger.Info(ctx, "using redis cache", logger.String("addr", s.cfg.RedisAddr))
		return cache.NewRedisCache(client, redisKeyPrefix), nil
	default:
		s.logger.Info(ctx, "using memory cache")
		return cache.NewMemoryCache(cache.WithSweepInterval(time.Minute)), nil
	}
}

// Stop closes the backends.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping tag service...")
	if err := s.cache.Close(); err != nil {
		s.logger.Warn(ctx, "cache close failed", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "store close failed", logger.Error(err))
	}
	s.started = false
	s.logger.Info(ctx, "tag service stopped")
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// SaveScan records a scan. Inside the recent-scan window a repeated uid is
// acknowledged as a duplicate without touching the store.
func (s *Service) SaveScan(ctx context.Context, scan model.Scan) (model.SaveResult, error) {
	if err := s.ready(); err != nil {
		return model.SaveResult{}, err
	}
	window := s.cfg.ScanDedupeWindow()
	key := "scan:" + scan.UID
	if window > 0 && scan.UID != "" {
		recent, err := s.cache.Has(ctx, key)
		if err != nil {
			s.logger.Warn(ctx, "recent scan lookup failed", logger.String("uid", scan.UID), logger.Error(err))
		}
		if recent {
			metrics.RecordScanDuplicate()
			return model.SaveResult{UID: scan.UID, Duplicate: true}, nil
		}
	}

	res, err := s.registry.Save(ctx, scan)
	if err != nil {
		return model.SaveResult{}, err
	}
	if window > 0 {
		if err := s.cache.Set(ctx, key, true, window); err != nil {
			s.logger.Warn(ctx, "recent scan mark failed", logger.String("uid", scan.UID), logger.Error(err))
		}
	}
	return res, nil
}

// BatchInsert ingests a batch of events.
func (s *Service) BatchInsert(ctx context.Context, events []model.Event) (ingest.Result, error) {
	if err := s.ready(); err != nil {
		return ingest.Result{}, err
	}
	return s.pipeline.BatchInsert(ctx, events)
}

// GetTag returns a tag record.
func (s *Service) GetTag(ctx context.Context, uid string) (model.TagRecord, error) {
	if err := s.ready(); err != nil {
		return model.TagRecord{}, err
	}
	return s.reader.GetTag(ctx, uid)
}

// ListTags returns a page of tag records.
func (s *Service) ListTags(ctx context.Context, limit int, cursor string) (pagination.Page[model.TagRecord], error) {
	if err := s.ready(); err != nil {
		return pagination.Page[model.TagRecord]{}, err
	}
	return s.reader.ListTags(ctx, limit, cursor)
}

// TagSummary returns the counter view of a tag.
func (s *Service) TagSummary(ctx context.Context, uid string) (model.TagSummary, error) {
	if err := s.ready(); err != nil {
		return model.TagSummary{}, err
	}
	return s.reader.TagSummary(ctx, uid)
}

// ListSummaries returns a page of tag summaries.
func (s *Service) ListSummaries(ctx context.Context, limit int, cursor string) (pagination.Page[model.TagSummary], error) {
	if err := s.ready(); err != nil {
		return pagination.Page[model.TagSummary]{}, err
	}
	return s.reader.ListSummaries(ctx, limit, cursor)
}

// GetStats returns the engagement stats of a subject.
func (s *Service) GetStats(ctx context.Context, uid string) (model.StatsRecord, error) {
	if err := s.ready(); err != nil {
		return model.StatsRecord{}, err
	}
	return s.reader.GetStats(ctx, uid)
}

// ListStats returns a page of engagement stats.
func (s *Service) ListStats(ctx context.Context, limit int, cursor string) (pagination.Page[model.StatsRecord], error) {
	if err := s.ready(); err != nil {
		return pagination.Page[model.StatsRecord]{}, err
	}
	return s.reader.ListStats(ctx, limit, cursor)
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.store.Ping(ctx)
}
