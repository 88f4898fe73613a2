// Package precompute fills the shared bin cache with every ladder level of
// a dataset so API servers never compute a layer on the request path.
package precompute

import (
	"context"
	"time"

	"github.com/ryanyen2/Scholet/internal/domain/binning"
	"github.com/ryanyen2/Scholet/internal/domain/entity"
	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
	"github.com/ryanyen2/Scholet/pkg/errors"
)

// Request names the dataset to precompute and, optionally, the version
// whose layers it supersedes.
type Request struct {
	Source   string
	Path     string
	Object   string
	Format   string
	Previous string
}

type Loader interface {
	Load(ctx context.Context, req Request) (*entity.Set, entity.Stats, error)
}

// LadderStore is the write side of the shared bin cache.
type LadderStore interface {
	PutLadder(ctx context.Context, version, column string, layers map[int][]binning.Group) error
	Invalidate(ctx context.Context, version string) (int64, error)
}

// Locker serializes precomputation of one dataset version across workers.
type Locker interface {
	TryLock(ctx context.Context, name string) (unlock func(), ok bool, err error)
}

type Metrics interface {
	ObserveLadder(d time.Duration)
	SetDatasetRecords(kind string, n int)
}

type Config struct {
	// Columns lists the summary columns to precompute; "" is the plain
	// layer and is always included.
	Columns     []string
	Concurrency int
}

type Result struct {
	Version string
	Records int
	Columns []string
	Levels  int
	Skipped bool
	Elapsed time.Duration
}

type Service struct {
	engine  *binning.Engine
	loader  Loader
	store   LadderStore
	locker  Locker
	metrics Metrics
	cfg     Config
	logger  logging.Logger
}

// NewService returns a Service. locker and metrics may be nil.
func NewService(engine *binning.Engine, loader Loader, store LadderStore, locker Locker, metrics Metrics, cfg Config, log logging.Logger) *Service {
	if log == nil {
		log = logging.NewNopLogger()
	}
	cols := []string{""}
	for _, c := range cfg.Columns {
		if c != "" {
			cols = append(cols, c)
		}
	}
	cfg.Columns = cols
	return &Service{
		engine:  engine,
		loader:  loader,
		store:   store,
		locker:  locker,
		metrics: metrics,
		cfg:     cfg,
		logger:  log.Named("precompute"),
	}
}

// Run loads the dataset and caches its full ladder for every configured
// column. When another worker already holds the lock for this version the
// run is skipped.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	for _, c := range s.cfg.Columns {
		if c != "" && !entity.IsSelectableColumn(c) {
			return nil, errors.New(errors.ErrCodeValidation, "column cannot be summarized").WithDetail(c)
		}
	}

	set, stats, err := s.loader.Load(ctx, req)
	if err != nil {
		return nil, err
	}
	version := set.Version()
	res := &Result{Version: version, Records: set.Len(), Columns: s.cfg.Columns}
	log := s.logger.With(logging.String("version", version))

	if s.locker != nil {
		unlock, ok, err := s.locker.TryLock(ctx, "ladder:"+version)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Info("ladder precompute already in progress, skipping")
			res.Skipped = true
			return res, nil
		}
		defer unlock()
	}

	start := time.Now()
	bounds, bounded := binning.BoundsOf(set.Records())
	for _, column := range s.cfg.Columns {
		opts := []binning.BinOption{binning.WithConcurrency(s.cfg.Concurrency)}
		if bounded {
			opts = append(opts, binning.WithBounds(bounds))
		}
		if column != "" {
			opts = append(opts, binning.WithSummary(column))
		}
		layers, err := s.engine.ComputeLadder(ctx, set.Records(), opts...)
		if err != nil {
			return nil, err
		}
		if err := s.store.PutLadder(ctx, version, column, layers); err != nil {
			return nil, err
		}
		res.Levels = len(layers)
	}
	res.Elapsed = time.Since(start)

	if req.Previous != "" && req.Previous != version {
		n, err := s.store.Invalidate(ctx, req.Previous)
		if err != nil {
			log.Warn("previous layers not invalidated", logging.String("previous", req.Previous), logging.Err(err))
		} else {
			log.Info("previous layers invalidated", logging.String("previous", req.Previous), logging.Int64("keys", n))
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveLadder(res.Elapsed)
		s.metrics.SetDatasetRecords(string(entity.KindPaper), set.Filter(entity.KindPaper).Len())
		s.metrics.SetDatasetRecords(string(entity.KindAuthor), set.Filter(entity.KindAuthor).Len())
	}
	log.Info("ladder precomputed",
		logging.Int("records", res.Records),
		logging.Int("levels", res.Levels),
		logging.Strings("columns", res.Columns),
		logging.Int("dropped", stats.NonFinite+stats.Duplicates+stats.Malformed),
		logging.Duration("elapsed", res.Elapsed))
	return res, nil
}
