package bootstrap

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ryanyen2/Scholet/internal/application/precompute"
	"github.com/ryanyen2/Scholet/internal/config"
	"github.com/ryanyen2/Scholet/internal/domain/binning"
	"github.com/ryanyen2/Scholet/internal/domain/entity"
	"github.com/ryanyen2/Scholet/internal/infrastructure/database/redis"
	"github.com/ryanyen2/Scholet/internal/infrastructure/messaging/kafka"
	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
	"github.com/ryanyen2/Scholet/internal/infrastructure/storage/minio"
	httpapi "github.com/ryanyen2/Scholet/internal/interfaces/http"
	"github.com/ryanyen2/Scholet/internal/interfaces/http/handlers"
	"github.com/ryanyen2/Scholet/internal/interfaces/http/middleware"
	"github.com/ryanyen2/Scholet/pkg/errors"
)

// RedisLocker takes one redis mutex per precompute run.
type RedisLocker struct {
	factory *redis.LockFactory
	ttl     time.Duration
	logger  logging.Logger
}

func NewRedisLocker(factory *redis.LockFactory, ttl time.Duration, log logging.Logger) *RedisLocker {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &RedisLocker{factory: factory, ttl: ttl, logger: log}
}

func (l *RedisLocker) TryLock(ctx context.Context, name string) (func(), bool, error) {
	var opts []redis.LockOption
	if l.ttl > 0 {
		opts = append(opts, redis.WithLockTTL(l.ttl))
	}
	m := l.factory.NewMutex(name, opts...)
	ok, err := m.TryLock(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	unlock := func() {
		// the caller's ctx may already be cancelled on shutdown
		if err := m.Unlock(context.Background()); err != nil {
			l.logger.Warn("lock release failed", logging.String("lock", name), logging.Err(err))
		}
	}
	return unlock, true, nil
}

// PrecomputeLoader adapts DatasetLoader to precompute.Loader.
type PrecomputeLoader struct {
	*DatasetLoader
}

func (l PrecomputeLoader) Load(ctx context.Context, req precompute.Request) (*entity.Set, entity.Stats, error) {
	return l.DatasetLoader.Load(ctx, DatasetRef{Source: req.Source, Path: req.Path, Object: req.Object, Format: req.Format})
}

// Worker consumes dataset.updated events and precomputes every ladder
// level into redis. It serves health probes and metrics on its own port.
type Worker struct {
	Precompute *precompute.Service
	Server     *httpapi.Server

	cfg      *config.Config
	logger   logging.Logger
	redis    *redis.Client
	minio    *minio.Client
	consumer *kafka.Consumer

	mu   sync.Mutex
	last string
}

// NewWorker builds the worker. Redis is required because the worker has
// nowhere else to put its layers.
func NewWorker(cfg *config.Config, version string, log logging.Logger) (*Worker, error) {
	w := &Worker{cfg: cfg, logger: log}
	ok := false
	defer func() {
		if !ok {
			w.Close()
		}
	}()

	if !cfg.Redis.Enabled {
		return nil, errors.New(errors.ErrCodeValidation, "worker requires redis.enabled")
	}

	ladder, err := NewLadder(cfg.Binning)
	if err != nil {
		return nil, err
	}
	engine, err := binning.NewEngine(ladder, log.Named("binning"))
	if err != nil {
		return nil, err
	}

	metrics, collector, err := NewMetrics(cfg.Metrics, log)
	if err != nil {
		return nil, err
	}

	if w.redis, err = NewRedis(cfg.Redis, log); err != nil {
		return nil, err
	}
	probes := []handlers.Probe{{Name: "redis", Required: true, Check: w.redis.Ping}}

	if w.minio, err = NewMinIO(cfg.MinIO, log); err != nil {
		return nil, err
	}
	var remote *minio.DatasetSource
	if w.minio != nil {
		remote = minio.NewDatasetSource(w.minio, LoadOptions(cfg.Dataset), log.Named("dataset"))
		probes = append(probes, MinIOProbe(w.minio))
	}
	loader := PrecomputeLoader{NewDatasetLoader(cfg.Dataset, remote, log.Named("dataset"))}

	locker := NewRedisLocker(redis.NewLockFactory(w.redis, cfg.Redis.KeyPrefix, log.Named("lock")), cfg.Worker.LockTTL, log)
	var pm precompute.Metrics
	if metrics != nil {
		pm = metrics
	}
	w.Precompute = precompute.NewService(engine, loader, NewBinCache(w.redis, *cfg, log), locker, pm, precompute.Config{
		Columns:     cfg.Worker.Columns,
		Concurrency: cfg.Binning.Concurrency,
	}, log)

	if cfg.Kafka.Enabled {
		w.consumer, err = NewConsumer(cfg.Kafka, cfg.Kafka.GroupID+"-worker", []string{cfg.Kafka.DatasetTopic}, log)
		if err != nil {
			return nil, err
		}
		w.consumer.Subscribe(cfg.Kafka.DatasetTopic, w.HandleDatasetUpdated)
		probes = append(probes, KafkaProbe(cfg.Kafka, log.Named("kafka")))
	}

	routerCfg := httpapi.RouterConfig{
		Health:  handlers.NewHealthHandler(version, probes...),
		Logging: middleware.DefaultLoggingConfig(),
		Logger:  log,
		Metrics: metrics,
	}
	if collector != nil {
		routerCfg.MetricsHandler = collector.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}
	w.Server = httpapi.NewServer(httpapi.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Worker.HealthPort,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, httpapi.NewRouter(routerCfg), log.Named("server"))

	ok = true
	return w, nil
}

// HandleDatasetUpdated precomputes the dataset named by a dataset.updated
// event and drops the layers of the version it replaces.
func (w *Worker) HandleDatasetUpdated(ctx context.Context, msg *kafka.Message) error {
	p, err := kafka.DecodeDatasetUpdated(msg)
	if err != nil {
		return err
	}
	res, err := w.run(ctx, precompute.Request{Source: p.Source, Path: p.Path, Object: p.Object, Format: p.Format})
	if err != nil {
		return err
	}
	if p.Version != "" && p.Version != res.Version {
		w.logger.Warn("precomputed version differs from event",
			logging.String("event_version", p.Version),
			logging.String("version", res.Version))
	}
	return nil
}

// RunConfigured precomputes the dataset named in the configuration.
func (w *Worker) RunConfigured(ctx context.Context) (*precompute.Result, error) {
	ref := RefFromConfig(w.cfg.Dataset)
	if ref.Path == "" && ref.Object == "" {
		return nil, errors.New(errors.ErrCodeBadRequest, "no dataset configured")
	}
	return w.run(ctx, precompute.Request{Source: ref.Source, Path: ref.Path, Object: ref.Object, Format: ref.Format})
}

func (w *Worker) run(ctx context.Context, req precompute.Request) (*precompute.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	req.Previous = w.last
	res, err := w.Precompute.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	if !res.Skipped {
		w.last = res.Version
	}
	return res, nil
}

// Run serves probes and consumes events until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(w.Server.Start)
	g.Go(func() error {
		<-ctx.Done()
		return w.Server.Stop(context.Background())
	})

	if w.cfg.Worker.RunOnStart {
		if _, err := w.RunConfigured(ctx); err != nil {
			w.logger.Error("startup precompute failed", logging.Err(err))
		}
	}
	if w.consumer != nil {
		g.Go(func() error { return w.consumer.Start(ctx) })
	} else {
		w.logger.Warn("kafka disabled, worker only serves probes")
	}

	err := g.Wait()
	w.Close()
	return err
}

// Close releases every connection. It is safe to call more than once.
func (w *Worker) Close() {
	if w.consumer != nil {
		if err := w.consumer.Close(); err != nil {
			w.logger.Warn("kafka consumer close failed", logging.Err(err))
		}
		w.consumer = nil
	}
	if w.redis != nil {
		_ = w.redis.Close()
		w.redis = nil
	}
	if w.minio != nil {
		_ = w.minio.Close()
		w.minio = nil
	}
}
