package bootstrap

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ryanyen2/Scholet/internal/application/explorer"
	"github.com/ryanyen2/Scholet/internal/config"
	"github.com/ryanyen2/Scholet/internal/domain/binning"
	"github.com/ryanyen2/Scholet/internal/infrastructure/database/redis"
	"github.com/ryanyen2/Scholet/internal/infrastructure/messaging/kafka"
	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
	"github.com/ryanyen2/Scholet/internal/infrastructure/storage/minio"
	httpapi "github.com/ryanyen2/Scholet/internal/interfaces/http"
	"github.com/ryanyen2/Scholet/internal/interfaces/http/handlers"
	"github.com/ryanyen2/Scholet/internal/interfaces/http/middleware"
)

// API is the assembled HTTP server with its optional Redis cache, Kafka
// consumer and producer, and object storage.
type API struct {
	Service explorer.Service
	Server  *httpapi.Server

	cfg      *config.Config
	logger   logging.Logger
	redis    *redis.Client
	minio    *minio.Client
	producer *kafka.Producer
	consumer *kafka.Consumer
	limiter  *middleware.TokenBucketLimiter
	loader   *DatasetLoader
}

// NewAPI builds every component cfg enables. The configured dataset is
// loaded before it returns; a load failure leaves the server running with
// an empty dataset so it can pick up a later dataset.updated event.
func NewAPI(ctx context.Context, cfg *config.Config, version string, log logging.Logger) (*API, error) {
	a := &API{cfg: cfg, logger: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

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

	var opts []explorer.Option
	var probes []handlers.Probe
	if metrics != nil {
		opts = append(opts, explorer.WithMetrics(metrics))
	}

	if a.redis, err = NewRedis(cfg.Redis, log); err != nil {
		return nil, err
	}
	if a.redis != nil {
		opts = append(opts, explorer.WithBinCache(NewBinCache(a.redis, *cfg, log)))
		probes = append(probes, RedisProbe(a.redis))
	}

	if a.minio, err = NewMinIO(cfg.MinIO, log); err != nil {
		return nil, err
	}
	var remote *minio.DatasetSource
	if a.minio != nil {
		remote = minio.NewDatasetSource(a.minio, LoadOptions(cfg.Dataset), log.Named("dataset"))
		probes = append(probes, MinIOProbe(a.minio))
	}
	a.loader = NewDatasetLoader(cfg.Dataset, remote, log.Named("dataset"))

	if cfg.Kafka.Enabled {
		if a.producer, err = NewProducer(cfg.Kafka, log); err != nil {
			return nil, err
		}
		opts = append(opts, explorer.WithPublisher(NewSelectionPublisher(a.producer, cfg.Kafka.EventTopic)))
		probes = append(probes, KafkaProbe(cfg.Kafka, log.Named("kafka")))
	}

	a.Service = explorer.NewService(engine, explorer.Config{
		MaxSessions:    cfg.Server.MaxSessions,
		SessionIdleTTL: cfg.Server.SessionIdleTTL,
		Concurrency:    cfg.Binning.Concurrency,
	}, log, opts...)
	probes = append(probes, DatasetProbe(a.Service))

	if cfg.Kafka.Enabled {
		a.consumer, err = NewConsumer(cfg.Kafka, cfg.Kafka.GroupID,
			[]string{cfg.Kafka.MessageTopic, cfg.Kafka.DatasetTopic}, log)
		if err != nil {
			return nil, err
		}
		a.consumer.Subscribe(cfg.Kafka.MessageTopic, ChatHandler(a.Service, log.Named("chat")))
		a.consumer.Subscribe(cfg.Kafka.DatasetTopic, DatasetReloader(a.Service, a.loader, log.Named("dataset")))
	}

	a.loadInitialDataset(ctx)

	routerCfg := httpapi.RouterConfig{
		Explorer: handlers.NewExplorerHandler(a.Service, log, cfg.Server.MaxBodyBytes),
		Health:   handlers.NewHealthHandler(version, probes...),
		Logging:  middleware.DefaultLoggingConfig(),
		Logger:   log,
		Metrics:  metrics,
	}
	if collector != nil {
		routerCfg.MetricsHandler = collector.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowedOrigins = cfg.Server.CORSOrigins
		cors.AllowWildcard = true
		routerCfg.CORS = &cors
	}
	if cfg.Server.RateLimitRPS > 0 {
		a.limiter = middleware.NewTokenBucketLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, 5*time.Minute)
		routerCfg.RateLimiter = a.limiter
	}

	a.Server = httpapi.NewServer(httpapi.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, httpapi.NewRouter(routerCfg), log.Named("server"))

	ok = true
	return a, nil
}

func (a *API) loadInitialDataset(ctx context.Context) {
	ref := RefFromConfig(a.cfg.Dataset)
	if ref.Path == "" && ref.Object == "" {
		a.logger.Warn("no dataset configured, serving an empty dataset")
		return
	}
	set, stats, err := a.loader.Load(ctx, ref)
	if err != nil {
		a.logger.Error("initial dataset load failed", logging.Err(err))
		return
	}
	if _, err := a.Service.LoadDataset(ctx, set, stats); err != nil {
		a.logger.Error("initial dataset rejected", logging.Err(err))
		return
	}
	if a.cfg.Binning.Precompute {
		if err := a.Service.Warm(ctx, a.cfg.Dataset.SummaryColumn); err != nil {
			a.logger.Warn("ladder warm-up failed", logging.Err(err))
		}
	}
}

// Run serves until ctx is cancelled, then shuts everything down.
func (a *API) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(a.Server.Start)
	g.Go(func() error {
		<-ctx.Done()
		return a.Server.Stop(context.Background())
	})
	if a.consumer != nil {
		g.Go(func() error { return a.consumer.Start(ctx) })
	}
	if ttl := a.cfg.Server.SessionIdleTTL; ttl > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(sweepInterval(ttl))
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					a.Service.Sweep(ctx)
				}
			}
		})
	}

	err := g.Wait()
	a.Close()
	return err
}

// Close releases every connection. It is safe to call more than once.
func (a *API) Close() {
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Warn("kafka consumer close failed", logging.Err(err))
		}
		a.consumer = nil
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("kafka producer close failed", logging.Err(err))
		}
		a.producer = nil
	}
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.minio != nil {
		_ = a.minio.Close()
	}
}
