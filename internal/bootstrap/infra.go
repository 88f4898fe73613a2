package bootstrap

import (
	"time"

	"github.com/ryanyen2/Scholet/internal/config"
	"github.com/ryanyen2/Scholet/internal/infrastructure/database/redis"
	"github.com/ryanyen2/Scholet/internal/infrastructure/messaging/kafka"
	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/prometheus"
	"github.com/ryanyen2/Scholet/internal/infrastructure/storage/minio"
)

// NewRedis connects when redis is enabled and returns nil otherwise.
func NewRedis(cfg config.RedisConfig, log logging.Logger) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return redis.NewClient(&redis.Config{
		Mode:         cfg.Mode,
		Addr:         cfg.Addr,
		Addrs:        cfg.Addrs,
		MasterName:   cfg.MasterName,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}, log.Named("redis"))
}

func NewBinCache(client *redis.Client, cfg config.Config, log logging.Logger) *redis.BinCache {
	cache := redis.NewRedisCache(client, log.Named("cache"),
		redis.WithPrefix(cfg.Redis.KeyPrefix),
		redis.WithDefaultTTL(cfg.Binning.CacheTTL))
	return redis.NewBinCache(cache, cfg.Binning.CacheTTL, log.Named("bincache"))
}

// NewMinIO connects when an endpoint is configured and returns nil otherwise.
func NewMinIO(cfg config.MinIOConfig, log logging.Logger) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}
	return minio.NewClient(&minio.Config{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		UseSSL:    cfg.UseSSL,
	}, log.Named("minio"))
}

func NewProducer(cfg config.KafkaConfig, log logging.Logger) (*kafka.Producer, error) {
	return kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.Brokers,
		RequiredAcks: cfg.RequiredAcks,
		MaxRetries:   cfg.MaxRetries,
		BatchTimeout: cfg.BatchTimeout,
	}, log.Named("producer"))
}

// NewConsumer subscribes groupID to topics. Failed records go to the dead
// letter topic after the configured retries.
func NewConsumer(cfg config.KafkaConfig, groupID string, topics []string, log logging.Logger) (*kafka.Consumer, error) {
	offset := "earliest"
	if cfg.StartFromLast {
		offset = "latest"
	}
	return kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:         cfg.Brokers,
		GroupID:         groupID,
		Topics:          topics,
		AutoOffsetReset: offset,
		MaxWait:         cfg.MaxWait,
		MinBytes:        cfg.MinBytes,
		MaxBytes:        cfg.MaxBytes,
		RetryConfig: kafka.RetryConfig{
			MaxRetries:      cfg.MaxRetries,
			RetryBackoff:    cfg.RetryBackoff,
			MaxRetryBackoff: 10 * cfg.RetryBackoff,
			DeadLetterTopic: kafka.TopicDeadLetter,
		},
	}, log.Named("consumer"))
}

// NewMetrics returns nil metrics and handler when metrics are disabled.
func NewMetrics(cfg config.MetricsConfig, log logging.Logger) (*prometheus.AppMetrics, prometheus.MetricsCollector, error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Namespace,
		Subsystem:            cfg.Subsystem,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, log.Named("metrics"))
	if err != nil {
		return nil, nil, err
	}
	return prometheus.NewAppMetrics(collector), collector, nil
}

// sweepInterval bounds how long an expired session lingers.
func sweepInterval(ttl time.Duration) time.Duration {
	iv := ttl / 4
	if iv < time.Second {
		iv = time.Second
	}
	if iv > 5*time.Minute {
		iv = 5 * time.Minute
	}
	return iv
}
