package config

import (
	"time"

	"github.com/spf13/viper"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default values
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerHost      = "0.0.0.0"
	DefaultServerPort      = 8080
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxBodyBytes    = 1 << 20
	DefaultMaxSessions     = 1024
	DefaultSessionIdleTTL  = time.Hour

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultRedisMode      = "standalone"
	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "scholet:"

	DefaultKafkaBroker       = "localhost:9092"
	DefaultKafkaGroupID      = "scholet"
	DefaultKafkaMessageTopic = "scholet.chat.messages"
	DefaultKafkaEventTopic   = "scholet.selection.changed"
	DefaultKafkaDatasetTopic = "scholet.dataset.updated"
	DefaultKafkaMinBytes     = 1
	DefaultKafkaMaxBytes     = 10 << 20
	DefaultKafkaMaxWait      = 500 * time.Millisecond
	DefaultKafkaMaxRetries   = 3
	DefaultKafkaRetryBackoff = 200 * time.Millisecond
	DefaultKafkaBatchTimeout = 10 * time.Millisecond
	DefaultKafkaRequiredAcks = -1

	DefaultMinIORegion = "us-east-1"

	DefaultMetricsNamespace = "scholet"
	DefaultMetricsPath      = "/metrics"

	// The ladder mirrors the legacy umap_*_bin_10 .. umap_*_bin_38 columns.
	DefaultMinLevel      = 10
	DefaultMaxLevel      = 38
	DefaultLevelStep     = 2
	DefaultLevel         = 20
	DefaultZoomMin       = 1.0
	DefaultZoomMax       = 8.0
	DefaultBinCacheTTL   = 10 * time.Minute
	DefaultBinningWorker = 4

	DefaultDatasetSource = "file"
	DefaultDatasetFormat = "auto"
	DefaultXColumn       = "umap_x"
	DefaultYColumn       = "umap_y"
	DefaultIDColumn      = "paper_id"
	DefaultAuthorColumn  = "AuthorNames"

	DefaultWorkerHealthPort = 8081
	DefaultWorkerLockTTL    = 10 * time.Minute
)

// ApplyDefaults fills zero-value fields in cfg. Explicit values always win.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Server.MaxSessions == 0 {
		cfg.Server.MaxSessions = DefaultMaxSessions
	}
	if cfg.Server.SessionIdleTTL == 0 {
		cfg.Server.SessionIdleTTL = DefaultSessionIdleTTL
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Mode == "" {
		cfg.Redis.Mode = DefaultRedisMode
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.MessageTopic == "" {
		cfg.Kafka.MessageTopic = DefaultKafkaMessageTopic
	}
	if cfg.Kafka.EventTopic == "" {
		cfg.Kafka.EventTopic = DefaultKafkaEventTopic
	}
	if cfg.Kafka.DatasetTopic == "" {
		cfg.Kafka.DatasetTopic = DefaultKafkaDatasetTopic
	}
	if cfg.Kafka.MinBytes == 0 {
		cfg.Kafka.MinBytes = DefaultKafkaMinBytes
	}
	if cfg.Kafka.MaxBytes == 0 {
		cfg.Kafka.MaxBytes = DefaultKafkaMaxBytes
	}
	if cfg.Kafka.MaxWait == 0 {
		cfg.Kafka.MaxWait = DefaultKafkaMaxWait
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = DefaultKafkaMaxRetries
	}
	if cfg.Kafka.RetryBackoff == 0 {
		cfg.Kafka.RetryBackoff = DefaultKafkaRetryBackoff
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = DefaultKafkaBatchTimeout
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Region == "" {
		cfg.MinIO.Region = DefaultMinIORegion
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	// ── Binning ───────────────────────────────────────────────────────────────
	if cfg.Binning.MinLevel == 0 {
		cfg.Binning.MinLevel = DefaultMinLevel
	}
	if cfg.Binning.MaxLevel == 0 {
		cfg.Binning.MaxLevel = DefaultMaxLevel
	}
	if cfg.Binning.Step == 0 {
		cfg.Binning.Step = DefaultLevelStep
	}
	if cfg.Binning.DefaultLevel == 0 {
		cfg.Binning.DefaultLevel = DefaultLevel
	}
	if cfg.Binning.ZoomMin == 0 && cfg.Binning.ZoomMax == 0 {
		cfg.Binning.ZoomMin = DefaultZoomMin
		cfg.Binning.ZoomMax = DefaultZoomMax
	}
	if cfg.Binning.CacheTTL == 0 {
		cfg.Binning.CacheTTL = DefaultBinCacheTTL
	}
	if cfg.Binning.Concurrency == 0 {
		cfg.Binning.Concurrency = DefaultBinningWorker
	}

	// ── Dataset ───────────────────────────────────────────────────────────────
	if cfg.Dataset.Source == "" {
		cfg.Dataset.Source = DefaultDatasetSource
	}
	if cfg.Dataset.Format == "" {
		cfg.Dataset.Format = DefaultDatasetFormat
	}
	if cfg.Dataset.XColumn == "" {
		cfg.Dataset.XColumn = DefaultXColumn
	}
	if cfg.Dataset.YColumn == "" {
		cfg.Dataset.YColumn = DefaultYColumn
	}
	if cfg.Dataset.IDColumn == "" {
		cfg.Dataset.IDColumn = DefaultIDColumn
	}
	if cfg.Dataset.AuthorColumn == "" {
		cfg.Dataset.AuthorColumn = DefaultAuthorColumn
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	if cfg.Worker.HealthPort == 0 {
		cfg.Worker.HealthPort = DefaultWorkerHealthPort
	}
	if cfg.Worker.LockTTL == 0 {
		cfg.Worker.LockTTL = DefaultWorkerLockTTL
	}
}

// NewDefaultConfig returns a Config populated only with defaults.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Kafka.RequiredAcks = DefaultKafkaRequiredAcks
	return cfg
}

// bindKeys registers every leaf key with viper so that SCHOLET_* variables
// reach Unmarshal even when no config file mentions the key.
func bindKeys(v *viper.Viper) {
	keys := []string{
		"server.host", "server.port", "server.read_timeout", "server.write_timeout",
		"server.idle_timeout", "server.shutdown_timeout", "server.max_body_bytes",
		"server.max_sessions", "server.session_idle_ttl", "server.cors_origins", "server.rate_limit_rps",
		"server.rate_limit_burst",
		"log.level", "log.format", "log.output_paths", "log.error_output_paths",
		"redis.enabled", "redis.mode", "redis.addr", "redis.addrs", "redis.master_name",
		"redis.password", "redis.db", "redis.pool_size", "redis.dial_timeout",
		"redis.read_timeout", "redis.write_timeout", "redis.key_prefix",
		"kafka.enabled", "kafka.brokers", "kafka.group_id", "kafka.message_topic",
		"kafka.event_topic", "kafka.dataset_topic", "kafka.min_bytes", "kafka.max_bytes",
		"kafka.max_wait", "kafka.max_retries", "kafka.retry_backoff", "kafka.batch_timeout",
		"kafka.start_from_last",
		"minio.endpoint", "minio.access_key", "minio.secret_key", "minio.bucket",
		"minio.region", "minio.use_ssl",
		"metrics.enabled", "metrics.namespace", "metrics.subsystem", "metrics.path",
		"binning.min_level", "binning.max_level", "binning.step", "binning.default_level",
		"binning.zoom_min", "binning.zoom_max", "binning.cache_ttl", "binning.precompute",
		"binning.concurrency",
		"dataset.source", "dataset.path", "dataset.object", "dataset.format",
		"dataset.id_column", "dataset.x_column", "dataset.y_column",
		"dataset.author_column", "dataset.authors", "dataset.summary_column",
		"worker.health_port", "worker.columns", "worker.lock_ttl", "worker.run_on_start",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
	v.SetDefault("kafka.required_acks", DefaultKafkaRequiredAcks)
}
