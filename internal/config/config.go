// Package config defines the configuration structures for Scholet. Loading
// lives in loader.go and defaults in defaults.go; this file holds only data
// types and validation.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sections
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" validate:"gt=0"`
	MaxSessions     int           `mapstructure:"max_sessions" validate:"gte=0"`
	SessionIdleTTL  time.Duration `mapstructure:"session_idle_ttl"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst" validate:"gte=0"`
}

// RedisConfig holds the bin cache connection.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Mode         string        `mapstructure:"mode" validate:"oneof=standalone sentinel cluster"`
	Addr         string        `mapstructure:"addr"`
	Addrs        []string      `mapstructure:"addrs"`
	MasterName   string        `mapstructure:"master_name"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db" validate:"gte=0"`
	PoolSize     int           `mapstructure:"pool_size" validate:"gte=0"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds consumer and producer parameters.
type KafkaConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Brokers       []string      `mapstructure:"brokers"`
	GroupID       string        `mapstructure:"group_id"`
	MessageTopic  string        `mapstructure:"message_topic"`
	EventTopic    string        `mapstructure:"event_topic"`
	DatasetTopic  string        `mapstructure:"dataset_topic"`
	MinBytes      int           `mapstructure:"min_bytes" validate:"gte=0"`
	MaxBytes      int           `mapstructure:"max_bytes" validate:"gte=0"`
	MaxWait       time.Duration `mapstructure:"max_wait"`
	MaxRetries    int           `mapstructure:"max_retries" validate:"gte=0"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
	BatchTimeout  time.Duration `mapstructure:"batch_timeout"`
	RequiredAcks  int           `mapstructure:"required_acks" validate:"oneof=-1 0 1"`
	StartFromLast bool          `mapstructure:"start_from_last"`
}

// MinIOConfig holds object storage parameters for remote datasets.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Subsystem string `mapstructure:"subsystem"`
	Path      string `mapstructure:"path"`
}

// BinningConfig describes the resolution ladder and zoom mapping.
type BinningConfig struct {
	MinLevel     int           `mapstructure:"min_level" validate:"gte=1"`
	MaxLevel     int           `mapstructure:"max_level" validate:"gtefield=MinLevel"`
	Step         int           `mapstructure:"step" validate:"gte=1"`
	DefaultLevel int           `mapstructure:"default_level" validate:"gte=1"`
	ZoomMin      float64       `mapstructure:"zoom_min"`
	ZoomMax      float64       `mapstructure:"zoom_max" validate:"gtfield=ZoomMin"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	Precompute   bool          `mapstructure:"precompute"`
	Concurrency  int           `mapstructure:"concurrency" validate:"gte=1"`
}

// Levels expands the configured ladder bounds into the ordered level list.
// The default level is not included; the ladder adds it when it falls off
// the step grid.
func (b BinningConfig) Levels() []int {
	if b.Step < 1 || b.MaxLevel < b.MinLevel {
		return nil
	}
	levels := make([]int, 0, (b.MaxLevel-b.MinLevel)/b.Step+1)
	for l := b.MinLevel; l <= b.MaxLevel; l += b.Step {
		levels = append(levels, l)
	}
	return levels
}

// DatasetConfig tells the binaries where entity records come from.
type DatasetConfig struct {
	Source        string `mapstructure:"source" validate:"oneof=file minio"`
	Path          string `mapstructure:"path"`
	Object        string `mapstructure:"object"`
	Format        string `mapstructure:"format" validate:"oneof=auto csv json"`
	IDColumn      string `mapstructure:"id_column"`
	XColumn       string `mapstructure:"x_column" validate:"required"`
	YColumn       string `mapstructure:"y_column" validate:"required"`
	AuthorColumn  string `mapstructure:"author_column"`
	Authors       bool   `mapstructure:"authors"`
	SummaryColumn string `mapstructure:"summary_column" validate:"omitempty,oneof=cluster faculty department focus_tag"`
}

// WorkerConfig tunes the ladder precompute worker.
type WorkerConfig struct {
	HealthPort int           `mapstructure:"health_port" validate:"min=1,max=65535"`
	Columns    []string      `mapstructure:"columns" validate:"dive,oneof=cluster faculty department focus_tag"`
	LockTTL    time.Duration `mapstructure:"lock_ttl"`
	RunOnStart bool          `mapstructure:"run_on_start"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration for every Scholet binary.
type Config struct {
	Server  ServerConfig      `mapstructure:"server"`
	Log     logging.LogConfig `mapstructure:"log"`
	Redis   RedisConfig       `mapstructure:"redis"`
	Kafka   KafkaConfig       `mapstructure:"kafka"`
	MinIO   MinIOConfig       `mapstructure:"minio"`
	Metrics MetricsConfig     `mapstructure:"metrics"`
	Binning BinningConfig     `mapstructure:"binning"`
	Dataset DatasetConfig     `mapstructure:"dataset"`
	Worker  WorkerConfig      `mapstructure:"worker"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

var validate = validator.New()

// Validate checks struct tags first and then the cross-section rules that
// tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if c.Binning.DefaultLevel < c.Binning.MinLevel || c.Binning.DefaultLevel > c.Binning.MaxLevel {
		return fmt.Errorf("config: binning.default_level %d is outside [%d, %d]",
			c.Binning.DefaultLevel, c.Binning.MinLevel, c.Binning.MaxLevel)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if c.Redis.Enabled && c.Redis.Mode == "standalone" && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when redis is enabled")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.GroupID == "" {
			return fmt.Errorf("config: kafka.group_id is required when kafka is enabled")
		}
	}
	if c.Dataset.Source == "minio" {
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" || c.Dataset.Object == "" {
			return fmt.Errorf("config: minio.endpoint, minio.bucket and dataset.object are required for minio datasets")
		}
	}
	return nil
}
