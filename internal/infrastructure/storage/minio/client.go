// Package minio reads entity datasets from S3-compatible object storage.
package minio

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
	"github.com/ryanyen2/Scholet/pkg/errors"
)

var (
	ErrClientClosed   = errors.New(errors.ErrCodeServiceUnavailable, "minio client is closed")
	ErrObjectNotFound = errors.New(errors.ErrCodeDatasetUnavailable, "dataset object not found")
)

// ObjectAPI is the subset of *minio.Client Scholet calls.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// opener streams an object body. *minio.Object cannot be built outside the
// SDK, so reads go through this seam.
type opener func(ctx context.Context, bucket, object string) (io.ReadCloser, error)

type Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type Client struct {
	api    ObjectAPI
	open   opener
	config *Config
	logger logging.Logger
	mu     sync.RWMutex
	closed bool
}

// NewClient connects and makes sure the dataset bucket exists.
func NewClient(cfg *Config, log logging.Logger) (*Client, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	applyDefaults(cfg)

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create minio client")
	}

	open := func(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
		obj, err := mc.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
		if err != nil {
			return nil, err
		}
		return obj, nil
	}
	c := newClient(mc, open, cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	log.Info("minio client connected", logging.String("endpoint", cfg.Endpoint), logging.String("bucket", cfg.Bucket))
	return c, nil
}

func newClient(api ObjectAPI, open opener, cfg *Config, log logging.Logger) *Client {
	if log == nil {
		log = logging.NewNopLogger()
	}
	applyDefaults(cfg)
	return &Client{api: api, open: open, config: cfg, logger: log}
}

func applyDefaults(cfg *Config) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "scholet-datasets"
	}
}

func (c *Client) Bucket() string { return c.config.Bucket }

func (c *Client) EnsureBucket(ctx context.Context) error {
	if c.isClosed() {
		return ErrClientClosed
	}
	exists, err := c.api.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to check bucket")
	}
	if exists {
		return nil
	}
	if err := c.api.MakeBucket(ctx, c.config.Bucket, minio.MakeBucketOptions{Region: c.config.Region}); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to create bucket").WithDetail(c.config.Bucket)
	}
	c.logger.Info("created bucket", logging.String("bucket", c.config.Bucket))
	return nil
}

// Stat returns object metadata, mapping a missing key to ErrObjectNotFound.
func (c *Client) Stat(ctx context.Context, object string) (minio.ObjectInfo, error) {
	if c.isClosed() {
		return minio.ObjectInfo{}, ErrClientClosed
	}
	info, err := c.api.StatObject(ctx, c.config.Bucket, object, minio.StatObjectOptions{})
	if err != nil {
		return info, classify(err, object)
	}
	return info, nil
}

// Open streams an object body. The caller closes it.
func (c *Client) Open(ctx context.Context, object string) (io.ReadCloser, error) {
	if c.isClosed() {
		return nil, ErrClientClosed
	}
	rc, err := c.open(ctx, c.config.Bucket, object)
	if err != nil {
		return nil, classify(err, object)
	}
	return rc, nil
}

func (c *Client) Put(ctx context.Context, object string, r io.Reader, size int64, contentType string) (minio.UploadInfo, error) {
	if c.isClosed() {
		return minio.UploadInfo{}, ErrClientClosed
	}
	info, err := c.api.PutObject(ctx, c.config.Bucket, object, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return info, errors.Wrap(err, errors.ErrCodeExternalService, "failed to upload object").WithDetail(object)
	}
	return info, nil
}

// HealthCheck reports whether the bucket is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.isClosed() {
		return ErrClientClosed
	}
	ok, err := c.api.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "minio unreachable")
	}
	if !ok {
		return errors.New(errors.ErrCodeServiceUnavailable, "bucket missing").WithDetail(c.config.Bucket)
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func classify(err error, object string) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrObjectNotFound.WithDetail(object).WithCause(err)
	}
	return errors.Wrap(err, errors.ErrCodeDatasetUnavailable, "failed to read dataset object").WithDetail(object)
}
