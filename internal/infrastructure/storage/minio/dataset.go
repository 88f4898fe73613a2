package minio

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/ryanyen2/Scholet/internal/domain/entity"
	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
)

// DatasetSource loads entity sets stored as CSV or JSON objects.
type DatasetSource struct {
	client *Client
	opts   entity.LoadOptions
	logger logging.Logger
}

func NewDatasetSource(client *Client, opts entity.LoadOptions, log logging.Logger) *DatasetSource {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &DatasetSource{client: client, opts: opts, logger: log}
}

// Load fetches object and decodes it. FormatAuto picks the decoder from the
// object name.
func (s *DatasetSource) Load(ctx context.Context, object string, format entity.Format) (*entity.Set, entity.Stats, error) {
	start := time.Now()
	info, err := s.client.Stat(ctx, object)
	if err != nil {
		return nil, entity.Stats{}, err
	}
	rc, err := s.client.Open(ctx, object)
	if err != nil {
		return nil, entity.Stats{}, err
	}
	defer rc.Close()

	if format == entity.FormatAuto || format == "" {
		format = entity.DetectFormat(object)
	}
	set, stats, err := entity.Load(rc, format, s.opts)
	if err != nil {
		return nil, stats, err
	}
	s.logger.Info("dataset loaded from object storage",
		logging.String("object", object),
		logging.String("etag", info.ETag),
		logging.Int64("bytes", info.Size),
		logging.Int("records", set.Len()),
		logging.String("version", set.Version()),
		logging.Duration("elapsed", time.Since(start)))
	return set, stats, nil
}

// Push uploads a local dataset file under object. An empty object name uses
// the file's base name.
func (s *DatasetSource) Push(ctx context.Context, path, object string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if object == "" {
		object = filepath.Base(path)
	}
	contentType := "text/csv"
	if entity.DetectFormat(object) == entity.FormatJSON {
		contentType = "application/json"
	}
	info, err := s.client.Put(ctx, object, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		return "", err
	}
	s.logger.Info("dataset uploaded", logging.String("object", object), logging.Int64("bytes", info.Size))
	return object, nil
}
