// Package bootstrap wires configuration into the running components shared
// by the scholet binaries.
package bootstrap

import (
	"context"

	"github.com/ryanyen2/Scholet/internal/config"
	"github.com/ryanyen2/Scholet/internal/domain/binning"
	"github.com/ryanyen2/Scholet/internal/domain/entity"
	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
	"github.com/ryanyen2/Scholet/internal/infrastructure/storage/minio"
	"github.com/ryanyen2/Scholet/pkg/errors"
)

// NewLadder builds the resolution ladder described by cfg.
func NewLadder(cfg config.BinningConfig) (*binning.Ladder, error) {
	return binning.NewLadderFromLevels(cfg.Levels(), cfg.DefaultLevel, binning.WithZoomRange(cfg.ZoomMin, cfg.ZoomMax))
}

func LoadOptions(cfg config.DatasetConfig) entity.LoadOptions {
	return entity.LoadOptions{
		IDColumn: cfg.IDColumn,
		XColumn:  cfg.XColumn,
		YColumn:  cfg.YColumn,
	}
}

// DatasetRef points at one dataset file or object.
type DatasetRef struct {
	Source string
	Path   string
	Object string
	Format string
}

func RefFromConfig(cfg config.DatasetConfig) DatasetRef {
	return DatasetRef{Source: cfg.Source, Path: cfg.Path, Object: cfg.Object, Format: cfg.Format}
}

// DatasetLoader reads datasets from local files or object storage. Author
// records are derived and appended when the configuration asks for them.
type DatasetLoader struct {
	cfg    config.DatasetConfig
	remote *minio.DatasetSource
	logger logging.Logger
}

// NewDatasetLoader returns a loader. remote may be nil when object storage
// is not configured; minio refs then fail.
func NewDatasetLoader(cfg config.DatasetConfig, remote *minio.DatasetSource, log logging.Logger) *DatasetLoader {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &DatasetLoader{cfg: cfg, remote: remote, logger: log}
}

func (l *DatasetLoader) Load(ctx context.Context, ref DatasetRef) (*entity.Set, entity.Stats, error) {
	format := entity.FormatAuto
	if ref.Format != "" {
		f, err := entity.ParseFormat(ref.Format)
		if err != nil {
			return nil, entity.Stats{}, err
		}
		format = f
	}

	var (
		set   *entity.Set
		stats entity.Stats
		err   error
	)
	switch ref.Source {
	case "minio":
		if l.remote == nil {
			return nil, stats, errors.New(errors.ErrCodeDatasetUnavailable, "object storage is not configured")
		}
		if ref.Object == "" {
			return nil, stats, errors.New(errors.ErrCodeBadRequest, "dataset object is required")
		}
		set, stats, err = l.remote.Load(ctx, ref.Object, format)
	case "file", "":
		if ref.Path == "" {
			return nil, stats, errors.New(errors.ErrCodeBadRequest, "dataset path is required")
		}
		set, stats, err = entity.LoadFile(ref.Path, format, LoadOptions(l.cfg))
	default:
		return nil, stats, errors.New(errors.ErrCodeBadRequest, "unknown dataset source").WithDetail(ref.Source)
	}
	if err != nil {
		return nil, stats, err
	}

	if l.cfg.Authors {
		authors := entity.AggregateAuthors(set, l.cfg.AuthorColumn)
		set, _ = entity.Merge(set, authors)
		l.logger.Debug("author records derived", logging.Int("authors", authors.Len()))
	}
	if set.Len() == 0 {
		return nil, stats, errors.New(errors.ErrCodeDatasetEmpty, "dataset contains no usable records")
	}
	return set, stats, nil
}
