package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ryanyen2/Scholet/internal/domain/binning"
	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
	"github.com/ryanyen2/Scholet/pkg/errors"
)

// BinCache stores selection-free bin layers keyed by dataset version, level
// and summary column. Selection is overlaid per session after a read, so a
// layer is shared by every session over the same dataset.
type BinCache struct {
	cache  Cache
	ttl    time.Duration
	logger logging.Logger
}

// NewBinCache returns a BinCache whose entries live for ttl (0 uses the
// cache default).
func NewBinCache(cache Cache, ttl time.Duration, log logging.Logger) *BinCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &BinCache{cache: cache, ttl: ttl, logger: log}
}

func layerPrefix(version string) string {
	return "bins:" + version + ":"
}

func layerKey(version string, level int, column string) string {
	if column == "" {
		column = "_"
	}
	return layerPrefix(version) + strconv.Itoa(level) + ":" + column
}

// Get returns the cached layer. ok is false on a miss.
func (b *BinCache) Get(ctx context.Context, version string, level int, column string) ([]binning.Group, bool, error) {
	var groups []binning.Group
	err := b.cache.Get(ctx, layerKey(version, level, column), &groups)
	if err == ErrCacheMiss {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return groups, true, nil
}

func (b *BinCache) Put(ctx context.Context, version string, level int, column string, groups []binning.Group) error {
	return b.cache.Set(ctx, layerKey(version, level, column), groups, b.ttl)
}

// PutLadder stores every layer of a precomputed ladder in one pipeline.
func (b *BinCache) PutLadder(ctx context.Context, version, column string, layers map[int][]binning.Group) error {
	items := make(map[string]interface{}, len(layers))
	for level, groups := range layers {
		items[layerKey(version, level, column)] = groups
	}
	if err := b.cache.MSet(ctx, items, b.ttl); err != nil {
		return err
	}
	b.logger.Info("bin ladder cached",
		logging.String("version", version),
		logging.String("column", column),
		logging.Int("levels", len(layers)))
	return nil
}

// GetOrCompute returns the cached layer or fills it from compute. Concurrent
// callers for the same layer share one computation.
func (b *BinCache) GetOrCompute(ctx context.Context, version string, level int, column string,
	compute func() ([]binning.Group, error)) ([]binning.Group, error) {
	var groups []binning.Group
	err := b.cache.GetOrSet(ctx, layerKey(version, level, column), &groups, b.ttl,
		func(context.Context) (interface{}, error) {
			return compute()
		})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// Invalidate drops every layer of version and returns how many were removed.
func (b *BinCache) Invalidate(ctx context.Context, version string) (int64, error) {
	if version == "" {
		return 0, errors.New(errors.ErrCodeBadRequest, "dataset version is required")
	}
	n, err := b.cache.DeleteByPrefix(ctx, layerPrefix(version))
	if err != nil {
		return n, errors.Wrap(err, errors.ErrCodeCacheError, fmt.Sprintf("failed to invalidate layers of %s", version))
	}
	return n, nil
}
