package explorer

import (
	"strconv"
	"sync"
	"time"

	"github.com/ryanyen2/Scholet/internal/domain/binning"
	"github.com/ryanyen2/Scholet/internal/domain/entity"
)

// dataset is an immutable entity set plus the selection-free bin layers
// computed from it so far. Layers depend only on the set, so every session
// shares them.
type dataset struct {
	set      *entity.Set
	stats    entity.Stats
	bounds   binning.Bounds
	bounded  bool
	loadedAt time.Time

	mu     sync.RWMutex
	layers map[string][]binning.Group
}

func newDataset(set *entity.Set, stats entity.Stats, now time.Time) *dataset {
	if set == nil {
		set, _ = entity.NewSet(nil)
	}
	b, ok := binning.BoundsOf(set.Records())
	return &dataset{
		set:      set,
		stats:    stats,
		bounds:   b,
		bounded:  ok,
		loadedAt: now,
		layers:   make(map[string][]binning.Group),
	}
}

func layerID(level int, column string) string {
	return strconv.Itoa(level) + "/" + column
}

func (d *dataset) layer(level int, column string) ([]binning.Group, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.layers[layerID(level, column)]
	return g, ok
}

func (d *dataset) storeLayer(level int, column string, groups []binning.Group) {
	d.mu.Lock()
	d.layers[layerID(level, column)] = groups
	d.mu.Unlock()
}

func (d *dataset) binOptions(column string) []binning.BinOption {
	var opts []binning.BinOption
	if d.bounded {
		opts = append(opts, binning.WithBounds(d.bounds))
	}
	if column != "" {
		opts = append(opts, binning.WithSummary(column))
	}
	return opts
}

// DatasetInfo describes the loaded dataset.
type DatasetInfo struct {
	Version  string          `json:"version"`
	Records  int             `json:"records"`
	Papers   int             `json:"papers"`
	Authors  int             `json:"authors"`
	Bounds   *binning.Bounds `json:"bounds,omitempty"`
	Stats    entity.Stats    `json:"stats"`
	LoadedAt time.Time       `json:"loaded_at"`
}

func (d *dataset) info() *DatasetInfo {
	out := &DatasetInfo{
		Version:  d.set.Version(),
		Records:  d.set.Len(),
		Papers:   d.set.Filter(entity.KindPaper).Len(),
		Authors:  d.set.Filter(entity.KindAuthor).Len(),
		Stats:    d.stats,
		LoadedAt: d.loadedAt,
	}
	if d.bounded {
		b := d.bounds
		out.Bounds = &b
	}
	return out
}
