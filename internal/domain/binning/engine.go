package binning

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ryanyen2/Scholet/internal/domain/entity"
	"github.com/ryanyen2/Scholet/internal/domain/selection"
	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
)

// BinOption configures one binning pass.
type BinOption func(*binConfig)

type binConfig struct {
	bounds        *Bounds
	state         selection.Reader
	summaryColumn string
	concurrency   int
}

// WithBounds fixes the coordinate bounds instead of deriving them from the
// input. Invalid bounds are ignored.
func WithBounds(b Bounds) BinOption {
	return func(c *binConfig) {
		if b.Valid() {
			c.bounds = &b
		}
	}
}

// WithState resolves Selected and Label against state after grouping.
func WithState(state selection.Reader) BinOption {
	return func(c *binConfig) {
		c.state = state
	}
}

// WithSummary tallies column over each group's members.
func WithSummary(column string) BinOption {
	return func(c *binConfig) {
		c.summaryColumn = column
	}
}

// WithConcurrency bounds the number of levels ComputeLadder bins at once.
func WithConcurrency(n int) BinOption {
	return func(c *binConfig) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// Engine bins entity records at the levels of a ladder.
type Engine struct {
	ladder *Ladder
	logger logging.Logger
}

// NewEngine returns an Engine over ladder.
func NewEngine(ladder *Ladder, logger logging.Logger) (*Engine, error) {
	if ladder.Len() == 0 {
		return nil, ErrNoLevelsConfigured
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Engine{ladder: ladder, logger: logger}, nil
}

// Ladder returns the engine's ladder.
func (e *Engine) Ladder() *Ladder { return e.ladder }

type accumulator struct {
	key        Key
	sumX, sumY float64
	members    []string
	values     []string
}

// ComputeBins groups records by cell at level. Groups are ordered by the
// first appearance of their cell in records and members keep input order.
// Non-finite records and repeated identifiers after the first are skipped.
// The only error is a level off the ladder; empty input yields no groups.
func (e *Engine) ComputeBins(records []entity.Record, level int, opts ...BinOption) ([]Group, error) {
	if err := e.ladder.Validate(level); err != nil {
		return nil, err
	}
	cfg := &binConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	start := time.Now()
	accepted, skipped := dedupe(records)
	if len(accepted) == 0 {
		return []Group{}, nil
	}
	var bounds Bounds
	if cfg.bounds != nil {
		bounds = *cfg.bounds
	} else {
		bounds, _ = BoundsOf(accepted)
	}

	index := make(map[Key]int)
	var accs []*accumulator
	for _, r := range accepted {
		k := bounds.KeyFor(r.X, r.Y, level)
		i, ok := index[k]
		if !ok {
			i = len(accs)
			index[k] = i
			accs = append(accs, &accumulator{key: k})
		}
		acc := accs[i]
		acc.sumX += r.X
		acc.sumY += r.Y
		acc.members = append(acc.members, r.ID)
		if cfg.summaryColumn != "" {
			acc.values = append(acc.values, r.Attr(cfg.summaryColumn))
		}
	}

	groups := make([]Group, 0, len(accs))
	for _, acc := range accs {
		n := float64(len(acc.members))
		g := Group{
			Key:      acc.key,
			ID:       acc.key.String(),
			Level:    level,
			Centroid: Point{X: acc.sumX / n, Y: acc.sumY / n},
			Box:      bounds.Cell(acc.key, level),
			Members:  acc.members,
		}
		if cfg.summaryColumn != "" {
			g.Summary = newSummary(cfg.summaryColumn, acc.values)
		}
		groups = append(groups, g)
	}

	if cfg.state != nil {
		groups = Overlay(groups, cfg.state)
	}

	e.logger.Debug("bins computed",
		logging.Level(level),
		logging.Int("records", len(records)),
		logging.Int("groups", len(groups)),
		logging.Int("skipped", skipped),
		logging.Duration("elapsed", time.Since(start)),
	)
	return groups, nil
}

// ComputeLadder bins records at every ladder level concurrently. Bounds are
// derived once and shared by all levels. It stops at the first error or when
// ctx is done.
func (e *Engine) ComputeLadder(ctx context.Context, records []entity.Record, opts ...BinOption) (map[int][]Group, error) {
	cfg := &binConfig{concurrency: 4}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.bounds == nil {
		accepted, _ := dedupe(records)
		if b, ok := BoundsOf(accepted); ok {
			opts = append(opts[:len(opts):len(opts)], WithBounds(b))
		}
	}

	var mu sync.Mutex
	out := make(map[int][]Group, e.ladder.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.concurrency)
	for _, level := range e.ladder.Levels() {
		level := level
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			groups, err := e.ComputeBins(records, level, opts...)
			if err != nil {
				return err
			}
			mu.Lock()
			out[level] = groups
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// dedupe drops non-finite records and repeated identifiers after the first,
// returning the survivors in input order and the number dropped.
func dedupe(records []entity.Record) ([]entity.Record, int) {
	seen := make(map[string]struct{}, len(records))
	out := make([]entity.Record, 0, len(records))
	for _, r := range records {
		if !r.Finite() {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out, len(records) - len(out)
}
