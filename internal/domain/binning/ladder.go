// Package binning aggregates projected entities into rectangular grid cells
// at a fixed ladder of resolutions.
package binning

import (
	"math"
	"sort"
	"strconv"

	"github.com/ryanyen2/Scholet/pkg/errors"
)

// Default ladder: 10..38 step 2, active level 20, zoom signal in [1, 8].
const (
	DefaultMinLevel = 10
	DefaultMaxLevel = 38
	DefaultStep     = 2
	DefaultLevel    = 20
	DefaultZoomMin  = 1.0
	DefaultZoomMax  = 8.0
)

// Sentinel errors. Returned values may carry a Detail; match them with
// errors.IsCode.
var (
	ErrInvalidResolution  = errors.New(errors.ErrCodeInvalidResolution, "resolution level is not on the ladder")
	ErrNoLevelsConfigured = errors.New(errors.ErrCodeNoLevelsConfigured, "resolution ladder is empty")
)

// Ladder is the ordered set of supported resolution levels. A Ladder is
// immutable; WithDefault returns a copy.
type Ladder struct {
	levels  []int
	def     int
	zoomMin float64
	zoomMax float64
}

// LadderOption configures a Ladder.
type LadderOption func(*Ladder)

// WithZoomRange sets the zoom signal range mapped onto the ladder. Ranges
// with max <= min are ignored.
func WithZoomRange(min, max float64) LadderOption {
	return func(l *Ladder) {
		if max > min && !math.IsNaN(min) && !math.IsNaN(max) {
			l.zoomMin = min
			l.zoomMax = max
		}
	}
}

// NewLadder builds the ladder min, min+step, ..., max. def becomes the
// default level and joins the ladder when it falls off the step grid.
func NewLadder(min, max, step, def int, opts ...LadderOption) (*Ladder, error) {
	if step <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidResolution, "ladder step must be positive").
			WithDetail("step=" + strconv.Itoa(step))
	}
	levels := make([]int, 0, (max-min)/step+2)
	for lv := min; lv <= max; lv += step {
		levels = append(levels, lv)
	}
	if def != 0 {
		levels = append(levels, def)
	}
	return NewLadderFromLevels(levels, def, opts...)
}

// NewLadderFromLevels builds a ladder from an explicit level list. Levels are
// sorted and de-duplicated; each must be >= 1. A zero def picks the middle
// level.
func NewLadderFromLevels(levels []int, def int, opts ...LadderOption) (*Ladder, error) {
	uniq := make(map[int]struct{}, len(levels))
	sorted := make([]int, 0, len(levels))
	for _, lv := range levels {
		if lv < 1 {
			return nil, errors.New(errors.ErrCodeInvalidResolution, "resolution level must be >= 1").
				WithDetail("level=" + strconv.Itoa(lv))
		}
		if _, dup := uniq[lv]; dup {
			continue
		}
		uniq[lv] = struct{}{}
		sorted = append(sorted, lv)
	}
	if len(sorted) == 0 {
		return nil, ErrNoLevelsConfigured
	}
	sort.Ints(sorted)

	if def == 0 {
		def = sorted[len(sorted)/2]
	}
	if _, ok := uniq[def]; !ok {
		return nil, errors.New(errors.ErrCodeInvalidResolution, "default level is not on the ladder").
			WithDetail("level=" + strconv.Itoa(def))
	}

	l := &Ladder{levels: sorted, def: def, zoomMin: DefaultZoomMin, zoomMax: DefaultZoomMax}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// DefaultLadder returns the 10..38 step 2 ladder with default level 20.
func DefaultLadder() *Ladder {
	l, err := NewLadder(DefaultMinLevel, DefaultMaxLevel, DefaultStep, DefaultLevel)
	if err != nil {
		panic(err)
	}
	return l
}

// Levels returns a copy of the levels in ascending order.
func (l *Ladder) Levels() []int {
	if l == nil {
		return nil
	}
	out := make([]int, len(l.levels))
	copy(out, l.levels)
	return out
}

// Len returns the number of levels.
func (l *Ladder) Len() int {
	if l == nil {
		return 0
	}
	return len(l.levels)
}

// Default returns the default level.
func (l *Ladder) Default() int { return l.def }

// Coarsest returns the lowest level.
func (l *Ladder) Coarsest() int { return l.levels[0] }

// Finest returns the highest level.
func (l *Ladder) Finest() int { return l.levels[len(l.levels)-1] }

// ZoomRange returns the zoom signal range mapped onto the ladder.
func (l *Ladder) ZoomRange() (float64, float64) { return l.zoomMin, l.zoomMax }

// Contains reports whether level is a ladder member.
func (l *Ladder) Contains(level int) bool {
	if l == nil {
		return false
	}
	i := sort.SearchInts(l.levels, level)
	return i < len(l.levels) && l.levels[i] == level
}

// Validate returns ErrCodeInvalidResolution when level is off the ladder.
func (l *Ladder) Validate(level int) error {
	if l.Len() == 0 {
		return ErrNoLevelsConfigured
	}
	if !l.Contains(level) {
		return ErrInvalidResolution.WithDetail("level=" + strconv.Itoa(level))
	}
	return nil
}

// WithDefault returns a copy of l whose default level is level.
func (l *Ladder) WithDefault(level int) (*Ladder, error) {
	if err := l.Validate(level); err != nil {
		return nil, err
	}
	cp := *l
	cp.levels = l.Levels()
	cp.def = level
	return &cp, nil
}

// SelectLevel maps a continuous zoom signal onto the ladder. The zoom range
// is split into Len() equal bands; band i selects the i-th coarsest level.
// Signals outside the range clamp to the ends and NaN selects the coarsest
// level. The mapping is monotonic and pure.
func (l *Ladder) SelectLevel(zoom float64) (int, error) {
	n := l.Len()
	if n == 0 {
		return 0, ErrNoLevelsConfigured
	}
	if math.IsNaN(zoom) {
		return l.levels[0], nil
	}

	t := (zoom - l.zoomMin) / (l.zoomMax - l.zoomMin)
	switch {
	case t <= 0:
		return l.levels[0], nil
	case t >= 1:
		return l.levels[n-1], nil
	}
	idx := int(math.Floor(t * float64(n)))
	if idx > n-1 {
		idx = n - 1
	}
	return l.levels[idx], nil
}
