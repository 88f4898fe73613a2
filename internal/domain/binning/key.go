package binning

import (
	"math"
	"strconv"
	"strings"

	"github.com/ryanyen2/Scholet/internal/domain/entity"
	"github.com/ryanyen2/Scholet/pkg/errors"
)

// SelectionKeyPrefix marks bin identifiers in selection state so they cannot
// collide with entity identifiers.
const SelectionKeyPrefix = "bin:"

// minStep is the smallest cell size treated as non-degenerate.
const minStep = 1e-9

// Key is the (column, row) cell index of a point at one level.
type Key struct {
	Column int `json:"column"`
	Row    int `json:"row"`
}

// String renders the key as "column_row".
func (k Key) String() string {
	return strconv.Itoa(k.Column) + "_" + strconv.Itoa(k.Row)
}

// SelectionKey returns the selection-state identifier for the bin.
func (k Key) SelectionKey() string {
	return SelectionKeyPrefix + k.String()
}

// ParseKey parses "column_row", with or without the selection prefix.
func ParseKey(s string) (Key, error) {
	raw := strings.TrimPrefix(s, SelectionKeyPrefix)
	col, row, ok := strings.Cut(raw, "_")
	if !ok {
		return Key{}, errors.New(errors.ErrCodeInvalidBinKey, "bin key must be column_row").WithDetail(s)
	}
	c, err := strconv.Atoi(col)
	if err != nil || c < 0 {
		return Key{}, errors.New(errors.ErrCodeInvalidBinKey, "invalid bin column").WithDetail(s)
	}
	r, err := strconv.Atoi(row)
	if err != nil || r < 0 {
		return Key{}, errors.New(errors.ErrCodeInvalidBinKey, "invalid bin row").WithDetail(s)
	}
	return Key{Column: c, Row: r}, nil
}

// IsSelectionKey reports whether s names a bin rather than an entity.
func IsSelectionKey(s string) bool {
	return strings.HasPrefix(s, SelectionKeyPrefix)
}

// Bounds is the axis-aligned extent of a coordinate set.
type Bounds struct {
	XMin float64 `json:"x_min"`
	XMax float64 `json:"x_max"`
	YMin float64 `json:"y_min"`
	YMax float64 `json:"y_max"`
}

// Box is the geometric extent of one cell.
type Box = Bounds

// BoundsOf returns the extent of the finite records. ok is false when none
// are finite.
func BoundsOf(records []entity.Record) (b Bounds, ok bool) {
	for _, r := range records {
		if !r.Finite() {
			continue
		}
		if !ok {
			b = Bounds{XMin: r.X, XMax: r.X, YMin: r.Y, YMax: r.Y}
			ok = true
			continue
		}
		if r.X < b.XMin {
			b.XMin = r.X
		}
		if r.X > b.XMax {
			b.XMax = r.X
		}
		if r.Y < b.YMin {
			b.YMin = r.Y
		}
		if r.Y > b.YMax {
			b.YMax = r.Y
		}
	}
	return b, ok
}

// Valid reports whether the bounds are finite and ordered.
func (b Bounds) Valid() bool {
	for _, v := range []float64{b.XMin, b.XMax, b.YMin, b.YMax} {
		if !entity.IsFinite(v) {
			return false
		}
	}
	return b.XMax >= b.XMin && b.YMax >= b.YMin
}

// CellSize returns the cell width and height at level. A degenerate axis
// (all points share one coordinate) uses a unit step.
func (b Bounds) CellSize(level int) (w, h float64) {
	w = (b.XMax - b.XMin) / float64(level)
	h = (b.YMax - b.YMin) / float64(level)
	if w < minStep {
		w = 1.0
	}
	if h < minStep {
		h = 1.0
	}
	return w, h
}

// KeyFor returns the cell holding (x, y) at level. Column and row clamp to
// [0, level-1] so points on the maximum edge land in the last cell.
func (b Bounds) KeyFor(x, y float64, level int) Key {
	w, h := b.CellSize(level)
	return Key{
		Column: clampIndex(math.Floor((x-b.XMin)/w), level),
		Row:    clampIndex(math.Floor((y-b.YMin)/h), level),
	}
}

// Cell returns the geometric bounds of k at level.
func (b Bounds) Cell(k Key, level int) Box {
	w, h := b.CellSize(level)
	return Box{
		XMin: b.XMin + float64(k.Column)*w,
		XMax: b.XMin + float64(k.Column+1)*w,
		YMin: b.YMin + float64(k.Row)*h,
		YMax: b.YMin + float64(k.Row+1)*h,
	}
}

func clampIndex(v float64, level int) int {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > float64(level-1) {
		return level - 1
	}
	return int(v)
}
