package binning

import (
	"github.com/ryanyen2/Scholet/internal/domain/selection"
)

// Point is a 2D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Summary tallies one attribute over a bin's members.
type Summary struct {
	Column   string         `json:"column"`
	Counts   map[string]int `json:"counts"`
	Dominant string         `json:"dominant,omitempty"`
}

// Group is the aggregate of the entities sharing one cell at one level.
// Geometry fields are fixed by the binning pass; Selected and Label are
// copied forward from selection state by Overlay.
type Group struct {
	Key      Key      `json:"key"`
	ID       string   `json:"id"`
	Level    int      `json:"level"`
	Centroid Point    `json:"centroid"`
	Box      Box      `json:"box"`
	Members  []string `json:"members"`
	Selected bool     `json:"selected"`
	Label    string   `json:"group,omitempty"`
	Summary  *Summary `json:"summary,omitempty"`
}

// Count returns the number of members.
func (g Group) Count() int { return len(g.Members) }

// Overlay returns copies of groups with Selected and Label resolved against
// state. A group is selected when its bin key is selected or any member is.
// Its label is the bin key's group, else the first member group found in
// member order. groups is not modified.
func Overlay(groups []Group, state selection.Reader) []Group {
	out := make([]Group, len(groups))
	for i, g := range groups {
		g.Selected = false
		g.Label = ""
		if state != nil {
			if f, ok := state.Lookup(g.Key.SelectionKey()); ok {
				g.Selected = f.Selected
				g.Label = f.Group
			}
			for _, id := range g.Members {
				if g.Selected && g.Label != "" {
					break
				}
				f, ok := state.Lookup(id)
				if !ok {
					continue
				}
				if f.Selected {
					g.Selected = true
				}
				if g.Label == "" && f.Group != "" {
					g.Label = f.Group
				}
			}
		}
		out[i] = g
	}
	return out
}

func newSummary(column string, values []string) *Summary {
	s := &Summary{Column: column, Counts: make(map[string]int)}
	best := 0
	for _, v := range values {
		if v == "" {
			continue
		}
		s.Counts[v]++
		n := s.Counts[v]
		if n > best || (n == best && v < s.Dominant) {
			best = n
			s.Dominant = v
		}
	}
	return s
}
