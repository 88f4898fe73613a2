// Package selection holds the per-session facet state keyed by entity
// identifier or bin selection key.
package selection

import (
	"sort"
	"strings"
	"sync"

	"github.com/ryanyen2/Scholet/pkg/errors"
)

// Facet names one independent dimension of a key's state.
type Facet string

const (
	FacetSelected    Facet = "selected"
	FacetHighlighted Facet = "highlighted"
	FacetObscured    Facet = "obscured"
	FacetGroup       Facet = "group"
)

// ParseFacet maps a name to a Facet.
func ParseFacet(s string) (Facet, error) {
	switch f := Facet(strings.ToLower(strings.TrimSpace(s))); f {
	case FacetSelected, FacetHighlighted, FacetObscured, FacetGroup:
		return f, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidFacet, "unknown selection facet").WithDetail(s)
	}
}

// Facets is the state of one key. An empty Group means no group.
type Facets struct {
	Selected    bool   `json:"selected"`
	Highlighted bool   `json:"highlighted"`
	Obscured    bool   `json:"obscured"`
	Group       string `json:"group,omitempty"`
}

// IsZero reports whether every facet is unset.
func (f Facets) IsZero() bool {
	return f == Facets{}
}

// Value is the payload of a single-facet write: Flag for boolean facets,
// Label for the group facet.
type Value struct {
	Flag  bool
	Label string
}

// Flag builds a boolean facet value.
func Flag(b bool) Value { return Value{Flag: b} }

// Label builds a group facet value. The empty label clears the group.
func Label(s string) Value { return Value{Label: s} }

// With returns f with facet set to v.
func (f Facets) With(facet Facet, v Value) (Facets, error) {
	switch facet {
	case FacetSelected:
		f.Selected = v.Flag
	case FacetHighlighted:
		f.Highlighted = v.Flag
	case FacetObscured:
		f.Obscured = v.Flag
	case FacetGroup:
		f.Group = v.Label
	default:
		return f, errors.New(errors.ErrCodeInvalidFacet, "unknown selection facet").WithDetail(string(facet))
	}
	return f, nil
}

// Reader is the read side of a selection state.
type Reader interface {
	Lookup(key string) (Facets, bool)
}

// Snapshot is a point-in-time copy of a State.
type Snapshot map[string]Facets

// Lookup implements Reader.
func (s Snapshot) Lookup(key string) (Facets, bool) {
	f, ok := s[key]
	return f, ok
}

// State is a concurrency-safe map from key to Facets. Writes are serialized;
// entries are created on first write and survive until Reset. State does not
// enforce relations between facets.
type State struct {
	mu       sync.RWMutex
	entries  map[string]Facets
	revision uint64
}

// NewState returns an empty State.
func NewState() *State {
	return &State{entries: make(map[string]Facets)}
}

// Apply sets one facet for key, creating the entry when absent. The only
// error is an unknown facet.
func (s *State) Apply(key string, facet Facet, v Value) error {
	var applyErr error
	s.Update(key, func(f Facets) Facets {
		next, err := f.With(facet, v)
		if err != nil {
			applyErr = err
			return f
		}
		return next
	})
	return applyErr
}

// Update replaces the facets of key with fn(current) under the write lock.
func (s *State) Update(key string, fn func(Facets) Facets) Facets {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := fn(s.entries[key])
	s.entries[key] = next
	s.revision++
	return next
}

// Query returns the facets for key; unknown keys report all facets unset.
func (s *State) Query(key string) Facets {
	f, _ := s.Lookup(key)
	return f
}

// Lookup implements Reader.
func (s *State) Lookup(key string) (Facets, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.entries[key]
	return f, ok
}

// Reset clears every entry.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Facets)
	s.revision++
}

// Snapshot copies the current entries.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(Snapshot, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Len returns the number of entries.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Keys returns the entry keys in sorted order.
func (s *State) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Revision counts mutations since creation.
func (s *State) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}
