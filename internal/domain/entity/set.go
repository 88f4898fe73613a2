package entity

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"strconv"
)

// Stats counts what normalization dropped.
type Stats struct {
	Accepted   int `json:"accepted"`
	NonFinite  int `json:"non_finite"`
	Duplicates int `json:"duplicates"`
	Malformed  int `json:"malformed"`
}

// Set is an ordered, de-duplicated collection of records. The first record
// seen for an identifier wins; later duplicates and non-finite records are
// dropped and counted.
type Set struct {
	records []Record
	index   map[string]int
	version string
}

// NewSet normalizes records into a Set.
func NewSet(records []Record) (*Set, Stats) {
	s := &Set{
		records: make([]Record, 0, len(records)),
		index:   make(map[string]int, len(records)),
	}
	var st Stats
	for _, r := range records {
		if !r.Finite() {
			st.NonFinite++
			continue
		}
		if _, dup := s.index[r.ID]; dup {
			st.Duplicates++
			continue
		}
		s.index[r.ID] = len(s.records)
		s.records = append(s.records, r)
	}
	st.Accepted = len(s.records)
	s.version = fingerprint(s.records)
	return s, st
}

// Records returns the records in insertion order. The slice must not be
// modified.
func (s *Set) Records() []Record {
	if s == nil {
		return nil
	}
	return s.records
}

// Len returns the number of records.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// Get returns the record with id.
func (s *Set) Get(id string) (Record, bool) {
	if s == nil {
		return Record{}, false
	}
	i, ok := s.index[id]
	if !ok {
		return Record{}, false
	}
	return s.records[i], true
}

// Contains reports whether id is in the set.
func (s *Set) Contains(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Version is a content fingerprint over identifiers and coordinates. Two
// sets with the same records in the same order share a version.
func (s *Set) Version() string {
	if s == nil {
		return ""
	}
	return s.version
}

// Filter returns a new Set with the records of the given kind.
func (s *Set) Filter(kind Kind) *Set {
	out := make([]Record, 0, s.Len())
	for _, r := range s.Records() {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	filtered, _ := NewSet(out)
	return filtered
}

func fingerprint(records []Record) string {
	h := fnv.New64a()
	var buf [8]byte
	for _, r := range records {
		_, _ = h.Write([]byte(r.ID))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(r.Kind))
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(r.X))
		_, _ = h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(r.Y))
		_, _ = h.Write(buf[:])
		// Attribute changes must change the version.
		for _, k := range r.AttrKeys() {
			_, _ = h.Write([]byte(k))
			_, _ = h.Write([]byte{0})
			_, _ = h.Write([]byte(r.Attributes[k]))
			_, _ = h.Write([]byte{0})
		}
		_, _ = h.Write([]byte{1})
	}
	return strconv.FormatUint(h.Sum64(), 16) + "-" + strconv.Itoa(len(records))
}
