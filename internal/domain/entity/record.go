// Package entity holds the normalized research entities (papers and
// authors) placed on the 2D projection, along with their ingestion from
// CSV/JSON exports.
package entity

import (
	"math"
	"sort"

	"github.com/ryanyen2/Scholet/pkg/errors"
)

// Kind discriminates papers from authors.
type Kind string

const (
	KindPaper  Kind = "paper"
	KindAuthor Kind = "author"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindPaper || k == KindAuthor
}

// Well-known attribute names found in the source exports. The bag may carry
// any other column; these are only the ones the service reads.
const (
	AttrTitle             = "Title"
	AttrAbstract          = "Abstract"
	AttrAuthorNames       = "AuthorNames"
	AttrAuthorNamesDedup  = "AuthorNames-Deduped"
	AttrAuthorAffiliation = "AuthorAffiliation"
	AttrCluster           = "cluster"
	AttrFaculty           = "faculty"
	AttrDepartment        = "department"
	AttrFocusTag          = "focus_tag"
	AttrFocusLabel        = "focus_label"
)

// SelectableColumns lists the attributes usable for per-bin summaries.
var SelectableColumns = []string{AttrCluster, AttrFaculty, AttrDepartment, AttrFocusTag}

// IsSelectableColumn reports whether col may be summarized per bin.
func IsSelectableColumn(col string) bool {
	for _, c := range SelectableColumns {
		if c == col {
			return true
		}
	}
	return false
}

// Record is a paper or author with a fixed projection coordinate and a
// free-form attribute bag. Records are immutable once constructed.
type Record struct {
	ID         string            `json:"id"`
	X          float64           `json:"x"`
	Y          float64           `json:"y"`
	Kind       Kind              `json:"kind"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NewRecord validates its inputs and copies attrs.
func NewRecord(id string, x, y float64, kind Kind, attrs map[string]string) (Record, error) {
	if id == "" {
		return Record{}, errors.NewValidation("entity id cannot be empty")
	}
	if !IsFinite(x) || !IsFinite(y) {
		return Record{}, errors.NewValidation("entity coordinates must be finite").
			WithDetail("id=" + id)
	}
	if !kind.Valid() {
		return Record{}, errors.NewValidation("unknown entity kind").WithDetail(string(kind))
	}
	var bag map[string]string
	if len(attrs) > 0 {
		bag = make(map[string]string, len(attrs))
		for k, v := range attrs {
			bag[k] = v
		}
	}
	return Record{ID: id, X: x, Y: y, Kind: kind, Attributes: bag}, nil
}

// Attr returns the attribute value for key, or "" when absent.
func (r Record) Attr(key string) string {
	return r.Attributes[key]
}

// AttrKeys returns the attribute names in sorted order.
func (r Record) AttrKeys() []string {
	keys := make([]string, 0, len(r.Attributes))
	for k := range r.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Finite reports whether both coordinates are finite reals.
func (r Record) Finite() bool {
	return IsFinite(r.X) && IsFinite(r.Y)
}

// IsFinite reports whether v is neither NaN nor ±Inf.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
