package entity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanyen2/Scholet/pkg/errors"
)

func TestKind_Valid(t *testing.T) {
	assert.True(t, KindPaper.Valid())
	assert.True(t, KindAuthor.Valid())
	assert.False(t, Kind("scholar").Valid())
	assert.False(t, Kind("").Valid())
}

func TestIsSelectableColumn(t *testing.T) {
	assert.True(t, IsSelectableColumn(AttrCluster))
	assert.True(t, IsSelectableColumn(AttrFocusTag))
	assert.False(t, IsSelectableColumn(AttrFocusLabel))
	assert.False(t, IsSelectableColumn(AttrTitle))
}

func TestNewRecord_Success(t *testing.T) {
	attrs := map[string]string{AttrTitle: "Sparse grids", AttrCluster: "3"}
	r, err := NewRecord("p1", 1.5, -2, KindPaper, attrs)
	require.NoError(t, err)
	assert.Equal(t, "p1", r.ID)
	assert.Equal(t, 1.5, r.X)
	assert.Equal(t, -2.0, r.Y)
	assert.Equal(t, "Sparse grids", r.Attr(AttrTitle))
	assert.Equal(t, "", r.Attr("missing"))

	// The bag is copied.
	attrs[AttrTitle] = "changed"
	assert.Equal(t, "Sparse grids", r.Attr(AttrTitle))
}

func TestNewRecord_EmptyID(t *testing.T) {
	_, err := NewRecord("", 0, 0, KindPaper, nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestNewRecord_NonFinite(t *testing.T) {
	_, err := NewRecord("p1", math.NaN(), 0, KindPaper, nil)
	assert.Error(t, err)
	_, err = NewRecord("p1", 0, math.Inf(-1), KindPaper, nil)
	assert.Error(t, err)
}

func TestNewRecord_UnknownKind(t *testing.T) {
	_, err := NewRecord("p1", 0, 0, Kind("venue"), nil)
	assert.Error(t, err)
}

func TestRecord_AttrKeys_Sorted(t *testing.T) {
	r, err := NewRecord("p1", 0, 0, KindPaper, map[string]string{"b": "1", "a": "2", "c": "3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, r.AttrKeys())
}

func TestNewSet_DropsNonFiniteAndDuplicates(t *testing.T) {
	records := []Record{
		{ID: "a", X: 0, Y: 0, Kind: KindPaper},
		{ID: "b", X: math.NaN(), Y: 0, Kind: KindPaper},
		{ID: "a", X: 5, Y: 5, Kind: KindPaper},
		{ID: "c", X: 1, Y: math.Inf(1), Kind: KindPaper},
		{ID: "d", X: 2, Y: 2, Kind: KindAuthor},
	}
	s, st := NewSet(records)
	assert.Equal(t, Stats{Accepted: 2, NonFinite: 2, Duplicates: 1}, st)
	require.Equal(t, 2, s.Len())

	a, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 0.0, a.X, "first record for an id wins")
	assert.True(t, s.Contains("d"))
	assert.False(t, s.Contains("b"))
	assert.Equal(t, []string{"a", "d"}, ids(s))
}

func TestSet_Version(t *testing.T) {
	r1 := []Record{{ID: "a", X: 0, Y: 0, Kind: KindPaper}, {ID: "b", X: 1, Y: 1, Kind: KindPaper}}
	r2 := []Record{{ID: "a", X: 0, Y: 0, Kind: KindPaper}, {ID: "b", X: 1, Y: 1.5, Kind: KindPaper}}

	s1, _ := NewSet(r1)
	s1b, _ := NewSet(r1)
	s2, _ := NewSet(r2)

	assert.NotEmpty(t, s1.Version())
	assert.Equal(t, s1.Version(), s1b.Version())
	assert.NotEqual(t, s1.Version(), s2.Version())
}

func TestSet_VersionCoversAttributes(t *testing.T) {
	withCluster := func(cluster string) *Set {
		s, _ := NewSet([]Record{
			{ID: "a", X: 0, Y: 0, Kind: KindPaper, Attributes: map[string]string{"cluster": cluster, "year": "2021"}},
			{ID: "b", X: 1, Y: 1, Kind: KindPaper, Attributes: map[string]string{"year": "2021", "cluster": "1"}},
		})
		return s
	}
	assert.Equal(t, withCluster("3").Version(), withCluster("3").Version())
	assert.NotEqual(t, withCluster("3").Version(), withCluster("4").Version())

	// Key and value boundaries are not interchangeable.
	s1, _ := NewSet([]Record{{ID: "a", Kind: KindPaper, Attributes: map[string]string{"ab": "c"}}})
	s2, _ := NewSet([]Record{{ID: "a", Kind: KindPaper, Attributes: map[string]string{"a": "bc"}}})
	assert.NotEqual(t, s1.Version(), s2.Version())

	bare, _ := NewSet([]Record{{ID: "a", Kind: KindPaper}})
	empty, _ := NewSet([]Record{{ID: "a", Kind: KindPaper, Attributes: map[string]string{}}})
	assert.Equal(t, bare.Version(), empty.Version())
}

func TestSet_Filter(t *testing.T) {
	s, _ := NewSet([]Record{
		{ID: "p1", Kind: KindPaper},
		{ID: "author:x", Kind: KindAuthor},
		{ID: "p2", Kind: KindPaper},
	})
	assert.Equal(t, []string{"p1", "p2"}, ids(s.Filter(KindPaper)))
	assert.Equal(t, []string{"author:x"}, ids(s.Filter(KindAuthor)))
}

func TestSet_NilSafe(t *testing.T) {
	var s *Set
	assert.Equal(t, 0, s.Len())
	assert.Nil(t, s.Records())
	assert.Equal(t, "", s.Version())
	assert.False(t, s.Contains("x"))
}

func ids(s *Set) []string {
	out := make([]string, 0, s.Len())
	for _, r := range s.Records() {
		out = append(out, r.ID)
	}
	return out
}
