package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateAuthors(t *testing.T) {
	papers, _ := NewSet([]Record{
		{ID: "p1", X: 0, Y: 0, Kind: KindPaper, Attributes: map[string]string{
			AttrAuthorNames:       "Ada Lovelace; Alan Turing",
			AttrAuthorAffiliation: "Analytical;Bletchley",
		}},
		{ID: "p2", X: 4, Y: 2, Kind: KindPaper, Attributes: map[string]string{
			AttrAuthorNames: "Alan Turing;Alan Turing",
		}},
		{ID: "p3", X: 9, Y: 9, Kind: KindPaper},
		{ID: "author:x", X: 1, Y: 1, Kind: KindAuthor, Attributes: map[string]string{
			AttrAuthorNames: "Ignored",
		}},
	})

	authors := AggregateAuthors(papers, "")
	require.Equal(t, 2, authors.Len())
	assert.Equal(t, []string{"author:Ada Lovelace", "author:Alan Turing"}, ids(authors))

	ada, _ := authors.Get("author:Ada Lovelace")
	assert.Equal(t, KindAuthor, ada.Kind)
	assert.Equal(t, 0.0, ada.X)
	assert.Equal(t, "Analytical", ada.Attr(AttrAffiliation))
	assert.Equal(t, "1", ada.Attr(AttrPaperCount))

	alan, _ := authors.Get("author:Alan Turing")
	assert.Equal(t, 2.0, alan.X)
	assert.Equal(t, 1.0, alan.Y)
	assert.Equal(t, "p1;p2", alan.Attr(AttrPaperIDs))
	assert.Equal(t, "2", alan.Attr(AttrPaperCount))
	assert.Equal(t, "Bletchley", alan.Attr(AttrAffiliation))
}

func TestAggregateAuthors_CustomColumn(t *testing.T) {
	papers, _ := NewSet([]Record{
		{ID: "p1", X: 1, Y: 1, Kind: KindPaper, Attributes: map[string]string{
			AttrAuthorNames:      "A. Lovelace",
			AttrAuthorNamesDedup: "Ada Lovelace",
		}},
	})
	authors := AggregateAuthors(papers, AttrAuthorNamesDedup)
	assert.Equal(t, []string{"author:Ada Lovelace"}, ids(authors))
}

func TestMerge(t *testing.T) {
	a, _ := NewSet([]Record{{ID: "p1", Kind: KindPaper}})
	b, _ := NewSet([]Record{{ID: "p1", X: 3, Kind: KindPaper}, {ID: "author:z", Kind: KindAuthor}})
	m, st := Merge(a, b)
	assert.Equal(t, []string{"p1", "author:z"}, ids(m))
	assert.Equal(t, 1, st.Duplicates)
}
