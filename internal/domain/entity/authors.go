package entity

import (
	"strconv"
	"strings"
)

// Author attribute names produced by AggregateAuthors.
const (
	AttrName        = "name"
	AttrAffiliation = "affiliation"
	AttrPaperIDs    = "paper_ids"
	AttrPaperCount  = "paper_count"
)

// AuthorIDPrefix namespaces derived author identifiers away from paper ids.
const AuthorIDPrefix = "author:"

// AuthorSeparator splits multi-valued author columns.
const AuthorSeparator = ";"

type authorAcc struct {
	name        string
	affiliation string
	sumX, sumY  float64
	paperIDs    []string
}

// AggregateAuthors derives one author record per distinct name in column
// across the paper records of papers. An author sits at the mean coordinate
// of its papers. Authors are ordered by first appearance. When the
// affiliation column has as many entries as the author column, the first
// affiliation seen for an author is kept.
func AggregateAuthors(papers *Set, column string) *Set {
	if column == "" {
		column = AttrAuthorNames
	}

	byName := make(map[string]*authorAcc)
	var order []string

	for _, p := range papers.Records() {
		if p.Kind != KindPaper {
			continue
		}
		names := splitList(p.Attr(column))
		affs := splitList(p.Attr(AttrAuthorAffiliation))
		seen := make(map[string]struct{}, len(names))
		for i, name := range names {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}

			acc, ok := byName[name]
			if !ok {
				acc = &authorAcc{name: name}
				byName[name] = acc
				order = append(order, name)
			}
			if acc.affiliation == "" && len(affs) == len(names) {
				acc.affiliation = affs[i]
			}
			acc.sumX += p.X
			acc.sumY += p.Y
			acc.paperIDs = append(acc.paperIDs, p.ID)
		}
	}

	out := make([]Record, 0, len(order))
	for _, name := range order {
		acc := byName[name]
		n := float64(len(acc.paperIDs))
		attrs := map[string]string{
			AttrName:       acc.name,
			AttrPaperIDs:   strings.Join(acc.paperIDs, AuthorSeparator),
			AttrPaperCount: strconv.Itoa(len(acc.paperIDs)),
		}
		if acc.affiliation != "" {
			attrs[AttrAffiliation] = acc.affiliation
		}
		out = append(out, Record{
			ID:         AuthorIDPrefix + acc.name,
			X:          acc.sumX / n,
			Y:          acc.sumY / n,
			Kind:       KindAuthor,
			Attributes: attrs,
		})
	}
	set, _ := NewSet(out)
	return set
}

// Merge returns a Set holding the records of a followed by those of b.
func Merge(a, b *Set) (*Set, Stats) {
	records := make([]Record, 0, a.Len()+b.Len())
	records = append(records, a.Records()...)
	records = append(records, b.Records()...)
	return NewSet(records)
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, AuthorSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
