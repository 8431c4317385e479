// Package search filters in-memory view snapshots for the browse pages.
//
// Filtering runs over the aggregation layer's cached snapshots rather than
// the store: the working set is small and already joined, so a linear scan
// beats a round-trip. Text matching is case-insensitive substring over the
// record's searchable fields; multiple whitespace-separated terms are OR-ed.
package search

import (
	"strings"

	"github.com/potluck-app/potluck/internal/model"
)

// Query holds the browse-page filter controls. Zero value matches
// everything.
type Query struct {
	// Text is the free-text search box contents. Split on whitespace into
	// terms; a record matches when ANY term appears in any searchable field.
	Text string
	// Tag is the cooking-implement filter. Empty means no tag filter;
	// otherwise the record's tag must match exactly (case-insensitive).
	Tag string
}

// IsZero reports whether the query filters nothing.
func (q Query) IsZero() bool {
	return strings.TrimSpace(q.Text) == "" && q.Tag == ""
}

// terms returns the lowercased whitespace-split search terms.
func (q Query) terms() []string {
	return strings.Fields(strings.ToLower(q.Text))
}

// Recipes returns the recipes matching q, preserving input order. The
// result is never nil. Text terms match against name, description, author
// and tag; the tag filter is an exact match AND-ed with the text match.
func Recipes(views []model.RecipeView, q Query) []model.RecipeView {
	out := []model.RecipeView{}
	terms := q.terms()
	tag := strings.ToLower(q.Tag)
	for _, v := range views {
		if tag != "" && strings.ToLower(v.Tags) != tag {
			continue
		}
		if !matchesAny(terms,
			v.Name,
			v.Description,
			v.Author,
			v.Tags,
		) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Communities returns the communities matching q's text terms against name,
// description and creator, preserving input order.
func Communities(views []model.CommunityView, q Query) []model.CommunityView {
	out := []model.CommunityView{}
	terms := q.terms()
	for _, v := range views {
		if !matchesAny(terms,
			v.CommunityName,
			v.Description,
			v.Creator,
		) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// matchesAny reports whether any term is a substring of any field. An empty
// term list matches everything.
func matchesAny(terms []string, fields ...string) bool {
	if len(terms) == 0 {
		return true
	}
	for _, f := range fields {
		f = strings.ToLower(f)
		for _, t := range terms {
			if strings.Contains(f, t) {
				return true
			}
		}
	}
	return false
}
