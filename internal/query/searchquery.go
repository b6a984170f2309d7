package query

import (
	bquery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/ontosearch/internal/index"
)

// SearchQuery is the compiled query of one category together with the
// resolver that maps its hits back to results. It is never modified after
// construction.
type SearchQuery struct {
	category  index.Category
	predicate bquery.Query
	resolver  HitResolver
}

// NewSearchQuery creates a SearchQuery. A nil predicate contributes no hits.
func NewSearchQuery(cat index.Category, predicate bquery.Query, resolver HitResolver) SearchQuery {
	return SearchQuery{category: cat, predicate: predicate, resolver: resolver}
}

// Category returns the category the query searches.
func (q SearchQuery) Category() index.Category { return q.category }

// Predicate returns the bleve query, or nil when the query matches nothing.
func (q SearchQuery) Predicate() bquery.Query { return q.predicate }

// Resolver returns the hit resolver of the query.
func (q SearchQuery) Resolver() HitResolver { return q.resolver }

// IsEmpty reports whether the query contributes no hits.
func (q SearchQuery) IsEmpty() bool { return q.predicate == nil }

// Fields returns the stored fields a hit must carry to be resolved.
func (q SearchQuery) Fields() []string {
	fields := []string{index.FieldItemID, q.category.Field()}
	if q.category == index.CategoryFilteredAnnotation || q.category == index.CategoryAnnotationValue {
		fields = append(fields, index.FieldAnnotationProperty)
	}
	return fields
}

// SearchQueries is an ordered batch with one query per active category.
type SearchQueries struct {
	queries []SearchQuery
}

// NewSearchQueries copies qs into a batch.
func NewSearchQueries(qs ...SearchQuery) SearchQueries {
	out := make([]SearchQuery, len(qs))
	copy(out, qs)
	return SearchQueries{queries: out}
}

// Len returns the number of queries.
func (s SearchQueries) Len() int { return len(s.queries) }

// At returns the i-th query.
func (s SearchQueries) At(i int) SearchQuery { return s.queries[i] }

// All returns a copy of the queries in order.
func (s SearchQueries) All() []SearchQuery {
	out := make([]SearchQuery, len(s.queries))
	copy(out, s.queries)
	return out
}

// IsEmpty reports whether no query in the batch has a predicate.
func (s SearchQueries) IsEmpty() bool {
	for _, q := range s.queries {
		if !q.IsEmpty() {
			return false
		}
	}
	return true
}
