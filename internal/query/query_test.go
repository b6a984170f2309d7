package query

import (
	"context"
	"errors"
	"testing"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
	bquery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ontosearch/internal/index"
	"github.com/Aman-CERP/ontosearch/internal/item"
)

type recordingHandler struct {
	keywords  []Keyword
	compounds []CompoundKeyword
}

func (h *recordingHandler) HandleKeyword(k Keyword)          { h.keywords = append(h.keywords, k) }
func (h *recordingHandler) HandleCompound(c CompoundKeyword) { h.compounds = append(h.compounds, c) }

func fixture(t *testing.T) (*item.Memory, *index.Reader) {
	t.Helper()
	coll := item.NewMemory("fruit", []item.Item{
		{ID: "ex:A", DisplayName: "Apple", Annotations: []item.Annotation{
			{Property: "definition", Value: "A pome fruit"},
		}},
		{ID: "ex:B", DisplayName: "Banana", Annotations: []item.Annotation{
			{Property: "definition", Value: "A long berry"},
			{Property: "comment", Value: "yellow when ripe"},
		}},
	})
	ix := index.NewIndexer(index.Config{})
	h := index.NewHandle(coll.ID(), "")
	require.NoError(t, ix.Rebuild(context.Background(), h, index.AllCategories(), coll.Snapshot(), nil))
	r, err := ix.Reader(h)
	require.NoError(t, err)
	return coll, r
}

// run executes every query of the batch and collects the resolved results.
func run(t *testing.T, r *index.Reader, qs SearchQueries) *ResultSet {
	t.Helper()
	set := NewResultSet()
	for _, q := range qs.All() {
		if q.IsEmpty() {
			continue
		}
		req := bleve.NewSearchRequestOptions(q.Predicate(), 100, 0, false)
		req.Fields = q.Fields()
		res, err := r.Search(context.Background(), req)
		require.NoError(t, err)
		for _, hit := range res.Hits {
			if got, err := q.Resolver().Resolve(q.Category(), hit); err == nil {
				set.Add(got)
			}
		}
	}
	return set
}

func TestParseKeywords(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Keyword
	}{
		{"single word", "apple", []Keyword{{Text: "apple"}}},
		{"whitespace separated", "  red \t apple ", []Keyword{{Text: "red"}, {Text: "apple"}}},
		{"quoted phrase kept whole", `"red apple" pie`, []Keyword{{Text: `"red apple"`}, {Text: "pie"}}},
		{"field qualified", `definition:pome`, []Keyword{{Field: "definition", Text: "pome"}}},
		{"field qualified phrase", `rdfs.label:"red apple"`, []Keyword{{Field: "rdfs.label", Text: `"red apple"`}}},
		{"unterminated quote runs to end", `x "open phrase`, []Keyword{{Text: "x"}, {Text: `"open phrase`}}},
		{"leading colon is not a field", "::x", []Keyword{{Text: "::x"}}},
		{"iri is not field qualified", "http://example.org/onto#Apple", []Keyword{{Text: "http://example.org/onto#Apple"}}},
		{"prefixed name splits at the colon", "ex:B", []Keyword{{Field: "ex", Text: "B"}}},
		{"empty value", "definition:", []Keyword{{Field: "definition"}}},
		{"blank", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseKeywords(tt.in))
		})
	}
}

func TestDispatch(t *testing.T) {
	// Given: a single keyword
	h := &recordingHandler{}
	Dispatch("apple", h)
	assert.Equal(t, []Keyword{{Text: "apple"}}, h.keywords)
	assert.Empty(t, h.compounds)

	// Given: several keywords
	h = &recordingHandler{}
	Dispatch("red apple", h)
	assert.Empty(t, h.keywords)
	require.Len(t, h.compounds, 1)
	assert.Equal(t, []Keyword{{Text: "red"}, {Text: "apple"}}, h.compounds[0].Flatten())

	// Given: blank text
	h = &recordingHandler{}
	Dispatch("  ", h)
	assert.Empty(t, h.keywords)
	assert.Empty(t, h.compounds)
}

func TestCompoundKeyword_FlattensNestedGroups(t *testing.T) {
	c := CompoundKeyword{Parts: []Term{
		Keyword{Text: "a"},
		CompoundKeyword{Parts: []Term{Keyword{Text: "b"}, CompoundKeyword{Parts: []Term{Keyword{Field: "p", Text: "c"}}}}},
		nil,
	}}
	assert.Equal(t, []Keyword{{Text: "a"}, {Text: "b"}, {Field: "p", Text: "c"}}, c.Flatten())
}

func TestKeyword_Predicates(t *testing.T) {
	assert.True(t, Keyword{Text: "  "}.IsBlank())
	assert.False(t, Keyword{Text: "x"}.IsBlank())
	assert.True(t, Keyword{Field: "p", Text: "x"}.HasField())
	assert.Equal(t, "p:x", Keyword{Field: "p", Text: "x"}.String())
}

func TestCompileFragment(t *testing.T) {
	// Plain words become lower-cased substring wildcards
	q, err := compileFragment(index.FieldDisplayName, "Apple")
	require.NoError(t, err)
	wq, ok := q.(*bquery.WildcardQuery)
	require.True(t, ok)
	assert.Equal(t, "*apple*", wq.Wildcard)
	assert.Equal(t, index.FieldDisplayName, wq.Field())

	// Query syntax is accepted
	_, err = compileFragment(index.FieldDisplayName, `"red apple"`)
	assert.NoError(t, err)
	_, err = compileFragment(index.FieldDisplayName, "app*")
	assert.NoError(t, err)

	// Malformed syntax fails
	_, err = compileFragment(index.FieldDisplayName, `"this is the time`)
	assert.Error(t, err)
}

func TestBuilder_IsBuilderFor(t *testing.T) {
	plain := NewBuilder(index.CategoryDisplayName, nil, nil)
	ident := NewBuilder(index.CategoryIdentifier, nil, nil)
	filtered := NewBuilder(index.CategoryFilteredAnnotation, nil, nil)

	assert.True(t, plain.IsBuilderFor(Keyword{Text: "x"}))
	assert.False(t, plain.IsBuilderFor(Keyword{Field: "p", Text: "x"}))
	assert.True(t, ident.IsBuilderFor(Keyword{Text: "x"}))
	assert.True(t, ident.IsBuilderFor(Keyword{Field: "p", Text: "x"}))
	assert.False(t, filtered.IsBuilderFor(Keyword{Text: "x"}))
	assert.True(t, filtered.IsBuilderFor(Keyword{Field: "p", Text: "x"}))
}

func TestBuilder_BlankAndMalformedKeywordsContributeNothing(t *testing.T) {
	b := NewBuilder(index.CategoryDisplayName, nil, nil)

	// When: only blank and malformed keywords are added
	b.Add(Keyword{Text: "   "})
	b.Add(Keyword{Text: `"unbalanced`})

	// Then: the query has no predicate but keeps its category
	q := b.Build()
	assert.True(t, q.IsEmpty())
	assert.Equal(t, index.CategoryDisplayName, q.Category())

	// When: a valid keyword follows
	b.Add(Keyword{Text: "apple"})
	assert.False(t, b.Build().IsEmpty())
}

func TestBuilder_FragmentsAreConjunctive(t *testing.T) {
	coll, r := fixture(t)
	resolver := NewDocumentResolver(coll)

	b := NewBuilder(index.CategoryAnnotationValue, resolver, nil)
	b.Add(Keyword{Text: "long"})
	b.Add(Keyword{Text: "berry"})
	assert.Equal(t, []item.ID{"ex:B"}, run(t, r, NewSearchQueries(b.Build())).IDs())

	b = NewBuilder(index.CategoryAnnotationValue, resolver, nil)
	b.Add(Keyword{Text: "pome"})
	b.Add(Keyword{Text: "berry"})
	assert.Empty(t, run(t, r, NewSearchQueries(b.Build())).IDs())
}

func TestCompile_IdentifiersMatchAsTyped(t *testing.T) {
	// Given: items identified by a full IRI and by a prefixed name
	coll := item.NewMemory("onto", []item.Item{
		{ID: "http://example.org/onto#Apple", DisplayName: "Apple"},
		{ID: "ex:B", DisplayName: "Banana"},
	})
	ix := index.NewIndexer(index.Config{})
	h := index.NewHandle(coll.ID(), "")
	require.NoError(t, ix.Rebuild(context.Background(), h, index.AllCategories(), coll.Snapshot(), nil))
	r, err := ix.Reader(h)
	require.NoError(t, err)
	resolver := NewDocumentResolver(coll)

	tests := []struct {
		name string
		text string
		want []item.ID
	}{
		{"full iri", "http://example.org/onto#Apple", []item.ID{"http://example.org/onto#Apple"}},
		{"iri is case-insensitive", "HTTP://EXAMPLE.ORG/ONTO#APPLE", []item.ID{"http://example.org/onto#Apple"}},
		{"iri fragment", "onto#apple", []item.ID{"http://example.org/onto#Apple"}},
		{"prefixed name", "ex:B", []item.ID{"ex:B"}},
		{"quoted prefixed name", `"ex:B"`, []item.ID{"ex:B"}},
		{"unknown prefixed name", "ex:Z", []item.ID{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// When: the text is compiled for every category
			got := run(t, r, Compile(tt.text, index.AllCategories(), resolver, nil))

			// Then: the identifier category finds the item
			assert.Equal(t, tt.want, got.IDs())
		})
	}
}

func TestFilteredBuilder(t *testing.T) {
	coll, r := fixture(t)
	resolver := NewDocumentResolver(coll)
	cats := index.NewCategorySet(index.CategoryFilteredAnnotation)

	tests := []struct {
		name string
		text string
		want []item.ID
	}{
		{"single property", "definition:pome", []item.ID{"ex:A"}},
		{"property scopes the value", "comment:pome", []item.ID{}},
		{"same property is AND", "definition:pome definition:fruit", []item.ID{"ex:A"}},
		{"same property needs one annotation", "definition:pome definition:berry", []item.ID{}},
		{"distinct properties are OR", "definition:pome comment:yellow", []item.ID{"ex:A", "ex:B"}},
		{"unqualified keywords are ignored", "pome", []item.ID{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := run(t, r, Compile(tt.text, cats, resolver, nil))
			assert.Equal(t, tt.want, got.IDs())
		})
	}
}

func TestCompile_MalformedFragmentDoesNotBlockOtherCategories(t *testing.T) {
	coll, r := fixture(t)

	// Given: a valid unqualified keyword and a malformed filtered keyword
	qs := Compile(`apple definition:"pome`, index.AllCategories(), NewDocumentResolver(coll), nil)

	// Then: every active category has a slot
	require.Equal(t, 4, qs.Len())
	assert.Equal(t, index.CategoryDisplayName, qs.At(0).Category())
	assert.Equal(t, index.CategoryFilteredAnnotation, qs.At(3).Category())

	// And: only the filtered builder dropped its keyword
	assert.False(t, qs.At(0).IsEmpty())
	assert.True(t, qs.At(3).IsEmpty())

	// And: the batch still finds the item
	assert.Equal(t, []item.ID{"ex:A"}, run(t, r, qs).IDs())
}

func TestCompile_ResultsCarryMatchDetails(t *testing.T) {
	coll, r := fixture(t)

	set := run(t, r, Compile("yellow", index.AllCategories(), NewDocumentResolver(coll), nil))

	got, ok := set.Get("ex:B")
	require.True(t, ok)
	assert.Equal(t, index.CategoryAnnotationValue, got.Category)
	assert.Equal(t, "comment", got.Field)
	assert.Equal(t, "Banana", got.Display)
	assert.Equal(t, "yellow when ripe", got.Match)
}

func TestDocumentResolver_Unresolvable(t *testing.T) {
	coll := item.NewMemory("fruit", nil)
	r := NewDocumentResolver(coll)

	_, err := r.Resolve(index.CategoryDisplayName, &search.DocumentMatch{ID: "x", Fields: map[string]interface{}{}})
	assert.True(t, errors.Is(err, ErrUnresolvable))

	_, err = r.Resolve(index.CategoryDisplayName, &search.DocumentMatch{ID: "x",
		Fields: map[string]interface{}{index.FieldItemID: "ex:gone"}})
	assert.True(t, errors.Is(err, ErrUnresolvable))
}

func TestResultSet_FirstResultWins(t *testing.T) {
	s := NewResultSet()
	assert.True(t, s.Add(Result{ItemID: "b", Category: index.CategoryDisplayName}))
	assert.True(t, s.Add(Result{ItemID: "a", Category: index.CategoryIdentifier}))
	assert.False(t, s.Add(Result{ItemID: "b", Category: index.CategoryAnnotationValue}))

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains("a"))
	results := s.Results()
	assert.Equal(t, item.ID("a"), results[0].ItemID)
	assert.Equal(t, index.CategoryDisplayName, results[1].Category)
}

func TestSearchQueries_IsImmutableCopy(t *testing.T) {
	qs := []SearchQuery{NewSearchQuery(index.CategoryDisplayName, nil, nil)}
	batch := NewSearchQueries(qs...)
	qs[0] = NewSearchQuery(index.CategoryIdentifier, nil, nil)

	assert.Equal(t, index.CategoryDisplayName, batch.At(0).Category())
	all := batch.All()
	all[0] = qs[0]
	assert.Equal(t, index.CategoryDisplayName, batch.At(0).Category())
	assert.True(t, batch.IsEmpty())
}
