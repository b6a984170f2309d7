package query

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	bquery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/ontosearch/internal/index"
)

// Builder accumulates keywords for one search category into a query.
type Builder interface {
	// Category returns the category the builder produces a query for.
	Category() index.Category

	// IsBuilderFor reports whether k belongs to this builder. Unqualified
	// keywords belong to the plain field builders; field-qualified ones
	// belong to the filtered annotation builder. The identifier builder
	// takes both, reading a qualified keyword as a prefixed name.
	IsBuilderFor(k Keyword) bool

	// Add AND-combines k into the query. Blank keywords are ignored, and a
	// keyword that does not parse is logged and contributes nothing.
	Add(k Keyword)

	// Build returns the accumulated query. It never fails; a builder that
	// accepted nothing yields a query without predicate.
	Build() SearchQuery
}

// NewBuilder returns the builder for a category.
func NewBuilder(cat index.Category, resolver HitResolver, logger *slog.Logger) Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if cat == index.CategoryFilteredAnnotation {
		return &filteredBuilder{resolver: resolver, logger: logger}
	}
	return &fieldBuilder{category: cat, resolver: resolver, logger: logger}
}

// fieldBuilder targets the single field of an unqualified category.
type fieldBuilder struct {
	category  index.Category
	resolver  HitResolver
	logger    *slog.Logger
	fragments []bquery.Query
}

func (b *fieldBuilder) Category() index.Category { return b.category }

func (b *fieldBuilder) IsBuilderFor(k Keyword) bool {
	return !k.HasField() || b.category == index.CategoryIdentifier
}

func (b *fieldBuilder) Add(k Keyword) {
	if k.IsBlank() {
		return
	}
	var (
		q   bquery.Query
		err error
	)
	if b.category == index.CategoryIdentifier {
		q, err = compileIdentifier(k.String())
	} else {
		q, err = compileFragment(b.category.Field(), k.Text)
	}
	if err != nil {
		b.logger.Debug("query_fragment_rejected",
			slog.String("category", b.category.String()),
			slog.String("keyword", k.String()),
			slog.String("error", err.Error()))
		return
	}
	b.fragments = append(b.fragments, q)
}

func (b *fieldBuilder) Build() SearchQuery {
	return NewSearchQuery(b.category, conjunction(b.fragments), b.resolver)
}

// filteredBuilder matches annotation values of explicitly named properties.
// Fragments for the same property must hold on the same annotation;
// different properties are alternatives.
type filteredBuilder struct {
	resolver   HitResolver
	logger     *slog.Logger
	properties []string
	fragments  map[string][]bquery.Query
}

func (b *filteredBuilder) Category() index.Category { return index.CategoryFilteredAnnotation }

func (b *filteredBuilder) IsBuilderFor(k Keyword) bool { return k.HasField() }

func (b *filteredBuilder) Add(k Keyword) {
	if k.IsBlank() || !k.HasField() {
		return
	}
	q, err := compileFragment(index.FieldAnnotationValue, k.Text)
	if err != nil {
		b.logger.Debug("query_fragment_rejected",
			slog.String("category", index.CategoryFilteredAnnotation.String()),
			slog.String("keyword", k.String()),
			slog.String("error", err.Error()))
		return
	}
	if b.fragments == nil {
		b.fragments = make(map[string][]bquery.Query)
	}
	if _, seen := b.fragments[k.Field]; !seen {
		b.properties = append(b.properties, k.Field)
	}
	b.fragments[k.Field] = append(b.fragments[k.Field], q)
}

func (b *filteredBuilder) Build() SearchQuery {
	if len(b.properties) == 0 {
		return NewSearchQuery(index.CategoryFilteredAnnotation, nil, b.resolver)
	}

	perProperty := make([]bquery.Query, 0, len(b.properties))
	for _, prop := range b.properties {
		term := bleve.NewTermQuery(prop)
		term.SetField(index.FieldAnnotationProperty)
		parts := append([]bquery.Query{term}, b.fragments[prop]...)
		perProperty = append(perProperty, bleve.NewConjunctionQuery(parts...))
	}

	var predicate bquery.Query
	if len(perProperty) == 1 {
		predicate = perProperty[0]
	} else {
		predicate = bleve.NewDisjunctionQuery(perProperty...)
	}
	return NewSearchQuery(index.CategoryFilteredAnnotation, predicate, b.resolver)
}

// compileFragment turns keyword text into a query on field. Plain words
// become case-insensitive substring matches; anything else is handed to
// the bleve query string syntax scoped to the field.
func compileFragment(field, text string) (bquery.Query, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	if isPlain(text) {
		q := bleve.NewWildcardQuery("*" + text + "*")
		q.SetField(field)
		return q, nil
	}
	return bleve.NewQueryStringQuery(field + ":" + text).Parse()
}

// compileIdentifier matches text as a literal, case-insensitive substring
// of whole identifiers, so IRIs and prefixed names match as typed. Text that
// also compiles as a fragment on the tokenized identifier matches either way.
func compileIdentifier(text string) (bquery.Query, error) {
	words, err := compileFragment(index.FieldIdentifier, text)
	literal := strings.Trim(strings.ToLower(strings.TrimSpace(text)), `"`)
	if literal == "" {
		return words, err
	}
	exact := bleve.NewRegexpQuery(".*" + regexp.QuoteMeta(literal) + ".*")
	exact.SetField(index.FieldIdentifierExact)
	if err != nil {
		return exact, nil
	}
	return bleve.NewDisjunctionQuery(exact, words), nil
}

// isPlain reports whether text consists of letters and digits only.
func isPlain(text string) bool {
	if text == "" {
		return false
	}
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// conjunction AND-combines fragments; nil when there are none.
func conjunction(fragments []bquery.Query) bquery.Query {
	switch len(fragments) {
	case 0:
		return nil
	case 1:
		return fragments[0]
	default:
		return bleve.NewConjunctionQuery(fragments...)
	}
}
