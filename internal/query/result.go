package query

import (
	"errors"
	"fmt"
	"sort"

	"github.com/blevesearch/bleve/v2/search"

	"github.com/Aman-CERP/ontosearch/internal/index"
	"github.com/Aman-CERP/ontosearch/internal/item"
)

// ErrUnresolvable is returned when a hit cannot be mapped to an item.
var ErrUnresolvable = errors.New("hit cannot be resolved")

// Result identifies a matched item and where it matched.
type Result struct {
	ItemID   item.ID        `json:"item_id"`
	Category index.Category `json:"-"`
	// Field is the index field or, for annotations, the property that matched.
	Field   string `json:"field"`
	Display string `json:"display"`
	// Match is the stored text of the matched field.
	Match string `json:"match,omitempty"`
}

// HitResolver maps an index hit back to a Result.
type HitResolver interface {
	Resolve(cat index.Category, hit *search.DocumentMatch) (Result, error)
}

// DocumentResolver resolves hits by looking up their item in a collection.
type DocumentResolver struct {
	collection item.Collection
}

// NewDocumentResolver creates a resolver backed by c.
func NewDocumentResolver(c item.Collection) *DocumentResolver {
	return &DocumentResolver{collection: c}
}

// Resolve implements HitResolver.
func (r *DocumentResolver) Resolve(cat index.Category, hit *search.DocumentMatch) (Result, error) {
	raw, _ := hit.Fields[index.FieldItemID].(string)
	if raw == "" {
		return Result{}, fmt.Errorf("%w: document %s has no item id", ErrUnresolvable, hit.ID)
	}
	it, ok := r.collection.Lookup(item.ID(raw))
	if !ok {
		return Result{}, fmt.Errorf("%w: item %s is not in collection %s", ErrUnresolvable, raw, r.collection.ID())
	}

	res := Result{
		ItemID:   it.ID,
		Category: cat,
		Field:    cat.Field(),
		Display:  it.Label(),
	}
	if prop, ok := hit.Fields[index.FieldAnnotationProperty].(string); ok && prop != "" {
		res.Field = prop
	}
	if text, ok := hit.Fields[cat.Field()].(string); ok {
		res.Match = text
	}
	return res, nil
}

// ResultSet is a set of results keyed by item. The first result added for
// an item wins.
type ResultSet struct {
	byID map[item.ID]Result
}

// NewResultSet creates an empty set.
func NewResultSet() *ResultSet {
	return &ResultSet{byID: make(map[item.ID]Result)}
}

// Add inserts r unless its item is already present, and reports whether it
// was inserted.
func (s *ResultSet) Add(r Result) bool {
	if _, ok := s.byID[r.ItemID]; ok {
		return false
	}
	s.byID[r.ItemID] = r
	return true
}

// Contains reports whether the set holds a result for id.
func (s *ResultSet) Contains(id item.ID) bool {
	_, ok := s.byID[id]
	return ok
}

// Get returns the result for id.
func (s *ResultSet) Get(id item.ID) (Result, bool) {
	r, ok := s.byID[id]
	return r, ok
}

// Len returns the number of results.
func (s *ResultSet) Len() int { return len(s.byID) }

// Results returns the results ordered by item id.
func (s *ResultSet) Results() []Result {
	out := make([]Result, 0, len(s.byID))
	for _, r := range s.byID {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}

// IDs returns the item ids in the set, sorted.
func (s *ResultSet) IDs() []item.ID {
	out := make([]item.ID, 0, len(s.byID))
	for id := range s.byID {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Verify interface implementation
var _ HitResolver = (*DocumentResolver)(nil)
