package index

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Category is a search category. Each active category contributes one query
// per search and decides which fields are written to the index.
type Category int

const (
	// CategoryDisplayName matches the item's rendered display name.
	CategoryDisplayName Category = iota
	// CategoryIdentifier matches the item's identifier.
	CategoryIdentifier
	// CategoryAnnotationValue matches the value of any annotation.
	CategoryAnnotationValue
	// CategoryFilteredAnnotation matches annotation values restricted to an
	// explicitly named annotation property ("property:text").
	CategoryFilteredAnnotation
)

var categoryNames = map[Category]string{
	CategoryDisplayName:        "display_name",
	CategoryIdentifier:         "identifier",
	CategoryAnnotationValue:    "annotation_value",
	CategoryFilteredAnnotation: "filtered_annotation",
}

// String returns the canonical name of the category.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// Field returns the index field queried for the category.
func (c Category) Field() string {
	switch c {
	case CategoryDisplayName:
		return FieldDisplayName
	case CategoryIdentifier:
		return FieldIdentifier
	default:
		return FieldAnnotationValue
	}
}

// ParseCategory parses a category name. Matching ignores case, and dashes
// may be used in place of underscores.
func ParseCategory(s string) (Category, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for c, name := range categoryNames {
		if name == norm {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown search category %q", s)
}

// ParseCategories parses a list of category names into a set.
func ParseCategories(names []string) (CategorySet, error) {
	var set CategorySet
	for _, n := range names {
		c, err := ParseCategory(n)
		if err != nil {
			return CategorySet{}, err
		}
		set = set.With(c)
	}
	return set, nil
}

// CategorySet is an immutable set of categories. The zero value is empty.
type CategorySet struct {
	bits uint8
}

// NewCategorySet returns a set holding cats.
func NewCategorySet(cats ...Category) CategorySet {
	var s CategorySet
	for _, c := range cats {
		s = s.With(c)
	}
	return s
}

// AllCategories returns the set of every known category.
func AllCategories() CategorySet {
	return NewCategorySet(
		CategoryDisplayName,
		CategoryIdentifier,
		CategoryAnnotationValue,
		CategoryFilteredAnnotation,
	)
}

// With returns a copy of the set including c.
func (s CategorySet) With(c Category) CategorySet {
	if _, ok := categoryNames[c]; !ok {
		return s
	}
	return CategorySet{bits: s.bits | 1<<uint(c)}
}

// Has reports whether c is in the set.
func (s CategorySet) Has(c Category) bool {
	return c >= 0 && s.bits&(1<<uint(c)) != 0
}

// Len returns the number of categories in the set.
func (s CategorySet) Len() int {
	return len(s.Categories())
}

// IsEmpty reports whether the set is empty.
func (s CategorySet) IsEmpty() bool { return s.bits == 0 }

// Categories returns the members in declaration order.
func (s CategorySet) Categories() []Category {
	out := make([]Category, 0, len(categoryNames))
	for c := range categoryNames {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Names returns the canonical names of the members in declaration order.
func (s CategorySet) Names() []string {
	cats := s.Categories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.String()
	}
	return names
}

// String returns the comma-separated category names.
func (s CategorySet) String() string {
	return strings.Join(s.Names(), ",")
}

// Fingerprint returns a stable hash of the set. It is computed from the
// category names so it survives reordering of the Category constants.
func (s CategorySet) Fingerprint() uint64 {
	return xxhash.Sum64String(s.String())
}

// indexesAnnotations reports whether annotation documents must be written.
func (s CategorySet) indexesAnnotations() bool {
	return s.Has(CategoryAnnotationValue) || s.Has(CategoryFilteredAnnotation)
}

// formatFingerprint renders a fingerprint the way it is stored in markers.
func formatFingerprint(fp uint64) string {
	return fmt.Sprintf("%016x", fp)
}
