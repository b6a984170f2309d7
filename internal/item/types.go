// Package item models the searchable knowledge-base collection: items, their
// annotations, immutable change sets and the collection contract the search
// engine reads from.
//
// The engine never mutates a collection. Hosts own the collection, apply
// edits to it, and forward the resulting ChangeSet to the search manager.
package item

import "strings"

// ID identifies an item inside a collection (typically an IRI).
type ID string

// CollectionID is the stable identity of a collection. Index handles are
// cached per CollectionID.
type CollectionID string

// Annotation is a single property/value assertion attached to an item.
type Annotation struct {
	Property string `yaml:"property" json:"property"`
	Value    string `yaml:"value" json:"value"`
	Lang     string `yaml:"lang,omitempty" json:"lang,omitempty"`
}

// Item is a unit of searchable domain data.
type Item struct {
	ID          ID           `yaml:"id" json:"id"`
	DisplayName string       `yaml:"name" json:"name"`
	Annotations []Annotation `yaml:"annotations,omitempty" json:"annotations,omitempty"`
}

// Clone returns a deep copy of the item.
func (it Item) Clone() Item {
	out := it
	if it.Annotations != nil {
		out.Annotations = make([]Annotation, len(it.Annotations))
		copy(out.Annotations, it.Annotations)
	}
	return out
}

// Equal reports whether two items carry the same indexable content.
func (it Item) Equal(other Item) bool {
	if it.ID != other.ID || it.DisplayName != other.DisplayName {
		return false
	}
	if len(it.Annotations) != len(other.Annotations) {
		return false
	}
	for i := range it.Annotations {
		if it.Annotations[i] != other.Annotations[i] {
			return false
		}
	}
	return true
}

// Label returns the text used to render the item: its display name, or
// the fragment of its identifier when no name is set.
func (it Item) Label() string {
	if it.DisplayName != "" {
		return it.DisplayName
	}
	s := string(it.ID)
	if i := strings.LastIndexAny(s, "#/"); i >= 0 && i < len(s)-1 {
		return s[i+1:]
	}
	return s
}

// Collection is the read-only view of an item collection used by the engine.
type Collection interface {
	// ID returns the collection identity.
	ID() CollectionID

	// Snapshot returns the full current item set, sorted by ID.
	Snapshot() []Item

	// Lookup returns the current state of one item.
	Lookup(id ID) (Item, bool)

	// IsDirty reports whether the collection has unsaved edits.
	IsDirty() bool
}
