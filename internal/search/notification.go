package search

import "github.com/Aman-CERP/ontosearch/internal/item"

// Notification describes an edit of the searched collection.
// It is one of Structural, Incremental or Saved.
type Notification interface {
	notification()
}

// Structural invalidates the index: the next search rebuilds it. A non-nil
// Collection also switches the manager to that collection.
type Structural struct {
	Collection item.Collection
}

// Incremental carries concrete item edits that are applied to the existing
// index in place.
type Incremental struct {
	Changes item.ChangeSet
}

// Saved reports that the collection was durably saved; the index is
// committed.
type Saved struct{}

func (Structural) notification()  {}
func (Incremental) notification() {}
func (Saved) notification()       {}
