package item

import "sort"

// ChangeKind is the type of an item-level edit.
type ChangeKind int

const (
	// ChangeAdd indicates a new item.
	ChangeAdd ChangeKind = iota
	// ChangeRemove indicates a deleted item. Only Item.ID is meaningful.
	ChangeRemove
	// ChangeModify indicates an item whose content changed.
	ChangeModify
)

// String returns a human-readable representation of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeAdd:
		return "ADD"
	case ChangeRemove:
		return "REMOVE"
	case ChangeModify:
		return "MODIFY"
	default:
		return "UNKNOWN"
	}
}

// Change is a single item-level edit.
type Change struct {
	Kind ChangeKind
	Item Item
}

// Add returns a change adding it.
func Add(it Item) Change { return Change{Kind: ChangeAdd, Item: it.Clone()} }

// Remove returns a change removing the item with the given id.
func Remove(id ID) Change { return Change{Kind: ChangeRemove, Item: Item{ID: id}} }

// Modify returns a change replacing the item with it.
func Modify(it Item) Change { return Change{Kind: ChangeModify, Item: it.Clone()} }

// ChangeSet is an immutable ordered batch of item-level edits.
// The zero value is an empty change set.
type ChangeSet struct {
	changes []Change
}

// NewChangeSet copies changes into a new ChangeSet.
func NewChangeSet(changes ...Change) ChangeSet {
	cs := ChangeSet{changes: make([]Change, len(changes))}
	for i, c := range changes {
		cs.changes[i] = Change{Kind: c.Kind, Item: c.Item.Clone()}
	}
	return cs
}

// Len returns the number of changes.
func (cs ChangeSet) Len() int { return len(cs.changes) }

// IsEmpty reports whether the change set has no changes.
func (cs ChangeSet) IsEmpty() bool { return len(cs.changes) == 0 }

// Changes returns a copy of the changes in order.
func (cs ChangeSet) Changes() []Change {
	out := make([]Change, len(cs.changes))
	for i, c := range cs.changes {
		out[i] = Change{Kind: c.Kind, Item: c.Item.Clone()}
	}
	return out
}

// Diff returns the change set transforming the before snapshot into the
// after snapshot. Changes are ordered by item ID.
func Diff(before, after []Item) ChangeSet {
	old := make(map[ID]Item, len(before))
	for _, it := range before {
		old[it.ID] = it
	}

	var changes []Change
	seen := make(map[ID]struct{}, len(after))
	for _, it := range after {
		seen[it.ID] = struct{}{}
		prev, ok := old[it.ID]
		switch {
		case !ok:
			changes = append(changes, Add(it))
		case !prev.Equal(it):
			changes = append(changes, Modify(it))
		}
	}
	for id := range old {
		if _, ok := seen[id]; !ok {
			changes = append(changes, Remove(id))
		}
	}

	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].Item.ID < changes[j].Item.ID
	})
	return ChangeSet{changes: changes}
}
