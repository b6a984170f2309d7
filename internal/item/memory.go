package item

import (
	"sort"
	"sync"
)

// Memory is a mutable in-memory collection with a dirty flag.
// It is safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	id    CollectionID
	items map[ID]Item
	dirty bool
}

// NewMemory creates a clean collection holding items.
func NewMemory(id CollectionID, items []Item) *Memory {
	m := &Memory{
		id:    id,
		items: make(map[ID]Item, len(items)),
	}
	for _, it := range items {
		m.items[it.ID] = it.Clone()
	}
	return m
}

// ID implements Collection.
func (m *Memory) ID() CollectionID { return m.id }

// Snapshot implements Collection.
func (m *Memory) Snapshot() []Item {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Item, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Lookup implements Collection.
func (m *Memory) Lookup(id ID) (Item, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, ok := m.items[id]
	if !ok {
		return Item{}, false
	}
	return it.Clone(), true
}

// IsDirty implements Collection.
func (m *Memory) IsDirty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirty
}

// Len returns the number of items.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Apply applies the change set and marks the collection dirty when it is
// not empty. Removing an unknown item is a no-op.
func (m *Memory) Apply(cs ChangeSet) {
	if cs.IsEmpty() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range cs.changes {
		switch c.Kind {
		case ChangeAdd, ChangeModify:
			m.items[c.Item.ID] = c.Item.Clone()
		case ChangeRemove:
			delete(m.items, c.Item.ID)
		}
	}
	m.dirty = true
}

// MarkSaved clears the dirty flag.
func (m *Memory) MarkSaved() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirty = false
}

// Verify interface implementation
var _ Collection = (*Memory)(nil)
