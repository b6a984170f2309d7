package index

import (
	"sort"
	"sync"

	"github.com/Aman-CERP/ontosearch/internal/item"
)

// Cache holds at most one Handle per collection. Handles are created on
// the first miss and stay until explicitly evicted.
type Cache struct {
	mu      sync.Mutex
	root    string
	handles map[item.CollectionID]*Handle
}

// NewCache creates an empty cache. Handles it creates store their index
// under root, or in memory when root is empty.
func NewCache(root string) *Cache {
	return &Cache{
		root:    root,
		handles: make(map[item.CollectionID]*Handle),
	}
}

// Root returns the directory handles are stored under.
func (c *Cache) Root() string { return c.root }

// GetOrCreate returns the handle of a collection, creating it on a miss.
// The second result reports whether the handle was created.
func (c *Cache) GetOrCreate(id item.CollectionID) (*Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.handles[id]; ok {
		return h, false
	}
	h := NewHandle(id, c.root)
	c.handles[id] = h
	return h, true
}

// Get returns the handle of a collection if one exists.
func (c *Cache) Get(id item.CollectionID) (*Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handles[id]
	return h, ok
}

// Evict removes the handle of a collection. It does not close the handle.
func (c *Cache) Evict(id item.CollectionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handles, id)
}

// Handles returns the cached handles ordered by collection.
func (c *Cache) Handles() []*Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Handle, 0, len(c.handles))
	for _, h := range c.handles {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].collection < out[j].collection })
	return out
}

// Len returns the number of cached handles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}
