package index

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/cespare/xxhash/v2"
	"github.com/gofrs/flock"

	"github.com/Aman-CERP/ontosearch/internal/item"
)

// State is the lifecycle state of a Handle.
type State int

const (
	// StateUninitialized means no index has been built yet.
	StateUninitialized State = iota
	// StateBuilding means a full rebuild is in progress.
	StateBuilding
	// StateReady means the index can be queried.
	StateReady
	// StateUpdating means an incremental update is in progress.
	StateUpdating
	// StateClosed means the index was committed and released.
	StateClosed
	// StateReverted means uncommitted writes were discarded and the index released.
	StateReverted
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	case StateUpdating:
		return "updating"
	case StateClosed:
		return "closed"
	case StateReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateReverted
}

// validTransitions lists the allowed state changes.
var validTransitions = map[State][]State{
	StateUninitialized: {StateBuilding, StateClosed, StateReverted},
	StateBuilding:      {StateReady, StateUninitialized},
	StateReady:         {StateUpdating, StateBuilding, StateClosed, StateReverted},
	StateUpdating:      {StateReady},
}

// Handle is the index state of one collection: the bleve index, its
// published reader and, for on-disk indexes, the single-writer lock.
//
// Writes go through the Indexer and are serialized by the caller.
type Handle struct {
	mu sync.RWMutex

	collection item.CollectionID
	root       string // empty for in-memory indexes

	state      State
	index      bleve.Index
	categories CategorySet
	lock       *flock.Flock
	reader     *Reader
	generation uint64
	pending    bool
}

// NewHandle creates an uninitialized handle for a collection. When root is
// empty the index lives in memory; otherwise it is stored under root.
// No I/O happens until the first rebuild.
func NewHandle(collection item.CollectionID, root string) *Handle {
	return &Handle{
		collection: collection,
		root:       root,
	}
}

// Collection returns the collection the handle indexes.
func (h *Handle) Collection() item.CollectionID { return h.collection }

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// InMemory reports whether the index is kept in memory only.
func (h *Handle) InMemory() bool { return h.root == "" }

// Pending reports whether writes happened since the last commit.
func (h *Handle) Pending() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pending
}

// Generation returns the number of committed writes to the index.
func (h *Handle) Generation() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.generation
}

// Categories returns the categories the index was built for.
func (h *Handle) Categories() CategorySet {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.categories
}

// DocCount returns the number of documents in the index, or 0 when none is open.
func (h *Handle) DocCount() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.index == nil {
		return 0
	}
	n, err := h.index.DocCount()
	if err != nil {
		return 0
	}
	return n
}

// Dir returns the directory of the on-disk index, or "" for in-memory indexes.
func (h *Handle) Dir() string {
	if h.root == "" {
		return ""
	}
	return IndexDir(h.root, h.collection)
}

// transition moves the handle to next. Caller must hold h.mu.
func (h *Handle) transition(next State) error {
	for _, allowed := range validTransitions[h.state] {
		if allowed == next {
			h.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, h.state, next)
}

// publish replaces the reader with one at the current generation.
// Caller must hold h.mu.
func (h *Handle) publish() {
	h.reader = &Reader{handle: h, index: h.index, generation: h.generation}
}

// collectionKey returns the stable on-disk name of a collection.
func collectionKey(id item.CollectionID) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(string(id)))
}

// IndexDir returns the directory holding the index of a collection.
func IndexDir(root string, id item.CollectionID) string {
	return filepath.Join(root, collectionKey(id))
}

// StagingDir returns the directory a rebuild writes into before it
// replaces the index directory.
func StagingDir(root string, id item.CollectionID) string {
	return filepath.Join(root, collectionKey(id)+".staging")
}

// LockPath returns the lock file path of a collection's index.
func LockPath(root string, id item.CollectionID) string {
	return filepath.Join(root, collectionKey(id)+".lock")
}

// MarkerPath returns the commit marker path of a collection's index.
func MarkerPath(root string, id item.CollectionID) string {
	return filepath.Join(root, collectionKey(id)+markerSuffix)
}

// removeOnDisk deletes the index directory and its commit marker.
func removeOnDisk(root string, id item.CollectionID) error {
	if err := os.RemoveAll(IndexDir(root, id)); err != nil {
		return err
	}
	if err := os.Remove(MarkerPath(root, id)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
