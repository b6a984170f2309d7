package search

import (
	"github.com/Aman-CERP/ontosearch/internal/index"
	"github.com/Aman-CERP/ontosearch/internal/item"
	"github.com/Aman-CERP/ontosearch/internal/query"
)

// job is a unit of work for the manager's worker. Jobs run one at a time
// in submission order.
type job interface {
	kind() string
}

// rebuildJob rebuilds the handle from a fresh snapshot of the collection.
type rebuildJob struct {
	handle     *index.Handle
	collection item.Collection
	categories index.CategorySet
}

// updateJob applies a change set to the handle.
type updateJob struct {
	handle  *index.Handle
	changes item.ChangeSet
}

// searchJob runs a query batch and delivers the results if id is still
// the latest search when it completes.
type searchJob struct {
	id      uint64
	handle  *index.Handle
	queries query.SearchQueries
	handler ResultHandler
	// finished, if set, is called once with the outcome; nil means delivered.
	finished func(error)
}

// persistJob commits the handle's pending writes.
type persistJob struct {
	handle *index.Handle
}

// releaseJob closes or reverts the index of a collection the manager no
// longer searches.
type releaseJob struct {
	handle     *index.Handle
	collection item.Collection
}

// funcJob runs an arbitrary function on the worker.
type funcJob struct {
	fn func()
}

func (rebuildJob) kind() string { return "rebuild" }
func (updateJob) kind() string  { return "update" }
func (searchJob) kind() string  { return "search" }
func (persistJob) kind() string { return "persist" }
func (releaseJob) kind() string { return "release" }
func (funcJob) kind() string    { return "func" }

func (j searchJob) finish(err error) {
	if j.finished != nil {
		j.finished(err)
	}
}
