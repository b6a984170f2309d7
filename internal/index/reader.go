package index

import (
	"context"
	"errors"

	"github.com/blevesearch/bleve/v2"

	apperrors "github.com/Aman-CERP/ontosearch/internal/errors"
)

var (
	// ErrNotReady is returned when querying a handle that is not Ready, or
	// through a reader that a later rebuild replaced.
	ErrNotReady = errors.New("index not ready")

	// ErrInvalidTransition is returned for a lifecycle change the handle
	// does not allow, such as updating a closed index.
	ErrInvalidTransition = errors.New("invalid index state transition")
)

// Reader queries the committed state of a handle's index.
type Reader struct {
	handle     *Handle
	index      bleve.Index
	generation uint64
}

// Generation returns the write generation the reader was published at.
func (r *Reader) Generation() uint64 { return r.generation }

// Collection returns the collection the reader searches.
func (r *Reader) Collection() string { return string(r.handle.collection) }

// Search runs req against the index. It fails with ErrNotReady when the
// handle is not Ready or the reader was superseded by a rebuild.
func (r *Reader) Search(ctx context.Context, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	if r == nil {
		return nil, ErrNotReady
	}
	r.handle.mu.RLock()
	defer r.handle.mu.RUnlock()

	if r.handle.state != StateReady || r.handle.index != r.index {
		return nil, ErrNotReady
	}
	res, err := r.index.SearchInContext(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperrors.IndexIOError("index search failed", err)
	}
	return res, nil
}

// DocCount returns the number of documents visible to the reader.
func (r *Reader) DocCount() (uint64, error) {
	if r == nil {
		return 0, ErrNotReady
	}
	r.handle.mu.RLock()
	defer r.handle.mu.RUnlock()

	if r.handle.index != r.index {
		return 0, ErrNotReady
	}
	return r.index.DocCount()
}
