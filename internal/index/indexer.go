// Package index maintains per-collection bleve indexes: full rebuilds,
// incremental updates from change sets, and the close/revert/persist
// lifecycle of each index.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/gofrs/flock"

	apperrors "github.com/Aman-CERP/ontosearch/internal/errors"
	"github.com/Aman-CERP/ontosearch/internal/item"
)

// DefaultBatchSize is the number of items written per bleve batch during
// a rebuild.
const DefaultBatchSize = 500

// removalPageSize is the page size used when collecting an item's documents.
const removalPageSize = 256

// Config configures an Indexer.
type Config struct {
	// BatchSize is the number of items written per batch during a rebuild.
	BatchSize int

	// LockRetry controls retries while another process holds an index lock.
	LockRetry apperrors.RetryConfig

	// Logger receives indexing events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Indexer performs rebuilds, incremental updates and lifecycle operations
// on handles. Operations on one handle must not run concurrently.
type Indexer struct {
	batchSize int
	lockRetry apperrors.RetryConfig
	logger    *slog.Logger
}

// NewIndexer creates an Indexer, filling unset config fields with defaults.
func NewIndexer(cfg Config) *Indexer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.LockRetry.Multiplier == 0 {
		cfg.LockRetry = apperrors.DefaultRetryConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Indexer{
		batchSize: cfg.BatchSize,
		lockRetry: cfg.LockRetry,
		logger:    cfg.Logger,
	}
}

// Rebuild replaces the handle's index with one populated from items,
// writing only the fields of cats. progress, if non-nil, receives integer
// percentages from 0 to 100 whenever the value changes.
//
// The new index is built next to the current one and swapped in only once
// it is complete. On failure a previously built index stays Ready and
// searchable, an unbuilt handle returns to Uninitialized, and the error is
// returned unretried; a rebuild can safely be repeated.
func (ix *Indexer) Rebuild(ctx context.Context, h *Handle, cats CategorySet, items []item.Item, progress func(int)) error {
	start := time.Now()

	h.mu.Lock()
	if err := h.transition(StateBuilding); err != nil {
		h.mu.Unlock()
		return err
	}
	prev := h.index
	h.mu.Unlock()

	ix.logger.Info("index_rebuild_started",
		slog.String("collection", string(h.collection)),
		slog.Int("items", len(items)),
		slog.String("categories", cats.String()))

	idx, err := ix.openFresh(ctx, h)
	if err == nil {
		err = ix.populate(ctx, idx, cats, items, progress)
		if err != nil {
			ix.discardBuild(h, idx)
		}
	}
	if err == nil {
		idx, err = ix.swapIn(h, prev, idx)
		prev = nil
	}
	if err != nil {
		h.mu.Lock()
		if prev != nil {
			_ = h.transition(StateReady)
		} else {
			h.index = nil
			h.reader = nil
			_ = h.transition(StateUninitialized)
		}
		h.mu.Unlock()
		ix.logger.Error("index_rebuild_failed",
			slog.String("collection", string(h.collection)),
			slog.Bool("kept_previous", prev != nil),
			slog.String("error", err.Error()))
		return err
	}

	h.mu.Lock()
	h.index = idx
	h.categories = cats
	h.generation++
	h.pending = true
	h.publish()
	_ = h.transition(StateReady)
	h.mu.Unlock()

	ix.logger.Info("index_rebuild_completed",
		slog.String("collection", string(h.collection)),
		slog.Uint64("docs", h.DocCount()),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// openFresh creates an empty index to rebuild into. On-disk indexes are
// built in the staging directory so the current index stays intact.
func (ix *Indexer) openFresh(ctx context.Context, h *Handle) (bleve.Index, error) {
	if h.InMemory() {
		idx, err := bleve.NewMemOnly(newIndexMapping())
		if err != nil {
			return nil, apperrors.IndexIOError("failed to create in-memory index", err)
		}
		return idx, nil
	}

	if err := ix.acquireLock(ctx, h); err != nil {
		return nil, err
	}
	staging := StagingDir(h.root, h.collection)
	if err := os.RemoveAll(staging); err != nil {
		return nil, apperrors.IndexIOError("failed to clear staging directory", err).
			WithDetail("path", staging)
	}
	idx, err := bleve.New(staging, newIndexMapping())
	if err != nil {
		return nil, apperrors.IndexIOError("failed to create index", err).
			WithDetail("path", staging)
	}
	return idx, nil
}

// discardBuild closes an abandoned rebuild and removes its staging directory.
func (ix *Indexer) discardBuild(h *Handle, idx bleve.Index) {
	_ = idx.Close()
	if h.InMemory() {
		return
	}
	if err := os.RemoveAll(StagingDir(h.root, h.collection)); err != nil {
		ix.logger.Warn("index_staging_cleanup_failed",
			slog.String("collection", string(h.collection)),
			slog.String("error", err.Error()))
	}
}

// swapIn retires prev and returns the freshly built index in its place.
// An on-disk build is moved from the staging directory to the index
// directory and reopened there. Caller must have moved h to StateBuilding.
func (ix *Indexer) swapIn(h *Handle, prev, built bleve.Index) (bleve.Index, error) {
	if prev != nil {
		if err := prev.Close(); err != nil {
			ix.logger.Warn("index_close_failed",
				slog.String("collection", string(h.collection)),
				slog.String("error", err.Error()))
		}
	}
	if h.InMemory() {
		return built, nil
	}

	staging := StagingDir(h.root, h.collection)
	if err := built.Close(); err != nil {
		return nil, apperrors.IndexIOError("failed to close rebuilt index", err).
			WithDetail("path", staging)
	}
	if err := removeOnDisk(h.root, h.collection); err != nil {
		return nil, apperrors.IndexIOError("failed to clear index directory", err).
			WithDetail("path", h.Dir())
	}
	if err := os.Rename(staging, h.Dir()); err != nil {
		return nil, apperrors.IndexIOError("failed to move rebuilt index", err).
			WithDetail("path", h.Dir())
	}
	idx, err := bleve.Open(h.Dir())
	if err != nil {
		return nil, apperrors.IndexIOError("failed to open rebuilt index", err).
			WithDetail("path", h.Dir())
	}
	return idx, nil
}

// acquireLock takes the single-writer lock of an on-disk handle, retrying
// while another process holds it.
func (ix *Indexer) acquireLock(ctx context.Context, h *Handle) error {
	h.mu.RLock()
	held := h.lock != nil && h.lock.Locked()
	h.mu.RUnlock()
	if held {
		return nil
	}

	if err := os.MkdirAll(h.root, 0o755); err != nil {
		return apperrors.IndexIOError("failed to create index root", err).
			WithDetail("path", h.root)
	}

	lk := flock.New(LockPath(h.root, h.collection))
	err := apperrors.Retry(ctx, ix.lockRetry, func() error {
		ok, err := lk.TryLock()
		if err != nil {
			return apperrors.IndexIOError("failed to acquire index lock", err).
				WithDetail("path", lk.Path())
		}
		if !ok {
			return apperrors.New(apperrors.ErrCodeIndexLocked, "index is locked by another process", nil).
				WithDetail("path", lk.Path()).
				WithSuggestion("stop the other ontosearch process using this index directory")
		}
		return nil
	})
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.lock = lk
	h.mu.Unlock()
	return nil
}

// populate writes the documents of items in batches of ix.batchSize items.
func (ix *Indexer) populate(ctx context.Context, idx bleve.Index, cats CategorySet, items []item.Item, progress func(int)) error {
	report := newProgressReporter(progress)
	report.report(0)

	total := len(items)
	batch := idx.NewBatch()
	for i, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, d := range documentsFor(it, cats) {
			if err := batch.Index(d.id, d.fields); err != nil {
				return apperrors.IndexIOError("failed to index item", err).
					WithDetail("item", string(it.ID))
			}
		}
		if (i+1)%ix.batchSize == 0 {
			if err := idx.Batch(batch); err != nil {
				return apperrors.IndexIOError("failed to write index batch", err)
			}
			batch.Reset()
		}
		report.report((i + 1) * 100 / total)
	}
	if batch.Size() > 0 {
		if err := idx.Batch(batch); err != nil {
			return apperrors.IndexIOError("failed to write index batch", err)
		}
	}
	report.report(100)
	return nil
}

// Apply applies a change set to a Ready handle in a single atomic batch
// and reports whether the index changed. A new reader is published only
// after the batch is committed; readers obtained earlier never observe a
// partially applied change set.
func (ix *Indexer) Apply(ctx context.Context, h *Handle, cs item.ChangeSet) (bool, error) {
	h.mu.Lock()
	if err := h.transition(StateUpdating); err != nil {
		h.mu.Unlock()
		return false, err
	}
	idx := h.index
	cats := h.categories
	h.mu.Unlock()

	changed, err := ix.apply(ctx, idx, cats, cs)

	h.mu.Lock()
	defer h.mu.Unlock()
	_ = h.transition(StateReady)
	if err != nil {
		ix.logger.Error("index_update_failed",
			slog.String("collection", string(h.collection)),
			slog.String("error", err.Error()))
		return false, err
	}
	if changed {
		h.generation++
		h.pending = true
		h.publish()
	}
	ix.logger.Debug("index_updated",
		slog.String("collection", string(h.collection)),
		slog.Int("changes", cs.Len()),
		slog.Bool("changed", changed))
	return changed, nil
}

func (ix *Indexer) apply(ctx context.Context, idx bleve.Index, cats CategorySet, cs item.ChangeSet) (bool, error) {
	if cs.IsEmpty() {
		return false, nil
	}

	batch := idx.NewBatch()
	added := make(map[item.ID][]string)
	for _, c := range cs.Changes() {
		// Every kind first drops what the item had, so Add behaves as an upsert.
		existing, err := documentIDs(ctx, idx, c.Item.ID)
		if err != nil {
			return false, err
		}
		for _, id := range existing {
			batch.Delete(id)
		}
		for _, id := range added[c.Item.ID] {
			batch.Delete(id)
		}
		delete(added, c.Item.ID)

		if c.Kind == item.ChangeRemove {
			continue
		}
		for _, d := range documentsFor(c.Item, cats) {
			if err := batch.Index(d.id, d.fields); err != nil {
				return false, apperrors.IndexIOError("failed to index item", err).
					WithDetail("item", string(c.Item.ID))
			}
			added[c.Item.ID] = append(added[c.Item.ID], d.id)
		}
	}

	if batch.Size() == 0 {
		return false, nil
	}
	if err := idx.Batch(batch); err != nil {
		return false, apperrors.IndexIOError("failed to write index batch", err)
	}
	return true, nil
}

// documentIDs returns the ids of every document of an item.
func documentIDs(ctx context.Context, idx bleve.Index, id item.ID) ([]string, error) {
	q := bleve.NewTermQuery(string(id))
	q.SetField(FieldItemID)

	var ids []string
	for from := 0; ; from += removalPageSize {
		req := bleve.NewSearchRequestOptions(q, removalPageSize, from, false)
		res, err := idx.SearchInContext(ctx, req)
		if err != nil {
			return nil, apperrors.IndexIOError("failed to look up item documents", err).
				WithDetail("item", string(id))
		}
		for _, hit := range res.Hits {
			ids = append(ids, hit.ID)
		}
		if len(res.Hits) < removalPageSize {
			return ids, nil
		}
	}
}

// Reader returns the reader reflecting the most recent committed write.
func (ix *Indexer) Reader(h *Handle) (*Reader, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.state != StateReady || h.reader == nil {
		return nil, apperrors.New(apperrors.ErrCodeIndexNotReady,
			fmt.Sprintf("index of %s is %s", h.collection, h.state), ErrNotReady)
	}
	return h.reader, nil
}

// Persist marks the handle's writes as committed. For on-disk indexes a
// commit marker is written next to the index directory.
func (ix *Indexer) Persist(h *Handle) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateReady {
		return nil
	}
	return ix.persistLocked(h)
}

func (ix *Indexer) persistLocked(h *Handle) error {
	if h.root == "" {
		h.pending = false
		return nil
	}

	count, err := h.index.DocCount()
	if err != nil {
		return apperrors.IndexIOError("failed to count documents", err)
	}
	m := Marker{
		Collection:  string(h.collection),
		Generation:  h.generation,
		CommittedAt: time.Now().UTC(),
		DocCount:    count,
		Categories:  h.categories.Names(),
		Fingerprint: formatFingerprint(h.categories.Fingerprint()),
	}
	if err := writeMarker(MarkerPath(h.root, h.collection), m); err != nil {
		return apperrors.IndexIOError("failed to persist index", err).
			WithDetail("path", h.Dir())
	}
	h.pending = false

	ix.logger.Info("index_persisted",
		slog.String("collection", string(h.collection)),
		slog.Uint64("generation", h.generation),
		slog.Uint64("docs", count))
	return nil
}

// Close commits pending writes and releases the handle. Closing a closed
// or reverted handle is a no-op.
func (ix *Indexer) Close(h *Handle) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state.Terminal() {
		return nil
	}

	var persistErr error
	if h.state == StateReady {
		persistErr = ix.persistLocked(h)
	}
	if err := h.transition(StateClosed); err != nil {
		return err
	}
	if err := ix.releaseLocked(h); err != nil {
		return err
	}

	ix.logger.Info("index_closed", slog.String("collection", string(h.collection)))
	return persistErr
}

// Revert releases the handle and discards writes made since the last
// commit. An on-disk index with pending writes is removed together with
// its commit marker.
func (ix *Indexer) Revert(h *Handle) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state.Terminal() {
		return nil
	}

	discard := h.pending && h.root != ""
	if err := h.transition(StateReverted); err != nil {
		return err
	}
	if err := ix.releaseLocked(h); err != nil {
		return err
	}
	if discard {
		if err := removeOnDisk(h.root, h.collection); err != nil {
			return apperrors.IndexIOError("failed to discard index", err).
				WithDetail("path", h.Dir())
		}
	}
	h.pending = false

	ix.logger.Info("index_reverted",
		slog.String("collection", string(h.collection)),
		slog.Bool("discarded", discard))
	return nil
}

// releaseLocked closes the index and drops the writer lock. Caller must
// hold h.mu.
func (ix *Indexer) releaseLocked(h *Handle) error {
	var closeErr error
	if h.index != nil {
		closeErr = h.index.Close()
		h.index = nil
	}
	h.reader = nil
	if h.lock != nil {
		if err := h.lock.Unlock(); err != nil && closeErr == nil {
			closeErr = err
		}
		h.lock = nil
	}
	if closeErr != nil {
		return apperrors.IndexIOError("failed to release index", closeErr)
	}
	return nil
}

// progressReporter forwards strictly increasing percentages.
type progressReporter struct {
	fn   func(int)
	last int
}

func newProgressReporter(fn func(int)) *progressReporter {
	return &progressReporter{fn: fn, last: -1}
}

func (p *progressReporter) report(pct int) {
	if p.fn == nil || pct <= p.last {
		return
	}
	if pct > 100 {
		pct = 100
	}
	p.last = pct
	p.fn(pct)
}
