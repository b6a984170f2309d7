// Package search orchestrates indexing and searching of a collection:
// staleness tracking, the single-worker job queue, query execution and
// last-request-wins delivery of results.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/ontosearch/internal/index"
	"github.com/Aman-CERP/ontosearch/internal/item"
	"github.com/Aman-CERP/ontosearch/internal/query"
)

// Defaults for Options fields left at zero.
const (
	DefaultQueueSize      = 64
	DefaultQueryCacheSize = 128
)

// ErrDisposed is returned by operations on a disposed manager.
var ErrDisposed = errors.New("search manager disposed")

// ResultHandler receives the final result set of a search.
type ResultHandler func(results *query.ResultSet)

// Options configures a Manager.
type Options struct {
	// Categories is the initial active category set. Defaults to all categories.
	Categories index.CategorySet

	// IndexRoot is the directory on-disk indexes live under. Empty keeps
	// indexes in memory.
	IndexRoot string

	// BatchSize is the number of items written per batch during rebuilds.
	BatchSize int

	// PageSize is the number of hits fetched between cancellation checks.
	PageSize int

	// QueueSize bounds the job queue. Submitting to a full queue blocks.
	QueueSize int

	// QueryCacheSize is the number of compiled query batches kept.
	QueryCacheSize int

	// Executor delivers results and progress. Defaults to DirectExecutor.
	Executor Executor

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Manager owns the index handles of the collections it searches and runs
// every rebuild, update and search on one worker goroutine.
//
// Search and NotifyCollectionChanged return after enqueuing work. Only the
// most recently issued search delivers results: earlier searches still in
// the queue or running notice they were superseded and stop silently.
type Manager struct {
	// submitMu makes id allocation and enqueueing one step, so queue order
	// matches id order.
	submitMu sync.Mutex

	// issued is the last id handed out; ids are never reused.
	issued atomic.Uint64
	// lastSearchID is the id of the latest search, or 0 when the index of
	// the active collection must be rebuilt before the next search.
	lastSearchID atomic.Uint64
	// retryRebuild is set when a rebuild failed over an index that is still
	// searchable; the next search serves it and schedules another rebuild.
	retryRebuild atomic.Bool

	mu          sync.RWMutex
	collection  item.Collection
	collections map[item.CollectionID]item.Collection
	categories  index.CategorySet

	cache   *index.Cache
	indexer *index.Indexer
	runner  *Runner
	queries *lru.Cache[string, query.SearchQueries]

	monitorsMu sync.Mutex
	monitors   []ProgressMonitor

	jobs     chan job
	done     chan struct{}
	disposed atomic.Bool
	once     sync.Once

	executor Executor
	logger   *slog.Logger
}

// NewManager creates a manager searching coll and starts its worker.
func NewManager(coll item.Collection, opts Options) (*Manager, error) {
	if coll == nil {
		return nil, fmt.Errorf("search manager requires a collection")
	}
	if opts.Categories.IsEmpty() {
		opts.Categories = index.AllCategories()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.QueryCacheSize <= 0 {
		opts.QueryCacheSize = DefaultQueryCacheSize
	}
	if opts.Executor == nil {
		opts.Executor = DirectExecutor
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	queries, err := lru.New[string, query.SearchQueries](opts.QueryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}

	m := &Manager{
		collection:  coll,
		collections: map[item.CollectionID]item.Collection{coll.ID(): coll},
		categories:  opts.Categories,
		cache:       index.NewCache(opts.IndexRoot),
		indexer:     index.NewIndexer(index.Config{BatchSize: opts.BatchSize, Logger: opts.Logger}),
		queries:     queries,
		jobs:        make(chan job, opts.QueueSize),
		done:        make(chan struct{}),
		executor:    opts.Executor,
		logger:      opts.Logger,
	}
	m.runner = NewRunner(opts.PageSize, m.lastSearchID.Load, opts.Logger)

	go m.run()
	return m, nil
}

// Collection returns the active collection.
func (m *Manager) Collection() item.Collection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collection
}

// Categories returns the active category set.
func (m *Manager) Categories() index.CategorySet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.categories
}

// ConfigureCategories replaces the active category set. The index is
// rebuilt before the next search.
func (m *Manager) ConfigureCategories(set index.CategorySet) {
	m.submitMu.Lock()
	defer m.submitMu.Unlock()

	m.mu.Lock()
	m.categories = set
	m.mu.Unlock()

	m.queries.Purge()
	m.lastSearchID.Store(0)
	m.logger.Info("search_categories_configured", slog.String("categories", set.String()))
}

// Search issues a search for text and returns its id, or 0 if the manager
// is disposed. handler is called once with the results unless a newer
// search supersedes this one. The first search after the index became
// stale also schedules a rebuild, which runs before the search.
//
// Handlers run through the Executor; with DirectExecutor they run on the
// worker and must not block on the manager.
func (m *Manager) Search(text string, handler ResultHandler) uint64 {
	return m.submitSearch(text, handler, nil)
}

func (m *Manager) submitSearch(text string, handler ResultHandler, finished func(error)) uint64 {
	m.submitMu.Lock()
	defer m.submitMu.Unlock()

	if m.disposed.Load() {
		return 0
	}

	m.mu.RLock()
	coll, cats := m.collection, m.categories
	m.mu.RUnlock()

	id := m.issued.Add(1)
	h, _ := m.cache.GetOrCreate(coll.ID())
	stale := m.lastSearchID.Swap(id) == 0
	if m.retryRebuild.Swap(false) {
		stale = true
	}
	if stale {
		m.enqueue(rebuildJob{handle: h, collection: coll, categories: cats})
	}

	m.enqueue(searchJob{
		id:       id,
		handle:   h,
		queries:  m.compile(text, coll, cats),
		handler:  handler,
		finished: finished,
	})
	return id
}

// compile returns the query batch for text, reusing a cached batch.
func (m *Manager) compile(text string, coll item.Collection, cats index.CategorySet) query.SearchQueries {
	key := fmt.Sprintf("%016x|%s|%s", cats.Fingerprint(), coll.ID(), text)
	if qs, ok := m.queries.Get(key); ok {
		return qs
	}
	qs := query.Compile(text, cats, query.NewDocumentResolver(coll), m.logger)
	m.queries.Add(key, qs)
	return qs
}

// SearchSync issues a search and waits for its results. It fails with
// ErrInterrupted when a newer search superseded it.
func (m *Manager) SearchSync(ctx context.Context, text string) (*query.ResultSet, error) {
	results := make(chan *query.ResultSet, 1)
	failed := make(chan error, 1)

	id := m.submitSearch(text,
		func(rs *query.ResultSet) { results <- rs },
		func(err error) {
			if err != nil {
				failed <- err
			}
		})
	if id == 0 {
		return nil, ErrDisposed
	}

	select {
	case rs := <-results:
		return rs, nil
	case err := <-failed:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// NotifyCollectionChanged reports an edit of the collection.
func (m *Manager) NotifyCollectionChanged(n Notification) {
	m.submitMu.Lock()
	defer m.submitMu.Unlock()

	if m.disposed.Load() {
		return
	}

	switch n := n.(type) {
	case Structural:
		if n.Collection != nil {
			m.mu.Lock()
			old := m.collection
			m.collection = n.Collection
			m.collections[n.Collection.ID()] = n.Collection
			if old.ID() != n.Collection.ID() {
				delete(m.collections, old.ID())
			}
			m.mu.Unlock()
			m.queries.Purge()

			// The replaced collection's index is released on the worker,
			// after any job still using it.
			if old.ID() != n.Collection.ID() {
				if h, ok := m.cache.Get(old.ID()); ok {
					m.cache.Evict(old.ID())
					m.enqueue(releaseJob{handle: h, collection: old})
				}
			}
		}
		m.lastSearchID.Store(0)
		m.logger.Debug("search_index_invalidated",
			slog.String("collection", string(m.Collection().ID())))

	case Incremental:
		if n.Changes.IsEmpty() || m.lastSearchID.Load() == 0 {
			return
		}
		if h, ok := m.cache.Get(m.Collection().ID()); ok {
			m.enqueue(updateJob{handle: h, changes: n.Changes})
		}

	case Saved:
		if h, ok := m.cache.Get(m.Collection().ID()); ok {
			m.enqueue(persistJob{handle: h})
		}

	default:
		m.logger.Warn("search_unknown_notification", slog.String("type", fmt.Sprintf("%T", n)))
	}
}

// AddProgressObserver registers a monitor for indexing and search progress.
func (m *Manager) AddProgressObserver(mon ProgressMonitor) {
	m.monitorsMu.Lock()
	defer m.monitorsMu.Unlock()
	m.monitors = append(m.monitors, mon)
}

// Flush waits until every job submitted before the call has run.
func (m *Manager) Flush(ctx context.Context) error {
	ch := make(chan struct{})
	m.submitMu.Lock()
	if m.disposed.Load() {
		m.submitMu.Unlock()
		return ErrDisposed
	}
	m.enqueue(funcJob{fn: func() { close(ch) }})
	m.submitMu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispose stops the worker after the queued jobs ran, unregisters all
// monitors and releases every index: indexes of collections with unsaved
// changes are reverted, the others are closed.
func (m *Manager) Dispose() error {
	var err error
	m.once.Do(func() {
		m.submitMu.Lock()
		m.disposed.Store(true)
		close(m.jobs)
		m.submitMu.Unlock()
		<-m.done

		m.monitorsMu.Lock()
		m.monitors = nil
		m.monitorsMu.Unlock()

		err = m.releaseHandles()
	})
	return err
}

func (m *Manager) releaseHandles() error {
	m.mu.RLock()
	collections := make(map[item.CollectionID]item.Collection, len(m.collections))
	for id, c := range m.collections {
		collections[id] = c
	}
	m.mu.RUnlock()

	var g errgroup.Group
	for _, h := range m.cache.Handles() {
		h := h
		coll := collections[h.Collection()]
		g.Go(func() error {
			defer m.cache.Evict(h.Collection())
			return m.release(h, coll)
		})
	}
	return g.Wait()
}

// release reverts the index of a collection with unsaved changes and
// closes any other.
func (m *Manager) release(h *index.Handle, coll item.Collection) error {
	if coll != nil && coll.IsDirty() {
		return m.indexer.Revert(h)
	}
	return m.indexer.Close(h)
}

// enqueue submits a job, blocking while the queue is full. Caller must
// hold submitMu.
func (m *Manager) enqueue(j job) {
	m.jobs <- j
}

// run is the worker loop.
func (m *Manager) run() {
	defer close(m.done)
	for j := range m.jobs {
		m.process(j)
	}
}

func (m *Manager) process(j job) {
	ctx := context.Background()

	switch j := j.(type) {
	case rebuildJob:
		m.started(MessageInitializing)
		err := m.indexer.Rebuild(ctx, j.handle, j.categories, j.collection.Snapshot(), func(p int) {
			m.progress(MessageIndexing, p)
		})
		m.finished()
		if err == nil {
			return
		}
		// The next search retries the rebuild. Until then a previously
		// built index keeps answering.
		if j.handle.State() == index.StateReady {
			m.retryRebuild.Store(true)
			m.logger.Warn("search_rebuild_failed",
				slog.String("collection", string(j.handle.Collection())),
				slog.Bool("serving_previous", true),
				slog.String("error", err.Error()))
			return
		}
		m.lastSearchID.Store(0)

	case updateJob:
		changed, err := m.indexer.Apply(ctx, j.handle, j.changes)
		if err != nil {
			m.logger.Warn("search_update_skipped",
				slog.String("collection", string(j.handle.Collection())),
				slog.String("error", err.Error()))
			return
		}
		m.logger.Debug("search_index_updated",
			slog.String("collection", string(j.handle.Collection())),
			slog.Bool("changed", changed))

	case searchJob:
		m.search(ctx, j)

	case releaseJob:
		if err := m.release(j.handle, j.collection); err != nil {
			m.logger.Error("search_release_failed",
				slog.String("collection", string(j.handle.Collection())),
				slog.String("error", err.Error()))
			return
		}
		m.logger.Debug("search_index_released",
			slog.String("collection", string(j.handle.Collection())),
			slog.String("state", j.handle.State().String()))

	case persistJob:
		if err := m.indexer.Persist(j.handle); err != nil {
			m.logger.Error("search_persist_failed",
				slog.String("collection", string(j.handle.Collection())),
				slog.String("error", err.Error()))
		}

	case funcJob:
		j.fn()
	}
}

func (m *Manager) search(ctx context.Context, j searchJob) {
	if m.lastSearchID.Load() != j.id {
		j.finish(ErrInterrupted)
		return
	}

	reader, err := m.indexer.Reader(j.handle)
	if err != nil {
		m.logger.Warn("search_index_unavailable",
			slog.Uint64("search_id", j.id),
			slog.String("error", err.Error()))
		j.finish(err)
		return
	}

	results := query.NewResultSet()
	m.started(MessageSearching)
	err = m.runner.Execute(ctx, j.id, reader, j.queries, results, func(p int) {
		m.progress(MessageSearching, p)
	})
	m.finished()

	switch {
	case errors.Is(err, ErrInterrupted):
		m.logger.Debug("search_superseded", slog.Uint64("search_id", j.id))
		j.finish(err)
	case err != nil:
		m.logger.Error("search_failed",
			slog.Uint64("search_id", j.id),
			slog.String("error", err.Error()))
		j.finish(err)
	default:
		m.logger.Debug("search_completed",
			slog.Uint64("search_id", j.id),
			slog.Int("results", results.Len()))
		if j.handler != nil {
			m.executor(func() { j.handler(results) })
		}
		j.finish(nil)
	}
}

// observers returns a copy of the registered monitors.
func (m *Manager) observers() []ProgressMonitor {
	m.monitorsMu.Lock()
	defer m.monitorsMu.Unlock()
	out := make([]ProgressMonitor, len(m.monitors))
	copy(out, m.monitors)
	return out
}

func (m *Manager) started(message string) {
	for _, mon := range m.observers() {
		mon := mon
		m.executor(func() {
			mon.SetStarted()
			mon.SetSize(100)
			mon.SetMessage(message)
		})
	}
}

func (m *Manager) progress(base string, p int) {
	msg := ProgressMessage(base, p)
	for _, mon := range m.observers() {
		mon := mon
		m.executor(func() {
			mon.SetProgress(p)
			mon.SetMessage(msg)
		})
	}
}

func (m *Manager) finished() {
	for _, mon := range m.observers() {
		mon := mon
		m.executor(mon.SetFinished)
	}
}
