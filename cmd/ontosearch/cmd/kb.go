package cmd

import (
	"context"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	apperrors "github.com/Aman-CERP/ontosearch/internal/errors"
	"github.com/Aman-CERP/ontosearch/internal/index"
	"github.com/Aman-CERP/ontosearch/internal/item"
	"github.com/Aman-CERP/ontosearch/internal/search"
	"github.com/Aman-CERP/ontosearch/internal/watcher"
)

// kbFlags are the flags of commands that open a knowledge base.
type kbFlags struct {
	path       string
	categories []string
}

func (f *kbFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.path, "kb", "k", "", "Knowledge base file (.yaml, .yml, .db)")
	cmd.Flags().StringSliceVar(&f.categories, "category", nil,
		"Search categories: display_name, identifier, annotation_value, filtered_annotation (default from config)")
	_ = cmd.MarkFlagRequired("kb")
}

// session is a loaded knowledge base and the manager searching it.
type session struct {
	path    string
	manager *search.Manager
	logger  *slog.Logger

	// mu serializes edits of coll so snapshots, diffs and notifications
	// stay in order.
	mu   sync.Mutex
	coll *item.Memory
}

// loadKnowledgeBase reads the knowledge base at path.
func loadKnowledgeBase(ctx context.Context, path string) (*item.Memory, error) {
	coll, err := item.Load(ctx, path)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeKnowledgeBase, "failed to load knowledge base", err).
			WithDetail("path", path).
			WithSuggestion("Check that the file exists and is a YAML or SQLite knowledge base.")
	}
	return coll, nil
}

// categories resolves the active categories: flags win over config.
func (a *app) categories(f kbFlags) (index.CategorySet, error) {
	if len(f.categories) == 0 {
		set, err := a.cfg.CategorySet()
		if err != nil {
			return index.CategorySet{}, apperrors.ConfigError("invalid index.categories", err)
		}
		return set, nil
	}
	set, err := index.ParseCategories(f.categories)
	if err != nil {
		return index.CategorySet{}, apperrors.ValidationError("invalid --category", err).
			WithSuggestion("Use display_name, identifier, annotation_value or filtered_annotation.")
	}
	return set, nil
}

// managerOptions maps the configuration onto search manager options.
func (a *app) managerOptions(cats index.CategorySet) search.Options {
	return search.Options{
		Categories:     cats,
		IndexRoot:      a.cfg.IndexRoot(),
		BatchSize:      a.cfg.Index.BatchSize,
		PageSize:       a.cfg.Search.PageSize,
		QueueSize:      a.cfg.Search.QueueSize,
		QueryCacheSize: a.cfg.Search.QueryCacheSize,
		Logger:         a.logger,
	}
}

// openSession loads the knowledge base and starts a manager for it.
// A non-nil monitor is registered before any work is queued.
func (a *app) openSession(ctx context.Context, f kbFlags, monitor search.ProgressMonitor) (*session, error) {
	cats, err := a.categories(f)
	if err != nil {
		return nil, err
	}
	coll, err := loadKnowledgeBase(ctx, f.path)
	if err != nil {
		return nil, err
	}
	mgr, err := search.NewManager(coll, a.managerOptions(cats))
	if err != nil {
		return nil, apperrors.InternalError("failed to start search manager", err)
	}
	if monitor != nil {
		mgr.AddProgressObserver(monitor)
	}

	a.logger.Info("knowledge_base_opened",
		slog.String("path", f.path),
		slog.String("collection", string(coll.ID())),
		slog.Int("items", coll.Len()),
		slog.String("categories", cats.String()))

	return &session{path: f.path, manager: mgr, logger: a.logger, coll: coll}, nil
}

// lookup returns the current version of an item.
func (s *session) lookup(id item.ID) (item.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coll.Lookup(id)
}

// dirty reports whether the collection has unsaved edits.
func (s *session) dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coll.IsDirty()
}

// apply edits the collection and forwards the edit to the manager.
func (s *session) apply(cs item.ChangeSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cs.IsEmpty() {
		return
	}
	s.coll.Apply(cs)
	s.manager.NotifyCollectionChanged(search.Incremental{Changes: cs})
}

// save writes the collection back to its file and commits the index.
func (s *session) save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := item.Save(ctx, s.path, s.coll); err != nil {
		return apperrors.New(apperrors.ErrCodeKnowledgeBase, "failed to save knowledge base", err).
			WithDetail("path", s.path)
	}
	s.manager.NotifyCollectionChanged(search.Saved{})
	return nil
}

// reload re-reads the file and brings the collection and index up to date
// with it. It returns the number of item changes found.
func (s *session) reload(ctx context.Context) (int, error) {
	fresh, err := loadKnowledgeBase(ctx, s.path)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if fresh.ID() != s.coll.ID() {
		s.coll = fresh
		s.manager.NotifyCollectionChanged(search.Structural{Collection: fresh})
		s.logger.Info("knowledge_base_replaced", slog.String("collection", string(fresh.ID())))
		return fresh.Len(), nil
	}

	cs := item.Diff(s.coll.Snapshot(), fresh.Snapshot())
	if cs.IsEmpty() {
		return 0, nil
	}
	s.coll.Apply(cs)
	s.manager.NotifyCollectionChanged(search.Incremental{Changes: cs})
	// The file already holds this content.
	s.coll.MarkSaved()
	s.manager.NotifyCollectionChanged(search.Saved{})

	s.logger.Info("knowledge_base_reloaded",
		slog.String("collection", string(s.coll.ID())),
		slog.Int("changes", cs.Len()))
	return cs.Len(), nil
}

// watch reloads the knowledge base whenever its file changes, until ctx
// is done. onReload, when set, is called after every reload attempt.
func (s *session) watch(ctx context.Context, onReload func(changes int, err error)) (func(), error) {
	w, err := watcher.New(s.path, watcher.DefaultOptions())
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case batch, ok := <-w.Events():
				if !ok {
					return
				}
				if removedOnly(batch) {
					s.logger.Warn("knowledge_base_removed", slog.String("path", s.path))
					continue
				}
				n, err := s.reload(ctx)
				if err != nil {
					s.logger.Warn("knowledge_base_reload_failed",
						slog.String("path", s.path),
						slog.String("error", err.Error()))
				}
				if onReload != nil {
					onReload(n, err)
				}
			case err, ok := <-w.Errors():
				if !ok {
					return
				}
				s.logger.Warn("watch_error", slog.String("error", err.Error()))
			}
		}
	}()

	return func() {
		_ = w.Stop()
		<-done
	}, nil
}

func removedOnly(batch []watcher.FileEvent) bool {
	for _, ev := range batch {
		if ev.Operation != watcher.OpDelete {
			return false
		}
	}
	return len(batch) > 0
}

// close disposes the manager: dirty indexes are reverted, clean ones closed.
func (s *session) close() error {
	return s.manager.Dispose()
}
