package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrStarted is returned when Start is called twice or after Stop.
var ErrStarted = errors.New("watcher already started")

// FileWatcher watches one file and emits debounced batches of events.
type FileWatcher struct {
	path      string
	opts      Options
	debouncer *Debouncer
	events    chan []FileEvent
	errors    chan error
	stopCh    chan struct{}
	wg        sync.WaitGroup
	logger    *slog.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	polling bool
	started bool
	stopped bool
}

// New creates a watcher for the file at path. The file need not exist yet.
func New(path string, opts Options) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve absolute path: %w", err)
	}
	opts = opts.WithDefaults()
	return &FileWatcher{
		path:      abs,
		opts:      opts,
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		logger:    slog.Default(),
	}, nil
}

// Path returns the absolute path being watched.
func (w *FileWatcher) Path() string { return w.path }

// Polling reports whether the watcher fell back to polling.
func (w *FileWatcher) Polling() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.polling
}

// Start begins watching in the background. It returns once the watch is
// established. Watching ends when ctx is done or Stop is called.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started || w.stopped {
		return ErrStarted
	}
	w.started = true

	if !w.opts.Poll {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			if err = fsw.Add(filepath.Dir(w.path)); err != nil {
				_ = fsw.Close()
			}
		}
		if err == nil {
			w.fsw = fsw
		} else {
			w.logger.Warn("watch_fsnotify_unavailable",
				slog.String("path", w.path),
				slog.String("error", err.Error()))
		}
	}

	w.wg.Add(2)
	go w.forward(ctx)
	if w.fsw != nil {
		go w.runFsnotify(ctx)
	} else {
		w.polling = true
		go w.runPolling(ctx)
	}

	w.logger.Debug("watch_started",
		slog.String("path", w.path),
		slog.Bool("polling", w.polling))
	return nil
}

// Events returns the channel of debounced event batches.
// It is closed by Stop.
func (w *FileWatcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns non-fatal watcher errors. It is closed by Stop.
func (w *FileWatcher) Errors() <-chan error {
	return w.errors
}

// Stop stops watching and closes the output channels.
// Safe to call multiple times.
func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()
	w.debouncer.Stop()

	var err error
	if w.fsw != nil {
		err = w.fsw.Close()
	}
	close(w.events)
	close(w.errors)
	return err
}

func (w *FileWatcher) runFsnotify(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.emitError(err)
		}
	}
}

func (w *FileWatcher) handle(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}

	var op Operation
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpModify
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return
	}
	w.debouncer.Add(FileEvent{Path: w.path, Operation: op, Timestamp: time.Now()})
}

type fileState struct {
	exists  bool
	modTime time.Time
	size    int64
}

func (w *FileWatcher) stat() fileState {
	info, err := os.Stat(w.path)
	if err != nil {
		return fileState{}
	}
	return fileState{exists: true, modTime: info.ModTime(), size: info.Size()}
}

func (w *FileWatcher) runPolling(ctx context.Context) {
	defer w.wg.Done()

	last := w.stat()
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			cur := w.stat()
			var op Operation
			switch {
			case !last.exists && cur.exists:
				op = OpCreate
			case last.exists && !cur.exists:
				op = OpDelete
			case cur.exists && (!cur.modTime.Equal(last.modTime) || cur.size != last.size):
				op = OpModify
			default:
				continue
			}
			last = cur
			w.debouncer.Add(FileEvent{Path: w.path, Operation: op, Timestamp: time.Now()})
		}
	}
}

func (w *FileWatcher) forward(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			select {
			case w.events <- batch:
			case <-w.stopCh:
				return
			}
		}
	}
}

func (w *FileWatcher) emitError(err error) {
	select {
	case w.errors <- err:
	default:
		w.logger.Warn("watch_error_dropped", slog.String("error", err.Error()))
	}
}
