// Package watcher reports changes to a single knowledge-base file.
//
// The parent directory is watched with fsnotify so that editors which save
// by renaming a temporary file over the original are still seen. When
// fsnotify is unavailable (network mounts, some containers) the file is
// polled instead. Bursts of events are debounced into batches.
//
// Usage:
//
//	w, err := watcher.New("/path/to/kb.yaml", watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	if err := w.Start(ctx); err != nil {
//	    return err
//	}
//	for batch := range w.Events() {
//	    // reload the knowledge base
//	}
package watcher
