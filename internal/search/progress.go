package search

import "strings"

// ProgressMonitor receives indexing and search progress.
type ProgressMonitor interface {
	SetStarted()
	SetSize(size int)
	SetProgress(progress int)
	SetMessage(message string)
	SetFinished()
}

// Progress message bases.
const (
	MessageInitializing = "Initializing index"
	MessageIndexing     = "indexing"
	MessageSearching    = "searching"
)

// ProgressMessage returns base followed by zero to three dots, cycling
// with progress.
func ProgressMessage(base string, progress int) string {
	if progress < 0 {
		progress = 0
	}
	return base + strings.Repeat(".", progress%4)
}

// Executor runs a callback on the caller's designated context, such as a
// UI event loop.
type Executor func(fn func())

// DirectExecutor invokes callbacks on the worker.
func DirectExecutor(fn func()) { fn() }
