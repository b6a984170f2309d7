package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// plainStep is the minimum progress change printed by PlainMonitor.
const plainStep = 25

// PlainMonitor prints progress as plain lines (for CI and pipes).
type PlainMonitor struct {
	mu      sync.Mutex
	out     io.Writer
	size    int
	message string
	printed int
	active  bool
}

// NewPlainMonitor creates a plain text monitor.
func NewPlainMonitor(cfg Config) *PlainMonitor {
	return &PlainMonitor{out: cfg.Output, size: 100}
}

// Start implements Monitor.
func (m *PlainMonitor) Start(ctx context.Context) error { return nil }

// Stop implements Monitor.
func (m *PlainMonitor) Stop() error { return nil }

// SetStarted implements Monitor.
func (m *PlainMonitor) SetStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = true
	m.printed = -plainStep
	m.message = ""
}

// SetSize implements Monitor.
func (m *PlainMonitor) SetSize(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if size > 0 {
		m.size = size
	}
}

// SetMessage implements Monitor. Only the message base without the
// trailing dots is kept.
func (m *PlainMonitor) SetMessage(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.message = strings.TrimRight(message, ".")
}

// SetProgress implements Monitor.
func (m *PlainMonitor) SetProgress(progress int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active || progress-m.printed < plainStep {
		return
	}
	m.printed = progress
	_, _ = fmt.Fprintf(m.out, "[%s] %d%%\n", m.label(), progress*100/m.size)
}

// SetFinished implements Monitor.
func (m *PlainMonitor) SetFinished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return
	}
	m.active = false
	_, _ = fmt.Fprintf(m.out, "[%s] done\n", m.label())
}

func (m *PlainMonitor) label() string {
	if m.message == "" {
		return "working"
	}
	return m.message
}
