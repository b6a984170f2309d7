package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// TUIMonitor renders progress with a bubbletea spinner and progress bar.
type TUIMonitor struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *progressModel
	done    chan struct{}
}

// NewTUIMonitor creates a TUI monitor writing to cfg.Output.
func NewTUIMonitor(cfg Config) *TUIMonitor {
	return &TUIMonitor{
		cfg:   cfg,
		model: newProgressModel(GetStyles(cfg.NoColor)),
		done:  make(chan struct{}),
	}
}

// Start implements Monitor.
func (m *TUIMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.program != nil {
		return nil
	}
	m.program = tea.NewProgram(m.model,
		tea.WithContext(ctx),
		tea.WithOutput(m.cfg.Output),
		tea.WithInput(nil),
	)
	go func() {
		defer close(m.done)
		_, _ = m.program.Run()
	}()
	return nil
}

// Stop implements Monitor.
func (m *TUIMonitor) Stop() error {
	m.mu.Lock()
	p := m.program
	m.mu.Unlock()

	if p == nil {
		return nil
	}
	p.Quit()
	select {
	case <-m.done:
	case <-time.After(2 * time.Second):
	}
	return nil
}

func (m *TUIMonitor) send(msg tea.Msg) {
	m.mu.Lock()
	p := m.program
	m.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// SetStarted implements Monitor.
func (m *TUIMonitor) SetStarted() { m.send(startedMsg{}) }

// SetSize implements Monitor.
func (m *TUIMonitor) SetSize(size int) { m.send(sizeMsg(size)) }

// SetProgress implements Monitor.
func (m *TUIMonitor) SetProgress(progress int) { m.send(progressMsg(progress)) }

// SetMessage implements Monitor.
func (m *TUIMonitor) SetMessage(message string) { m.send(messageMsg(message)) }

// SetFinished implements Monitor.
func (m *TUIMonitor) SetFinished() { m.send(finishedMsg{}) }

type (
	startedMsg  struct{}
	finishedMsg struct{}
	sizeMsg     int
	progressMsg int
	messageMsg  string
)

// progressModel is the bubbletea model behind TUIMonitor.
type progressModel struct {
	spinner  spinner.Model
	bar      progress.Model
	styles   Styles
	active   bool
	size     int
	current  int
	message  string
	finished int
}

func newProgressModel(styles Styles) *progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Success
	return &progressModel{
		spinner: s,
		bar: progress.New(
			progress.WithSolidFill(ColorLime),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
		styles: styles,
		size:   100,
	}
}

// Init implements tea.Model.
func (m *progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = msg.Width - 30
		if m.bar.Width < 10 {
			m.bar.Width = 10
		}
	case startedMsg:
		m.active = true
		m.current = 0
	case sizeMsg:
		if msg > 0 {
			m.size = int(msg)
		}
	case progressMsg:
		m.current = int(msg)
	case messageMsg:
		m.message = string(msg)
	case finishedMsg:
		m.active = false
		m.current = m.size
		m.finished++
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *progressModel) View() string {
	if !m.active {
		if m.finished == 0 {
			return ""
		}
		return m.styles.Success.Render("✓ ") + m.styles.Label.Render(strings.TrimRight(m.message, ".")) + "\n"
	}
	return fmt.Sprintf("%s %s %s %s\n",
		m.spinner.View(),
		m.bar.ViewAs(m.fraction()),
		m.styles.Label.Render(fmt.Sprintf("%3d%%", int(m.fraction()*100))),
		m.message)
}

func (m *progressModel) fraction() float64 {
	if m.size <= 0 {
		return 0
	}
	f := float64(m.current) / float64(m.size)
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}
