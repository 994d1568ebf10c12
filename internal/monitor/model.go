package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// chromeLines is the number of lines the live view spends outside the tree.
const chromeLines = 7

// ReloadMsg reports a completed cache reload. Err is set when the reload
// failed, in which case Snapshot is ignored and the previous one stays shown.
type ReloadMsg struct {
	Snapshot Snapshot
	Err      error
}

// DoneMsg tells the view to exit.
type DoneMsg struct{}

// Model is the Bubble Tea model for the live cache view.
type Model struct {
	dir        string
	snap       Snapshot
	reloads    int
	lastErr    error
	refreshing bool
	done       bool

	offset int
	height int

	spinner spinner.Model
	help    help.Model
	keys    keyMap
	refresh func() ReloadMsg
}

// ModelOption configures optional Model behavior.
type ModelOption func(*Model)

// WithRefresh enables the reload key. fn runs off the UI loop.
func WithRefresh(fn func() ReloadMsg) ModelOption {
	return func(m *Model) {
		m.refresh = fn
	}
}

// NewModel creates a Model showing initial for the results directory dir.
func NewModel(dir string, initial Snapshot, opts ...ModelOption) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	m := Model{
		dir:     dir,
		snap:    initial,
		spinner: s,
		help:    help.New(),
		keys:    defaultKeys(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init starts the spinner tick.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ReloadMsg:
		m.reloads++
		m.refreshing = false
		if msg.Err != nil {
			m.lastErr = msg.Err
			return m, nil
		}
		m.lastErr = nil
		m.snap = msg.Snapshot
		m.offset = min(m.offset, m.maxOffset())
		return m, nil

	case DoneMsg:
		m.done = true
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.help.Width = msg.Width
		m.offset = min(m.offset, m.maxOffset())
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.done = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.offset > 0 {
				m.offset--
			}
		case key.Matches(msg, m.keys.Down):
			if m.offset < m.maxOffset() {
				m.offset++
			}
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.Refresh):
			if m.refresh == nil || m.refreshing {
				return m, nil
			}
			m.refreshing = true
			refresh := m.refresh
			return m, tea.Batch(m.spinner.Tick, func() tea.Msg { return refresh() })
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// visibleRows is how many tree lines fit; 0 means no limit.
func (m Model) visibleRows() int {
	if m.height == 0 {
		return 0
	}
	return max(1, m.height-chromeLines)
}

func (m Model) maxOffset() int {
	rows := m.visibleRows()
	if rows == 0 {
		return 0
	}
	return max(0, len(treeLines(m.snap))-rows)
}

// View renders the totals, the hardware tree and a status line.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("benchdash " + m.dir))
	b.WriteString("\n")
	b.WriteString(statsLine(m.snap))
	b.WriteString("\n\n")

	lines := treeLines(m.snap)
	if rows := m.visibleRows(); rows > 0 {
		end := min(len(lines), m.offset+rows)
		lines = lines[m.offset:end]
	}
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n")

	switch {
	case m.refreshing:
		b.WriteString(m.spinner.View() + " reloading")
	case m.lastErr != nil:
		b.WriteString(errorStyle.Render("reload failed: " + m.lastErr.Error()))
	case m.reloads > 0:
		b.WriteString(dimStyle.Render(fmt.Sprintf("%d reloads, last at %s",
			m.reloads, m.snap.Taken.Format("15:04:05"))))
	default:
		b.WriteString(m.spinner.View() + dimStyle.Render(" watching for changes"))
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))

	return b.String()
}
