// Package tui is the interactive grid for editing a table in the terminal.
package tui

import (
	"online_tables_lite/internal/api"
	"online_tables_lite/internal/cellformat"
	"online_tables_lite/internal/editor"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Source is the open table the grid edits. *session.Session satisfies it.
type Source interface {
	Table() api.Table
	Editor() *editor.Editor
}

// Notifier wakes the program when the editor changes outside of Update,
// e.g. a flush finished or a collaborator's edit arrived.
type Notifier struct {
	ch chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

// Notify never blocks; bursts collapse into one redraw.
func (n *Notifier) Notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

func (n *Notifier) wait() tea.Cmd {
	return func() tea.Msg {
		<-n.ch
		return changedMsg{}
	}
}

type changedMsg struct{}

type retriedMsg struct{ err error }

type flushedForQuitMsg struct{ err error }

type mode int

const (
	modeNormal mode = iota
	modeEdit
)

type Model struct {
	src      Source
	notifier *Notifier

	width  int
	height int

	cx, cy  int
	scrollY int

	mode     mode
	input    textinput.Model
	inputErr error

	quitting bool
	quitErr  error
}

func New(src Source, notifier *Notifier) Model {
	ti := textinput.New()
	ti.CharLimit = 1000
	ti.Width = 40
	ti.Prompt = ""
	return Model{src: src, notifier: notifier, input: ti, width: 80, height: 24}
}

// QuitErr reports a failure to flush pending edits on the way out.
func (m Model) QuitErr() error {
	return m.quitErr
}

func (m Model) Init() tea.Cmd {
	if m.notifier == nil {
		return nil
	}
	return m.notifier.wait()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case changedMsg:
		m.clampCursor()
		return m, m.Init()
	case retriedMsg:
		return m, nil
	case flushedForQuitMsg:
		m.quitErr = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		if m.quitting {
			return m, nil
		}
		if m.mode == modeEdit {
			return m.updateEdit(msg)
		}
		return m.updateGrid(msg)
	}
	return m, nil
}

func (m Model) updateGrid(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	table := m.src.Table()
	ed := m.src.Editor()

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, func() tea.Msg { return flushedForQuitMsg{err: ed.FlushNow()} }
	case "left", "h":
		m.cx--
	case "right", "l":
		m.cx++
	case "up", "k":
		m.cy--
	case "down", "j":
		m.cy++
	case "home":
		m.cx = 0
	case "end":
		m.cx = table.Cols - 1
	case "pgup":
		m.cy -= m.dataHeight()
	case "pgdown":
		m.cy += m.dataHeight()
	case "tab":
		m.advance(1)
	case "shift+tab":
		m.advance(-1)
	case "enter", "e":
		m.startEdit(ed.Value(m.cy, m.cx))
		return m, textinput.Blink
	case "x", "delete", "backspace":
		ed.Set(m.cy, m.cx, "")
	case "r":
		if ed.HasFailedEdits() {
			return m, func() tea.Msg { return retriedMsg{err: ed.Retry()} }
		}
	default:
		if len(msg.Runes) > 0 && msg.Type == tea.KeyRunes {
			// typing over a cell starts a fresh edit
			m.startEdit("")
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
	}
	m.clampCursor()
	return m, nil
}

func (m *Model) startEdit(value string) {
	m.mode = modeEdit
	m.inputErr = nil
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Focus()
}

func (m Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.stopEdit()
		return m, nil
	case "enter":
		if m.commitEdit() {
			m.cy++
			m.clampCursor()
		}
		return m, nil
	case "tab":
		if m.commitEdit() {
			m.advance(1)
			m.clampCursor()
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.inputErr = nil
	return m, cmd
}

// commitEdit normalizes the input for the column's format and hands it to
// the editor. On a format error the grid stays in edit mode.
func (m *Model) commitEdit() bool {
	table := m.src.Table()
	format := table.Column(m.cx).Format
	value, err := cellformat.Normalize(format, m.input.Value())
	if err != nil {
		m.inputErr = err
		return false
	}
	m.src.Editor().Set(m.cy, m.cx, value)
	m.stopEdit()
	return true
}

func (m *Model) stopEdit() {
	m.mode = modeNormal
	m.inputErr = nil
	m.input.Blur()
	m.input.SetValue("")
}

func (m *Model) advance(step int) {
	table := m.src.Table()
	pos := m.cy*table.Cols + m.cx + step
	if table.Cols == 0 || pos < 0 || pos >= table.Cols*table.Rows {
		return
	}
	m.cy, m.cx = pos/table.Cols, pos%table.Cols
}

func (m *Model) clampCursor() {
	table := m.src.Table()
	m.cx = min(max(m.cx, 0), max(table.Cols-1, 0))
	m.cy = min(max(m.cy, 0), max(table.Rows-1, 0))

	if h := m.dataHeight(); m.cy >= m.scrollY+h {
		m.scrollY = m.cy - h + 1
	}
	if m.cy < m.scrollY {
		m.scrollY = m.cy
	}
}

// dataHeight is the number of grid rows that fit under the title, header,
// separator, status and help lines.
func (m Model) dataHeight() int {
	return max(m.height-6, 1)
}
