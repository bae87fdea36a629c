package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"online_tables_lite/internal/api"
	"online_tables_lite/internal/cellformat"
	"online_tables_lite/internal/editor"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu    sync.Mutex
	calls [][]api.Cell
	err   error
}

func (w *recordingWriter) UpdateCells(_ context.Context, _, _ string, req api.CellBatchUpdateRequest) (*api.CellBatchUpdateResponse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, req.Cells)
	if w.err != nil {
		return nil, w.err
	}
	return &api.CellBatchUpdateResponse{Success: true, UpdatedCells: len(req.Cells)}, nil
}

type stubSource struct {
	table  api.Table
	editor *editor.Editor
}

func (s *stubSource) Table() api.Table        { return s.table }
func (s *stubSource) Editor() *editor.Editor { return s.editor }

func newTestModel(t *testing.T, w *recordingWriter) (Model, *stubSource) {
	t.Helper()
	title := "Shifts"
	header := "Day"
	width := 160
	src := &stubSource{
		table: api.Table{
			ID: "t1", Slug: "s1", Title: &title, Cols: 3, Rows: 4,
			Columns: []api.Column{{Idx: 1, Header: &header, Width: &width, Format: cellformat.Date}},
		},
	}
	src.editor = editor.New(w, "s1", "tok", []api.Cell{api.NewCell(0, 0, "Ada"), api.NewCell(0, 1, "2025-05-13")},
		editor.Options{Debounce: time.Hour})
	t.Cleanup(src.editor.Close)
	return New(src, nil), src
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case "ctrl+u":
			msg = tea.KeyMsg{Type: tea.KeyCtrlU}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestCursorStaysInsideTable(t *testing.T) {
	m, _ := newTestModel(t, &recordingWriter{})

	m = press(m, "h", "k")
	assert.Equal(t, [2]int{0, 0}, [2]int{m.cx, m.cy})

	m = press(m, "l", "l", "l", "l", "j", "j", "j", "j", "j")
	assert.Equal(t, [2]int{2, 3}, [2]int{m.cx, m.cy})

	m = press(m, "tab")
	assert.Equal(t, [2]int{2, 3}, [2]int{m.cx, m.cy})
}

func TestTabWrapsToNextRow(t *testing.T) {
	m, _ := newTestModel(t, &recordingWriter{})
	m = press(m, "l", "l", "tab")
	assert.Equal(t, [2]int{0, 1}, [2]int{m.cx, m.cy})
}

func TestEditCommitsToEditor(t *testing.T) {
	m, src := newTestModel(t, &recordingWriter{})

	m = press(m, "j", "enter", "Grace", "enter")
	assert.Equal(t, modeNormal, m.mode)
	assert.Equal(t, 2, m.cy)

	v, pending := src.editor.Lookup(1, 0)
	assert.Equal(t, "Grace", v)
	assert.True(t, pending)
	assert.Contains(t, m.View(), "unsaved *")
}

func TestTypingStartsEdit(t *testing.T) {
	m, src := newTestModel(t, &recordingWriter{})

	m = press(m, "B", "ob", "tab")
	assert.Equal(t, "Bob", src.editor.Value(0, 0))
	assert.Equal(t, 1, m.cx)
}

func TestInvalidDateStaysInEdit(t *testing.T) {
	m, src := newTestModel(t, &recordingWriter{})

	m = press(m, "l", "enter", "ctrl+u", "31.02.2025", "enter")
	assert.Equal(t, modeEdit, m.mode)
	require.Error(t, m.inputErr)
	assert.Equal(t, "2025-05-13", src.editor.Value(0, 1))

	m = press(m, "esc")
	assert.Equal(t, modeNormal, m.mode)
	assert.NoError(t, m.inputErr)
}

func TestDateInputIsNormalized(t *testing.T) {
	m, src := newTestModel(t, &recordingWriter{})

	m = press(m, "l", "j", "enter", "1.6.2025", "enter")
	assert.Equal(t, "2025-06-01", src.editor.Value(1, 1))
	assert.Contains(t, m.View(), "Sun 1 Jun 2025")
}

func TestClearCell(t *testing.T) {
	m, src := newTestModel(t, &recordingWriter{})
	press(m, "x")
	v, pending := src.editor.Lookup(0, 0)
	assert.Equal(t, "", v)
	assert.True(t, pending)
}

func TestQuitFlushesPendingEdits(t *testing.T) {
	w := &recordingWriter{}
	m, _ := newTestModel(t, w)
	m = press(m, "Z", "enter")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), "saving and quitting")

	msg := cmd()
	next, cmd = m.Update(msg)
	m = next.(Model)
	assert.NoError(t, m.QuitErr())
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Len(t, w.calls, 1)
	assert.Equal(t, []api.Cell{api.NewCell(0, 0, "Z")}, w.calls[0])
}

func TestStatusShowsErrorsAndRetry(t *testing.T) {
	w := &recordingWriter{err: errors.New("backend down")}
	m, src := newTestModel(t, w)
	m = press(m, "Z", "enter")
	require.Error(t, src.editor.FlushNow())

	view := m.View()
	assert.Contains(t, view, "backend down")
	assert.Contains(t, view, "r to retry")
	assert.Contains(t, view, "reconnecting...")

	w.mu.Lock()
	w.err = nil
	w.mu.Unlock()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, "Z", src.editor.Value(0, 0))
	assert.NoError(t, src.editor.LastError())
}

func TestViewRendersHeadersAndValues(t *testing.T) {
	m, src := newTestModel(t, &recordingWriter{})
	src.editor.SetConnectionStatus(true, nil)

	view := m.View()
	assert.Contains(t, view, "Shifts")
	assert.Contains(t, view, "Day")
	assert.Contains(t, view, "Ada")
	assert.Contains(t, view, "Tue 13 May 2025")
	assert.Contains(t, view, "live")
	assert.Contains(t, view, "A1 3x4")
}

func TestFitAndTail(t *testing.T) {
	assert.Equal(t, "ab  ", fit("ab", 4))
	assert.Equal(t, "abc…", fit("abcdef", 4))
	assert.Equal(t, 4, runewidth.StringWidth(fit("日本語", 4)))
	assert.Equal(t, "…ef_", tail("abcdef_", 4))
	assert.Equal(t, "ab_", tail("ab_", 4))
}

func TestNotifierCollapsesBursts(t *testing.T) {
	n := NewNotifier()
	n.Notify()
	n.Notify()
	msg := n.wait()()
	assert.IsType(t, changedMsg{}, msg)
	select {
	case <-n.ch:
		t.Fatal("expected a single pending notification")
	default:
	}
}
