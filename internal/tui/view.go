package tui

import (
	"fmt"
	"strings"

	"online_tables_lite/internal/api"
	"online_tables_lite/internal/cellformat"
	"online_tables_lite/internal/export"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	cursorStyle  = lipgloss.NewStyle().Background(lipgloss.Color("4")).Foreground(lipgloss.Color("15"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

const (
	defaultColWidth = 12
	minColWidth     = 4
	maxColWidth     = 30
	// column widths are configured in pixels for the web grid
	pixelsPerChar = 8
)

func (m Model) View() string {
	if m.quitting {
		return dimStyle.Render(" saving and quitting...") + "\n"
	}

	table := m.src.Table()
	ed := m.src.Editor()
	var b strings.Builder

	title := table.Slug
	if table.Title != nil && *table.Title != "" {
		title = *table.Title
	}
	b.WriteString(titleStyle.Render(" " + runewidth.Truncate(title, max(m.width-2, 1), "…")))
	b.WriteString("\n")

	if table.Cols == 0 || table.Rows == 0 {
		b.WriteString(dimStyle.Render(" (empty table)") + "\n")
		b.WriteString(m.statusLine())
		return b.String()
	}

	widths := columnWidths(&table)
	start, end := m.visibleColumns(widths)

	var hdr strings.Builder
	for c := start; c < end; c++ {
		hdr.WriteString(headerStyle.Render(" " + fit(header(&table, c), widths[c]) + " "))
		if c < end-1 {
			hdr.WriteString(dimStyle.Render("│"))
		}
	}
	b.WriteString(hdr.String() + "\n")

	var sep strings.Builder
	for c := start; c < end; c++ {
		sep.WriteString(strings.Repeat("─", widths[c]+2))
		if c < end-1 {
			sep.WriteString("┼")
		}
	}
	b.WriteString(dimStyle.Render(sep.String()) + "\n")

	last := min(m.scrollY+m.dataHeight(), table.Rows)
	for r := m.scrollY; r < last; r++ {
		for c := start; c < end; c++ {
			var text string
			value, pending := ed.Lookup(r, c)
			if m.mode == modeEdit && r == m.cy && c == m.cx {
				text = tail(m.input.Value()+"_", widths[c])
			} else {
				text = cellformat.Display(table.Column(c).Format, value)
			}
			cell := " " + fit(text, widths[c]) + " "

			switch {
			case r == m.cy && c == m.cx:
				b.WriteString(cursorStyle.Render(cell))
			case pending:
				b.WriteString(pendingStyle.Render(cell))
			default:
				b.WriteString(cell)
			}
			if c < end-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString(m.statusLine())
	return b.String()
}

func (m Model) statusLine() string {
	ed := m.src.Editor()
	table := m.src.Table()

	parts := []string{fmt.Sprintf("%s %dx%d", export.CellName(m.cy, m.cx), table.Cols, table.Rows)}
	if m.mode == modeEdit {
		parts = append(parts, "EDIT "+string(table.Column(m.cx).Format))
	}
	if ed.IsConnected() {
		parts = append(parts, "live")
	} else {
		parts = append(parts, "reconnecting...")
	}
	switch {
	case ed.IsFlushing():
		parts = append(parts, "saving...")
	case ed.HasPendingEdits():
		parts = append(parts, "unsaved *")
	}
	line := statusStyle.Render(" "+strings.Join(parts, "  ")) + "\n"

	if m.inputErr != nil {
		line += errorStyle.Render(" "+m.inputErr.Error()) + "\n"
	} else if err := ed.LastError(); err != nil {
		hint := ""
		if ed.HasFailedEdits() {
			hint = "  (r to retry)"
		}
		line += errorStyle.Render(" error: "+err.Error()+hint) + "\n"
	}

	help := " hjkl move  enter edit  x clear  r retry  q quit"
	if m.mode == modeEdit {
		help = " enter save  tab save+next  esc cancel"
	}
	return line + dimStyle.Render(help)
}

func header(table *api.Table, col int) string {
	if h := table.Column(col).Header; h != nil && *h != "" {
		return *h
	}
	return export.ColumnName(col)
}

func columnWidths(table *api.Table) []int {
	widths := make([]int, table.Cols)
	for c := range widths {
		w := defaultColWidth
		if px := table.Column(c).Width; px != nil {
			w = *px / pixelsPerChar
		}
		widths[c] = min(max(w, minColWidth), maxColWidth)
	}
	return widths
}

// visibleColumns returns the [start, end) column range that fits the
// terminal, scrolled so the cursor column is on screen.
func (m Model) visibleColumns(widths []int) (int, int) {
	avail := max(m.width-2, minColWidth+3)
	start := 0

	span := func(from, to int) int {
		used := 0
		for c := from; c <= to; c++ {
			used += widths[c] + 3
		}
		return used
	}
	for start < m.cx && span(start, m.cx) > avail {
		start++
	}

	end := start
	used := 0
	for end < len(widths) {
		w := widths[end] + 3
		if used+w > avail && end > start {
			break
		}
		used += w
		end++
	}
	return start, end
}

// fit truncates or pads s to exactly width terminal cells.
func fit(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if lipgloss.Width(s) > width {
		s = runewidth.Truncate(s, width, "…")
	}
	if pad := width - lipgloss.Width(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

// tail keeps the end of s visible while it is being typed.
func tail(s string, width int) string {
	if sw := runewidth.StringWidth(s); sw > width {
		return runewidth.TruncateLeft(s, sw-width+1, "…")
	}
	return s
}
