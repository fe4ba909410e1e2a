package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/pageshot/pkg/store"
)

// =============================================================================
// CaptureListModel - Interactive capture selection
// =============================================================================

// CaptureListModel is the bubbletea model for picking stored captures.
// Space toggles a capture, enter confirms the toggled set (or the capture
// under the cursor when nothing is toggled).
type CaptureListModel struct {
	Captures []*store.Record
	Cursor   int
	Marked   map[int]bool
	Selected []*store.Record
	Height   int
	Offset   int

	now time.Time
}

// NewCaptureListModel creates a picker over recs.
func NewCaptureListModel(recs []*store.Record, now time.Time) CaptureListModel {
	return CaptureListModel{
		Captures: recs,
		Marked:   map[int]bool{},
		Height:   15,
		now:      now,
	}
}

func (m CaptureListModel) Init() tea.Cmd {
	return nil
}

func (m CaptureListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Captures)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case " ":
			if len(m.Captures) > 0 {
				m.Marked[m.Cursor] = !m.Marked[m.Cursor]
			}
		case "enter":
			if len(m.Captures) == 0 {
				return m, nil
			}
			m.Selected = m.selection()
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	}
	return m, nil
}

func (m CaptureListModel) selection() []*store.Record {
	var out []*store.Record
	for i, rec := range m.Captures {
		if m.Marked[i] {
			out = append(out, rec)
		}
	}
	if len(out) == 0 {
		out = append(out, m.Captures[m.Cursor])
	}
	return out
}

func (m CaptureListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Captures"))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("↑/↓ navigate  space mark  ⏎ export  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Captures))

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		r := m.Captures[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		mark := " "
		if m.Marked[i] {
			mark = "✓"
		}
		rows = append(rows, []string{
			cursor + mark,
			shortID(r.ID),
			captureLabel(r),
			string(r.Mode),
			fmt.Sprintf("%dx%d", r.Width, r.Height),
			formatAge(m.now, r.CreatedAt),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleTableBorder).
		Headers("", "ID", "Page", "Mode", "Size", "Taken").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleTableHeader
			}
			idx := m.Offset + row
			base := lipgloss.NewStyle()
			if col >= 3 {
				base = base.Foreground(colorDim)
			}
			switch {
			case idx == m.Cursor:
				return base.Foreground(colorGreen).Bold(true)
			case m.Marked[idx]:
				return base.Foreground(colorCyan)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(StyleDim.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Captures))))

	return b.String()
}

// =============================================================================
// Helpers
// =============================================================================

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// captureLabel names a capture by title, then URL, then source.
func captureLabel(r *store.Record) string {
	switch {
	case r.Title != "":
		return r.Title
	case r.URL != "":
		return r.URL
	case r.SourceID != "":
		return r.SourceID
	}
	return "—"
}

func formatAge(now, t time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return t.Local().Format("Jan 2 15:04")
	}
}
