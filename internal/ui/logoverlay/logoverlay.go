// Package logoverlay is an in-app viewer for recent debug log entries.
package logoverlay

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/zjrosen/claudecode/internal/log"
	"github.com/zjrosen/claudecode/internal/ui/overlay"
	"github.com/zjrosen/claudecode/internal/ui/styles"
)

const (
	// DefaultLimit is how many entries are retained.
	DefaultLimit = 500

	viewportMaxHeight = 25
	viewportMinHeight = 5
	boxMaxWidth       = 160
	boxMinWidth       = 40
)

// CloseMsg is sent when the overlay closes itself.
type CloseMsg struct{}

// Model holds retained entries and the overlay state.
type Model struct {
	visible  bool
	minLevel log.Level
	limit    int
	entries  []string
	width    int
	height   int
	viewport viewport.Model
}

// New creates a hidden overlay retaining up to limit entries.
func New(limit int) Model {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return Model{minLevel: log.LevelDebug, limit: limit}
}

// Append records a formatted entry, dropping the oldest past the limit.
func (m *Model) Append(entry string) {
	m.entries = append(m.entries, strings.TrimSuffix(entry, "\n"))
	if over := len(m.entries) - m.limit; over > 0 {
		m.entries = append(m.entries[:0], m.entries[over:]...)
	}
	if m.visible {
		m.refresh()
	}
}

// Len returns the number of retained entries.
func (m Model) Len() int {
	return len(m.entries)
}

// Visible reports whether the overlay is showing.
func (m Model) Visible() bool {
	return m.visible
}

// Toggle shows or hides the overlay.
func (m *Model) Toggle() {
	m.visible = !m.visible
	if m.visible {
		m.refresh()
	}
}

// SetSize records the screen size.
func (m *Model) SetSize(width, height int) {
	m.width, m.height = width, height
	if m.visible {
		m.refresh()
	}
}

// Update handles keys while visible.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.visible {
		return m, nil
	}
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch km.String() {
	case "c":
		m.entries = nil
	case "d":
		m.minLevel = log.LevelDebug
	case "i":
		m.minLevel = log.LevelInfo
	case "w":
		m.minLevel = log.LevelWarn
	case "e":
		m.minLevel = log.LevelError
	case "j", "down":
		m.viewport.ScrollDown(1)
		return m, nil
	case "k", "up":
		m.viewport.ScrollUp(1)
		return m, nil
	case "g":
		m.viewport.GotoTop()
		return m, nil
	case "G":
		m.viewport.GotoBottom()
		return m, nil
	case "esc", "ctrl+o":
		m.visible = false
		return m, func() tea.Msg { return CloseMsg{} }
	default:
		return m, nil
	}
	m.refresh()
	return m, nil
}

// Overlay draws the log box centered over bg when visible.
func (m Model) Overlay(bg string) string {
	if !m.visible {
		return bg
	}
	return overlay.Center(m.width, m.height, m.View(), bg)
}

// View renders the log box.
func (m Model) View() string {
	if !m.visible {
		return ""
	}
	width := m.boxWidth()
	title := lipgloss.NewStyle().Bold(true).Foreground(styles.BorderFocusColor).PaddingLeft(1).Render("Logs")
	divider := lipgloss.NewStyle().Foreground(styles.BorderDefaultColor).Render(strings.Repeat("─", width))

	body := strings.Join([]string{title, divider, m.viewport.View(), divider, m.filterHint()}, "\n")
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.BorderFocusColor).
		Width(width).
		Render(body)
}

func (m *Model) refresh() {
	if m.width == 0 || m.height == 0 {
		return
	}
	// header, footer and border take six rows
	height := max(min(viewportMaxHeight, m.height-6), viewportMinHeight)
	m.viewport = viewport.New(m.contentWidth(), height)
	m.viewport.SetContent(m.content())
	m.viewport.GotoBottom()
}

func (m Model) content() string {
	var lines []string
	for _, e := range m.entries {
		if entryLevel(e) >= m.minLevel {
			lines = append(lines, colorize(e, m.contentWidth()))
		}
	}
	if len(lines) == 0 {
		return styles.MutedStyle.Italic(true).Render("No logs to display")
	}
	return strings.Join(lines, "\n")
}

func (m Model) boxWidth() int {
	return max(min(m.width-4, boxMaxWidth), boxMinWidth)
}

func (m Model) contentWidth() int {
	return m.boxWidth() - 2
}

// entryLevel reads the [LEVEL] tag written by the log package. Untagged
// lines count as errors so they are never filtered out.
func entryLevel(entry string) log.Level {
	switch {
	case strings.Contains(entry, "[DEBUG]"):
		return log.LevelDebug
	case strings.Contains(entry, "[INFO]"):
		return log.LevelInfo
	case strings.Contains(entry, "[WARN]"):
		return log.LevelWarn
	default:
		return log.LevelError
	}
}

func colorize(entry string, width int) string {
	if ansi.StringWidth(entry) > width {
		entry = ansi.Truncate(entry, width-1, "…")
	}
	var color lipgloss.TerminalColor
	switch entryLevel(entry) {
	case log.LevelError:
		color = styles.StatusErrorColor
	case log.LevelWarn:
		color = styles.StatusWarningColor
	case log.LevelInfo:
		color = styles.TextPrimaryColor
	default:
		color = styles.TextMutedColor
	}
	return lipgloss.NewStyle().Foreground(color).Render(entry)
}

func (m Model) filterHint() string {
	levels := []struct {
		level log.Level
		label string
	}{
		{log.LevelDebug, "[d] Debug"},
		{log.LevelInfo, "[i] Info"},
		{log.LevelWarn, "[w] Warn"},
		{log.LevelError, "[e] Error"},
	}
	hints := []string{styles.MutedStyle.Render("[c] Clear")}
	for _, l := range levels {
		if l.level == m.minLevel {
			hints = append(hints, lipgloss.NewStyle().Bold(true).Foreground(styles.TextPrimaryColor).Render(l.label))
		} else {
			hints = append(hints, styles.MutedStyle.Render(l.label))
		}
	}
	return strings.Join(hints, "  ")
}
