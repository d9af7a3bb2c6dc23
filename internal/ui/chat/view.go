package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	zone "github.com/lrstanley/bubblezone"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
	"github.com/rivo/uniseg"

	"github.com/zjrosen/claudecode/internal/keys"
	"github.com/zjrosen/claudecode/internal/log"
	"github.com/zjrosen/claudecode/internal/ui/styles"
)

// abortZoneID marks the clickable abort button in the status bar.
const abortZoneID = "chat-abort"

// shortSessionLen is how much of a session id the status bar shows.
const shortSessionLen = 8

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "starting…"
	}

	inputStyle := styles.InputBorderStyle
	if m.run == nil {
		inputStyle = styles.InputFocusedBorderStyle
	}

	parts := []string{m.viewport.View()}
	if m.cfg.ShowStatusBar {
		parts = append(parts, m.statusBar())
	}
	parts = append(parts,
		inputStyle.Width(max(m.width-2, 1)).Render(m.input.View()),
		m.help.View(keys.Chat),
	)
	return zone.Scan(m.logs.Overlay(lipgloss.JoinVertical(lipgloss.Left, parts...)))
}

func (m Model) renderTranscript() string {
	width := m.contentWidth()
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderEntry(e, width))
	}
	if m.run != nil {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(styles.AssistantLabelStyle.Render("Claude") + " " + m.spinner.View() + "\n")
		b.WriteString(wrapText(m.partial, width))
	}
	return b.String()
}

func (m Model) renderEntry(e entry, width int) string {
	switch e.role {
	case roleUser:
		return styles.UserLabelStyle.Render("You") + "\n" + wrapText(e.text, width)
	case roleAssistant:
		return styles.AssistantLabelStyle.Render("Claude") + "\n" + m.renderReply(e.text, width)
	case roleSystem:
		return styles.SystemLabelStyle.Render("System") + "\n" + styles.ErrorStyle.Render(wrapText(e.text, width))
	default:
		return styles.MutedStyle.Render(wrapText(e.text, width))
	}
}

// renderReply renders a finished reply as markdown when enabled, falling
// back to plain wrapped text.
func (m Model) renderReply(text string, width int) string {
	if m.renderer != nil {
		out, err := m.renderer.Render(text)
		if err == nil {
			return out
		}
		log.ErrorErr(log.CatUI, "markdown render failed", err)
	}
	return wrapText(text, width)
}

// wrapText word-wraps s to width, hard-wrapping words longer than a line.
func wrapText(s string, width int) string {
	if width <= 0 {
		return s
	}
	return wrap.String(wordwrap.String(s, width), width)
}

func (m Model) statusBar() string {
	var left string
	if m.run != nil {
		left = styles.StatusActiveStyle.Render(fmt.Sprintf(" %s streaming", m.spinner.View())) +
			styles.StatusBarStyle.Render(fmt.Sprintf(" · %d chunks · %d chars ", m.tokens, uniseg.GraphemeClusterCount(m.partial)))
	} else {
		left = styles.StatusBarStyle.Render(fmt.Sprintf(" ready · %d turns ", len(m.sess.Turns())))
	}

	var right []string
	if m.cfg.Model != "" {
		right = append(right, m.cfg.Model)
	}
	if m.lastSID != "" {
		right = append(right, "session "+ansi.Truncate(m.lastSID, shortSessionLen, ""))
	}
	rightText := styles.StatusBarStyle.Render(" " + strings.Join(right, " · ") + " ")
	if m.run != nil {
		rightText += zone.Mark(abortZoneID, styles.DangerButtonStyle.Render("abort"))
	}

	gap := m.width - ansi.StringWidth(left) - ansi.StringWidth(rightText)
	if gap < 0 {
		return ansi.Truncate(left+rightText, m.width, "…")
	}
	return left + styles.StatusBarStyle.Render(strings.Repeat(" ", gap)) + rightText
}
