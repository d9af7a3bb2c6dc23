package overlay

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/require"
)

func TestCenter(t *testing.T) {
	bg := strings.Join([]string{"..........", "..........", "..........", ".........."}, "\n")

	got := Center(10, 4, "AB\nCD", bg)

	require.Equal(t, strings.Join([]string{
		"..........",
		"....AB....",
		"....CD....",
		"..........",
	}, "\n"), got)
}

func TestCenter_PadsShortBackground(t *testing.T) {
	got := Center(6, 3, "X", "ab")

	lines := strings.Split(got, "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "ab", lines[0])
	require.Equal(t, "  X   ", lines[1])
}

func TestCenter_KeepsBackgroundStyling(t *testing.T) {
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	bg := red.Render("abcdefgh")

	got := Center(8, 1, "XY", bg)

	require.Equal(t, "abcXYfgh", ansi.Strip(got))
}

func TestCenter_ForegroundWiderThanBackground(t *testing.T) {
	got := Center(4, 1, "WIDER", "....")

	require.Equal(t, "WIDER", got)
}
