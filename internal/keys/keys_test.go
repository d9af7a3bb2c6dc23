package keys

import (
	"testing"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

func TestChat_KeyAssignments(t *testing.T) {
	tests := []struct {
		name     string
		binding  key.Binding
		expected []string
	}{
		{"Send uses enter", Chat.Send, []string{"enter"}},
		{"Newline uses ctrl+j and alt+enter", Chat.Newline, []string{"ctrl+j", "alt+enter"}},
		{"Abort uses esc", Chat.Abort, []string{"esc"}},
		{"Quit uses ctrl+c", Chat.Quit, []string{"ctrl+c"}},
		{"Clear uses ctrl+l", Chat.Clear, []string{"ctrl+l"}},
		{"Logs uses ctrl+o", Chat.Logs, []string{"ctrl+o"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.binding.Keys())
		})
	}
}

func TestChat_Matches(t *testing.T) {
	require.True(t, key.Matches(tea.KeyMsg{Type: tea.KeyEsc}, Chat.Abort))
	require.True(t, key.Matches(tea.KeyMsg{Type: tea.KeyEnter}, Chat.Send))
	require.False(t, key.Matches(tea.KeyMsg{Type: tea.KeyEnter}, Chat.Abort))
}

func TestChat_HelpCoversEveryBinding(t *testing.T) {
	var n int
	for _, col := range Chat.FullHelp() {
		for _, b := range col {
			require.NotEmpty(t, b.Help().Key)
			require.NotEmpty(t, b.Help().Desc)
			n++
		}
	}
	require.Equal(t, 10, n)
	require.Len(t, Chat.ShortHelp(), 4)
}
