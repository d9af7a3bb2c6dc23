// Package styles contains Lip Gloss style definitions.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	TextPrimaryColor = lipgloss.AdaptiveColor{Light: "#333333", Dark: "#CCCCCC"}
	TextMutedColor   = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#696969"}

	BorderDefaultColor = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#696969"}
	BorderFocusColor   = lipgloss.AdaptiveColor{Light: "#179299", Dark: "#54A0FF"}

	StatusSuccessColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	StatusWarningColor = lipgloss.AdaptiveColor{Light: "#FECA57", Dark: "#FECA57"}
	StatusErrorColor   = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"}

	UserColor      = lipgloss.AdaptiveColor{Light: "#FB923C", Dark: "#FB923C"}
	AssistantColor = lipgloss.AdaptiveColor{Light: "#179299", Dark: "#179299"}

	ButtonTextColor      = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#FFFFFF"}
	ButtonDangerBgColor  = lipgloss.AdaptiveColor{Light: "#922B21", Dark: "#922B21"}
	StatusBarBgColor     = lipgloss.AdaptiveColor{Light: "#EEEEEE", Dark: "#2D3436"}
	StatusBarActiveColor = lipgloss.AdaptiveColor{Light: "#1A5276", Dark: "#3498DB"}
)

var (
	RoleStyle = lipgloss.NewStyle().Bold(true)

	UserLabelStyle      = RoleStyle.Foreground(UserColor)
	AssistantLabelStyle = RoleStyle.Foreground(AssistantColor)
	SystemLabelStyle    = RoleStyle.Foreground(StatusErrorColor)

	MutedStyle = lipgloss.NewStyle().Foreground(TextMutedColor)
	ErrorStyle = lipgloss.NewStyle().Foreground(StatusErrorColor)

	InputBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(BorderDefaultColor)

	InputFocusedBorderStyle = InputBorderStyle.BorderForeground(BorderFocusColor)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextPrimaryColor).
			Background(StatusBarBgColor)

	StatusActiveStyle = StatusBarStyle.Foreground(StatusBarActiveColor).Bold(true)

	DangerButtonStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Bold(true).
				Foreground(ButtonTextColor).
				Background(ButtonDangerBgColor)
)
