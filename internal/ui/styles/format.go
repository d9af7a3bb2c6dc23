package styles

import (
	"fmt"
	"time"

	"github.com/mattn/go-runewidth"
)

// TruncateString truncates s to maxWidth cells, ending with an ellipsis
// when anything was cut.
func TruncateString(s string, maxWidth int) string {
	if maxWidth < 1 {
		return ""
	}
	return runewidth.Truncate(s, maxWidth, "…")
}

// PadRight pads s with spaces to width cells.
func PadRight(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// FormatCost renders a USD amount, or "-" when nothing was billed.
func FormatCost(usd float64) string {
	if usd <= 0 {
		return "-"
	}
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

// FormatAge renders the time since t in the largest whole unit.
func FormatAge(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
