package cli

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the terminal color scheme.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
	Warn    lipgloss.Color
}

// DefaultTheme is bright green on default background.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Warn:    lipgloss.Color("#ffb000"),
}

// Styles are derived from a Theme.
type Styles struct {
	Title lipgloss.Style
	Label lipgloss.Style
	Bar   lipgloss.Style
	Dim   lipgloss.Style
	Warn  lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Bar:   lipgloss.NewStyle().Foreground(t.Primary),
		Dim:   lipgloss.NewStyle().Foreground(t.Dim),
		Warn:  lipgloss.NewStyle().Bold(true).Foreground(t.Warn),
	}
}

// Bars renders one horizontal bar per label. The row at highlight is
// drawn with the Label style and the others dimmed.
type Bars struct {
	Styles    Styles
	Title     string
	Labels    []string
	Values    []float64
	Highlight int
	// Width is the bar width in cells at value 1.
	Width int
	// Note is printed under the bars, e.g. a fallback warning.
	Note string
}

// Render returns the bars as a multi-line string.
func (b Bars) Render() string {
	width := b.Width
	if width <= 0 {
		width = 30
	}
	labelWidth := 0
	for _, l := range b.Labels {
		labelWidth = max(labelWidth, lipgloss.Width(l))
	}

	var lines []string
	if b.Title != "" {
		lines = append(lines, b.Styles.Title.Render(b.Title))
	}
	for i, l := range b.Labels {
		v := 0.0
		if i < len(b.Values) {
			v = min(max(b.Values[i], 0), 1)
		}
		n := int(math.Round(v * float64(width)))
		bar := strings.Repeat("█", n) + strings.Repeat("░", width-n)
		name := fmt.Sprintf("%-*s", labelWidth, l)
		if i == b.Highlight {
			lines = append(lines, b.Styles.Label.Render(name)+" "+b.Styles.Bar.Render(bar)+" "+FormatPercent(v))
		} else {
			lines = append(lines, b.Styles.Dim.Render(name)+" "+b.Styles.Dim.Render(bar)+" "+FormatPercent(v))
		}
	}
	if b.Note != "" {
		lines = append(lines, b.Styles.Warn.Render(b.Note))
	}
	return strings.Join(lines, "\n") + "\n"
}
