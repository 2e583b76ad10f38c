// Package components provides reusable UI components for the TUI.
package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/j-veylop/gateway-usage-tui/internal/ui/styles"
)

// Series is one charted line.
type Series struct {
	Label  string
	Points []float64
}

// chartColors match styles.ProviderColors.
var chartColors = []asciigraph.AnsiColor{asciigraph.Red, asciigraph.Blue, asciigraph.Green}

// RenderProviderChart plots every series on a shared axis. NaN points are absent
// history and are drawn as gaps, never as zero.
func RenderProviderChart(series []Series, width, height int, caption string) string {
	var (
		data   [][]float64
		colors []asciigraph.AnsiColor
		legend []LegendItem
	)
	for i, s := range series {
		if !hasValue(s.Points) {
			continue
		}
		data = append(data, s.Points)
		colors = append(colors, chartColors[i%len(chartColors)])
		legend = append(legend, LegendItem{Label: s.Label, Color: styles.ProviderColor(i)})
	}
	if len(data) == 0 {
		return styles.HelpStyle.Render("No data available")
	}

	// Drop the leading span where no series has history yet.
	start := len(data[0])
	for _, d := range data {
		for j, v := range d {
			if !math.IsNaN(v) {
				start = min(start, j)
				break
			}
		}
	}
	for i := range data {
		data[i] = data[i][start:]
	}

	if width < 20 {
		width = 20
	}
	if height < 3 {
		height = 3
	}

	opts := []asciigraph.Option{
		asciigraph.Height(height),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(colors...),
	}
	// Interpolating would smear gaps; only squeeze when the points do not fit.
	if len(data[0]) > width {
		opts = append(opts, asciigraph.Width(width))
	}
	graph := asciigraph.PlotMany(data, opts...)
	return graph + "\n" + RenderLegend(legend)
}

func hasValue(points []float64) bool {
	for _, v := range points {
		if !math.IsNaN(v) {
			return true
		}
	}
	return false
}

// RenderBarChart creates a simple horizontal bar chart.
func RenderBarChart(values []float64, labels []string, width int) string {
	if len(values) == 0 {
		return ""
	}

	// Find max value for scaling
	maxVal := 0.0
	for _, v := range values {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal == 0 {
		maxVal = 1
	}

	maxLabelLen := 0
	for _, l := range labels {
		maxLabelLen = max(maxLabelLen, lipgloss.Width(l))
	}

	barWidth := max(width-maxLabelLen-10, 10) // Leave room for label and value

	lines := make([]string, 0, len(values))
	for i, v := range values {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		paddedLabel := fmt.Sprintf("%*s", maxLabelLen, label)
		barLen := max(int((v/maxVal)*float64(barWidth)), 0)
		bar := strings.Repeat("█", barLen)
		lines = append(lines, paddedLabel+" │"+bar+" "+FormatTokens(int64(v)))
	}

	return strings.Join(lines, "\n")
}

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// RenderSparkline creates a compact inline sparkline chart.
func RenderSparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}

	maxVal := 0.0
	for _, v := range values {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal == 0 {
		maxVal = 1
	}

	// Sample values to fit width
	var result strings.Builder
	step := max(float64(len(values))/float64(width), 1)

	for i := 0; i < width && int(float64(i)*step) < len(values); i++ {
		val := values[int(float64(i)*step)]
		normalized := int((val / maxVal) * float64(len(sparkChars)-1))
		normalized = min(max(normalized, 0), len(sparkChars)-1)
		result.WriteRune(sparkChars[normalized])
	}

	return result.String()
}

// RenderLegend creates a chart legend.
func RenderLegend(items []LegendItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		colorBox := lipgloss.NewStyle().Foreground(item.Color).Render("■")
		parts = append(parts, fmt.Sprintf("%s %s", colorBox, item.Label))
	}
	return strings.Join(parts, "  ")
}

// LegendItem represents a single legend entry.
type LegendItem struct {
	Label string
	Color lipgloss.Color
}

// FormatTokens renders a token count compactly: 950, 12.3k, 4.51M.
func FormatTokens(n int64) string {
	switch abs := math.Abs(float64(n)); {
	case abs >= 1_000_000_000:
		return fmt.Sprintf("%.2fB", float64(n)/1_000_000_000)
	case abs >= 1_000_000:
		return fmt.Sprintf("%.2fM", float64(n)/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}
