package analytics

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/gateway-usage-tui/internal/app"
	"github.com/j-veylop/gateway-usage-tui/internal/models"
	"github.com/j-veylop/gateway-usage-tui/internal/ui/components"
	"github.com/j-veylop/gateway-usage-tui/internal/ui/styles"
	"github.com/j-veylop/gateway-usage-tui/internal/usagecache"
)

const (
	chartHeight = 10
	recentDays  = 7
)

// View renders the analytics tab.
func (m *Model) View() string {
	snap := m.state.Snapshot()
	if snap.Entry == nil && snap.Daily == nil && m.state.AnyLoading() {
		return m.activity.Placeholder(m.width, m.height)
	}

	sections := []string{
		m.renderHeader(snap),
		components.RenderSummary(snap.Summary),
		"",
		styles.SubTitleStyle.Render("Recent requests by provider"),
		m.renderChart(snap),
		"",
		styles.SubTitleStyle.Render(fmt.Sprintf("Daily tokens (%d days)", usagecache.DailyWindowDays)),
		m.renderDaily(snap.Daily),
	}

	content := lipgloss.NewStyle().Padding(0, 1).Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
	m.viewport.SetContent(content)
	return m.viewport.View()
}

func (m *Model) renderHeader(snap app.Snapshot) string {
	title := styles.TitleStyle.Render("Analytics")
	window := styles.FilterChipStyle.Render("window " + windowLabel(snap.Filters.Hours))
	parts := []string{title, window}
	if status := m.activity.Status(m.state.LoadingStreams()...); status != "" {
		parts = append(parts, status)
	}
	if n := snap.Notice.String(); n != "" {
		parts = append(parts, styles.WarningTextStyle.Render("⚠ "+n))
	}
	return strings.Join(parts, " ")
}

func windowLabel(h int) string {
	switch {
	case h >= usagecache.FullHistoryHours:
		return "all"
	case h%24 == 0 && h >= 48:
		return fmt.Sprintf("%dd", h/24)
	default:
		return fmt.Sprintf("%dh", h)
	}
}

func (m *Model) renderChart(snap app.Snapshot) string {
	series := make([]components.Series, 0, len(snap.Series))
	for _, s := range snap.Series {
		series = append(series, components.Series{Label: s.Provider, Points: s.Points})
	}
	caption := fmt.Sprintf("tokens per request, last %d per provider", usagecache.GraphWindowSize)
	return components.RenderProviderChart(series, m.width-12, chartHeight, caption)
}

func (m *Model) renderDaily(d *models.DailyTotalsCache) string {
	if d == nil {
		return styles.HelpStyle.Render("Daily totals not loaded yet")
	}
	if len(d.Days) == 0 {
		return styles.HelpStyle.Render("No daily usage recorded")
	}

	values := make([]float64, 0, len(d.Days))
	for _, day := range d.Days {
		values = append(values, float64(day.TotalTokens))
	}

	recent := d.Days[max(len(d.Days)-recentDays, 0):]
	barValues := make([]float64, 0, len(recent))
	labels := make([]string, 0, len(recent))
	for _, day := range recent {
		barValues = append(barValues, float64(day.TotalTokens))
		labels = append(labels, day.Day().Format("Jan 02"))
	}

	lines := []string{
		styles.InfoTextStyle.Render(components.RenderSparkline(values, max(m.width-4, 10))),
		"",
		components.RenderBarChart(barValues, labels, max(m.width-4, 30)),
		"",
		renderProviderTotals(d.Providers),
	}
	if src := dailySource(d); src != "" {
		lines = append(lines, styles.HelpStyle.Render("source: "+src))
	}
	return strings.Join(lines, "\n")
}

func renderProviderTotals(providers []models.ProviderTotal) string {
	if len(providers) == 0 {
		return ""
	}
	parts := make([]string, 0, len(providers))
	for i, p := range providers {
		name := lipgloss.NewStyle().Foreground(styles.ProviderColor(i)).Render(p.Provider)
		parts = append(parts, name+" "+components.FormatTokens(p.TotalTokens))
	}
	return strings.Join(parts, "  ")
}

func dailySource(d *models.DailyTotalsCache) string {
	switch {
	case d.UsingFallback:
		return "fallback"
	case d.Local:
		return "local aggregate"
	default:
		return ""
	}
}
