package requests

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/gateway-usage-tui/internal/app"
	"github.com/j-veylop/gateway-usage-tui/internal/models"
	"github.com/j-veylop/gateway-usage-tui/internal/ui/components"
	"github.com/j-veylop/gateway-usage-tui/internal/ui/styles"
	"github.com/j-veylop/gateway-usage-tui/internal/usagecache"
)

// chromeLines is the height taken by everything but table rows.
const chromeLines = 8

type column struct {
	title string
	width int
	right bool
}

var baseColumns = []column{
	{title: "Time", width: 14},
	{title: "Provider", width: 12},
	{title: "Model", width: 16},
	{title: "Origin", width: 8},
	{title: "Session", width: 10},
	{title: "In", width: 8, right: true},
	{title: "Out", width: 8, right: true},
	{title: "Total", width: 8, right: true},
	{title: "Cache R", width: 8, right: true},
}

// modelColumn is widened to take whatever the terminal has left.
const modelColumn = 2

func (m *Model) visibleRows() int {
	return max(m.height-chromeLines, 1)
}

func (m *Model) columns() []column {
	cols := append([]column{}, baseColumns...)
	used := 0
	for _, c := range cols {
		used += c.width + 1
	}
	if extra := m.width - 2 - used; extra > 0 {
		cols[modelColumn].width += extra
	}
	return cols
}

// View renders the requests tab.
func (m *Model) View() string {
	snap := m.state.Snapshot()
	if snap.Entry == nil && m.state.IsLoading(app.StreamPage) {
		return m.activity.Placeholder(m.width, m.height)
	}

	sections := []string{
		styles.TitleStyle.Render("Usage Requests"),
		m.renderFilters(snap),
		renderNotice(snap.Notice),
		components.RenderSummary(snap.Summary),
		"",
		m.renderTable(snap),
		m.renderFooter(snap),
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m *Model) renderFilters(snap app.Snapshot) string {
	if m.state.View().FiltersHidden {
		return styles.HelpStyle.Render("full history · filters hidden (f to show)")
	}
	f := m.state.Filters()
	chips := []string{styles.FilterChipStyle.Render("window " + hoursLabel(f.Hours))}
	dims := []struct {
		name   string
		values []string
	}{
		{"provider", f.Providers},
		{"model", f.Models},
		{"origin", f.Origins},
		{"session", f.Sessions},
	}
	for _, d := range dims {
		switch {
		case d.values == nil:
		case len(d.values) == 0:
			chips = append(chips, styles.FilterChipStyle.Render(d.name+" none"))
		default:
			chips = append(chips, styles.FilterChipStyle.Render(d.name+" "+strings.Join(d.values, ",")))
		}
	}
	if len(snap.KnownProviders) > 0 {
		chips = append(chips, styles.HelpStyle.Render(fmt.Sprintf("%d providers seen", len(snap.KnownProviders))))
	}
	return strings.Join(chips, " ")
}

func hoursLabel(h int) string {
	switch {
	case h >= usagecache.FullHistoryHours:
		return "all"
	case h <= 0:
		return "any"
	case h < 48:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dd", h/24)
	}
}

func renderNotice(n usagecache.Notice) string {
	switch n {
	case usagecache.NoticeFallback:
		return styles.WarningTextStyle.Render("⚠ " + n.String())
	case usagecache.NoticeLoadFailed:
		return styles.ErrorTextStyle.Render("✗ " + n.String())
	default:
		return ""
	}
}

func (m *Model) renderTable(snap app.Snapshot) string {
	cols := m.columns()
	rows := snap.Rows()

	titles := make([]string, 0, len(cols))
	for _, c := range cols {
		titles = append(titles, cell(c.title, c))
	}
	header := styles.TableHeaderStyle.Render(strings.Join(titles, " "))

	if len(rows) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, styles.HelpStyle.Render("No requests in this window"))
	}

	visible := m.visibleRows()
	end := min(m.top+visible, len(rows))
	now := time.Now()
	fallback := snap.Entry != nil && snap.Entry.UsingFallback

	lines := []string{header}
	for i := m.top; i < end; i++ {
		line := renderRow(rows[i], cols, now)
		switch {
		case i == m.cursor:
			line = styles.TableSelectedStyle.Render(line)
		case fallback:
			line = styles.FallbackRowStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func renderRow(e models.UsageRequestEntry, cols []column, now time.Time) string {
	values := []string{
		formatTime(e.Time(), now),
		e.Provider,
		e.Model,
		e.Origin,
		e.SessionID,
		components.FormatTokens(e.InputTokens),
		components.FormatTokens(e.OutputTokens),
		components.FormatTokens(e.TotalTokens),
		components.FormatTokens(e.CacheReadInputTokens),
	}
	cells := make([]string, 0, len(cols))
	for i, c := range cols {
		cells = append(cells, cell(values[i], c))
	}
	return strings.Join(cells, " ")
}

// cell fits text into a column, truncating on display width.
func cell(text string, c column) string {
	text = ansi.Truncate(text, c.width, "…")
	pad := strings.Repeat(" ", max(c.width-lipgloss.Width(text), 0))
	if c.right {
		return pad + text
	}
	return text + pad
}

func formatTime(t, now time.Time) string {
	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return t.Format("15:04:05")
	}
	return t.Format("Jan 02 15:04")
}

func (m *Model) renderFooter(snap app.Snapshot) string {
	n := len(snap.Rows())
	switch {
	case m.state.IsLoading(app.StreamPage):
		return m.activity.Status(m.state.LoadingStreams()...)
	case snap.Entry != nil && snap.Entry.HasMore:
		return styles.HelpStyle.Render(fmt.Sprintf("%d rows loaded · more below (n to load)", n))
	case n > 0:
		return styles.HelpStyle.Render(fmt.Sprintf("%d rows · end of history", n))
	default:
		return ""
	}
}
