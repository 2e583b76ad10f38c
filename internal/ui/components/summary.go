package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/gateway-usage-tui/internal/models"
	"github.com/j-veylop/gateway-usage-tui/internal/ui/styles"
)

// Unknown stands in for totals that cannot be known from partially loaded rows.
const Unknown = "—"

// RenderSummary renders request and token totals on one line. A nil summary renders
// every value as Unknown rather than a misleading partial sum.
func RenderSummary(s *models.UsageSummary) string {
	value := func(v int64) string {
		if s == nil {
			return Unknown
		}
		return FormatTokens(v)
	}
	var requests, input, output, total, cacheRead, cacheWrite int64
	if s != nil {
		requests, input, output, total = s.Requests, s.InputTokens, s.OutputTokens, s.TotalTokens
		cacheRead, cacheWrite = s.CacheReadInputTokens, s.CacheCreationInputTokens
	}

	label := lipgloss.NewStyle().Foreground(styles.TextSecondary)
	num := lipgloss.NewStyle().Foreground(styles.TextPrimary).Bold(true)
	parts := []string{
		label.Render("requests ") + num.Render(value(requests)),
		label.Render("in ") + num.Render(value(input)),
		label.Render("out ") + num.Render(value(output)),
		label.Render("total ") + num.Render(value(total)),
		label.Render("cache r/w ") + num.Render(fmt.Sprintf("%s/%s", value(cacheRead), value(cacheWrite))),
	}
	return strings.Join(parts, "   ")
}
