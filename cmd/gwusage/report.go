package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/j-veylop/gateway-usage-tui/internal/logger"
	"github.com/j-veylop/gateway-usage-tui/internal/models"
	"github.com/j-veylop/gateway-usage-tui/internal/services"
	"github.com/j-veylop/gateway-usage-tui/internal/ui/components"
	"github.com/j-veylop/gateway-usage-tui/internal/usagecache"
)

// reportTimeout bounds a whole report, all of its queries included.
const reportTimeout = 30 * time.Second

func newSummaryCmd() *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the totals and newest requests for a filter selection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logs, err := setup()
			if err != nil {
				return err
			}
			defer logs.Close()

			// Reports are one-shot; nothing listens for activity.
			cfg.ActivityWatchPath = ""
			mgr, err := services.NewManager(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize services: %w", err)
			}
			defer mgr.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), reportTimeout)
			defer cancel()

			f := ff.filters(cmd, cfg.AnalyticsHours)
			rep, err := loadSummaryReport(ctx, mgr.Usage(), f)
			if err != nil {
				return err
			}
			return writeSummary(cmd.OutOrStdout(), rep)
		},
	}
	ff.register(cmd, 0)
	return cmd
}

type summaryReport struct {
	Filters models.RequestFilters
	Entry   models.PageCacheEntry
	Summary *models.UsageSummary
	Notice  usagecache.Notice
}

// loadSummaryReport fetches the first page and the backend summary together. The
// displayed totals are resolved once both are in.
func loadSummaryReport(ctx context.Context, svc *usagecache.Service, f models.RequestFilters) (summaryReport, error) {
	var (
		g     errgroup.Group
		entry models.PageCacheEntry
	)
	g.Go(func() error {
		var err error
		entry, err = svc.LoadPage(ctx, f)
		return err
	})
	g.Go(func() error {
		if _, err := svc.LoadSummary(ctx, f); err != nil {
			// Totals still resolve from the fetched rows.
			logger.Warn("summary query failed", "error", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return summaryReport{}, fmt.Errorf("failed to load usage requests: %w", err)
	}
	return summaryReport{
		Filters: f,
		Entry:   entry,
		Summary: svc.Summary(f),
		Notice:  svc.Notice(),
	}, nil
}

func writeSummary(w io.Writer, rep summaryReport) error {
	field := func(name, value string) {
		fmt.Fprintf(w, "%-12s %s\n", name, value)
	}
	field("window", fmt.Sprintf("%dh", rep.Filters.Hours))
	for _, d := range []struct {
		name   string
		values []string
	}{
		{"provider", rep.Filters.Providers},
		{"model", rep.Filters.Models},
		{"origin", rep.Filters.Origins},
		{"session", rep.Filters.Sessions},
	} {
		if d.values != nil {
			field(d.name, strings.Join(d.values, ","))
		}
	}
	if n := rep.Notice.String(); n != "" {
		field("notice", n)
	}

	s := rep.Summary
	field("requests", count(s, func(s *models.UsageSummary) int64 { return s.Requests }))
	field("input", count(s, func(s *models.UsageSummary) int64 { return s.InputTokens }))
	field("output", count(s, func(s *models.UsageSummary) int64 { return s.OutputTokens }))
	field("total", count(s, func(s *models.UsageSummary) int64 { return s.TotalTokens }))
	field("cache read", count(s, func(s *models.UsageSummary) int64 { return s.CacheReadInputTokens }))
	field("cache write", count(s, func(s *models.UsageSummary) int64 { return s.CacheCreationInputTokens }))

	if len(rep.Entry.Rows) == 0 {
		_, err := fmt.Fprintln(w, "\nno requests in this window")
		return err
	}
	fmt.Fprintln(w)

	table := newReportTable(w, []string{"Time", "Provider", "Model", "Origin", "Total"}, 4)
	for _, e := range rep.Entry.Rows {
		if err := table.Append([]string{
			e.Time().Format(time.DateTime), e.Provider, e.Model, e.Origin,
			components.FormatTokens(e.TotalTokens),
		}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	if rep.Entry.HasMore {
		fmt.Fprintf(w, "%d rows shown, more from offset %d\n", len(rep.Entry.Rows), rep.Entry.NextOffset)
	}
	return nil
}

// newReportTable builds a table whose first labels columns are left aligned and
// whose metric columns are right aligned.
func newReportTable(w io.Writer, headers []string, labels int) *tablewriter.Table {
	table := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Settings: tw.Settings{Separators: tw.Separators{BetweenRows: tw.Off}},
		})))
	table.Header(headers)

	alignments := make([]tw.Align, len(headers))
	for i := range alignments {
		if i < labels {
			alignments[i] = tw.AlignLeft
		} else {
			alignments[i] = tw.AlignRight
		}
	}
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.PerColumn = alignments
	})
	return table
}

// count renders one summary field, or the unknown marker without a summary.
func count(s *models.UsageSummary, field func(*models.UsageSummary) int64) string {
	if s == nil {
		return components.Unknown
	}
	return components.FormatTokens(field(s))
}

func newDailyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daily",
		Short: fmt.Sprintf("Print the %d-day token roll-up per provider", usagecache.DailyWindowDays),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logs, err := setup()
			if err != nil {
				return err
			}
			defer logs.Close()

			cfg.ActivityWatchPath = ""
			mgr, err := services.NewManager(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize services: %w", err)
			}
			defer mgr.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), reportTimeout)
			defer cancel()

			d, err := mgr.Usage().LoadDaily(ctx)
			if err != nil {
				return fmt.Errorf("failed to load daily totals: %w", err)
			}
			return writeDaily(cmd.OutOrStdout(), d)
		},
	}
}

func writeDaily(w io.Writer, d models.DailyTotalsCache) error {
	if len(d.Days) == 0 {
		_, err := fmt.Fprintln(w, "no daily usage recorded")
		return err
	}

	names := d.ProviderNames()
	headers := append(append([]string{"Day"}, names...), "Total")
	table := newReportTable(w, headers, 1)
	for _, day := range d.Days {
		cols := []string{day.Day().Format(time.DateOnly)}
		for _, p := range names {
			cols = append(cols, components.FormatTokens(day.ProviderTotals[p]))
		}
		cols = append(cols, components.FormatTokens(day.TotalTokens))
		if err := table.Append(cols); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	switch {
	case d.UsingFallback:
		fmt.Fprintln(w, "source: fallback")
	case d.Local:
		fmt.Fprintln(w, "source: local aggregate")
	}
	return nil
}
