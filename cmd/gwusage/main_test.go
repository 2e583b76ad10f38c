package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/j-veylop/gateway-usage-tui/internal/db"
	"github.com/j-veylop/gateway-usage-tui/internal/models"
	"github.com/j-veylop/gateway-usage-tui/internal/usagecache"
)

func newTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"version", "summary", "daily", "serve", "seed"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if strings.TrimSpace(out.String()) == "" {
		t.Error("version printed nothing")
	}
}

func TestFilterFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want models.RequestFilters
	}{
		{"defaults", nil, models.RequestFilters{Hours: 24}},
		{"hours", []string{"--hours", "6"}, models.RequestFilters{Hours: 6}},
		{"providers", []string{"--provider", "official,provider-a"}, models.RequestFilters{Hours: 24, Providers: []string{"official", "provider-a"}}},
		{"empty restricts to nothing", []string{"--model="}, models.RequestFilters{Hours: 24, Models: []string{}}},
		{"origin and session", []string{"--origin", "wsl", "--session", "s1"}, models.RequestFilters{Hours: 24, Origins: []string{"wsl"}, Sessions: []string{"s1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ff filterFlags
			cmd := &cobra.Command{Use: "test"}
			ff.register(cmd, 0)
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("ParseFlags failed: %v", err)
			}
			got := ff.filters(cmd, 24)
			if usagecache.QueryKey(got) != usagecache.QueryKey(tt.want) {
				t.Errorf("filters = %+v, want %+v", got, tt.want)
			}
			if (got.Models == nil) != (tt.want.Models == nil) {
				t.Errorf("Models nil-ness = %v, want %v", got.Models == nil, tt.want.Models == nil)
			}
		})
	}
}

func TestSeedStore(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	if _, err := seedStore(ctx, database, 0, 24, time.Now()); err == nil {
		t.Error("expected error for a zero count")
	}

	n, err := seedStore(ctx, database, 30, 24, time.Now())
	if err != nil {
		t.Fatalf("seedStore failed: %v", err)
	}
	if n != 30 {
		t.Errorf("inserted %d rows, want 30", n)
	}
}

func TestLoadSummaryReport(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	if _, err := seedStore(ctx, database, 25, 12, time.Now()); err != nil {
		t.Fatalf("seedStore failed: %v", err)
	}

	svc := usagecache.NewService(database, usagecache.Options{PageSize: 10, AnalyticsHours: 24})
	rep, err := loadSummaryReport(ctx, svc, models.RequestFilters{Hours: 24})
	if err != nil {
		t.Fatalf("loadSummaryReport failed: %v", err)
	}
	if len(rep.Entry.Rows) != 10 || !rep.Entry.HasMore {
		t.Errorf("first page = %d rows, HasMore %v", len(rep.Entry.Rows), rep.Entry.HasMore)
	}
	if rep.Summary == nil || rep.Summary.Requests != 25 {
		t.Fatalf("summary = %+v, want 25 requests", rep.Summary)
	}

	var out bytes.Buffer
	if err := writeSummary(&out, rep); err != nil {
		t.Fatalf("writeSummary failed: %v", err)
	}
	for _, want := range []string{"window", "24h", "requests", "25", "more from offset 10"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("summary output missing %q:\n%s", want, out.String())
		}
	}
}

func TestWriteSummary_Unknown(t *testing.T) {
	var out bytes.Buffer
	rep := summaryReport{
		Filters: models.RequestFilters{Hours: 1, Providers: []string{}},
		Notice:  usagecache.NoticeLoadFailed,
	}
	if err := writeSummary(&out, rep); err != nil {
		t.Fatalf("writeSummary failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "failed to load") {
		t.Error("notice missing")
	}
	if !strings.Contains(got, "no requests in this window") {
		t.Error("empty message missing")
	}
	if strings.Count(got, "—") != 6 {
		t.Errorf("expected every total unknown:\n%s", got)
	}
}

func TestWriteDaily(t *testing.T) {
	day := time.Date(2026, time.March, 14, 0, 0, 0, 0, time.Local)
	d := models.DailyTotalsCache{
		DailyTotals: models.DailyTotals{
			OK: true,
			Days: []models.DailyTotal{{
				DayStartUnixMs: day.UnixMilli(),
				ProviderTotals: map[string]int64{"official": 1_500, "provider-a": 20},
				TotalTokens:    1_520,
			}},
			Providers: []models.ProviderTotal{
				{Provider: "official", TotalTokens: 1_500},
				{Provider: "provider-a", TotalTokens: 20},
			},
		},
		Local: true,
	}

	var out bytes.Buffer
	if err := writeDaily(&out, d); err != nil {
		t.Fatalf("writeDaily failed: %v", err)
	}
	// Header cells may be reformatted; compare case-insensitively.
	got := strings.ToUpper(out.String())
	for _, want := range []string{"DAY", "OFFICIAL", "PROVIDER", "2026-03-14", "1.5K", "SOURCE: LOCAL AGGREGATE"} {
		if !strings.Contains(got, want) {
			t.Errorf("daily output missing %q:\n%s", want, out.String())
		}
	}

	out.Reset()
	if err := writeDaily(&out, models.DailyTotalsCache{}); err != nil {
		t.Fatalf("writeDaily failed: %v", err)
	}
	if !strings.Contains(out.String(), "no daily usage recorded") {
		t.Error("empty roll-up message missing")
	}
}
