package usagecache

import (
	"testing"
	"time"

	"github.com/j-veylop/gateway-usage-tui/internal/models"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("timezone %s unavailable: %v", name, err)
	}
	return loc
}

func TestAggregateDaily_AnchorsAtLatestData(t *testing.T) {
	loc := time.UTC
	latest := time.Date(2025, 6, 30, 15, 0, 0, 0, loc)
	var rows []models.UsageRequestEntry
	for i := range 60 {
		ts := latest.AddDate(0, 0, -i).UnixMilli()
		rows = append(rows, row("official", ts, 10), row("provider-a", ts+1, 5))
	}

	out := AggregateDaily(rows, loc)
	if len(out.Days) != DailyWindowDays {
		t.Fatalf("got %d days, want %d", len(out.Days), DailyWindowDays)
	}
	last := out.Days[len(out.Days)-1]
	if want := time.Date(2025, 6, 30, 0, 0, 0, 0, loc).UnixMilli(); last.DayStartUnixMs != want {
		t.Errorf("window anchored at %v, want 2025-06-30", time.UnixMilli(last.DayStartUnixMs).In(loc))
	}
	first := out.Days[0]
	if want := time.Date(2025, 5, 17, 0, 0, 0, 0, loc).UnixMilli(); first.DayStartUnixMs != want {
		t.Errorf("window starts at %v, want 2025-05-17", time.UnixMilli(first.DayStartUnixMs).In(loc))
	}
	if last.ProviderTotals["official"] != 10 || last.TotalTokens != 15 {
		t.Errorf("unexpected last day totals: %+v", last)
	}
	if len(out.Providers) != 2 || out.Providers[0].Provider != "official" || out.Providers[0].TotalTokens != 450 {
		t.Errorf("unexpected provider totals: %+v", out.Providers)
	}
}

func TestAggregateDaily_ShortSpanKeepsAll(t *testing.T) {
	loc := time.UTC
	base := time.Date(2025, 1, 10, 8, 0, 0, 0, loc)
	rows := []models.UsageRequestEntry{
		row("official", base.UnixMilli(), 1),
		row("official", base.AddDate(0, 0, -3).UnixMilli(), 2),
	}

	out := AggregateDaily(rows, loc)
	if len(out.Days) != 4 {
		t.Fatalf("got %d days, want 4 (gap-filled span)", len(out.Days))
	}
	if out.Days[1].TotalTokens != 0 || out.Days[2].TotalTokens != 0 {
		t.Error("days without data should be zero")
	}
	if out.Days[0].TotalTokens != 2 || out.Days[3].TotalTokens != 1 {
		t.Errorf("unexpected totals: %+v", out.Days)
	}
}

func TestAggregateDaily_LocalMidnight(t *testing.T) {
	loc := mustLoad(t, "America/New_York")
	// 23:30 and 00:30 local fall on different days even though they are an hour apart.
	late := time.Date(2025, 3, 1, 23, 30, 0, 0, loc)
	early := late.Add(time.Hour)

	out := AggregateDaily([]models.UsageRequestEntry{row("official", late.UnixMilli(), 1), row("official", early.UnixMilli(), 1)}, loc)
	if len(out.Days) != 2 {
		t.Fatalf("got %d days, want 2", len(out.Days))
	}
}

func TestAggregateDaily_AcrossDST(t *testing.T) {
	loc := mustLoad(t, "Europe/Berlin")
	latest := time.Date(2025, 4, 20, 12, 0, 0, 0, loc)
	var rows []models.UsageRequestEntry
	for i := range 50 {
		rows = append(rows, row("official", latest.AddDate(0, 0, -i).UnixMilli(), 1))
	}

	out := AggregateDaily(rows, loc)
	if len(out.Days) != DailyWindowDays {
		t.Fatalf("got %d days, want %d", len(out.Days), DailyWindowDays)
	}
	for _, d := range out.Days {
		t0 := time.UnixMilli(d.DayStartUnixMs).In(loc)
		if t0.Hour() != 0 || t0.Minute() != 0 {
			t.Errorf("day start %v is not local midnight", t0)
		}
		if d.TotalTokens != 1 {
			t.Errorf("day %v has %d tokens, want 1", t0, d.TotalTokens)
		}
	}
}

func TestAggregateDaily_Empty(t *testing.T) {
	out := AggregateDaily(nil, time.UTC)
	if !out.OK || len(out.Days) != 0 || out.Days == nil {
		t.Errorf("unexpected empty roll-up: %+v", out)
	}
}

func TestNormalizeDailyTotals(t *testing.T) {
	loc := time.UTC
	day := func(d int) int64 { return time.Date(2025, 2, d, 0, 0, 0, 0, loc).UnixMilli() }
	in := models.DailyTotals{
		OK: true,
		Days: []models.DailyTotal{
			{DayStartUnixMs: day(3), ProviderTotals: map[string]int64{"official": 7}, TotalTokens: 7},
			{DayStartUnixMs: day(1), ProviderTotals: map[string]int64{"provider-a": 2}, TotalTokens: 5},
		},
	}

	out := NormalizeDailyTotals(in, loc)
	if len(out.Days) != 3 {
		t.Fatalf("got %d days, want 3", len(out.Days))
	}
	if out.Days[0].DayStartUnixMs != day(1) || out.Days[2].DayStartUnixMs != day(3) {
		t.Error("days not sorted oldest first")
	}
	if out.Days[0].TotalTokens != 5 {
		t.Errorf("unattributed backend tokens lost: %d", out.Days[0].TotalTokens)
	}
	if len(out.Providers) != 2 || out.Providers[0].Provider != "official" {
		t.Errorf("unexpected providers: %+v", out.Providers)
	}
}
