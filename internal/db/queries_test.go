package db

import (
	"context"
	"testing"
	"time"

	"github.com/j-veylop/gateway-usage-tui/internal/gateway"
	"github.com/j-veylop/gateway-usage-tui/internal/models"
)

func seedRows(t *testing.T, db *DB, base int64) []models.UsageRequestEntry {
	t.Helper()
	rows := []models.UsageRequestEntry{
		{Provider: "official", Model: "m1", Origin: "windows", SessionID: "s1", UnixMs: base - 1_000, InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
		{Provider: "provider-a", Model: "m2", Origin: "wsl", SessionID: "s2", UnixMs: base - 2_000, InputTokens: 20, OutputTokens: 10, TotalTokens: 30, CacheReadInputTokens: 7},
		{Provider: "official", Model: "m2", Origin: "wsl", SessionID: "s1", UnixMs: base - 3_000, InputTokens: 1, OutputTokens: 1},
	}
	if err := db.InsertUsageRequests(context.Background(), rows); err != nil {
		t.Fatalf("InsertUsageRequests failed: %v", err)
	}
	return rows
}

func fixedNow(db *DB, now time.Time) {
	db.now = func() time.Time { return now }
}

func TestInsertUsageRequests_DefaultsTotal(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	now := time.Now()
	fixedNow(db, now)
	seedRows(t, db, now.UnixMilli())

	page, err := db.UsageRequestEntries(context.Background(), gateway.EntriesArgs{Hours: 1, Limit: 10})
	if err != nil {
		t.Fatalf("UsageRequestEntries failed: %v", err)
	}
	if len(page.Rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(page.Rows))
	}
	if got := page.Rows[2].TotalTokens; got != 2 {
		t.Errorf("Expected derived total 2, got %d", got)
	}
}

func TestUsageRequestEntries_NewestFirstAndPaging(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	now := time.Now()
	fixedNow(db, now)
	seedRows(t, db, now.UnixMilli())

	page, err := db.UsageRequestEntries(context.Background(), gateway.EntriesArgs{Hours: 1, Limit: 2})
	if err != nil {
		t.Fatalf("UsageRequestEntries failed: %v", err)
	}
	if !page.OK || !page.HasMore {
		t.Errorf("Expected ok page with more rows, got ok=%v has_more=%v", page.OK, page.HasMore)
	}
	if page.NextOffset != 2 {
		t.Errorf("Expected next offset 2, got %d", page.NextOffset)
	}
	if page.Rows[0].UnixMs < page.Rows[1].UnixMs {
		t.Error("Rows are not newest-first")
	}

	next, err := db.UsageRequestEntries(context.Background(), gateway.EntriesArgs{Hours: 1, Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("UsageRequestEntries failed: %v", err)
	}
	if len(next.Rows) != 1 || next.HasMore {
		t.Errorf("Expected final page of 1 row, got %d rows has_more=%v", len(next.Rows), next.HasMore)
	}
}

func TestUsageRequestEntries_Filters(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	now := time.Now()
	fixedNow(db, now)
	seedRows(t, db, now.UnixMilli())

	tests := []struct {
		name string
		args gateway.EntriesArgs
		want int
	}{
		{"unrestricted", gateway.EntriesArgs{Hours: 1}, 3},
		{"provider", gateway.EntriesArgs{Hours: 1, Providers: []string{"official"}}, 2},
		{"provider and model", gateway.EntriesArgs{Hours: 1, Providers: []string{"official"}, Models: []string{"m2"}}, 1},
		{"origin", gateway.EntriesArgs{Hours: 1, Origins: []string{"wsl"}}, 2},
		{"session", gateway.EntriesArgs{Hours: 1, Sessions: []string{"s2"}}, 1},
		{"match nothing", gateway.EntriesArgs{Hours: 1, Models: []string{}}, 0},
		{"range", gateway.EntriesArgs{
			FromUnixMs: models.Int64Ptr(now.UnixMilli() - 2_500),
			ToUnixMs:   models.Int64Ptr(now.UnixMilli() - 1_500),
		}, 1},
		{"before every event", gateway.EntriesArgs{ToUnixMs: models.Int64Ptr(now.UnixMilli() - 10_000)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := db.UsageRequestEntries(context.Background(), tt.args)
			if err != nil {
				t.Fatalf("UsageRequestEntries failed: %v", err)
			}
			if len(page.Rows) != tt.want {
				t.Errorf("Expected %d rows, got %d", tt.want, len(page.Rows))
			}
		})
	}
}

func TestUsageRequestSummary(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	now := time.Now()
	fixedNow(db, now)
	seedRows(t, db, now.UnixMilli())

	summary, err := db.UsageRequestSummary(context.Background(), gateway.SummaryArgs{Hours: 1})
	if err != nil {
		t.Fatalf("UsageRequestSummary failed: %v", err)
	}
	want := models.UsageSummary{
		OK:                   true,
		Requests:             3,
		InputTokens:          31,
		OutputTokens:         16,
		TotalTokens:          47,
		CacheReadInputTokens: 7,
	}
	if summary != want {
		t.Errorf("Expected %+v, got %+v", want, summary)
	}

	empty, err := db.UsageRequestSummary(context.Background(), gateway.SummaryArgs{Hours: 1, Providers: []string{}})
	if err != nil {
		t.Fatalf("UsageRequestSummary failed: %v", err)
	}
	if !empty.OK || empty.Requests != 0 {
		t.Errorf("Expected ok zero summary, got %+v", empty)
	}
}

func TestUsageRequestDailyTotals(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	// Noon keeps every event well inside its local day.
	last := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)
	var rows []models.UsageRequestEntry
	for i := range 60 {
		day := last.AddDate(0, 0, -i)
		rows = append(rows,
			models.UsageRequestEntry{Provider: "official", UnixMs: day.UnixMilli(), TotalTokens: 10},
			models.UsageRequestEntry{Provider: "provider-a", UnixMs: day.UnixMilli() + 1, TotalTokens: 1},
		)
	}
	if err := db.InsertUsageRequests(context.Background(), rows); err != nil {
		t.Fatalf("InsertUsageRequests failed: %v", err)
	}

	totals, err := db.UsageRequestDailyTotals(context.Background(), gateway.DailyArgs{Days: 45})
	if err != nil {
		t.Fatalf("UsageRequestDailyTotals failed: %v", err)
	}
	if len(totals.Days) != 45 {
		t.Fatalf("Expected 45 days, got %d", len(totals.Days))
	}
	newest := totals.Days[len(totals.Days)-1]
	wantStart := time.Date(2026, 3, 10, 0, 0, 0, 0, time.Local).UnixMilli()
	if newest.DayStartUnixMs != wantStart {
		t.Errorf("Expected window anchored at %d, got %d", wantStart, newest.DayStartUnixMs)
	}
	if newest.TotalTokens != 11 {
		t.Errorf("Expected 11 tokens on the newest day, got %d", newest.TotalTokens)
	}
	if len(totals.Providers) != 2 || totals.Providers[0].Provider != "official" {
		t.Errorf("Expected official to lead provider totals, got %+v", totals.Providers)
	}
	if totals.Providers[0].TotalTokens != 450 {
		t.Errorf("Expected 450 official tokens, got %d", totals.Providers[0].TotalTokens)
	}
}

func TestUsageRequestDailyTotals_Empty(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	totals, err := db.UsageRequestDailyTotals(context.Background(), gateway.DailyArgs{Days: 45})
	if err != nil {
		t.Fatalf("UsageRequestDailyTotals failed: %v", err)
	}
	if !totals.OK || len(totals.Days) != 0 {
		t.Errorf("Expected ok empty roll-up, got %+v", totals)
	}
}

func TestDBImplementsClient(t *testing.T) {
	var _ gateway.Client = (*DB)(nil)
}
