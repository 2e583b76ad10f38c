package usagecache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/j-veylop/gateway-usage-tui/internal/gateway"
	"github.com/j-veylop/gateway-usage-tui/internal/models"
)

var errBackend = errors.New("backend down")

// fakeGateway answers queries from canned results and counts calls.
type fakeGateway struct {
	mu sync.Mutex

	pages      []models.UsageRequestPage
	pageErr    error
	summary    models.UsageSummary
	summaryErr error
	daily      models.DailyTotals
	dailyErr   error

	entriesCalls int
	summaryCalls int
	lastEntries  gateway.EntriesArgs
}

func (f *fakeGateway) UsageRequestEntries(_ context.Context, args gateway.EntriesArgs) (models.UsageRequestPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entriesCalls++
	f.lastEntries = args
	if f.pageErr != nil {
		return models.UsageRequestPage{}, f.pageErr
	}
	if len(f.pages) == 0 {
		return models.UsageRequestPage{OK: true}, nil
	}
	page := f.pages[0]
	if len(f.pages) > 1 {
		f.pages = f.pages[1:]
	}
	return page, nil
}

func (f *fakeGateway) UsageRequestSummary(context.Context, gateway.SummaryArgs) (models.UsageSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaryCalls++
	return f.summary, f.summaryErr
}

func (f *fakeGateway) UsageRequestDailyTotals(context.Context, gateway.DailyArgs) (models.DailyTotals, error) {
	return f.daily, f.dailyErr
}

const analyticsHours = 24

var serviceNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(gw *fakeGateway, fallback bool) *Service {
	return NewService(gw, Options{
		PageSize:        2,
		AnalyticsHours:  analyticsHours,
		FallbackEnabled: fallback,
		Location:        time.UTC,
		Now:             func() time.Time { return serviceNow },
	})
}

func okPage(hasMore bool, rows ...models.UsageRequestEntry) models.UsageRequestPage {
	return models.UsageRequestPage{OK: true, Rows: rows, HasMore: hasMore, NextOffset: len(rows)}
}

func TestService_ImpossibleFilterSkipsCall(t *testing.T) {
	gw := &fakeGateway{}
	s := newTestService(gw, false)
	f := models.RequestFilters{Hours: analyticsHours, Providers: []string{" "}}

	entry, err := s.LoadPage(context.Background(), f)
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	if gw.entriesCalls != 0 {
		t.Errorf("impossible filter reached the gateway %d times", gw.entriesCalls)
	}
	if len(entry.Rows) != 0 {
		t.Errorf("expected no rows, got %d", len(entry.Rows))
	}

	sum, err := s.LoadSummary(context.Background(), f)
	if err != nil || gw.summaryCalls != 0 {
		t.Fatalf("summary of impossible filter: err=%v calls=%d", err, gw.summaryCalls)
	}
	if sum == nil || sum.Requests != 0 || !sum.OK {
		t.Errorf("expected explicit zero summary, got %+v", sum)
	}
	if reqs := s.BeginGraph(f, true); reqs != nil {
		t.Errorf("impossible filter started graph queries: %v", reqs)
	}
}

func TestService_StalePageDropped(t *testing.T) {
	gw := &fakeGateway{}
	s := newTestService(gw, false)
	a := models.RequestFilters{Hours: analyticsHours}
	b := models.RequestFilters{Hours: analyticsHours, Providers: []string{"official"}}

	first := s.BeginPage(a, 0)
	second := s.BeginPage(b, 0)

	if err := s.ApplyPage(first, okPage(false, row("provider-a", 1, 1)), nil); !errors.Is(err, ErrStaleResponse) {
		t.Fatalf("superseded page applied: %v", err)
	}
	if _, ok := s.Page(a); ok {
		t.Error("stale response mutated the cache")
	}
	if err := s.ApplyPage(second, okPage(false, row("official", 1, 1)), nil); err != nil {
		t.Fatalf("current page rejected: %v", err)
	}
}

func TestService_FallbackOnFailure(t *testing.T) {
	gw := &fakeGateway{pageErr: errBackend}
	s := newTestService(gw, true)
	f := models.RequestFilters{Hours: analyticsHours}

	entry, err := s.LoadPage(context.Background(), f)
	if err != nil {
		t.Fatalf("fallback should absorb the failure: %v", err)
	}
	if !entry.UsingFallback || len(entry.Rows) != DefaultFallbackRows {
		t.Errorf("expected %d fallback rows, got %d (fallback=%v)", DefaultFallbackRows, len(entry.Rows), entry.UsingFallback)
	}
	if s.Notice() != NoticeFallback {
		t.Errorf("notice = %q", s.Notice())
	}
	if sum := s.Summary(f); sum == nil || sum.Requests != int64(DefaultFallbackRows) {
		t.Errorf("fallback summary should total the synthetic rows, got %+v", sum)
	}
}

func TestService_FailureWithoutFallback(t *testing.T) {
	gw := &fakeGateway{pageErr: errBackend}
	s := newTestService(gw, false)

	_, err := s.LoadPage(context.Background(), models.RequestFilters{Hours: analyticsHours})
	if !errors.Is(err, errBackend) {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}
	if s.Notice() != NoticeLoadFailed {
		t.Errorf("notice = %q", s.Notice())
	}
}

func TestService_FallbackNeverReplacesReal(t *testing.T) {
	gw := &fakeGateway{pages: []models.UsageRequestPage{okPage(false, row("official", 2, 5), row("official", 1, 5))}}
	s := newTestService(gw, true)
	f := models.RequestFilters{Hours: analyticsHours}

	if _, err := s.LoadPage(context.Background(), f); err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	gw.pageErr = errBackend
	if _, err := s.LoadPage(context.Background(), f); !errors.Is(err, errBackend) {
		t.Fatalf("expected failure to surface, got %v", err)
	}
	entry, _ := s.Page(f)
	if entry.UsingFallback || len(entry.Rows) != 2 {
		t.Errorf("real rows were replaced: %+v", entry)
	}
	if s.Notice() != NoticeLoadFailed {
		t.Errorf("notice = %q", s.Notice())
	}
}

func TestService_LoadMoreAppends(t *testing.T) {
	gw := &fakeGateway{pages: []models.UsageRequestPage{
		okPage(true, row("official", 4, 1), row("official", 3, 1)),
		{OK: true, Rows: []models.UsageRequestEntry{row("official", 3, 1), row("official", 2, 1)}, NextOffset: 4},
	}}
	s := newTestService(gw, false)
	f := models.RequestFilters{Hours: analyticsHours}

	if _, err := s.LoadPage(context.Background(), f); err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	if sum := s.Summary(f); sum != nil {
		t.Errorf("partial rows without backend summary should be unknown, got %+v", sum)
	}

	req := s.BeginPage(f, 2)
	if req.Args.Offset != 2 || req.Args.Limit != 2 {
		t.Errorf("unexpected paging args: %+v", req.Args)
	}
	page, err := s.FetchPage(context.Background(), req)
	if err := s.ApplyPage(req, page, err); err != nil {
		t.Fatalf("ApplyPage failed: %v", err)
	}
	entry, _ := s.Page(f)
	if len(entry.Rows) != 3 || entry.HasMore {
		t.Errorf("expected 3 unique rows with no more, got %d has_more=%v", len(entry.Rows), entry.HasMore)
	}
	if sorted, unique := assertNewestFirstUnique(entry.Rows); !sorted || !unique {
		t.Error("appended page not newest-first and unique")
	}
	if sum := s.Summary(f); sum == nil || sum.Requests != 3 {
		t.Errorf("fully loaded rows should sum, got %+v", sum)
	}
}

func TestService_Merge(t *testing.T) {
	gw := &fakeGateway{pages: []models.UsageRequestPage{okPage(true, row("official", 2, 1), row("official", 1, 1))}}
	s := newTestService(gw, false)
	f := models.RequestFilters{Hours: analyticsHours}

	if _, err := s.BeginMerge(f); !errors.Is(err, ErrNotCached) {
		t.Fatalf("merge without a cached page: %v", err)
	}
	if _, err := s.LoadPage(context.Background(), f); err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}

	req, err := s.BeginMerge(f)
	if err != nil {
		t.Fatalf("BeginMerge failed: %v", err)
	}
	if _, err := s.BeginMerge(f); !errors.Is(err, ErrMergeInFlight) {
		t.Errorf("second merge should be refused, got %v", err)
	}

	added, err := s.ApplyMerge(req, okPage(false, row("official", 3, 1), row("official", 2, 1)), nil)
	if err != nil || added != 1 {
		t.Fatalf("ApplyMerge = %d, %v", added, err)
	}
	entry, _ := s.Page(f)
	if len(entry.Rows) != 3 || entry.Rows[0].UnixMs != 3 || !entry.HasMore {
		t.Errorf("merge result wrong: rows=%d head=%d has_more=%v", len(entry.Rows), entry.Rows[0].UnixMs, entry.HasMore)
	}

	// The in-flight guard is released after apply.
	if _, err := s.BeginMerge(f); err != nil {
		t.Errorf("merge guard not released: %v", err)
	}
}

func TestService_MergeSupersededByPage(t *testing.T) {
	gw := &fakeGateway{pages: []models.UsageRequestPage{okPage(false, row("official", 1, 1))}}
	s := newTestService(gw, false)
	f := models.RequestFilters{Hours: analyticsHours}
	if _, err := s.LoadPage(context.Background(), f); err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}

	merge, err := s.BeginMerge(f)
	if err != nil {
		t.Fatalf("BeginMerge failed: %v", err)
	}
	s.BeginPage(models.RequestFilters{Hours: 1}, 0)

	if _, err := s.ApplyMerge(merge, okPage(false, row("official", 9, 1)), nil); !errors.Is(err, ErrStaleResponse) {
		t.Errorf("merge after a newer page fetch should be stale, got %v", err)
	}
	if _, err := s.BeginMerge(f); err != nil {
		t.Errorf("stale merge left the guard set: %v", err)
	}
}

func TestService_MergeReplacesFallback(t *testing.T) {
	gw := &fakeGateway{pageErr: errBackend}
	s := newTestService(gw, true)
	f := models.RequestFilters{Hours: analyticsHours}
	if _, err := s.LoadPage(context.Background(), f); err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}

	req, err := s.BeginMerge(f)
	if err != nil {
		t.Fatalf("BeginMerge failed: %v", err)
	}
	if _, err := s.ApplyMerge(req, okPage(false, row("official", 5, 1)), nil); err != nil {
		t.Fatalf("ApplyMerge failed: %v", err)
	}
	entry, _ := s.Page(f)
	if entry.UsingFallback || len(entry.Rows) != 1 {
		t.Errorf("real rows should replace fallback entirely, got %d rows fallback=%v", len(entry.Rows), entry.UsingFallback)
	}
	if s.Notice() != NoticeNone {
		t.Errorf("notice = %q", s.Notice())
	}
}

func TestService_BackendSummaryWins(t *testing.T) {
	gw := &fakeGateway{
		pages:   []models.UsageRequestPage{okPage(true, row("official", 2, 1), row("official", 1, 1))},
		summary: models.UsageSummary{OK: true, Requests: 500, TotalTokens: 9000},
	}
	s := newTestService(gw, false)
	f := models.RequestFilters{Hours: analyticsHours}

	if _, err := s.LoadPage(context.Background(), f); err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	sum, err := s.LoadSummary(context.Background(), f)
	if err != nil {
		t.Fatalf("LoadSummary failed: %v", err)
	}
	if sum == nil || sum.Requests != 500 {
		t.Errorf("backend summary not authoritative: %+v", sum)
	}

	// A failed refresh keeps the previous summary.
	gw.summaryErr = errBackend
	if _, err := s.LoadSummary(context.Background(), f); !errors.Is(err, errBackend) {
		t.Errorf("expected summary failure, got %v", err)
	}
	if sum := s.Summary(f); sum == nil || sum.Requests != 500 {
		t.Errorf("previous summary lost: %+v", sum)
	}
}

func TestService_DailyFallsBackToLocalAggregation(t *testing.T) {
	day := serviceNow.UnixMilli()
	gw := &fakeGateway{
		pages:    []models.UsageRequestPage{okPage(false, row("official", day, 10), row("provider-a", day-1, 4))},
		dailyErr: errBackend,
	}
	s := newTestService(gw, false)

	if _, err := s.LoadDaily(context.Background()); !errors.Is(err, errBackend) {
		t.Fatalf("daily with no data should fail, got %v", err)
	}
	if _, err := s.LoadPage(context.Background(), models.RequestFilters{Hours: analyticsHours}); err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}

	d, err := s.LoadDaily(context.Background())
	if err != nil {
		t.Fatalf("local aggregation should absorb the failure: %v", err)
	}
	if !d.Local || d.UsingFallback || len(d.Days) != 1 || d.Days[0].TotalTokens != 14 {
		t.Errorf("unexpected local roll-up: %+v", d)
	}

	// A backend roll-up replaces the local one and survives a later failure.
	gw.dailyErr = nil
	gw.daily = models.DailyTotals{OK: true, Days: []models.DailyTotal{
		{DayStartUnixMs: dayStart(serviceNow, time.UTC).UnixMilli(), TotalTokens: 99, ProviderTotals: map[string]int64{"official": 99}},
	}}
	if _, err := s.LoadDaily(context.Background()); err != nil {
		t.Fatalf("LoadDaily failed: %v", err)
	}
	gw.dailyErr = errBackend
	if _, err := s.LoadDaily(context.Background()); err == nil {
		t.Error("failure over a backend roll-up should still be reported")
	}
	d, _ = s.Daily()
	if d.Local || d.Days[0].TotalTokens != 99 {
		t.Errorf("backend roll-up replaced by local aggregation: %+v", d)
	}
}

func TestService_DailyFromFallbackRows(t *testing.T) {
	gw := &fakeGateway{pageErr: errBackend, dailyErr: errBackend}
	s := newTestService(gw, true)
	if _, err := s.LoadPage(context.Background(), models.RequestFilters{Hours: analyticsHours}); err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	d, err := s.LoadDaily(context.Background())
	if err != nil {
		t.Fatalf("LoadDaily failed: %v", err)
	}
	if !d.UsingFallback || len(d.Days) == 0 {
		t.Errorf("expected a fallback roll-up, got %+v", d)
	}
}

func TestService_GraphFlow(t *testing.T) {
	gw := &fakeGateway{pages: []models.UsageRequestPage{
		okPage(false, row("provider-a", 3, 1), row("official", 2, 4)),
	}}
	s := newTestService(gw, false)
	f := models.RequestFilters{Hours: analyticsHours}
	if _, err := s.LoadPage(context.Background(), f); err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}

	if got := s.DisplayProviders(f); len(got) != 2 || got[0] != "provider-a" {
		t.Errorf("DisplayProviders() = %v", got)
	}
	if s.HasGraph(f) {
		t.Fatal("graph snapshot before any refresh")
	}

	reqs := s.BeginGraph(f, false)
	if len(reqs) != 2 {
		t.Fatalf("got %d graph requests, want 2", len(reqs))
	}
	if !s.HasGraph(f) {
		t.Error("graph should be seeded from base rows")
	}
	if again := s.BeginGraph(f, false); again != nil {
		t.Error("unforced refresh inside the throttle window should not start")
	}

	gw.pages = []models.UsageRequestPage{okPage(false, row("official", 7, 8), row("official", 6, 6))}
	var official GraphRequest
	for _, r := range reqs {
		if r.Provider == "official" {
			official = r
		}
	}
	rows, err := s.FetchGraph(context.Background(), official)
	if err := s.ApplyGraph(official, rows, err); err != nil {
		t.Fatalf("ApplyGraph failed: %v", err)
	}
	if gw.lastEntries.Limit != GraphWindowSize || len(gw.lastEntries.Providers) != 1 {
		t.Errorf("graph query args: %+v", gw.lastEntries)
	}

	series := s.GraphSeries(f)
	if len(series) != 2 {
		t.Fatalf("got %d series, want 2", len(series))
	}
	for _, ps := range series {
		if ps.Provider == "official" && ps.Points[GraphWindowSize-1] != 8 {
			t.Errorf("official series head = %v, want 8", ps.Points[GraphWindowSize-1])
		}
	}

	// A forced refresh supersedes the outstanding provider-a request.
	forced := s.BeginGraph(f, true)
	if len(forced) != 2 {
		t.Fatalf("forced refresh should start, got %d requests", len(forced))
	}
	for _, r := range reqs {
		if r.Provider == "provider-a" {
			if err := s.ApplyGraph(r, nil, nil); !errors.Is(err, ErrStaleResponse) {
				t.Errorf("superseded graph response applied: %v", err)
			}
		}
	}
}

func TestService_EmptyStrictPageSummary(t *testing.T) {
	tests := []struct {
		name    string
		summary models.UsageSummary
		err     error
		want    int64
	}{
		{name: "summary failed", err: errBackend, want: 0},
		{name: "summary not ok", summary: models.UsageSummary{}, want: 0},
		{name: "backend wins", summary: models.UsageSummary{OK: true, Requests: 3}, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{
				pages:      []models.UsageRequestPage{okPage(false)},
				summary:    tt.summary,
				summaryErr: tt.err,
			}
			s := newTestService(gw, false)
			f := models.RequestFilters{Hours: analyticsHours, Providers: []string{"official"}}

			if _, err := s.LoadPage(context.Background(), f); err != nil {
				t.Fatalf("LoadPage failed: %v", err)
			}
			_, _ = s.LoadSummary(context.Background(), f)

			sum := s.Summary(f)
			if sum == nil {
				t.Fatal("loaded empty page resolved to unknown totals")
			}
			if sum.Requests != tt.want {
				t.Errorf("Requests = %d, want %d", sum.Requests, tt.want)
			}
		})
	}
}

func TestService_Cached(t *testing.T) {
	gw := &fakeGateway{pages: []models.UsageRequestPage{okPage(false, row("official", 2, 1))}}
	s := newTestService(gw, false)
	day := models.RequestFilters{Hours: analyticsHours}
	full := models.RequestFilters{Hours: FullHistoryHours}

	if _, err := s.LoadPage(context.Background(), day); err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	if !s.Cached(day) {
		t.Error("loaded query not cached")
	}
	if _, ok := s.Page(full); !ok {
		t.Fatal("default view should resolve a broader entry")
	}
	if s.Cached(full) {
		t.Error("full history reported cached from another window's rows")
	}
}

func TestService_StaleSummaryDropped(t *testing.T) {
	gw := &fakeGateway{}
	s := newTestService(gw, false)
	f := models.RequestFilters{Hours: analyticsHours}

	first := s.BeginSummary(f)
	second := s.BeginSummary(f)

	if err := s.ApplySummary(first, models.UsageSummary{OK: true, Requests: 7}, nil); !errors.Is(err, ErrStaleResponse) {
		t.Fatalf("superseded summary applied: %v", err)
	}
	if sum := s.Summary(f); sum != nil {
		t.Errorf("stale summary stored: %+v", sum)
	}
	if err := s.ApplySummary(second, models.UsageSummary{OK: true, Requests: 9}, nil); err != nil {
		t.Fatalf("current summary rejected: %v", err)
	}
	if sum := s.Summary(f); sum == nil || sum.Requests != 9 {
		t.Errorf("Summary = %+v, want 9 requests", sum)
	}
}

func TestService_StaleDailyDropped(t *testing.T) {
	gw := &fakeGateway{}
	s := newTestService(gw, false)
	day := serviceNow.UnixMilli()

	first := s.BeginDaily()
	second := s.BeginDaily()

	current := models.DailyTotals{OK: true, Days: []models.DailyTotal{{DayStartUnixMs: day, ProviderTotals: map[string]int64{"official": 5}}}}
	if err := s.ApplyDaily(second, current, nil); err != nil {
		t.Fatalf("current daily rejected: %v", err)
	}
	late := models.DailyTotals{OK: true, Days: []models.DailyTotal{{DayStartUnixMs: day, ProviderTotals: map[string]int64{"official": 99}}}}
	if err := s.ApplyDaily(first, late, nil); !errors.Is(err, ErrStaleResponse) {
		t.Fatalf("superseded daily applied: %v", err)
	}
	got, ok := s.Daily()
	if !ok {
		t.Fatal("daily roll-up missing")
	}
	if len(got.Days) != 1 || got.Days[0].ProviderTotals["official"] != 5 {
		t.Errorf("daily roll-up overwritten by stale response: %+v", got.Days)
	}
}
