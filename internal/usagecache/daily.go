package usagecache

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/j-veylop/gateway-usage-tui/internal/models"
)

// DailyWindowDays is the trailing window of the daily roll-up.
const DailyWindowDays = 45

// AggregateDaily rolls raw rows into day x provider token totals.
//
// Rows are bucketed by local midnight of their timestamp. When the data spans at
// least DailyWindowDays, the window is anchored at the most recent day with data
// rather than at today; otherwise the whole span is kept. Days without data inside
// the window are present with zero totals.
func AggregateDaily(rows []models.UsageRequestEntry, loc *time.Location) models.DailyTotals {
	if loc == nil {
		loc = time.Local
	}
	byDay := make(map[int64]*models.DailyTotal)
	for _, r := range rows {
		start := dayStart(time.UnixMilli(r.UnixMs), loc).UnixMilli()
		day, ok := byDay[start]
		if !ok {
			day = &models.DailyTotal{DayStartUnixMs: start, ProviderTotals: map[string]int64{}}
			byDay[start] = day
		}
		day.ProviderTotals[r.Provider] += r.TotalTokens
		day.TotalTokens += r.TotalTokens
	}
	return windowDays(byDay, loc)
}

// NormalizeDailyTotals applies the trailing-window policy to a backend roll-up.
func NormalizeDailyTotals(in models.DailyTotals, loc *time.Location) models.DailyTotals {
	if loc == nil {
		loc = time.Local
	}
	byDay := make(map[int64]*models.DailyTotal, len(in.Days))
	for _, d := range in.Days {
		start := dayStart(time.UnixMilli(d.DayStartUnixMs), loc).UnixMilli()
		day, ok := byDay[start]
		if !ok {
			day = &models.DailyTotal{DayStartUnixMs: start, ProviderTotals: map[string]int64{}}
			byDay[start] = day
		}
		var sum int64
		for p, v := range d.ProviderTotals {
			day.ProviderTotals[p] += v
			sum += v
		}
		// Keep the backend total when it carries tokens not attributed to a provider.
		if d.TotalTokens > sum {
			sum = d.TotalTokens
		}
		day.TotalTokens += sum
	}
	out := windowDays(byDay, loc)
	out.OK = in.OK
	return out
}

func windowDays(byDay map[int64]*models.DailyTotal, loc *time.Location) models.DailyTotals {
	out := models.DailyTotals{OK: true, Days: []models.DailyTotal{}, Providers: []models.ProviderTotal{}}
	if len(byDay) == 0 {
		return out
	}

	starts := lo.Keys(byDay)
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })
	first := time.UnixMilli(starts[0]).In(loc)
	last := time.UnixMilli(starts[len(starts)-1]).In(loc)

	from := first
	if calendarDaysBetween(first, last)+1 >= DailyWindowDays {
		from = addDays(last, -(DailyWindowDays - 1), loc)
	}

	providerTotals := make(map[string]int64)
	for d := from; !d.After(last); d = addDays(d, 1, loc) {
		key := d.UnixMilli()
		day, ok := byDay[key]
		if !ok {
			out.Days = append(out.Days, models.DailyTotal{DayStartUnixMs: key, ProviderTotals: map[string]int64{}})
			continue
		}
		for p, v := range day.ProviderTotals {
			providerTotals[p] += v
		}
		out.Days = append(out.Days, *day)
	}

	for p, v := range providerTotals {
		out.Providers = append(out.Providers, models.ProviderTotal{Provider: p, TotalTokens: v})
	}
	sort.Slice(out.Providers, func(i, j int) bool {
		a, b := out.Providers[i], out.Providers[j]
		if a.TotalTokens != b.TotalTokens {
			return a.TotalTokens > b.TotalTokens
		}
		return a.Provider < b.Provider
	})
	return out
}

func dayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// addDays steps by calendar days so DST transitions keep midnight aligned.
func addDays(t time.Time, n int, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+n, 0, 0, 0, 0, loc)
}

func calendarDaysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
