package models

import "time"

// DailyTotal is the token roll-up for a single local day.
type DailyTotal struct {
	DayStartUnixMs int64            `json:"day_start_unix_ms"`
	ProviderTotals map[string]int64 `json:"provider_totals"`
	TotalTokens    int64            `json:"total_tokens"`
}

// Day returns the start of the day in the local timezone.
func (d DailyTotal) Day() time.Time {
	return time.UnixMilli(d.DayStartUnixMs)
}

// ProviderTotal is the token total of one provider across the whole window.
type ProviderTotal struct {
	Provider    string `json:"provider"`
	TotalTokens int64  `json:"total_tokens"`
}

// DailyTotals is the day x provider roll-up returned by the gateway.
type DailyTotals struct {
	OK        bool            `json:"ok"`
	Days      []DailyTotal    `json:"days"`
	Providers []ProviderTotal `json:"providers"`
}

// DailyTotalsCache is the cached roll-up plus where it came from.
type DailyTotalsCache struct {
	DailyTotals
	// Local is set when the roll-up was aggregated client-side from cached rows.
	Local         bool
	UsingFallback bool
	UpdatedAt     time.Time
}

// ProviderNames returns the provider names in roll-up order.
func (d DailyTotals) ProviderNames() []string {
	names := make([]string, 0, len(d.Providers))
	for _, p := range d.Providers {
		names = append(names, p.Provider)
	}
	return names
}
