// Package gateway is the read-only query surface of the local API gateway: the
// argument shapes, an HTTP client, and a chi server exposing any Client over HTTP.
package gateway

import (
	"github.com/j-veylop/gateway-usage-tui/internal/models"
)

// EntriesArgs are the arguments of get_usage_request_entries. Field names are the
// exact wire names the gateway expects.
type EntriesArgs struct {
	Hours      int      `json:"hours"`
	FromUnixMs *int64   `json:"fromUnixMs"`
	ToUnixMs   *int64   `json:"toUnixMs"`
	Providers  []string `json:"providers"`
	Models     []string `json:"models"`
	Origins    []string `json:"origins"`
	Sessions   []string `json:"sessions"`
	Limit      int      `json:"limit"`
	Offset     int      `json:"offset"`
}

// SummaryArgs are the arguments of get_usage_request_summary.
type SummaryArgs struct {
	Hours      int      `json:"hours"`
	FromUnixMs *int64   `json:"fromUnixMs"`
	ToUnixMs   *int64   `json:"toUnixMs"`
	Providers  []string `json:"providers"`
	Models     []string `json:"models"`
	Origins    []string `json:"origins"`
	Sessions   []string `json:"sessions"`
}

// DailyArgs are the arguments of get_usage_request_daily_totals.
type DailyArgs struct {
	Days int `json:"days"`
}

// BuildUsageRequestEntriesArgs maps filter state onto the entries call.
func BuildUsageRequestEntriesArgs(f models.RequestFilters, limit, offset int) EntriesArgs {
	c := f.Clone()
	return EntriesArgs{
		Hours:      c.Hours,
		FromUnixMs: c.FromUnixMs,
		ToUnixMs:   c.ToUnixMs,
		Providers:  c.Providers,
		Models:     c.Models,
		Origins:    c.Origins,
		Sessions:   c.Sessions,
		Limit:      limit,
		Offset:     offset,
	}
}

// BuildUsageRequestSummaryArgs maps filter state onto the summary call.
func BuildUsageRequestSummaryArgs(f models.RequestFilters) SummaryArgs {
	c := f.Clone()
	return SummaryArgs{
		Hours:      c.Hours,
		FromUnixMs: c.FromUnixMs,
		ToUnixMs:   c.ToUnixMs,
		Providers:  c.Providers,
		Models:     c.Models,
		Origins:    c.Origins,
		Sessions:   c.Sessions,
	}
}

// Filters converts the arguments back into filter state.
func (a EntriesArgs) Filters() models.RequestFilters {
	return models.RequestFilters{
		Hours:      a.Hours,
		FromUnixMs: a.FromUnixMs,
		ToUnixMs:   a.ToUnixMs,
		Providers:  a.Providers,
		Models:     a.Models,
		Origins:    a.Origins,
		Sessions:   a.Sessions,
	}
}

// Filters converts the arguments back into filter state.
func (a SummaryArgs) Filters() models.RequestFilters {
	return models.RequestFilters{
		Hours:      a.Hours,
		FromUnixMs: a.FromUnixMs,
		ToUnixMs:   a.ToUnixMs,
		Providers:  a.Providers,
		Models:     a.Models,
		Origins:    a.Origins,
		Sessions:   a.Sessions,
	}
}
