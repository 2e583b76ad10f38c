// Package usagecache implements the client-side cache and aggregation engine for
// gateway usage requests: query-scoped page caching, incremental merging, rolling
// per-provider graph history, daily roll-ups, summary resolution and synthetic
// fallback data.
package usagecache

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/j-veylop/gateway-usage-tui/internal/models"
)

// FullHistoryHours is the window used when the requests tab shows the whole history.
const FullHistoryHours = 24 * 365 * 10

// ViewTab identifies the panel view requesting data.
type ViewTab int

const (
	// ViewAnalytics is the analytics overview.
	ViewAnalytics ViewTab = iota
	// ViewRequests is the request log table.
	ViewRequests
)

// RequestView describes the UI state that influences the fetch window.
type RequestView struct {
	Tab           ViewTab
	FiltersHidden bool
}

// queryKeyDoc fixes the field order of the serialized key.
type queryKeyDoc struct {
	Hours      int      `json:"hours"`
	FromUnixMs *int64   `json:"fromUnixMs"`
	ToUnixMs   *int64   `json:"toUnixMs"`
	Providers  []string `json:"providers"`
	Models     []string `json:"models"`
	Origins    []string `json:"origins"`
	Sessions   []string `json:"sessions"`
}

// QueryKey canonicalizes a filter set into a stable cache identifier.
// Nil dimensions serialize as null and empty ones as [], so "unrestricted" and
// "match nothing" never collide.
func QueryKey(f models.RequestFilters) string {
	doc := queryKeyDoc{
		Hours:      f.Hours,
		FromUnixMs: f.FromUnixMs,
		ToUnixMs:   f.ToUnixMs,
		Providers:  canonicalList(f.Providers),
		Models:     canonicalList(f.Models),
		Origins:    canonicalList(f.Origins),
		Sessions:   canonicalList(f.Sessions),
	}
	b, err := json.Marshal(doc)
	if err != nil {
		// Only strings and integers are marshaled.
		panic(err)
	}
	return string(b)
}

// canonicalList trims, deduplicates and sorts a filter dimension.
func canonicalList(in []string) []string {
	if in == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// NormalizeFilters returns the filters with every dimension in canonical form.
func NormalizeFilters(f models.RequestFilters) models.RequestFilters {
	out := f.Clone()
	out.Providers = canonicalList(out.Providers)
	out.Models = canonicalList(out.Models)
	out.Origins = canonicalList(out.Origins)
	out.Sessions = canonicalList(out.Sessions)
	return out
}

// IsStrict reports whether the query carries any explicit restriction.
func IsStrict(f models.RequestFilters) bool {
	return f.FromUnixMs != nil || f.ToUnixMs != nil ||
		f.Providers != nil || f.Models != nil ||
		f.Origins != nil || f.Sessions != nil
}

// CanonicalFilters returns the unrestricted filter set for the same window.
func CanonicalFilters(f models.RequestFilters) models.RequestFilters {
	return models.RequestFilters{Hours: f.Hours}
}

// HasImpossibleFilter reports whether any dimension resolves to "match nothing".
func HasImpossibleFilter(f models.RequestFilters) bool {
	for _, dim := range [][]string{f.Providers, f.Models, f.Origins, f.Sessions} {
		if dim != nil && len(canonicalList(dim)) == 0 {
			return true
		}
	}
	return false
}

// ResolveRequestFetchHours picks the fetch window: the full history when the
// requests tab is active with the filter UI hidden, otherwise the analytics window.
func ResolveRequestFetchHours(view RequestView, analyticsHours int) int {
	if view.Tab == ViewRequests && view.FiltersHidden {
		return FullHistoryHours
	}
	return analyticsHours
}
