package usagecache

import (
	"github.com/j-veylop/gateway-usage-tui/internal/models"
)

// ResolveSummary decides which totals the request table may show.
//
// An OK backend summary is authoritative and returned verbatim. Without one, a
// partially loaded row set (hasMore) resolves to nil, meaning "unknown"; a fully
// loaded one resolves to the exact sum of its rows.
func ResolveSummary(backend *models.UsageSummary, rows []models.UsageRequestEntry, hasMore bool) *models.UsageSummary {
	if backend != nil && backend.OK {
		out := *backend
		return &out
	}
	if hasMore {
		return nil
	}
	return SumRows(rows)
}

// SumRows totals every row. The result is marked OK.
func SumRows(rows []models.UsageRequestEntry) *models.UsageSummary {
	sum := &models.UsageSummary{OK: true}
	for _, r := range rows {
		sum.Add(r)
	}
	return sum
}

// ZeroSummary is the explicit empty result of an impossible filter combination.
func ZeroSummary() *models.UsageSummary {
	return &models.UsageSummary{OK: true}
}
