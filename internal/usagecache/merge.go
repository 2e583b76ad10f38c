package usagecache

import (
	"github.com/j-veylop/gateway-usage-tui/internal/models"
)

// MergeNewest unions a freshly fetched newest window into existing rows.
//
// Fetched rows already present (by identity) are dropped; the genuinely new ones
// are prepended. The result stays newest-first, so merging the same window twice
// yields the same rows as merging it once.
func MergeNewest(existing, fetched []models.UsageRequestEntry) (merged []models.UsageRequestEntry, added int) {
	seen := identitySet(existing)
	fresh := make([]models.UsageRequestEntry, 0, len(fetched))
	for _, r := range fetched {
		id := IdentityOf(r)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		fresh = append(fresh, r)
	}
	if len(fresh) == 0 {
		return existing, 0
	}

	merged = make([]models.UsageRequestEntry, 0, len(fresh)+len(existing))
	merged = append(merged, fresh...)
	merged = append(merged, existing...)
	// A late-arriving event can be older than the current head.
	sortNewestFirst(merged)
	return merged, len(fresh)
}

// appendPage adds the next page below existing rows without duplicates.
func appendPage(existing, next []models.UsageRequestEntry) []models.UsageRequestEntry {
	seen := identitySet(existing)
	out := make([]models.UsageRequestEntry, 0, len(existing)+len(next))
	out = append(out, existing...)
	for _, r := range next {
		id := IdentityOf(r)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, r)
	}
	sortNewestFirst(out)
	return out
}
