package usagecache

import (
	"sort"

	"github.com/j-veylop/gateway-usage-tui/internal/models"
)

// RowIdentity is the deduplication key of a usage entry. Two rows with the same
// identity are the same event.
type RowIdentity struct {
	Provider                 string
	APIKeyRef                string
	Model                    string
	Origin                   string
	SessionID                string
	UnixMs                   int64
	InputTokens              int64
	OutputTokens             int64
	TotalTokens              int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// IdentityOf derives the composite identity of an entry.
func IdentityOf(e models.UsageRequestEntry) RowIdentity {
	return RowIdentity(e)
}

// identitySet collects the identities of rows.
func identitySet(rows []models.UsageRequestEntry) map[RowIdentity]struct{} {
	set := make(map[RowIdentity]struct{}, len(rows))
	for _, r := range rows {
		set[IdentityOf(r)] = struct{}{}
	}
	return set
}

// normalizeRows drops duplicate identities (first occurrence wins) and sorts the
// result newest-first. The input is not modified.
func normalizeRows(rows []models.UsageRequestEntry) []models.UsageRequestEntry {
	out := make([]models.UsageRequestEntry, 0, len(rows))
	seen := make(map[RowIdentity]struct{}, len(rows))
	for _, r := range rows {
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

func sortNewestFirst(rows []models.UsageRequestEntry) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].UnixMs > rows[j].UnixMs
	})
}
