package usagecache

import (
	"github.com/j-veylop/gateway-usage-tui/internal/models"
)

func row(provider string, unixMs, tokens int64) models.UsageRequestEntry {
	return models.UsageRequestEntry{
		Provider:     provider,
		APIKeyRef:    "key-1",
		Model:        "model-large",
		Origin:       "windows",
		SessionID:    "session-0001",
		UnixMs:       unixMs,
		InputTokens:  tokens / 2,
		OutputTokens: tokens - tokens/2,
		TotalTokens:  tokens,
	}
}

func assertNewestFirstUnique(rows []models.UsageRequestEntry) (sorted, unique bool) {
	sorted, unique = true, true
	seen := map[RowIdentity]bool{}
	for i, r := range rows {
		if i > 0 && rows[i-1].UnixMs < r.UnixMs {
			sorted = false
		}
		if seen[IdentityOf(r)] {
			unique = false
		}
		seen[IdentityOf(r)] = true
	}
	return sorted, unique
}
