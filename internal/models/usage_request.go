// Package models defines data structures and domain types.
package models

import "time"

// UsageRequestEntry is a single usage event reported by the gateway.
// Entries are immutable once fetched.
type UsageRequestEntry struct {
	Provider                 string `json:"provider"`
	APIKeyRef                string `json:"api_key_ref"`
	Model                    string `json:"model"`
	Origin                   string `json:"origin"`
	SessionID                string `json:"session_id"`
	UnixMs                   int64  `json:"unix_ms"`
	InputTokens              int64  `json:"input_tokens"`
	OutputTokens             int64  `json:"output_tokens"`
	TotalTokens              int64  `json:"total_tokens"`
	CacheCreationInputTokens int64  `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64  `json:"cache_read_input_tokens"`
}

// Time returns the event timestamp in the local timezone.
func (e UsageRequestEntry) Time() time.Time {
	return time.UnixMilli(e.UnixMs)
}

// UsageRequestPage is one page of entries as returned by the gateway.
type UsageRequestPage struct {
	OK         bool                `json:"ok"`
	Rows       []UsageRequestEntry `json:"rows"`
	HasMore    bool                `json:"has_more"`
	NextOffset int                 `json:"next_offset"`
}

// UsageSummary holds request and token totals for a filter set.
type UsageSummary struct {
	OK                       bool  `json:"ok"`
	Requests                 int64 `json:"requests"`
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	TotalTokens              int64 `json:"total_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
}

// Add accumulates a single entry into the summary.
func (s *UsageSummary) Add(e UsageRequestEntry) {
	s.Requests++
	s.InputTokens += e.InputTokens
	s.OutputTokens += e.OutputTokens
	s.TotalTokens += e.TotalTokens
	s.CacheCreationInputTokens += e.CacheCreationInputTokens
	s.CacheReadInputTokens += e.CacheReadInputTokens
}

// PageCacheEntry is the cached state of one query.
// Rows are newest-first, unique by identity, and either all real or all fallback.
type PageCacheEntry struct {
	QueryKey      string
	Rows          []UsageRequestEntry
	HasMore       bool
	NextOffset    int
	UsingFallback bool
}

// GraphCacheEntry holds the rolling per-provider history for one query scope.
type GraphCacheEntry struct {
	QueryKey       string
	BaseRows       []UsageRequestEntry
	RowsByProvider map[string][]UsageRequestEntry
	Providers      []string
	UpdatedAt      time.Time
}
