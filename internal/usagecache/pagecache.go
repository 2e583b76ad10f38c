package usagecache

import (
	"github.com/samber/lo"

	"github.com/j-veylop/gateway-usage-tui/internal/models"
)

// PageCache stores one entry per query key. It has no eviction; entries are
// overwritten in place on refresh.
//
// Lookups are asymmetric: a strict (filtered) query only ever sees its own entry,
// while the default view may fall back to broader data to avoid a blank screen.
type PageCache struct {
	entries        map[string]*models.PageCacheEntry
	lastFound      *models.PageCacheEntry
	canonicalHours int
}

// NewPageCache creates an empty page cache. canonicalHours is the window of the
// default view; zero keeps the window of each query.
func NewPageCache(canonicalHours int) *PageCache {
	return &PageCache{
		entries:        make(map[string]*models.PageCacheEntry),
		canonicalHours: canonicalHours,
	}
}

func (c *PageCache) canonicalKey(f models.RequestFilters) string {
	canonical := CanonicalFilters(f)
	if c.canonicalHours > 0 {
		canonical.Hours = c.canonicalHours
	}
	return QueryKey(canonical)
}

// Lookup resolves the best cached entry for the filters.
//
// Strict queries return only an exact key match holding rows. Non-strict queries
// try the exact key, then the default view's unfiltered key, then the last
// non-empty entry ever stored.
func (c *PageCache) Lookup(f models.RequestFilters) (*models.PageCacheEntry, bool) {
	if exact := c.nonEmpty(QueryKey(f)); exact != nil {
		return exact, true
	}
	if IsStrict(f) {
		return nil, false
	}
	if canonical := c.nonEmpty(c.canonicalKey(f)); canonical != nil {
		return canonical, true
	}
	if c.lastFound != nil && len(c.lastFound.Rows) > 0 {
		return c.lastFound, true
	}
	return nil, false
}

// Exact returns the entry stored under key regardless of row count.
func (c *PageCache) Exact(key string) (*models.PageCacheEntry, bool) {
	e, ok := c.entries[key]
	return e, ok
}

func (c *PageCache) nonEmpty(key string) *models.PageCacheEntry {
	e, ok := c.entries[key]
	if !ok || len(e.Rows) == 0 {
		return nil
	}
	return e
}

// Store writes an entry under its key and reports whether it was accepted.
//
// Rows are normalized newest-first without duplicates. Fallback data never
// replaces a real entry that still holds rows; the last good data is kept.
func (c *PageCache) Store(entry models.PageCacheEntry) bool {
	if prev, ok := c.entries[entry.QueryKey]; ok && entry.UsingFallback && !prev.UsingFallback && len(prev.Rows) > 0 {
		return false
	}
	stored := entry
	stored.Rows = normalizeRows(entry.Rows)
	c.entries[entry.QueryKey] = &stored
	if len(stored.Rows) > 0 {
		c.lastFound = &stored
	}
	return true
}

// Entries returns every stored entry in no particular order.
func (c *PageCache) Entries() []*models.PageCacheEntry {
	return lo.Values(c.entries)
}

// Len returns the number of stored entries.
func (c *PageCache) Len() int {
	return len(c.entries)
}
