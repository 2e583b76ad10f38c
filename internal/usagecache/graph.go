package usagecache

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/j-veylop/gateway-usage-tui/internal/models"
)

const (
	// GraphWindowSize is the rolling history kept per display provider.
	GraphWindowSize = 120
	// MaxDisplayProviders is the number of providers charted at once.
	MaxDisplayProviders = 3
	// GraphRefreshInterval throttles unforced graph refreshes.
	GraphRefreshInterval = 15 * time.Second
	// OfficialProvider sorts ahead of every other explicit selection.
	OfficialProvider = "official"
)

// ProviderSource is one tier of display-provider candidates.
type ProviderSource struct {
	Name      string
	Providers []string
}

// ExplicitProviders is the first tier: the user's own selection, official first
// and then lexicographic.
func ExplicitProviders(selected []string) ProviderSource {
	names := canonicalList(selected)
	sort.SliceStable(names, func(i, j int) bool {
		oi, oj := names[i] == OfficialProvider, names[j] == OfficialProvider
		if oi != oj {
			return oi
		}
		return names[i] < names[j]
	})
	return ProviderSource{Name: "selected", Providers: names}
}

// ObservedProviders lists providers present in rows, in order of appearance.
func ObservedProviders(rows []models.UsageRequestEntry) ProviderSource {
	names := lo.Uniq(lo.Map(rows, func(r models.UsageRequestEntry, _ int) string {
		return strings.TrimSpace(r.Provider)
	}))
	return ProviderSource{Name: "observed", Providers: lo.Compact(names)}
}

// DailyProviders lists providers known from the daily roll-up.
func DailyProviders(d models.DailyTotals) ProviderSource {
	return ProviderSource{Name: "daily", Providers: d.ProviderNames()}
}

// SummaryProviders lists providers from the long-window analytics totals.
func SummaryProviders(totals []models.ProviderTotal) ProviderSource {
	names := lo.Map(totals, func(p models.ProviderTotal, _ int) string { return p.Provider })
	return ProviderSource{Name: "summary", Providers: names}
}

// SelectDisplayProviders walks the sources in priority order and returns the first
// MaxDisplayProviders unique names.
func SelectDisplayProviders(sources ...ProviderSource) []string {
	out := make([]string, 0, MaxDisplayProviders)
	seen := make(map[string]struct{}, MaxDisplayProviders)
	for _, src := range sources {
		for _, name := range src.Providers {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
			if len(out) == MaxDisplayProviders {
				return out
			}
		}
	}
	return out
}

// GraphRequest is a pending background query for one provider's history.
type GraphRequest struct {
	ScopeKey string
	Provider string
	Filters  models.RequestFilters
	Limit    int
	seq      uint64
}

type graphSeqKey struct {
	scope    string
	provider string
}

// GraphCache keeps a rolling, independently refreshed history per display
// provider and query scope.
type GraphCache struct {
	entries     map[string]*models.GraphCacheEntry
	seqs        map[graphSeqKey]*sequence
	lastRefresh time.Time
}

// NewGraphCache creates an empty graph cache.
func NewGraphCache() *GraphCache {
	return &GraphCache{
		entries: make(map[string]*models.GraphCacheEntry),
		seqs:    make(map[graphSeqKey]*sequence),
	}
}

// Entry returns the graph snapshot of a scope.
func (g *GraphCache) Entry(scopeKey string) (*models.GraphCacheEntry, bool) {
	e, ok := g.entries[scopeKey]
	return e, ok
}

// ShouldRefresh reports whether a graph refresh may start now.
func (g *GraphCache) ShouldRefresh(now time.Time, force bool) bool {
	if force || g.lastRefresh.IsZero() {
		return true
	}
	return now.Sub(g.lastRefresh) >= GraphRefreshInterval
}

// Seed records the base rows of a scope and paints every display provider that has
// no history yet from them, so charts render before the background queries land.
func (g *GraphCache) Seed(scope models.RequestFilters, baseRows []models.UsageRequestEntry, providers []string) *models.GraphCacheEntry {
	key := QueryKey(scope)
	entry, ok := g.entries[key]
	if !ok {
		entry = &models.GraphCacheEntry{
			QueryKey:       key,
			RowsByProvider: make(map[string][]models.UsageRequestEntry),
		}
		g.entries[key] = entry
	}
	entry.BaseRows = baseRows
	entry.Providers = append([]string{}, providers...)
	for _, p := range providers {
		if _, ok := entry.RowsByProvider[p]; ok {
			continue
		}
		seeded := lo.Filter(baseRows, func(r models.UsageRequestEntry, _ int) bool {
			return r.Provider == p
		})
		entry.RowsByProvider[p] = capRows(normalizeRows(seeded), GraphWindowSize)
	}
	return entry
}

// Begin starts background queries for every display provider of the scope.
func (g *GraphCache) Begin(scope models.RequestFilters, providers []string, now time.Time) []GraphRequest {
	g.lastRefresh = now
	key := QueryKey(scope)
	reqs := make([]GraphRequest, 0, len(providers))
	for _, p := range providers {
		sk := graphSeqKey{scope: key, provider: p}
		seq, ok := g.seqs[sk]
		if !ok {
			seq = &sequence{}
			g.seqs[sk] = seq
		}
		reqs = append(reqs, GraphRequest{
			ScopeKey: key,
			Provider: p,
			Filters:  scope.WithProviders(p),
			Limit:    GraphWindowSize,
			seq:      seq.next(),
		})
	}
	return reqs
}

// IsCurrent reports whether req is the latest request of its provider stream.
func (g *GraphCache) IsCurrent(req GraphRequest) bool {
	seq, ok := g.seqs[graphSeqKey{scope: req.ScopeKey, provider: req.Provider}]
	return ok && seq.isCurrent(req.seq)
}

// Apply stores a provider's fetched history if its request is still current.
func (g *GraphCache) Apply(req GraphRequest, rows []models.UsageRequestEntry, now time.Time) error {
	if !g.IsCurrent(req) {
		return ErrStaleResponse
	}
	entry, ok := g.entries[req.ScopeKey]
	if !ok {
		entry = &models.GraphCacheEntry{
			QueryKey:       req.ScopeKey,
			RowsByProvider: make(map[string][]models.UsageRequestEntry),
		}
		g.entries[req.ScopeKey] = entry
	}
	own := lo.Filter(rows, func(r models.UsageRequestEntry, _ int) bool {
		return r.Provider == req.Provider
	})
	entry.RowsByProvider[req.Provider] = capRows(normalizeRows(own), GraphWindowSize)
	entry.UpdatedAt = now
	return nil
}

// Series returns a provider's chart points oldest to newest. Missing history is
// left-padded with NaN so it reads as absent rather than zero usage.
func (g *GraphCache) Series(scopeKey, provider string) []float64 {
	points := make([]float64, GraphWindowSize)
	for i := range points {
		points[i] = math.NaN()
	}
	entry, ok := g.entries[scopeKey]
	if !ok {
		return points
	}
	rows := entry.RowsByProvider[provider]
	n := len(rows)
	for i := range n {
		// rows are newest-first; the newest lands on the right edge.
		points[GraphWindowSize-1-i] = float64(rows[i].TotalTokens)
	}
	return points
}

func capRows(rows []models.UsageRequestEntry, limit int) []models.UsageRequestEntry {
	if len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
