package usagecache

import (
	"sort"
	"strings"

	"github.com/j-veylop/gateway-usage-tui/internal/models"
)

const (
	// DefaultFallbackRows is the number of synthetic rows generated per page.
	DefaultFallbackRows = 120
	// maxFallbackHours bounds the synthetic window for full-history queries.
	maxFallbackHours = 30 * 24

	fallbackAPIKeyRef = "fallback-key"
)

var (
	syntheticProviders = []string{"official", "provider-a", "provider-b"}
	syntheticModels    = []string{"model-large", "model-medium", "model-small"}
	syntheticSessions  = []string{"session-0001", "session-0002", "session-0003", "session-0004"}
	syntheticOrigins   = []string{"windows", "wsl"}
)

// WeightedName is a sampling candidate with a relative weight.
type WeightedName struct {
	Name   string
	Weight float64
}

// FallbackOptions controls synthetic row generation.
type FallbackOptions struct {
	// GeneratedAtMs anchors the window end and, with Count, seeds the generator.
	GeneratedAtMs int64
	Count         int
	Filters       models.RequestFilters
	// Providers and Models are known distributions; empty means use synthetic names.
	Providers []WeightedName
	Models    []WeightedName
}

// lcg is a 32-bit linear congruential generator (Numerical Recipes constants).
type lcg struct {
	state uint32
}

func newLCG(generatedAtMs int64, count int) *lcg {
	seed := uint64(generatedAtMs) ^ (uint64(count) * 0x9e3779b97f4a7c15)
	s := uint32(seed) ^ uint32(seed>>32)
	if s == 0 {
		s = 0x9e3779b9
	}
	return &lcg{state: s}
}

func (g *lcg) next() uint32 {
	g.state = g.state*1664525 + 1013904223
	return g.state
}

// float returns a value in [0, 1).
func (g *lcg) float() float64 {
	return float64(g.next()) / 4294967296.0
}

// between returns a value in [lo, hi].
func (g *lcg) between(lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + int64(g.float()*float64(hi-lo+1))
}

// GenerateFallbackRows produces deterministic synthetic usage rows, newest-first.
// The same options always produce the same rows.
func GenerateFallbackRows(opts FallbackOptions) []models.UsageRequestEntry {
	count := opts.Count
	if count <= 0 {
		count = DefaultFallbackRows
	}
	rng := newLCG(opts.GeneratedAtMs, count)

	end := opts.GeneratedAtMs
	if opts.Filters.ToUnixMs != nil {
		end = *opts.Filters.ToUnixMs
	}
	hours := opts.Filters.Hours
	if hours <= 0 {
		hours = 24
	}
	if hours > maxFallbackHours {
		hours = maxFallbackHours
	}
	start := end - int64(hours)*3_600_000
	if opts.Filters.FromUnixMs != nil && *opts.Filters.FromUnixMs > start {
		start = *opts.Filters.FromUnixMs
	}

	providers := samplingPool(opts.Filters.Providers, opts.Providers, syntheticProviders)
	modelPool := samplingPool(opts.Filters.Models, opts.Models, syntheticModels)
	origins := cyclePool(opts.Filters.Origins, syntheticOrigins)
	sessions := cyclePool(opts.Filters.Sessions, syntheticSessions)

	rows := make([]models.UsageRequestEntry, 0, count)
	for i := range count {
		input := rng.between(200, 12_000)
		output := rng.between(20, 4_000)
		row := models.UsageRequestEntry{
			Provider:                 pickWeighted(rng, providers),
			APIKeyRef:                fallbackAPIKeyRef,
			Model:                    pickWeighted(rng, modelPool),
			Origin:                   origins[i%len(origins)],
			SessionID:                sessions[i%len(sessions)],
			UnixMs:                   rng.between(start, end),
			InputTokens:              input,
			OutputTokens:             output,
			TotalTokens:              input + output,
			CacheCreationInputTokens: rng.between(0, 2_000),
			CacheReadInputTokens:     rng.between(0, 8_000),
		}
		rows = append(rows, row)
	}
	sortNewestFirst(rows)
	return rows
}

// samplingPool chooses the candidates for a dimension: an explicit filter wins,
// then a known distribution, then the fixed synthetic names.
func samplingPool(filter []string, known []WeightedName, synthetic []string) []WeightedName {
	if names := canonicalList(filter); len(names) > 0 {
		return uniform(names)
	}
	usable := make([]WeightedName, 0, len(known))
	informative := false
	for _, w := range known {
		name := strings.TrimSpace(w.Name)
		if name == "" || w.Weight <= 0 {
			continue
		}
		if !strings.EqualFold(name, "unknown") {
			informative = true
		}
		usable = append(usable, WeightedName{Name: name, Weight: w.Weight})
	}
	if !informative {
		return uniform(synthetic)
	}
	sort.Slice(usable, func(i, j int) bool { return usable[i].Name < usable[j].Name })
	return usable
}

func cyclePool(filter, synthetic []string) []string {
	if names := canonicalList(filter); len(names) > 0 {
		return names
	}
	return synthetic
}

func uniform(names []string) []WeightedName {
	out := make([]WeightedName, len(names))
	for i, n := range names {
		out[i] = WeightedName{Name: n, Weight: 1}
	}
	return out
}

func pickWeighted(rng *lcg, pool []WeightedName) string {
	var total float64
	for _, w := range pool {
		total += w.Weight
	}
	target := rng.float() * total
	for _, w := range pool {
		if target < w.Weight {
			return w.Name
		}
		target -= w.Weight
	}
	return pool[len(pool)-1].Name
}
