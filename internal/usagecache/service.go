package usagecache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/j-veylop/gateway-usage-tui/internal/gateway"
	"github.com/j-veylop/gateway-usage-tui/internal/logger"
	"github.com/j-veylop/gateway-usage-tui/internal/models"
)

// DefaultPageSize is the number of rows requested per page.
const DefaultPageSize = 50

// Notice is the user-visible status of the most recent page load.
type Notice int

const (
	// NoticeNone means the displayed data is real and current.
	NoticeNone Notice = iota
	// NoticeFallback means synthetic data is being shown.
	NoticeFallback
	// NoticeLoadFailed means the last load failed and cached data (if any) is shown.
	NoticeLoadFailed
)

func (n Notice) String() string {
	switch n {
	case NoticeFallback:
		return "using test/fallback data"
	case NoticeLoadFailed:
		return "failed to load"
	default:
		return ""
	}
}

// Options configures a Service.
type Options struct {
	PageSize        int
	// AnalyticsHours is the window of the default view.
	AnalyticsHours  int
	FallbackEnabled bool
	Location        *time.Location
	Now             func() time.Time
}

// Service owns every usage cache of the process and the sequence guards of each
// fetch stream. Remote calls happen only in the Fetch* methods, which never touch
// state; Begin* and Apply* are synchronous.
type Service struct {
	client gateway.Client
	opts   Options

	mu         sync.Mutex
	pages      *PageCache
	graphs     *GraphCache
	daily      *models.DailyTotalsCache
	summaries  map[string]models.UsageSummary
	pageSeq    sequence
	summarySeq sequence
	dailySeq   sequence
	merging    bool
	notice     Notice
}

// NewService creates a Service reading from client.
func NewService(client gateway.Client, opts Options) *Service {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		client:    client,
		opts:      opts,
		pages:     NewPageCache(opts.AnalyticsHours),
		graphs:    NewGraphCache(),
		summaries: make(map[string]models.UsageSummary),
	}
}

// FallbackEnabled reports whether synthetic data may replace failed loads.
func (s *Service) FallbackEnabled() bool {
	return s.opts.FallbackEnabled
}

// Notice returns the status of the most recent page load.
func (s *Service) Notice() Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notice
}

// Page returns the entry the view should render for f.
func (s *Service) Page(f models.RequestFilters) (models.PageCacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.pages.Lookup(NormalizeFilters(f))
	if !ok {
		return models.PageCacheEntry{}, false
	}
	return *e, true
}

// Cached reports whether f's own query key holds loaded rows. Unlike Page it
// never answers with a broader entry.
func (s *Service) Cached(f models.RequestFilters) bool {
	key := QueryKey(NormalizeFilters(f))
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.pages.Exact(key)
	return ok && len(e.Rows) > 0
}

// PageRequest is a pending page fetch.
type PageRequest struct {
	Key        string
	Filters    models.RequestFilters
	Args       gateway.EntriesArgs
	Offset     int
	Impossible bool
	seq        uint64
}

// BeginPage starts a page fetch. Offset zero replaces the cached entry; a positive
// offset loads the next page below it. Any in-flight page or merge is superseded.
func (s *Service) BeginPage(f models.RequestFilters, offset int) PageRequest {
	f = NormalizeFilters(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	return PageRequest{
		Key:        QueryKey(f),
		Filters:    f,
		Args:       gateway.BuildUsageRequestEntriesArgs(f, s.opts.PageSize, offset),
		Offset:     offset,
		Impossible: HasImpossibleFilter(f),
		seq:        s.pageSeq.next(),
	}
}

// FetchPage performs the remote call of a page request. Impossible filters resolve
// to an empty page without a call.
func (s *Service) FetchPage(ctx context.Context, req PageRequest) (models.UsageRequestPage, error) {
	if req.Impossible {
		return models.UsageRequestPage{OK: true, Rows: []models.UsageRequestEntry{}}, nil
	}
	return s.client.UsageRequestEntries(ctx, req.Args)
}

// ApplyPage stores the result of a page request.
//
// On failure the last good entry is kept; with fallback enabled a first page is
// replaced by synthetic rows unless real rows are already cached. The returned
// error is ErrStaleResponse for a superseded request, or the wrapped fetch error
// when nothing could stand in for it.
func (s *Service) ApplyPage(req PageRequest, page models.UsageRequestPage, fetchErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pageSeq.isCurrent(req.seq) {
		logger.Debug("dropping stale page response", "key", req.Key, "offset", req.Offset)
		return ErrStaleResponse
	}

	if fetchErr != nil {
		return s.pageFailedLocked(req, fetchErr)
	}

	prev, hasPrev := s.pages.Exact(req.Key)
	if req.Offset > 0 && hasPrev && !prev.UsingFallback {
		s.pages.Store(models.PageCacheEntry{
			QueryKey:   req.Key,
			Rows:       appendPage(prev.Rows, page.Rows),
			HasMore:    page.HasMore,
			NextOffset: page.NextOffset,
		})
	} else {
		s.pages.Store(models.PageCacheEntry{
			QueryKey:   req.Key,
			Rows:       page.Rows,
			HasMore:    page.HasMore,
			NextOffset: page.NextOffset,
		})
	}
	s.notice = NoticeNone
	return nil
}

func (s *Service) pageFailedLocked(req PageRequest, fetchErr error) error {
	logger.Warn("usage request page failed", "key", req.Key, "offset", req.Offset, "error", fetchErr)

	if !s.opts.FallbackEnabled || req.Offset > 0 {
		s.notice = NoticeLoadFailed
		return fmt.Errorf("failed to load usage requests: %w", fetchErr)
	}

	providers, modelNames := s.knownDistributionsLocked()
	rows := GenerateFallbackRows(FallbackOptions{
		GeneratedAtMs: s.opts.Now().Truncate(time.Minute).UnixMilli(),
		Count:         DefaultFallbackRows,
		Filters:       req.Filters,
		Providers:     providers,
		Models:        modelNames,
	})
	stored := s.pages.Store(models.PageCacheEntry{
		QueryKey:      req.Key,
		Rows:          rows,
		UsingFallback: true,
	})
	if !stored {
		s.notice = NoticeLoadFailed
		return fmt.Errorf("failed to load usage requests: %w", fetchErr)
	}
	s.notice = NoticeFallback
	return nil
}

// knownDistributionsLocked weighs providers and models by how often they occur in
// real cached rows.
func (s *Service) knownDistributionsLocked() (providers, modelNames []WeightedName) {
	rows := s.cachedRowsLocked(false)
	toWeighted := func(counts map[string]int) []WeightedName {
		out := make([]WeightedName, 0, len(counts))
		for name, n := range counts {
			out = append(out, WeightedName{Name: name, Weight: float64(n)})
		}
		return out
	}
	providers = toWeighted(lo.CountValuesBy(rows, func(r models.UsageRequestEntry) string { return r.Provider }))
	modelNames = toWeighted(lo.CountValuesBy(rows, func(r models.UsageRequestEntry) string { return r.Model }))
	return providers, modelNames
}

// cachedRowsLocked unions the rows of every page entry of one kind.
func (s *Service) cachedRowsLocked(fallback bool) []models.UsageRequestEntry {
	var rows []models.UsageRequestEntry
	for _, e := range s.pages.Entries() {
		if e.UsingFallback == fallback {
			rows = append(rows, e.Rows...)
		}
	}
	return normalizeRows(rows)
}

// MergeRequest is a pending incremental merge.
type MergeRequest struct {
	Key  string
	Args gateway.EntriesArgs
	seq  uint64
}

// BeginMerge starts fetching the newest window of an already cached page. Only one
// merge may run at a time. The merge does not advance the page sequence: any page
// fetch started meanwhile wins.
func (s *Service) BeginMerge(f models.RequestFilters) (MergeRequest, error) {
	f = NormalizeFilters(f)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.merging {
		return MergeRequest{}, ErrMergeInFlight
	}
	key := QueryKey(f)
	if _, ok := s.pages.Exact(key); !ok || HasImpossibleFilter(f) {
		return MergeRequest{}, ErrNotCached
	}
	s.merging = true
	return MergeRequest{
		Key:  key,
		Args: gateway.BuildUsageRequestEntriesArgs(f, s.opts.PageSize, 0),
		seq:  s.pageSeq.current(),
	}, nil
}

// FetchMerge performs the remote call of a merge.
func (s *Service) FetchMerge(ctx context.Context, req MergeRequest) (models.UsageRequestPage, error) {
	return s.client.UsageRequestEntries(ctx, req.Args)
}

// ApplyMerge unions the fetched window into the cached page and returns how many
// rows were new. HasMore is left unchanged. Real rows never join a fallback entry;
// they replace it.
func (s *Service) ApplyMerge(req MergeRequest, page models.UsageRequestPage, fetchErr error) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merging = false

	if !s.pageSeq.isCurrent(req.seq) {
		logger.Debug("dropping stale merge response", "key", req.Key)
		return 0, ErrStaleResponse
	}
	if fetchErr != nil {
		logger.Warn("usage request merge failed", "key", req.Key, "error", fetchErr)
		return 0, fmt.Errorf("failed to merge usage requests: %w", fetchErr)
	}

	prev, ok := s.pages.Exact(req.Key)
	if !ok {
		return 0, ErrNotCached
	}
	if prev.UsingFallback {
		s.pages.Store(models.PageCacheEntry{
			QueryKey:   req.Key,
			Rows:       page.Rows,
			HasMore:    page.HasMore,
			NextOffset: page.NextOffset,
		})
		s.notice = NoticeNone
		return len(page.Rows), nil
	}

	merged, added := MergeNewest(prev.Rows, page.Rows)
	if added == 0 {
		return 0, nil
	}
	next := *prev
	next.Rows = merged
	s.pages.Store(next)
	return added, nil
}

// SummaryRequest is a pending backend summary fetch.
type SummaryRequest struct {
	Key        string
	Args       gateway.SummaryArgs
	Impossible bool
	seq        uint64
}

// BeginSummary starts a backend summary fetch for f.
func (s *Service) BeginSummary(f models.RequestFilters) SummaryRequest {
	f = NormalizeFilters(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	return SummaryRequest{
		Key:        QueryKey(f),
		Args:       gateway.BuildUsageRequestSummaryArgs(f),
		Impossible: HasImpossibleFilter(f),
		seq:        s.summarySeq.next(),
	}
}

// FetchSummary performs the remote call of a summary request.
func (s *Service) FetchSummary(ctx context.Context, req SummaryRequest) (models.UsageSummary, error) {
	if req.Impossible {
		return *ZeroSummary(), nil
	}
	return s.client.UsageRequestSummary(ctx, req.Args)
}

// ApplySummary records an OK backend summary. A failed or not-OK result leaves any
// previous summary of the same key in place.
func (s *Service) ApplySummary(req SummaryRequest, summary models.UsageSummary, fetchErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.summarySeq.isCurrent(req.seq) {
		logger.Debug("dropping stale summary response", "key", req.Key)
		return ErrStaleResponse
	}
	if fetchErr != nil {
		logger.Warn("usage summary failed", "key", req.Key, "error", fetchErr)
		return fmt.Errorf("failed to load usage summary: %w", fetchErr)
	}
	if summary.OK {
		s.summaries[req.Key] = summary
	}
	return nil
}

// Summary resolves the totals shown for f. Nil means unknown.
func (s *Service) Summary(f models.RequestFilters) *models.UsageSummary {
	f = NormalizeFilters(f)
	if HasImpossibleFilter(f) {
		return ZeroSummary()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.pages.Lookup(f)
	if !ok {
		// A loaded query with no rows still resolves to its own totals.
		entry, ok = s.pages.Exact(QueryKey(f))
	}
	if !ok {
		if backend, ok := s.summaries[QueryKey(f)]; ok {
			return &backend
		}
		return nil
	}
	var backend *models.UsageSummary
	if !entry.UsingFallback {
		if b, ok := s.summaries[entry.QueryKey]; ok {
			backend = &b
		}
	}
	return ResolveSummary(backend, entry.Rows, entry.HasMore)
}

// DailyRequest is a pending daily totals fetch.
type DailyRequest struct {
	Args gateway.DailyArgs
	seq  uint64
}

// BeginDaily starts a daily totals fetch.
func (s *Service) BeginDaily() DailyRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return DailyRequest{
		Args: gateway.DailyArgs{Days: DailyWindowDays},
		seq:  s.dailySeq.next(),
	}
}

// FetchDaily performs the remote call of a daily request.
func (s *Service) FetchDaily(ctx context.Context, req DailyRequest) (models.DailyTotals, error) {
	return s.client.UsageRequestDailyTotals(ctx, req.Args)
}

// ApplyDaily stores the daily roll-up.
//
// When the remote call fails, a previous backend roll-up is kept. Without one the
// roll-up is aggregated locally from cached real rows, or from cached fallback rows
// when fallback is enabled.
func (s *Service) ApplyDaily(req DailyRequest, totals models.DailyTotals, fetchErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dailySeq.isCurrent(req.seq) {
		logger.Debug("dropping stale daily response")
		return ErrStaleResponse
	}
	now := s.opts.Now()
	if fetchErr == nil {
		s.daily = &models.DailyTotalsCache{
			DailyTotals: NormalizeDailyTotals(totals, s.opts.Location),
			UpdatedAt:   now,
		}
		return nil
	}

	logger.Warn("daily totals failed", "error", fetchErr)
	if s.daily != nil && !s.daily.Local {
		return fmt.Errorf("failed to load daily totals: %w", fetchErr)
	}
	if rows := s.cachedRowsLocked(false); len(rows) > 0 {
		s.daily = &models.DailyTotalsCache{
			DailyTotals: AggregateDaily(rows, s.opts.Location),
			Local:       true,
			UpdatedAt:   now,
		}
		return nil
	}
	if s.opts.FallbackEnabled {
		if rows := s.cachedRowsLocked(true); len(rows) > 0 {
			s.daily = &models.DailyTotalsCache{
				DailyTotals:   AggregateDaily(rows, s.opts.Location),
				Local:         true,
				UsingFallback: true,
				UpdatedAt:     now,
			}
			return nil
		}
	}
	return fmt.Errorf("failed to load daily totals: %w", fetchErr)
}

// Daily returns the cached roll-up.
func (s *Service) Daily() (models.DailyTotalsCache, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.daily == nil {
		return models.DailyTotalsCache{}, false
	}
	return *s.daily, true
}

// DisplayProviders selects the providers charted for f.
func (s *Service) DisplayProviders(f models.RequestFilters) []string {
	f = NormalizeFilters(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayProvidersLocked(f, s.baseRowsLocked(f))
}

func (s *Service) displayProvidersLocked(f models.RequestFilters, base []models.UsageRequestEntry) []string {
	sources := []ProviderSource{ExplicitProviders(f.Providers), ObservedProviders(base)}
	if s.daily != nil {
		sources = append(sources, DailyProviders(s.daily.DailyTotals))
	}
	sources = append(sources, SummaryProviders(s.analyticsProviderTotalsLocked()))
	return SelectDisplayProviders(sources...)
}

func (s *Service) baseRowsLocked(f models.RequestFilters) []models.UsageRequestEntry {
	if e, ok := s.pages.Lookup(f); ok {
		return e.Rows
	}
	return nil
}

// analyticsProviderTotalsLocked totals tokens per provider over the long-window
// (full history) canonical entry.
func (s *Service) analyticsProviderTotalsLocked() []models.ProviderTotal {
	e, ok := s.pages.Exact(QueryKey(models.RequestFilters{Hours: FullHistoryHours}))
	if !ok {
		return nil
	}
	byProvider := make(map[string]int64)
	for _, r := range e.Rows {
		byProvider[r.Provider] += r.TotalTokens
	}
	out := make([]models.ProviderTotal, 0, len(byProvider))
	for p, v := range byProvider {
		out = append(out, models.ProviderTotal{Provider: p, TotalTokens: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalTokens != out[j].TotalTokens {
			return out[i].TotalTokens > out[j].TotalTokens
		}
		return out[i].Provider < out[j].Provider
	})
	return out
}

// HasGraph reports whether a graph snapshot exists for f.
func (s *Service) HasGraph(f models.RequestFilters) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.graphs.Entry(QueryKey(NormalizeFilters(f)))
	return ok
}

// BeginGraph seeds the graph of f from the rows on hand and starts one background
// query per display provider. It returns nil while throttled unless forced.
func (s *Service) BeginGraph(f models.RequestFilters, force bool) []GraphRequest {
	f = NormalizeFilters(f)
	if HasImpossibleFilter(f) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Now()
	if !s.graphs.ShouldRefresh(now, force) {
		return nil
	}
	base := s.baseRowsLocked(f)
	providers := s.displayProvidersLocked(f, base)
	s.graphs.Seed(f, base, providers)
	return s.graphs.Begin(f, providers, now)
}

// FetchGraph performs the remote call of one provider's graph query.
func (s *Service) FetchGraph(ctx context.Context, req GraphRequest) ([]models.UsageRequestEntry, error) {
	page, err := s.client.UsageRequestEntries(ctx, gateway.BuildUsageRequestEntriesArgs(req.Filters, req.Limit, 0))
	if err != nil {
		return nil, err
	}
	return page.Rows, nil
}

// ApplyGraph stores one provider's history. On failure the seeded rows stay.
func (s *Service) ApplyGraph(req GraphRequest, rows []models.UsageRequestEntry, fetchErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.graphs.IsCurrent(req) {
		logger.Debug("dropping stale graph response", "provider", req.Provider)
		return ErrStaleResponse
	}
	if fetchErr != nil {
		logger.Warn("graph history failed", "provider", req.Provider, "error", fetchErr)
		return fmt.Errorf("failed to load %s history: %w", req.Provider, fetchErr)
	}
	return s.graphs.Apply(req, rows, s.opts.Now())
}

// ProviderSeries is one charted provider.
type ProviderSeries struct {
	Provider string
	Points   []float64
}

// GraphSeries returns the chart series of every display provider of f.
func (s *Service) GraphSeries(f models.RequestFilters) []ProviderSeries {
	key := QueryKey(NormalizeFilters(f))
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.graphs.Entry(key)
	if !ok {
		return nil
	}
	out := make([]ProviderSeries, 0, len(entry.Providers))
	for _, p := range entry.Providers {
		out = append(out, ProviderSeries{Provider: p, Points: s.graphs.Series(key, p)})
	}
	return out
}

// LoadPage runs a first-page fetch to completion.
func (s *Service) LoadPage(ctx context.Context, f models.RequestFilters) (models.PageCacheEntry, error) {
	req := s.BeginPage(f, 0)
	page, err := s.FetchPage(ctx, req)
	if err := s.ApplyPage(req, page, err); err != nil {
		return models.PageCacheEntry{}, err
	}
	entry, _ := s.Page(req.Filters)
	return entry, nil
}

// LoadSummary fetches the backend summary of f and resolves the displayed totals.
func (s *Service) LoadSummary(ctx context.Context, f models.RequestFilters) (*models.UsageSummary, error) {
	req := s.BeginSummary(f)
	summary, err := s.FetchSummary(ctx, req)
	if err := s.ApplySummary(req, summary, err); err != nil {
		return nil, err
	}
	return s.Summary(f), nil
}

// LoadDaily runs a daily totals fetch to completion.
func (s *Service) LoadDaily(ctx context.Context) (models.DailyTotalsCache, error) {
	req := s.BeginDaily()
	totals, err := s.FetchDaily(ctx, req)
	if err := s.ApplyDaily(req, totals, err); err != nil {
		return models.DailyTotalsCache{}, err
	}
	d, _ := s.Daily()
	return d, nil
}
