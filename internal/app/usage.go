package app

import (
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/gateway-usage-tui/internal/logger"
	"github.com/j-veylop/gateway-usage-tui/internal/models"
	"github.com/j-veylop/gateway-usage-tui/internal/refresh"
	"github.com/j-veylop/gateway-usage-tui/internal/usagecache"
)

// refreshSnapshot captures what the tabs render for the current view.
func (m *Model) refreshSnapshot() {
	if m.usage == nil {
		return
	}
	f := m.state.EffectiveFilters()
	snap := Snapshot{
		Filters:   f,
		Summary:   m.usage.Summary(f),
		Series:    m.usage.GraphSeries(f),
		Providers: m.usage.DisplayProviders(f),
		Notice:    m.usage.Notice(),
		UpdatedAt: time.Now(),
	}
	if e, ok := m.usage.Page(f); ok {
		snap.Entry = &e
	}
	if d, ok := m.usage.Daily(); ok {
		snap.Daily = &d
	}
	m.state.SetSnapshot(snap)
}

func (m *Model) loadPage(f models.RequestFilters) tea.Cmd {
	req := m.usage.BeginPage(f, 0)
	m.state.SetLoading(StreamPage, true)
	return fetchPageCmd(m.usage, req)
}

func (m *Model) loadSummary(f models.RequestFilters) tea.Cmd {
	req := m.usage.BeginSummary(f)
	m.state.SetLoading(StreamSummary, true)
	return fetchSummaryCmd(m.usage, req)
}

func (m *Model) loadDaily() tea.Cmd {
	req := m.usage.BeginDaily()
	m.state.SetLoading(StreamDaily, true)
	return fetchDailyCmd(m.usage, req)
}

// loadGraph seeds the graph from cached rows and starts its provider queries.
func (m *Model) loadGraph(f models.RequestFilters, force bool) []tea.Cmd {
	reqs := m.usage.BeginGraph(f, force)
	if len(reqs) == 0 {
		return nil
	}
	m.graphScope = reqs[0].ScopeKey
	m.graphPending = len(reqs)
	m.state.SetLoading(StreamGraph, true)
	m.refreshSnapshot()
	return fetchGraphCmds(m.usage, reqs)
}

// loadNextPage appends the page below the cached entry of f, if there is one.
func (m *Model) loadNextPage(f models.RequestFilters) tea.Cmd {
	if m.state.IsLoading(StreamPage) {
		return nil
	}
	entry, ok := m.usage.Page(f)
	if !ok || !entry.HasMore || entry.UsingFallback {
		return nil
	}
	// A relaxed hit belongs to another query; its offset means nothing for f.
	if entry.QueryKey != usagecache.QueryKey(usagecache.NormalizeFilters(f)) {
		return nil
	}
	req := m.usage.BeginPage(f, entry.NextOffset)
	m.state.SetLoading(StreamPage, true)
	return fetchPageCmd(m.usage, req)
}

// reload restarts the page, summary and graph streams for the current view.
func (m *Model) reload(forceGraph bool) []tea.Cmd {
	if m.usage == nil {
		return nil
	}
	f := m.state.EffectiveFilters()
	cmds := []tea.Cmd{m.loadPage(f), m.loadSummary(f)}
	cmds = append(cmds, m.loadGraph(f, forceGraph || !m.usage.HasGraph(f))...)
	m.refreshSnapshot()
	return cmds
}

func (m *Model) handleRefresh() []tea.Cmd {
	if m.usage == nil {
		return nil
	}
	m.state.SetLoadingNotification("Reloading usage...")
	return append(m.reload(true), m.loadDaily())
}

// pageMissing reports whether the current view still waits on a first page.
func (m *Model) pageMissing() bool {
	if m.usage == nil || m.state.IsLoading(StreamPage) {
		return false
	}
	_, ok := m.usage.Page(m.state.EffectiveFilters())
	return !ok
}

// runActions turns scheduler decisions into fetches.
func (m *Model) runActions(a refresh.Actions) []tea.Cmd {
	if m.usage == nil || !a.Any() {
		return nil
	}
	f := m.state.EffectiveFilters()

	var cmds []tea.Cmd
	if a.MergeNewest {
		cmds = append(cmds, m.mergeNewest(f))
	}
	if a.PrefetchNextPage {
		cmds = append(cmds, m.loadNextPage(f))
	}
	if a.RefreshGraph {
		cmds = append(cmds, m.loadGraph(f, a.ForceGraph)...)
	}
	if a.PrefetchTab {
		cmds = append(cmds, m.prefetchView(a.Tab))
	}
	if a.RetryPage && !m.state.IsLoading(StreamPage) {
		logger.Debug("retrying first page")
		cmds = append(cmds, m.loadPage(f), m.loadSummary(f))
	}
	return cmds
}

func (m *Model) mergeNewest(f models.RequestFilters) tea.Cmd {
	req, err := m.usage.BeginMerge(f)
	switch {
	case errors.Is(err, usagecache.ErrNotCached):
		if m.state.IsLoading(StreamPage) {
			return nil
		}
		return m.loadPage(f)
	case err != nil:
		return nil
	}
	m.state.SetLoading(StreamMerge, true)
	return fetchMergeCmd(m.usage, req)
}

// prefetchView loads the first page another tab would show, unless its own query
// is already loaded.
func (m *Model) prefetchView(tab usagecache.ViewTab) tea.Cmd {
	if m.state.IsLoading(StreamPage) {
		return nil
	}
	view := m.state.View()
	view.Tab = tab
	f := m.state.FiltersFor(view)
	if m.usage.Cached(f) {
		return nil
	}
	logger.Debug("prefetching tab", "tab", tab)
	return m.loadPage(f)
}

func (m *Model) switchTab(id TabID) []tea.Cmd {
	if id == m.activeTab {
		return nil
	}
	m.activeTab = id
	m.updateTabSizes()

	view := m.state.View()
	view.Tab = id.ViewTab()
	cmds := m.setView(view)
	if m.usage == nil {
		return cmds
	}
	f := m.state.EffectiveFilters()
	return append(cmds, m.runActions(m.sched.TabSwitch(view.Tab, m.usage.HasGraph(f)))...)
}

// setView applies a view change, reloading when it changes the fetch window.
func (m *Model) setView(view usagecache.RequestView) []tea.Cmd {
	before := m.state.EffectiveFilters()
	m.state.SetView(view)
	if m.usage == nil {
		return nil
	}
	after := m.state.EffectiveFilters()
	m.refreshSnapshot()
	if before.Hours == after.Hours {
		return nil
	}
	return []tea.Cmd{m.loadPage(after), m.loadSummary(after)}
}

func (m *Model) handleFiltersChanged(msg FiltersChangedMsg) []tea.Cmd {
	m.state.SetFilters(msg.Filters)
	return m.reload(false)
}

func (m *Model) handleFiltersHidden(msg FiltersHiddenMsg) []tea.Cmd {
	view := m.state.View()
	view.FiltersHidden = msg.Hidden
	return m.setView(view)
}

func (m *Model) handlePageLoaded(msg PageLoadedMsg) []tea.Cmd {
	if m.usage == nil {
		return nil
	}
	err := m.usage.ApplyPage(msg.Req, msg.Page, msg.Err)
	if errors.Is(err, usagecache.ErrStaleResponse) {
		return nil
	}
	m.state.SetLoading(StreamPage, false)
	m.state.ClearLoadingNotification()
	if m.services != nil {
		m.services.ObserveNotice(m.usage.Notice())
	}
	m.refreshSnapshot()

	var cmds []tea.Cmd
	if err != nil {
		cmds = append(cmds, notifyErrorCmd(err.Error()))
	}
	if msg.Req.Offset != 0 {
		return cmds
	}
	// A locally aggregated roll-up is retried once real rows may be reachable.
	if !m.state.IsLoading(StreamDaily) {
		if d, ok := m.usage.Daily(); !ok || d.Local {
			cmds = append(cmds, m.loadDaily())
		}
	}
	// The graph was seeded before any provider was known.
	f := m.state.EffectiveFilters()
	if len(m.usage.GraphSeries(f)) == 0 && len(m.usage.DisplayProviders(f)) > 0 {
		cmds = append(cmds, m.loadGraph(f, true)...)
	}
	return cmds
}

func (m *Model) handleMergeLoaded(msg MergeLoadedMsg) []tea.Cmd {
	if m.usage == nil {
		return nil
	}
	added, err := m.usage.ApplyMerge(msg.Req, msg.Page, msg.Err)
	m.state.SetLoading(StreamMerge, false)
	f := m.state.EffectiveFilters()
	switch {
	case errors.Is(err, usagecache.ErrStaleResponse):
		return nil
	case errors.Is(err, usagecache.ErrNotCached):
		return []tea.Cmd{m.loadPage(f)}
	case err != nil:
		return []tea.Cmd{notifyWarningCmd(err.Error())}
	}
	if added == 0 {
		return nil
	}
	if m.services != nil {
		m.services.ObserveNotice(m.usage.Notice())
	}
	m.refreshSnapshot()
	return []tea.Cmd{m.loadSummary(f), m.loadDaily()}
}

func (m *Model) handleSummaryLoaded(msg SummaryLoadedMsg) []tea.Cmd {
	if m.usage == nil {
		return nil
	}
	if err := m.usage.ApplySummary(msg.Req, msg.Summary, msg.Err); errors.Is(err, usagecache.ErrStaleResponse) {
		return nil
	}
	// Failures fall back to totals resolved from cached rows.
	m.state.SetLoading(StreamSummary, false)
	m.refreshSnapshot()
	return nil
}

func (m *Model) handleDailyLoaded(msg DailyLoadedMsg) []tea.Cmd {
	if m.usage == nil {
		return nil
	}
	err := m.usage.ApplyDaily(msg.Req, msg.Totals, msg.Err)
	if errors.Is(err, usagecache.ErrStaleResponse) {
		return nil
	}
	m.state.SetLoading(StreamDaily, false)
	m.refreshSnapshot()
	if _, ok := m.usage.Daily(); err != nil && !ok {
		return []tea.Cmd{notifyWarningCmd("Daily totals unavailable")}
	}
	return nil
}

func (m *Model) handleGraphLoaded(msg GraphLoadedMsg) []tea.Cmd {
	if m.usage == nil {
		return nil
	}
	if err := m.usage.ApplyGraph(msg.Req, msg.Rows, msg.Err); errors.Is(err, usagecache.ErrStaleResponse) {
		return nil
	}
	// Responses of an earlier scope do not count against the current batch.
	if msg.Req.ScopeKey == m.graphScope {
		m.graphPending = max(m.graphPending-1, 0)
	}
	if m.graphPending == 0 {
		m.state.SetLoading(StreamGraph, false)
	}
	m.refreshSnapshot()
	return nil
}
