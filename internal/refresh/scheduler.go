// Package refresh decides when background usage refreshes run. It holds no data;
// it turns activity, scroll and tab signals into actions, bounded by cooldowns.
package refresh

import (
	"time"

	"github.com/j-veylop/gateway-usage-tui/internal/usagecache"
)

// Cooldowns bounding call volume.
const (
	PagePrefetchCooldown = 4 * time.Second
	GraphCooldown        = usagecache.GraphRefreshInterval
	TabIntentCooldown    = 60 * time.Second
	ActivityMinGap       = time.Second
)

// Actions are the fetches a signal calls for.
type Actions struct {
	MergeNewest      bool
	PrefetchNextPage bool
	RefreshGraph     bool
	ForceGraph       bool
	PrefetchTab      bool
	// RetryPage reloads the first page of a view whose load left nothing cached.
	RetryPage bool
	Tab       usagecache.ViewTab
}

// Any reports whether at least one action is set.
func (a Actions) Any() bool {
	return a.MergeNewest || a.PrefetchNextPage || a.RefreshGraph || a.ForceGraph || a.PrefetchTab || a.RetryPage
}

// Scheduler tracks the last time each kind of refresh ran.
type Scheduler struct {
	now func() time.Time

	nearTop bool

	// pendingActivity is activity waiting on the minimum gap; deferredActivity is
	// activity waiting for the view to return to the top.
	pendingActivity  bool
	deferredActivity bool

	lastActivity time.Time
	lastPrefetch time.Time
	lastGraph    time.Time
	lastRetry    time.Time
	lastIntent   map[usagecache.ViewTab]time.Time
}

// New creates a scheduler. A nil clock means time.Now.
func New(now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		now:        now,
		nearTop:    true,
		lastIntent: make(map[usagecache.ViewTab]time.Time),
	}
}

func elapsed(now, last time.Time, cooldown time.Duration) bool {
	return last.IsZero() || now.Sub(last) >= cooldown
}

// Activity signals that the gateway recorded new usage. The newest window is merged
// at most once per ActivityMinGap, and only while the view is at the top so rows do
// not shift under a reader.
func (s *Scheduler) Activity() Actions {
	if !s.nearTop {
		s.deferredActivity = true
		return Actions{}
	}
	return s.fireActivity(s.now())
}

func (s *Scheduler) fireActivity(now time.Time) Actions {
	if !elapsed(now, s.lastActivity, ActivityMinGap) {
		s.pendingActivity = true
		return Actions{}
	}
	s.pendingActivity = false
	s.lastActivity = now
	a := Actions{MergeNewest: true}
	if elapsed(now, s.lastGraph, GraphCooldown) {
		s.lastGraph = now
		a.RefreshGraph = true
	}
	return a
}

// Scroll records the scroll position. Returning to the top releases deferred
// activity; reaching the bottom prefetches the next page.
func (s *Scheduler) Scroll(nearTop, nearBottom bool) Actions {
	now := s.now()
	s.nearTop = nearTop

	var a Actions
	if nearTop && (s.deferredActivity || s.pendingActivity) {
		s.deferredActivity = false
		a = s.fireActivity(now)
	}
	if nearBottom && elapsed(now, s.lastPrefetch, PagePrefetchCooldown) {
		s.lastPrefetch = now
		a.PrefetchNextPage = true
	}
	return a
}

// TabIntent signals the user is about to open a tab, such as hovering or cycling
// focus towards it. Its data is prefetched at most once per TabIntentCooldown.
func (s *Scheduler) TabIntent(tab usagecache.ViewTab) Actions {
	now := s.now()
	if !elapsed(now, s.lastIntent[tab], TabIntentCooldown) {
		return Actions{}
	}
	s.lastIntent[tab] = now
	return Actions{PrefetchTab: true, Tab: tab}
}

// TabSwitch signals a tab became active. Without a graph snapshot the graph refresh
// is forced past its throttle.
func (s *Scheduler) TabSwitch(tab usagecache.ViewTab, hasGraphSnapshot bool) Actions {
	now := s.now()
	a := Actions{Tab: tab}
	if !hasGraphSnapshot {
		s.lastGraph = now
		a.RefreshGraph = true
		a.ForceGraph = true
		return a
	}
	if elapsed(now, s.lastGraph, GraphCooldown) {
		s.lastGraph = now
		a.RefreshGraph = true
	}
	return a
}

// Tick runs periodic work: coalesced activity whose gap has passed and the
// throttled graph refresh. pageMissing reports that the current view has no loaded
// page; its reload is retried at most once per PagePrefetchCooldown.
func (s *Scheduler) Tick(pageMissing bool) Actions {
	now := s.now()
	var a Actions
	if s.pendingActivity && s.nearTop {
		a = s.fireActivity(now)
	}
	if !a.RefreshGraph && elapsed(now, s.lastGraph, GraphCooldown) {
		s.lastGraph = now
		a.RefreshGraph = true
	}
	if pageMissing && elapsed(now, s.lastRetry, PagePrefetchCooldown) {
		s.lastRetry = now
		a.RetryPage = true
	}
	return a
}

// NearTop reports whether the view was last seen at the top.
func (s *Scheduler) NearTop() bool {
	return s.nearTop
}
