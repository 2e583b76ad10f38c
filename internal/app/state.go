// Package app provides the main Bubble Tea application model and state management.
package app

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/j-veylop/gateway-usage-tui/internal/models"
	"github.com/j-veylop/gateway-usage-tui/internal/usagecache"
)

// NotificationType defines the type of notification.
type NotificationType int

const (
	// NotificationSuccess represents a success notification.
	NotificationSuccess NotificationType = iota
	// NotificationError represents an error notification.
	NotificationError
	// NotificationWarning represents a warning notification.
	NotificationWarning
	// NotificationInfo represents an informational notification.
	NotificationInfo
	// NotificationLoading represents a loading notification with spinner.
	NotificationLoading
)

const (
	// LoadingNotificationID is the fixed ID for loading notifications.
	LoadingNotificationID = "__loading__"

	maxNotifications = 10
)

// String returns the string representation of a NotificationType.
func (n NotificationType) String() string {
	switch n {
	case NotificationSuccess:
		return "success"
	case NotificationError:
		return "error"
	case NotificationWarning:
		return "warning"
	case NotificationInfo:
		return "info"
	case NotificationLoading:
		return "loading"
	default:
		return "unknown"
	}
}

// Notification represents a user-facing notification message.
type Notification struct {
	ID        string
	Type      NotificationType
	Message   string
	CreatedAt time.Time
	Duration  time.Duration
}

// IsExpired returns true if the notification has expired.
func (n *Notification) IsExpired() bool {
	if n.Duration <= 0 {
		return false
	}
	return time.Since(n.CreatedAt) > n.Duration
}

// Fetch streams tracked by the loading state.
const (
	StreamPage    = "page"
	StreamMerge   = "merge"
	StreamSummary = "summary"
	StreamDaily   = "daily"
	StreamGraph   = "graph"
)

// Snapshot is everything the tabs render, captured from the usage engine after each
// applied response. Tabs never read the engine directly.
type Snapshot struct {
	// Filters are the effective filters the snapshot was resolved for.
	Filters models.RequestFilters
	Entry   *models.PageCacheEntry
	// Summary is nil while the totals are unknown.
	Summary        *models.UsageSummary
	Daily          *models.DailyTotalsCache
	Series         []usagecache.ProviderSeries
	Providers      []string
	KnownProviders []string
	Notice         usagecache.Notice
	UpdatedAt      time.Time
}

// Rows returns the rows of the displayed entry.
func (s Snapshot) Rows() []models.UsageRequestEntry {
	if s.Entry == nil {
		return nil
	}
	return s.Entry.Rows
}

// State is the UI state shared between the root model and the tabs.
type State struct {
	mu sync.RWMutex

	filters models.RequestFilters
	view    usagecache.RequestView
	nearTop bool

	snapshot Snapshot
	loading  map[string]bool

	notifications   []Notification
	notificationSeq int
}

// NewState creates the state with the given analytics window.
func NewState(analyticsHours int) *State {
	return &State{
		filters: models.RequestFilters{Hours: analyticsHours},
		view:    usagecache.RequestView{Tab: usagecache.ViewRequests},
		nearTop: true,
		loading: map[string]bool{StreamPage: true},
	}
}

// Filters returns a copy of the selected filters.
func (s *State) Filters() models.RequestFilters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters.Clone()
}

// SetFilters replaces the selected filters.
func (s *State) SetFilters(f models.RequestFilters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = f.Clone()
}

// View returns the UI state that influences the fetch window.
func (s *State) View() usagecache.RequestView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// SetView replaces the view state.
func (s *State) SetView(v usagecache.RequestView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = v
}

// EffectiveFilters returns the filters a fetch for the current view uses.
func (s *State) EffectiveFilters() models.RequestFilters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return effectiveFilters(s.filters, s.view)
}

// FiltersFor returns the filters a fetch for view would use.
func (s *State) FiltersFor(view usagecache.RequestView) models.RequestFilters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return effectiveFilters(s.filters, view)
}

func effectiveFilters(f models.RequestFilters, view usagecache.RequestView) models.RequestFilters {
	out := f.Clone()
	out.Hours = usagecache.ResolveRequestFetchHours(view, f.Hours)
	return out
}

// NearTop reports whether the request table is scrolled to the top.
func (s *State) NearTop() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nearTop
}

// SetNearTop records the table scroll position.
func (s *State) SetNearTop(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nearTop = v
}

// Snapshot returns the latest render snapshot.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// SetSnapshot replaces the render snapshot.
func (s *State) SetSnapshot(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.KnownProviders = knownProviders(snap)
	s.snapshot = snap
}

func knownProviders(snap Snapshot) []string {
	var names []string
	if snap.Daily != nil {
		names = append(names, snap.Daily.ProviderNames()...)
	}
	for _, r := range snap.Rows() {
		names = append(names, r.Provider)
	}
	names = append(names, snap.Filters.Providers...)
	names = lo.Uniq(lo.Compact(names))
	sort.Strings(names)
	return names
}

// SetLoading sets the loading state of a fetch stream.
func (s *State) SetLoading(stream string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading[stream] = loading
}

// IsLoading reports whether a fetch stream is in flight.
func (s *State) IsLoading(stream string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading[stream]
}

// LoadingStreams returns the streams in flight, sorted by name.
func (s *State) LoadingStreams() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	streams := lo.Keys(lo.PickBy(s.loading, func(_ string, v bool) bool { return v }))
	sort.Strings(streams)
	return streams
}

// AnyLoading returns true if any stream is currently loading.
func (s *State) AnyLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.SomeBy(lo.Values(s.loading), func(v bool) bool { return v })
}

// AddNotification adds a new notification and returns its ID.
func (s *State) AddNotification(notifType NotificationType, message string, duration time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notificationSeq++
	id := fmt.Sprintf("n-%d", s.notificationSeq)

	s.notifications = append(s.notifications, Notification{
		ID:        id,
		Type:      notifType,
		Message:   message,
		CreatedAt: time.Now(),
		Duration:  duration,
	})

	if len(s.notifications) > maxNotifications {
		s.notifications = s.notifications[len(s.notifications)-maxNotifications:]
	}
	return id
}

// RemoveNotification removes a notification by ID.
func (s *State) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return
		}
	}
}

// ClearExpiredNotifications removes all expired notifications.
func (s *State) ClearExpiredNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = lo.Filter(s.notifications, func(n Notification, _ int) bool {
		return !n.IsExpired()
	})
}

// GetNotifications returns a copy of all active notifications.
func (s *State) GetNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Filter(s.notifications, func(n Notification, _ int) bool {
		return !n.IsExpired()
	})
}

// SetLoadingNotification sets a loading notification message.
func (s *State) SetLoadingNotification(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == LoadingNotificationID {
			s.notifications[i].Message = message
			return
		}
	}
	s.notifications = append(s.notifications, Notification{
		ID:        LoadingNotificationID,
		Type:      NotificationLoading,
		Message:   message,
		CreatedAt: time.Now(),
	})
}

// ClearLoadingNotification removes the loading notification.
func (s *State) ClearLoadingNotification() {
	s.RemoveNotification(LoadingNotificationID)
}
