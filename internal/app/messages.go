package app

import (
	"time"

	"github.com/j-veylop/gateway-usage-tui/internal/models"
	"github.com/j-veylop/gateway-usage-tui/internal/services"
	"github.com/j-veylop/gateway-usage-tui/internal/usagecache"
)

// TickMsg is sent periodically to run scheduled refreshes.
type TickMsg struct {
	Time time.Time
}

// PageLoadedMsg carries the result of a page fetch.
type PageLoadedMsg struct {
	Req  usagecache.PageRequest
	Page models.UsageRequestPage
	Err  error
}

// MergeLoadedMsg carries the newest window fetched for an incremental merge.
type MergeLoadedMsg struct {
	Req  usagecache.MergeRequest
	Page models.UsageRequestPage
	Err  error
}

// SummaryLoadedMsg carries a backend summary.
type SummaryLoadedMsg struct {
	Req     usagecache.SummaryRequest
	Summary models.UsageSummary
	Err     error
}

// DailyLoadedMsg carries the daily roll-up.
type DailyLoadedMsg struct {
	Req    usagecache.DailyRequest
	Totals models.DailyTotals
	Err    error
}

// GraphLoadedMsg carries one provider's graph history.
type GraphLoadedMsg struct {
	Req  usagecache.GraphRequest
	Rows []models.UsageRequestEntry
	Err  error
}

// FiltersChangedMsg replaces the selected filters.
type FiltersChangedMsg struct {
	Filters models.RequestFilters
}

// FiltersHiddenMsg shows or hides the filter UI of the requests tab.
type FiltersHiddenMsg struct {
	Hidden bool
}

// ScrollMsg reports the request table scroll position.
type ScrollMsg struct {
	NearTop    bool
	NearBottom bool
}

// LoadMoreMsg requests the next page, bypassing the prefetch cooldown.
type LoadMoreMsg struct{}

// RefreshMsg requests a full reload of every stream.
type RefreshMsg struct{}

// TabSwitchMsg requests switching to a specific tab.
type TabSwitchMsg struct {
	Tab TabID
}

// TabIntentMsg signals the pointer is over a tab that is not active.
type TabIntentMsg struct {
	Tab TabID
}

// ToggleHelpMsg toggles the help display.
type ToggleHelpMsg struct{}

// AddNotificationMsg requests adding a new notification.
type AddNotificationMsg struct {
	Type     NotificationType
	Message  string
	Duration time.Duration
}

// RemoveNotificationMsg requests removal of a notification.
type RemoveNotificationMsg struct {
	ID string
}

// ServiceEventMsg wraps a service event from the service manager.
type ServiceEventMsg struct {
	Event services.ServiceEvent
}

// SubscriptionEventMsg is the callback wrapper for service subscription.
type SubscriptionEventMsg struct {
	Channel chan services.ServiceEvent
}
