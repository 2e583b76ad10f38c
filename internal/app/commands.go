package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/gateway-usage-tui/internal/services"
	"github.com/j-veylop/gateway-usage-tui/internal/usagecache"
)

const (
	// DefaultTickInterval is the default interval between ticks.
	DefaultTickInterval = 2 * time.Second

	// FetchTimeout bounds a single remote call made from the UI.
	FetchTimeout = 20 * time.Second

	// DefaultNotificationDuration is the default duration for notifications.
	DefaultNotificationDuration = 5 * time.Second

	// QuickNotificationDuration is for brief notifications.
	QuickNotificationDuration = 3 * time.Second

	// LongNotificationDuration is for important notifications.
	LongNotificationDuration = 10 * time.Second
)

// tickCmd returns a command that sends a TickMsg after the specified interval.
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// defaultTickCmd returns a command that sends a TickMsg after the default interval.
func defaultTickCmd() tea.Cmd {
	return tickCmd(DefaultTickInterval)
}

func fetchContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), FetchTimeout)
}

// fetchPageCmd runs the remote call of a page request.
func fetchPageCmd(svc *usagecache.Service, req usagecache.PageRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := fetchContext()
		defer cancel()
		page, err := svc.FetchPage(ctx, req)
		return PageLoadedMsg{Req: req, Page: page, Err: err}
	}
}

// fetchMergeCmd runs the remote call of a merge request.
func fetchMergeCmd(svc *usagecache.Service, req usagecache.MergeRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := fetchContext()
		defer cancel()
		page, err := svc.FetchMerge(ctx, req)
		return MergeLoadedMsg{Req: req, Page: page, Err: err}
	}
}

// fetchSummaryCmd runs the remote call of a summary request.
func fetchSummaryCmd(svc *usagecache.Service, req usagecache.SummaryRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := fetchContext()
		defer cancel()
		summary, err := svc.FetchSummary(ctx, req)
		return SummaryLoadedMsg{Req: req, Summary: summary, Err: err}
	}
}

// fetchDailyCmd runs the remote call of a daily request.
func fetchDailyCmd(svc *usagecache.Service, req usagecache.DailyRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := fetchContext()
		defer cancel()
		totals, err := svc.FetchDaily(ctx, req)
		return DailyLoadedMsg{Req: req, Totals: totals, Err: err}
	}
}

// fetchGraphCmds returns one command per provider graph request.
func fetchGraphCmds(svc *usagecache.Service, reqs []usagecache.GraphRequest) []tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(reqs))
	for _, req := range reqs {
		cmds = append(cmds, func() tea.Msg {
			ctx, cancel := fetchContext()
			defer cancel()
			rows, err := svc.FetchGraph(ctx, req)
			return GraphLoadedMsg{Req: req, Rows: rows, Err: err}
		})
	}
	return cmds
}

// subscribeToServicesCmd returns a command that subscribes to service events.
func subscribeToServicesCmd(mgr *services.Manager) tea.Cmd {
	ch, _ := mgr.Subscribe()
	return func() tea.Msg {
		return SubscriptionEventMsg{Channel: ch}
	}
}

// waitForServiceEventCmd returns a command that waits for the next service event.
func waitForServiceEventCmd(ch <-chan services.ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return ServiceEventMsg{Event: event}
	}
}

// clearNotificationCmd returns a command that removes a notification after a delay.
func clearNotificationCmd(id string, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(_ time.Time) tea.Msg {
		return RemoveNotificationMsg{ID: id}
	})
}

func notifyCmd(t NotificationType, message string, d time.Duration) tea.Cmd {
	return func() tea.Msg {
		return AddNotificationMsg{Type: t, Message: message, Duration: d}
	}
}

// notifySuccessCmd returns a command that adds a success notification.
func notifySuccessCmd(message string) tea.Cmd {
	return notifyCmd(NotificationSuccess, message, QuickNotificationDuration)
}

// notifyErrorCmd returns a command that adds an error notification.
func notifyErrorCmd(message string) tea.Cmd {
	return notifyCmd(NotificationError, message, LongNotificationDuration)
}

// notifyWarningCmd returns a command that adds a warning notification.
func notifyWarningCmd(message string) tea.Cmd {
	return notifyCmd(NotificationWarning, message, DefaultNotificationDuration)
}
