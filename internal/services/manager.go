// Package services provides service orchestration for the TUI.
package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"

	"github.com/j-veylop/gateway-usage-tui/internal/config"
	"github.com/j-veylop/gateway-usage-tui/internal/db"
	"github.com/j-veylop/gateway-usage-tui/internal/gateway"
	"github.com/j-veylop/gateway-usage-tui/internal/logger"
	"github.com/j-veylop/gateway-usage-tui/internal/services/activity"
	"github.com/j-veylop/gateway-usage-tui/internal/usagecache"
)

type (
	// ActivityEvent is emitted when the gateway records new usage.
	ActivityEvent struct {
		At time.Time
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Service string
		Error   error
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (ActivityEvent) isServiceEvent() {}
func (ErrorEvent) isServiceEvent()    {}

// Manager orchestrates the query client, the usage engine, the activity watcher and
// event routing.
type Manager struct {
	mu          sync.RWMutex
	cfg         *config.Config
	client      gateway.Client
	database    *db.DB
	usage       *usagecache.Service
	watcher     *activity.Watcher
	stopChan    chan struct{}
	subscribers []chan<- ServiceEvent

	notify     func(title, body string) error
	lastNotice usagecache.Notice
}

// NewManager creates a new service manager. In local mode the sqlite store answers
// queries directly; otherwise the gateway's HTTP query API does.
func NewManager(cfg *config.Config) (*Manager, error) {
	var (
		client   gateway.Client
		database *db.DB
	)
	switch cfg.GatewayMode {
	case config.ModeLocal:
		var err error
		database, err = db.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		client = database
	default:
		client = gateway.NewHTTPClient(cfg.GatewayURL, cfg.GatewayTimeout)
	}

	m := newManager(cfg, client)
	m.database = database

	if cfg.ActivityWatchPath != "" {
		w, err := activity.New(cfg.ActivityWatchPath, activity.DefaultDebounce)
		if err != nil {
			// Without a watcher refreshes still run on the tick.
			logger.Warn("activity watcher disabled", "path", cfg.ActivityWatchPath, "error", err)
		} else {
			m.watcher = w
			go m.routeEvents()
		}
	}
	return m, nil
}

// NewManagerWithClient creates a manager over an existing client, without a watcher.
func NewManagerWithClient(cfg *config.Config, client gateway.Client) *Manager {
	return newManager(cfg, client)
}

func newManager(cfg *config.Config, client gateway.Client) *Manager {
	m := &Manager{
		cfg:      cfg,
		client:   client,
		stopChan: make(chan struct{}),
		notify: func(title, body string) error {
			return beeep.Notify(title, body, "")
		},
	}
	m.usage = usagecache.NewService(client, usagecache.Options{
		PageSize:        cfg.PageSize,
		AnalyticsHours:  cfg.AnalyticsHours,
		FallbackEnabled: cfg.FallbackEnabled,
	})
	return m
}

// routeEvents forwards watcher signals to subscribers.
func (m *Manager) routeEvents() {
	for {
		select {
		case event, ok := <-m.watcher.Events():
			if !ok {
				return
			}
			if event.Err != nil {
				m.broadcast(ErrorEvent{Service: "activity", Error: event.Err})
				continue
			}
			m.broadcast(ActivityEvent{At: event.At})

		case <-m.stopChan:
			return
		}
	}
}

// ObserveNotice records the notice of the latest page load and raises a desktop
// notification when fallback data is first engaged or loading starts failing.
func (m *Manager) ObserveNotice(n usagecache.Notice) {
	m.mu.Lock()
	prev := m.lastNotice
	m.lastNotice = n
	notify := m.notify
	m.mu.Unlock()

	if n == prev || n == usagecache.NoticeNone || !m.cfg.NotifyEnabled {
		return
	}
	var body string
	switch n {
	case usagecache.NoticeFallback:
		body = "The gateway is unreachable; showing test/fallback data."
	case usagecache.NoticeLoadFailed:
		body = "Failed to load usage requests from the gateway."
	}
	if err := notify("Gateway usage", body); err != nil {
		logger.Debug("desktop notification failed", "error", err)
	}
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events.
// Returns a tea.Cmd that can be used in Bubble Tea's Init or Update.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch, waitForEvent(ch)
}

// waitForEvent returns a tea.Cmd that waits for the next event.
func waitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return ev
	}
}

// WaitForEvent returns a tea.Cmd for the next event on a channel.
func WaitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return waitForEvent(ch)
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Config returns the configuration the manager was built with.
func (m *Manager) Config() *config.Config {
	return m.cfg
}

// Usage returns the usage engine.
func (m *Manager) Usage() *usagecache.Service {
	return m.usage
}

// Client returns the query client.
func (m *Manager) Client() gateway.Client {
	return m.client
}

// Database returns the local store, or nil outside local mode.
func (m *Manager) Database() *db.DB {
	return m.database
}

// Watching reports whether gateway activity is being watched.
func (m *Manager) Watching() bool {
	return m.watcher != nil
}

// Close closes the manager and all its services.
func (m *Manager) Close() error {
	close(m.stopChan)

	m.mu.Lock()
	for _, sub := range m.subscribers {
		close(sub)
	}
	m.subscribers = nil
	m.mu.Unlock()

	var errs []error
	if m.watcher != nil {
		if err := m.watcher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if m.database != nil {
		if err := m.database.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
