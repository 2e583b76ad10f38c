package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/j-veylop/gateway-usage-tui/internal/config"
	"github.com/j-veylop/gateway-usage-tui/internal/gateway"
	"github.com/j-veylop/gateway-usage-tui/internal/models"
	"github.com/j-veylop/gateway-usage-tui/internal/usagecache"
)

// stubClient fails every query.
type stubClient struct{}

var errStub = errors.New("unreachable")

func (stubClient) UsageRequestEntries(context.Context, gateway.EntriesArgs) (models.UsageRequestPage, error) {
	return models.UsageRequestPage{}, errStub
}

func (stubClient) UsageRequestSummary(context.Context, gateway.SummaryArgs) (models.UsageSummary, error) {
	return models.UsageSummary{}, errStub
}

func (stubClient) UsageRequestDailyTotals(context.Context, gateway.DailyArgs) (models.DailyTotals, error) {
	return models.DailyTotals{}, errStub
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	tmpDir := t.TempDir()
	return &config.Config{
		GatewayMode:       config.ModeLocal,
		DatabasePath:      filepath.Join(tmpDir, "usage.db"),
		ActivityWatchPath: filepath.Join(tmpDir, "usage.db"),
		AnalyticsHours:    24,
		PageSize:          50,
		NotifyEnabled:     true,
	}
}

func TestNewManager_LocalMode(t *testing.T) {
	cfg := testConfig(t)
	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer mgr.Close()

	if mgr.Database() == nil {
		t.Error("Database should be initialized in local mode")
	}
	if mgr.Client() != gateway.Client(mgr.Database()) {
		t.Error("local mode should query the database directly")
	}
	if mgr.Usage() == nil {
		t.Error("Usage service should be initialized")
	}
	if !mgr.Watching() {
		t.Error("activity watcher should be running")
	}
}

func TestNewManager_HTTPMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.GatewayMode = config.ModeHTTP
	cfg.GatewayURL = "http://127.0.0.1:1"
	cfg.ActivityWatchPath = filepath.Join(t.TempDir(), "missing", "usage.db")

	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer mgr.Close()

	if mgr.Database() != nil {
		t.Error("HTTP mode should not open the local store")
	}
	if _, ok := mgr.Client().(*gateway.HTTPClient); !ok {
		t.Errorf("expected HTTP client, got %T", mgr.Client())
	}
	if mgr.Watching() {
		t.Error("watcher on a missing directory should be disabled, not fatal")
	}
}

func TestManager_ActivityEvent(t *testing.T) {
	cfg := testConfig(t)
	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer mgr.Close()

	ch, cmd := mgr.Subscribe()
	if ch == nil || cmd == nil {
		t.Fatal("Subscribe returned nil")
	}

	if err := os.WriteFile(cfg.ActivityWatchPath+"-wal", []byte("x"), 0600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	select {
	case ev := <-ch:
		if _, ok := ev.(ActivityEvent); !ok {
			t.Errorf("expected ActivityEvent, got %T", ev)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for activity event")
	}
}

func TestManager_Broadcast(t *testing.T) {
	mgr := NewManagerWithClient(testConfig(t), stubClient{})
	defer mgr.Close()

	ch, cmd := mgr.Subscribe()
	mgr.broadcast(ErrorEvent{Service: "test", Error: errStub})

	msg := cmd()
	ev, ok := msg.(ErrorEvent)
	if !ok || ev.Service != "test" {
		t.Errorf("expected ErrorEvent from test, got %#v", msg)
	}

	mgr.Unsubscribe(ch)
	if msg := WaitForEvent(ch)(); msg != nil {
		t.Errorf("closed subscription should yield nil, got %#v", msg)
	}
}

func TestManager_ObserveNotice(t *testing.T) {
	cfg := testConfig(t)
	mgr := NewManagerWithClient(cfg, stubClient{})
	defer mgr.Close()

	var sent []string
	mgr.notify = func(_, body string) error {
		sent = append(sent, body)
		return nil
	}

	mgr.ObserveNotice(usagecache.NoticeFallback)
	mgr.ObserveNotice(usagecache.NoticeFallback)
	mgr.ObserveNotice(usagecache.NoticeNone)
	mgr.ObserveNotice(usagecache.NoticeLoadFailed)
	if len(sent) != 2 {
		t.Errorf("expected one notification per transition, got %v", sent)
	}

	cfg.NotifyEnabled = false
	mgr.ObserveNotice(usagecache.NoticeFallback)
	if len(sent) != 2 {
		t.Error("notifications sent while disabled")
	}
}

func TestManager_UsageWiredToClient(t *testing.T) {
	cfg := testConfig(t)
	cfg.FallbackEnabled = true
	mgr := NewManagerWithClient(cfg, stubClient{})
	defer mgr.Close()

	entry, err := mgr.Usage().LoadPage(context.Background(), models.RequestFilters{Hours: 24})
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	if !entry.UsingFallback {
		t.Error("failing client with fallback enabled should yield fallback rows")
	}
}

func TestServiceEvent_Interface(t *testing.T) {
	events := []ServiceEvent{ActivityEvent{}, ErrorEvent{}}
	for _, e := range events {
		e.isServiceEvent()
	}
}

func TestManager_Close(t *testing.T) {
	mgr, err := NewManager(testConfig(t))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	ch, _ := mgr.Subscribe()
	if err := mgr.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("subscriber channel should be closed")
	}
}
