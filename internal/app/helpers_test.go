package app

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/gateway-usage-tui/internal/config"
	"github.com/j-veylop/gateway-usage-tui/internal/gateway"
	"github.com/j-veylop/gateway-usage-tui/internal/models"
	"github.com/j-veylop/gateway-usage-tui/internal/services"
)

// fakeClient pages through newest-first rows and records every entries query.
type fakeClient struct {
	mu      sync.Mutex
	rows    []models.UsageRequestEntry
	err     error
	entries []gateway.EntriesArgs
}

func (f *fakeClient) UsageRequestEntries(_ context.Context, args gateway.EntriesArgs) (models.UsageRequestPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, args)
	if f.err != nil {
		return models.UsageRequestPage{}, f.err
	}
	var matched []models.UsageRequestEntry
	for _, r := range f.rows {
		if args.Providers == nil || contains(args.Providers, r.Provider) {
			matched = append(matched, r)
		}
	}
	start := min(args.Offset, len(matched))
	end := len(matched)
	if args.Limit > 0 {
		end = min(start+args.Limit, len(matched))
	}
	return models.UsageRequestPage{
		OK:         true,
		Rows:       append([]models.UsageRequestEntry{}, matched[start:end]...),
		HasMore:    end < len(matched),
		NextOffset: end,
	}, nil
}

func (f *fakeClient) UsageRequestSummary(context.Context, gateway.SummaryArgs) (models.UsageSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.UsageSummary{}, f.err
	}
	s := models.UsageSummary{OK: true}
	for _, r := range f.rows {
		s.Add(r)
	}
	return s, nil
}

func (f *fakeClient) UsageRequestDailyTotals(context.Context, gateway.DailyArgs) (models.DailyTotals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.DailyTotals{}, f.err
	}
	return models.DailyTotals{OK: true}, nil
}

func (f *fakeClient) prepend(rows ...models.UsageRequestEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(append([]models.UsageRequestEntry{}, rows...), f.rows...)
}

func (f *fakeClient) entryCalls() []gateway.EntriesArgs {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.EntriesArgs{}, f.entries...)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func testRows(n int) []models.UsageRequestEntry {
	now := time.Now().UnixMilli()
	providers := []string{"official", "provider-a"}
	rows := make([]models.UsageRequestEntry, 0, n)
	for i := range n {
		rows = append(rows, models.UsageRequestEntry{
			Provider:    providers[i%2],
			Model:       "m1",
			Origin:      "wsl",
			SessionID:   "s1",
			UnixMs:      now - int64(i+1)*1_000,
			InputTokens: 10,
			TotalTokens: int64(10 + i),
		})
	}
	return rows
}

func newTestModel(t *testing.T, client *fakeClient, fallback bool) *Model {
	t.Helper()
	cfg := &config.Config{
		GatewayMode:     config.ModeHTTP,
		AnalyticsHours:  24,
		PageSize:        2,
		FallbackEnabled: fallback,
	}
	mgr := services.NewManagerWithClient(cfg, client)
	t.Cleanup(func() { _ = mgr.Close() })
	return NewModel(mgr)
}

// drain runs fetch commands and feeds their results back into the model until
// nothing is left. Other messages are collected, never executed, so timers such
// as notification expiry do not block the test.
func drain(t *testing.T, m *Model, cmds ...tea.Cmd) []tea.Msg {
	t.Helper()
	var other []tea.Msg
	queue := append([]tea.Cmd{}, cmds...)
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 200 {
			t.Fatal("drain did not settle")
		}
		cmd := queue[0]
		queue = queue[1:]
		if cmd == nil {
			continue
		}
		switch msg := cmd().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case PageLoadedMsg, MergeLoadedMsg, SummaryLoadedMsg, DailyLoadedMsg, GraphLoadedMsg, TabIntentMsg:
			_, next := m.Update(msg)
			queue = append(queue, next)
		default:
			other = append(other, msg)
		}
	}
	return other
}
