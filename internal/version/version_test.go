package version

import (
	"context"
	"os/exec"
	"runtime/debug"
	"strings"
	"sync"
	"testing"
	"time"
)

// gitStub answers git subcommands from canned output and records what ran.
type gitStub struct {
	mu      sync.Mutex
	outputs map[string]string
	calls   []string
}

func (g *gitStub) command(ctx context.Context, name string, args ...string) *exec.Cmd {
	g.mu.Lock()
	defer g.mu.Unlock()
	sub := strings.Join(args, " ")
	g.calls = append(g.calls, name+" "+sub)
	out, ok := g.outputs[sub]
	if !ok {
		return exec.CommandContext(ctx, "gwusage-test-no-such-binary")
	}
	return exec.CommandContext(ctx, "echo", out)
}

func stubResolution(t *testing.T, g *gitStub, info *debug.BuildInfo) {
	t.Helper()
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}
	origExec, origInfo, origNow := execCommand, readBuildInfo, now
	t.Cleanup(func() {
		execCommand, readBuildInfo, now = origExec, origInfo, origNow
		Reset()
	})
	execCommand = g.command
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
	now = func() time.Time { return time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC) }
	Reset()
}

func TestResolve(t *testing.T) {
	tagged := map[string]string{
		"describe --tags --abbrev=0": "v2.3.4",
		"describe --always --dirty":  "3f2a9c1",
	}
	tests := []struct {
		name       string
		git        map[string]string
		info       *debug.BuildInfo
		wantVer    string
		wantCommit string
		wantDate   string
		wantGit    int
	}{
		{
			name:       "git checkout",
			git:        tagged,
			wantVer:    "2.3.4",
			wantCommit: "3f2a9c1",
			wantDate:   "2026-04-02",
			wantGit:    2,
		},
		{
			name:       "no git",
			wantVer:    "dev",
			wantCommit: "unknown",
			wantDate:   "2026-04-02",
			wantGit:    2,
		},
		{
			name: "build info",
			git:  tagged,
			info: &debug.BuildInfo{
				Main: debug.Module{Version: "v1.4.0"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "0123456789abcdef0123"},
					{Key: "vcs.modified", Value: "true"},
					{Key: "vcs.time", Value: "2026-01-20T10:00:00Z"},
				},
			},
			wantVer:    "1.4.0",
			wantCommit: "0123456789ab-dirty",
			wantDate:   "2026-01-20",
			wantGit:    0,
		},
		{
			name:       "devel build falls back to git",
			git:        tagged,
			info:       &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}},
			wantVer:    "2.3.4",
			wantCommit: "3f2a9c1",
			wantDate:   "2026-04-02",
			wantGit:    2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &gitStub{outputs: tt.git}
			stubResolution(t, g, tt.info)

			if got := GetVersion(); got != tt.wantVer {
				t.Errorf("GetVersion() = %q, want %q", got, tt.wantVer)
			}
			if got := GetCommit(); got != tt.wantCommit {
				t.Errorf("GetCommit() = %q, want %q", got, tt.wantCommit)
			}
			if got := GetDate(); got != tt.wantDate {
				t.Errorf("GetDate() = %q, want %q", got, tt.wantDate)
			}
			if len(g.calls) != tt.wantGit {
				t.Errorf("git ran %d times, want %d: %v", len(g.calls), tt.wantGit, g.calls)
			}
		})
	}
}

func TestResolve_LinkerValuesWin(t *testing.T) {
	g := &gitStub{}
	stubResolution(t, g, &debug.BuildInfo{Main: debug.Module{Version: "v9.9.9"}})
	Version, Commit, Date = "1.2.3", "abc", "2026-01-01"

	want := "gateway-usage-tui 1.2.3 (commit: abc, built: 2026-01-01, "
	if got := Info(); !strings.HasPrefix(got, want) {
		t.Errorf("Info() = %q, want prefix %q", got, want)
	}
	if len(g.calls) != 0 {
		t.Errorf("git ran despite linker values: %v", g.calls)
	}
}

func TestReset(t *testing.T) {
	g := &gitStub{outputs: map[string]string{"describe --tags --abbrev=0": "v1.0.0"}}
	stubResolution(t, g, nil)

	if got := GetVersion(); got != "1.0.0" {
		t.Fatalf("GetVersion() = %q, want 1.0.0", got)
	}
	g.outputs["describe --tags --abbrev=0"] = "v1.1.0"
	if got := GetVersion(); got != "1.0.0" {
		t.Errorf("resolved once, got %q after the tag moved", got)
	}
	Reset()
	if got := GetVersion(); got != "1.1.0" {
		t.Errorf("GetVersion() after Reset = %q, want 1.1.0", got)
	}
}
