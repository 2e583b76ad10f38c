// Package version resolves the build metadata printed by the CLI.
//
// Link-time values win. Otherwise the module build info embedded by the Go
// toolchain is used, then git in the working directory.
package version

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Build metadata, set with -ldflags "-X".
var (
	Version = ""
	Commit  = ""
	Date    = ""
)

const gitTimeout = 2 * time.Second

var (
	resolveOnce sync.Once

	execCommand   = exec.CommandContext
	readBuildInfo = debug.ReadBuildInfo
	now           = time.Now
)

func resolve() {
	resolveOnce.Do(func() {
		settings := map[string]string{}
		var mainVersion string
		if info, ok := readBuildInfo(); ok && info != nil {
			for _, s := range info.Settings {
				settings[s.Key] = s.Value
			}
			if v := info.Main.Version; v != "(devel)" {
				mainVersion = strings.TrimPrefix(v, "v")
			}
		}

		// git only runs when neither the linker nor the build info had a value.
		if Version == "" {
			Version = mainVersion
		}
		if Version == "" {
			Version = lo.CoalesceOrEmpty(gitTag(), "dev")
		}
		if Commit == "" {
			Commit = shortRevision(settings)
		}
		if Commit == "" {
			Commit = lo.CoalesceOrEmpty(git("describe", "--always", "--dirty"), "unknown")
		}
		if Date == "" {
			Date = lo.CoalesceOrEmpty(buildDay(settings["vcs.time"]), now().Format(time.DateOnly))
		}
	})
}

// Reset clears the resolved metadata so it is computed again on next use.
func Reset() {
	Version, Commit, Date = "", "", ""
	resolveOnce = sync.Once{}
}

// git runs a git subcommand and returns its trimmed output, or "" on failure.
func git(args ...string) string {
	ctx, cancel := context.WithTimeout(context.Background(), gitTimeout)
	defer cancel()
	cmd := execCommand(ctx, "git", args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return ""
	}
	return strings.TrimSpace(out.String())
}

func gitTag() string {
	return strings.TrimPrefix(git("describe", "--tags", "--abbrev=0"), "v")
}

func shortRevision(settings map[string]string) string {
	rev := settings["vcs.revision"]
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if rev != "" && settings["vcs.modified"] == "true" {
		rev += "-dirty"
	}
	return rev
}

func buildDay(vcsTime string) string {
	t, err := time.Parse(time.RFC3339, vcsTime)
	if err != nil {
		return ""
	}
	return t.Format(time.DateOnly)
}

// GetVersion returns the release version.
func GetVersion() string {
	resolve()
	return Version
}

// GetCommit returns the source commit.
func GetCommit() string {
	resolve()
	return Commit
}

// GetDate returns the build date.
func GetDate() string {
	resolve()
	return Date
}

// Info is the one-line version banner.
func Info() string {
	resolve()
	return fmt.Sprintf("gateway-usage-tui %s (commit: %s, built: %s, %s/%s)",
		Version, Commit, Date, runtime.GOOS, runtime.GOARCH)
}
