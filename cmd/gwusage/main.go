// Package main is the entry point for the gateway usage TUI. The root command runs
// the Bubble Tea program; subcommands print reports and manage the local store.
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/j-veylop/gateway-usage-tui/internal/app"
	"github.com/j-veylop/gateway-usage-tui/internal/config"
	"github.com/j-veylop/gateway-usage-tui/internal/logger"
	"github.com/j-veylop/gateway-usage-tui/internal/services"
	"github.com/j-veylop/gateway-usage-tui/internal/ui/tabs/analytics"
	"github.com/j-veylop/gateway-usage-tui/internal/ui/tabs/requests"
	"github.com/j-veylop/gateway-usage-tui/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gwusage",
		Short: "Terminal dashboard for LLM gateway usage requests",
		Long: `gwusage browses the usage requests recorded by an LLM gateway.

Configuration is read from .env files and the environment:
  GATEWAY_MODE      http (query API) or local (sqlite store)
  GATEWAY_URL       query API base URL
  DATABASE_PATH     local sqlite store
  ANALYTICS_HOURS   default window (default: 24)
  FALLBACK_ENABLED  show synthetic rows when the gateway is unreachable`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI()
		},
	}

	root.AddCommand(
		newVersionCmd(),
		newSummaryCmd(),
		newDailyCmd(),
		newServeCmd(),
		newSeedCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}

// setup loads the configuration and points the logger at the configured file.
// The returned closer flushes the log file.
func setup() (*config.Config, io.Closer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	closer, err := logger.Configure(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure logging: %w", err)
	}
	return cfg, closer, nil
}

// runTUI contains the main application logic, separated for cleaner error handling.
func runTUI() error {
	cfg, logs, err := setup()
	if err != nil {
		return err
	}
	defer logs.Close()

	svcManager, err := services.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if closeErr := svcManager.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: error closing services: %v\n", closeErr)
		}
	}()

	logger.Info("starting", "version", version.GetVersion(), "mode", cfg.GatewayMode)

	model := app.NewModel(svcManager)
	state := model.GetState()
	model.SetTabs([]app.Tab{
		requests.New(state),
		analytics.New(state),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	go func() {
		<-sigChan
		p.Send(tea.Quit())
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
