package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/j-veylop/gateway-usage-tui/internal/db"
	"github.com/j-veylop/gateway-usage-tui/internal/gateway"
	"github.com/j-veylop/gateway-usage-tui/internal/logger"
	"github.com/j-veylop/gateway-usage-tui/internal/models"
	"github.com/j-veylop/gateway-usage-tui/internal/usagecache"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local store over the gateway query API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logs, err := setup()
			if err != nil {
				return err
			}
			defer logs.Close()

			if cmd.Flags().Changed("addr") {
				cfg.ServeAddr = addr
			}

			database, err := db.New(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer database.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "serving %s on http://%s\n", database.Path(), cfg.ServeAddr)
			return gateway.NewServer(cfg.ServeAddr, database).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides SERVE_ADDR)")
	return cmd
}

func newSeedCmd() *cobra.Command {
	var (
		count int
		hours int
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert synthetic usage rows into the local store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logs, err := setup()
			if err != nil {
				return err
			}
			defer logs.Close()

			database, err := db.New(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer database.Close()

			n, err := seedStore(cmd.Context(), database, count, hours, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inserted %d rows into %s\n", n, database.Path())
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", usagecache.DefaultFallbackRows, "rows to generate")
	cmd.Flags().IntVar(&hours, "hours", 24, "window the rows are spread over")
	return cmd
}

// seedStore writes count synthetic rows ending at now into the store.
func seedStore(ctx context.Context, database *db.DB, count, hours int, now time.Time) (int, error) {
	if count <= 0 {
		return 0, fmt.Errorf("count must be positive, got %d", count)
	}
	rows := usagecache.GenerateFallbackRows(usagecache.FallbackOptions{
		GeneratedAtMs: now.UnixMilli(),
		Count:         count,
		Filters:       models.RequestFilters{Hours: hours},
	})
	if err := database.InsertUsageRequests(ctx, rows); err != nil {
		return 0, fmt.Errorf("failed to insert rows: %w", err)
	}
	logger.Info("seeded local store", "rows", len(rows), "path", database.Path())
	return len(rows), nil
}
