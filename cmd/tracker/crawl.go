package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func NewCrawlCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Refresh the catalog and crawl battle logs once",
		Long: `Refresh the card catalog, add the CRAWL_SEED_TAGS players and crawl the
never-fetched player frontier until a budget or CRAWL_MAX_DEPTH is reached.

Example:
  tracker crawl --max-players 50
  CRAWL_SEED_TAGS=#2PP tracker crawl --db ./royale.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runOnce(ctx, opts, func(ctx context.Context, d deps) error {
				if err := crawlOnce(ctx, d); err != nil {
					return err
				}
				stats := d.crawler.Stats()
				fmt.Fprintf(cmd.OutOrStdout(), "players fetched: %d, battles created: %d, existing: %d, skipped: %d (%s)\n",
					stats.PlayersFetched, stats.BattlesCreated, stats.BattlesExisting, stats.BattlesSkipped, stats.StopReason)
				return nil
			})
		},
	}
}

// crawlOnce is one full ingestion cycle: catalog, seeds, crawl.
func crawlOnce(ctx context.Context, d deps) error {
	if _, err := d.catalog.Refresh(ctx); err != nil {
		return err
	}
	if err := d.crawler.SeedPlayers(ctx, d.cfg.CrawlSeedTags); err != nil {
		return err
	}
	_, err := d.crawler.Run(ctx)
	return err
}
