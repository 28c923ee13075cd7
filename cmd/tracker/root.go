package main

import (
	"context"
	"fmt"
	"royale-tracker/internal/config"
	"royale-tracker/internal/constants"
	fxmodules "royale-tracker/internal/fx"
	"royale-tracker/internal/service"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// RootOptions holds flags shared by every command. Zero values keep the environment's setting.
type RootOptions struct {
	DBPath     string
	MaxDepth   int
	MaxPlayers int
	MaxBattles int
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "tracker",
		Short:         "Clash Royale battle and deck ingestion",
		Long:          "Mirrors the card catalog and crawls player battle logs into a local SQLite database.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to SQLite database (overrides DB_PATH)")
	cmd.PersistentFlags().IntVar(&opts.MaxDepth, "max-depth", 0, "crawl passes (overrides CRAWL_MAX_DEPTH)")
	cmd.PersistentFlags().IntVar(&opts.MaxPlayers, "max-players", 0, "player budget per run (overrides CRAWL_MAX_PLAYERS)")
	cmd.PersistentFlags().IntVar(&opts.MaxBattles, "max-battles", 0, "battle budget per run (overrides CRAWL_MAX_BATTLES)")

	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewCrawlCommand(opts))
	cmd.AddCommand(NewDaemonCommand(opts))

	return cmd
}

// apply lays command line overrides over the loaded configuration.
func (o *RootOptions) apply(cfg *config.Config) *config.Config {
	out := *cfg
	if o.DBPath != "" {
		out.DBPath = o.DBPath
	}
	if o.MaxDepth > 0 {
		out.CrawlMaxDepth = o.MaxDepth
	}
	if o.MaxPlayers > 0 {
		out.CrawlMaxPlayers = o.MaxPlayers
	}
	if o.MaxBattles > 0 {
		out.CrawlMaxBattles = o.MaxBattles
	}
	return &out
}

type deps struct {
	cfg     *config.Config
	catalog *service.CatalogService
	crawler *service.Crawler
	logger  zerolog.Logger
}

// runOnce builds the fx graph, runs fn against it and stops the app again.
func runOnce(ctx context.Context, opts *RootOptions, fn func(ctx context.Context, d deps) error) error {
	var d deps
	app := fx.New(
		fxmodules.Module,
		fx.NopLogger,
		fx.Decorate(opts.apply),
		fx.Populate(&d.cfg, &d.catalog, &d.crawler, &d.logger),
	)
	if err := app.Err(); err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	startCtx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := app.Stop(stopCtx); err != nil {
			d.logger.Warn().Err(err).Msg("failed to stop application")
		}
	}()

	return fn(ctx, d)
}
