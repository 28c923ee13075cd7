package main

import (
	"context"
	"fmt"
	"royale-tracker/internal/config"
	fxmodules "royale-tracker/internal/fx"
	"royale-tracker/internal/service"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func NewDaemonCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Crawl every CRAWL_INTERVAL and serve status on STATUS_PORT",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				fxmodules.Module,
				fxmodules.StatusModule,
				fx.Decorate(opts.apply),
				fx.Invoke(registerSchedule),
			)
			if err := app.Err(); err != nil {
				return fmt.Errorf("failed to build application: %w", err)
			}
			app.Run()
			return nil
		},
	}
}

// registerSchedule runs a crawl cycle immediately and then every CrawlInterval. A cycle that
// is still running when the next one is due delays it.
func registerSchedule(
	lc fx.Lifecycle,
	cfg *config.Config,
	catalog *service.CatalogService,
	crawler *service.Crawler,
	logger zerolog.Logger,
) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	d := deps{cfg: cfg, catalog: catalog, crawler: crawler, logger: logger}
	job, err := sched.NewJob(
		gocron.DurationJob(cfg.CrawlInterval),
		gocron.NewTask(func(ctx context.Context) {
			if err := crawlOnce(ctx, d); err != nil {
				logger.Error().Err(err).Msg("scheduled crawl failed")
			}
		}),
		gocron.WithName("crawl"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule crawl: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			sched.Start()
			logger.Info().
				Str("job_id", job.ID().String()).
				Dur("interval", cfg.CrawlInterval).
				Msg("crawl scheduler started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := sched.Shutdown(); err != nil {
				logger.Error().Err(err).Msg("scheduler shutdown failed")
				return err
			}
			logger.Info().Msg("crawl scheduler stopped")
			return nil
		},
	})
	return nil
}
