package service

import (
	"context"
	"errors"
	"fmt"
	"royale-tracker/internal/api"
	"royale-tracker/internal/config"
	"royale-tracker/internal/constants"
	"royale-tracker/internal/domain"
	"royale-tracker/internal/repository"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

var ErrCrawlInProgress = errors.New("crawl already in progress")

// CrawlConfig bounds one crawl run. Zero MaxPlayers or MaxBattles means no limit.
type CrawlConfig struct {
	MaxDepth      int
	MaxPlayers    int
	MaxBattles    int
	MinDelay      time.Duration
	RecencyWindow time.Duration
}

func NewCrawlConfig(cfg *config.Config) CrawlConfig {
	return CrawlConfig{
		MaxDepth:      cfg.CrawlMaxDepth,
		MaxPlayers:    cfg.CrawlMaxPlayers,
		MaxBattles:    cfg.CrawlMaxBattles,
		MinDelay:      cfg.CrawlMinDelay,
		RecencyWindow: cfg.CrawlRecencyWindow,
	}
}

type BattleFetcher interface {
	GetBattleLog(ctx context.Context, tag string) ([]api.Battle, error)
}

type CrawlStats struct {
	RunID            string    `json:"run_id"`
	Running          bool      `json:"running"`
	Pass             int       `json:"pass"`
	PlayersFetched   int       `json:"players_fetched"`
	BattlesProcessed int       `json:"battles_processed"`
	BattlesCreated   int       `json:"battles_created"`
	BattlesExisting  int       `json:"battles_existing"`
	BattlesSkipped   int       `json:"battles_skipped"`
	BattlesFiltered  int       `json:"battles_filtered"`
	StopReason       string    `json:"stop_reason,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at,omitzero"`
}

// Crawler walks the never-fetched player frontier one player at a time. Recording a battle
// adds its opponents to the frontier, so every pass re-reads it from the store.
type Crawler struct {
	cfg        CrawlConfig
	fetcher    BattleFetcher
	recorder   *BattleRecorder
	playerRepo *repository.PlayerRepository
	clock      clockwork.Clock
	logger     zerolog.Logger

	lastFetch time.Time

	mu    sync.RWMutex
	stats CrawlStats
}

func NewCrawler(
	cfg CrawlConfig,
	fetcher BattleFetcher,
	recorder *BattleRecorder,
	playerRepo *repository.PlayerRepository,
	clock clockwork.Clock,
	logger zerolog.Logger,
) *Crawler {
	return &Crawler{
		cfg:        cfg,
		fetcher:    fetcher,
		recorder:   recorder,
		playerRepo: playerRepo,
		clock:      clock,
		logger:     logger,
	}
}

func (c *Crawler) Stats() CrawlStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// SeedPlayers adds starting players so an empty database has a frontier.
func (c *Crawler) SeedPlayers(ctx context.Context, tags []string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	for _, tag := range tags {
		if err := c.playerRepo.Ensure(ctx, tag); err != nil {
			return err
		}
		player, err := c.playerRepo.Get(ctx, tag)
		if err != nil {
			return err
		}
		if player != nil && player.Fetched() {
			c.logger.Info().
				Str("player_tag", tag).
				Time("last_fetched_at", *player.LastFetchedAt).
				Msg("seed player already fetched, it will not be crawled again")
		}
	}
	if len(tags) > 0 {
		c.logger.Info().Strs("tags", tags).Msg("seed players ensured")
	}
	return nil
}

// Run crawls until MaxDepth passes are done, the frontier is empty or a budget is used up.
// Battles that only fail on their own data are skipped; any other error stops the run.
func (c *Crawler) Run(ctx context.Context) (CrawlStats, error) {
	c.mu.Lock()
	if c.stats.Running {
		c.mu.Unlock()
		return CrawlStats{}, ErrCrawlInProgress
	}
	c.stats = CrawlStats{
		RunID:     uuid.NewString(),
		Running:   true,
		StartedAt: c.clock.Now().UTC(),
	}
	runID := c.stats.RunID
	c.mu.Unlock()

	logger := c.logger.With().Str("run_id", runID).Logger()
	logger.Info().
		Int("max_depth", c.cfg.MaxDepth).
		Int("max_players", c.cfg.MaxPlayers).
		Int("max_battles", c.cfg.MaxBattles).
		Dur("min_delay", c.cfg.MinDelay).
		Msg("crawl started")

	reason, err := c.crawl(ctx, logger)

	c.mu.Lock()
	c.stats.Running = false
	c.stats.StopReason = reason
	c.stats.FinishedAt = c.clock.Now().UTC()
	stats := c.stats
	c.mu.Unlock()

	if err != nil {
		logger.Error().Err(err).Int("players_fetched", stats.PlayersFetched).Msg("crawl aborted")
		return stats, err
	}

	logger.Info().
		Str("reason", reason).
		Int("passes", stats.Pass).
		Int("players_fetched", stats.PlayersFetched).
		Int("battles_created", stats.BattlesCreated).
		Int("battles_existing", stats.BattlesExisting).
		Int("battles_skipped", stats.BattlesSkipped).
		Int("battles_filtered", stats.BattlesFiltered).
		Msg("crawl finished")
	return stats, nil
}

func (c *Crawler) crawl(ctx context.Context, logger zerolog.Logger) (string, error) {
	for pass := 1; pass <= c.cfg.MaxDepth; pass++ {
		if reason, done := c.budgetExhausted(); done {
			return reason, nil
		}

		players, err := c.playerRepo.ListUnfetched(ctx)
		if err != nil {
			return "error", err
		}
		if len(players) == 0 {
			return "frontier exhausted", nil
		}

		c.update(func(s *CrawlStats) { s.Pass = pass })
		now := c.clock.Now()
		logger.Info().Int("pass", pass).Int("frontier", len(players)).Msg("crawl pass started")

		for i, player := range players {
			if reason, done := c.budgetExhausted(); done {
				return reason, nil
			}

			if err := c.waitForSlot(ctx); err != nil {
				return "cancelled", err
			}

			logger.Debug().
				Int("pass", pass).
				Int("player", i+1).
				Int("of", len(players)).
				Str("player_tag", player.Tag).
				Msg("fetching battle log")

			battles, err := c.fetcher.GetBattleLog(ctx, player.Tag)
			if err != nil {
				return "error", fmt.Errorf("failed to fetch battle log of %s: %w", player.Tag, err)
			}

			stopped, err := c.processBattles(ctx, logger, battles, now)
			if err != nil {
				return "error", err
			}
			if stopped != "" {
				return stopped, nil
			}

			if err := c.playerRepo.SetLastFetchedAt(ctx, player.Tag, c.clock.Now()); err != nil {
				return "error", err
			}
			c.update(func(s *CrawlStats) { s.PlayersFetched++ })
		}
	}
	return "max depth reached", nil
}

// processBattles returns a non-empty stop reason when the battle budget runs out mid-player.
func (c *Crawler) processBattles(ctx context.Context, logger zerolog.Logger, battles []api.Battle, now time.Time) (string, error) {
	for _, b := range battles {
		if !c.accept(b, now) {
			c.update(func(s *CrawlStats) { s.BattlesFiltered++ })
			continue
		}
		if reason, done := c.budgetExhausted(); done {
			return reason, nil
		}
		c.update(func(s *CrawlStats) { s.BattlesProcessed++ })

		_, created, err := c.recorder.RecordBattle(ctx, b)
		if err != nil {
			if !domain.IsBattleSkippable(err) {
				return "", fmt.Errorf("failed to record battle at %s: %w", b.BattleTime.Format(time.RFC3339), err)
			}
			logger.Warn().
				Err(err).
				Time("battle_time", b.BattleTime.Time).
				Str("game_mode", b.GameMode.Name).
				Strs("participants", b.ParticipantTags()).
				Msg("skipping battle")
			c.update(func(s *CrawlStats) { s.BattlesSkipped++ })
			continue
		}

		if created {
			c.update(func(s *CrawlStats) { s.BattlesCreated++ })
		} else {
			c.update(func(s *CrawlStats) { s.BattlesExisting++ })
		}
	}
	return "", nil
}

// accept keeps ladder and ranked 1v1 battles fought inside the recency window.
func (c *Crawler) accept(b api.Battle, now time.Time) bool {
	if !IsTrackedMode(b.GameMode.Name) {
		return false
	}
	return !b.BattleTime.Before(now.Add(-c.cfg.RecencyWindow))
}

func IsTrackedMode(name string) bool {
	return name == constants.LadderModeName || strings.HasPrefix(name, constants.RankedModeNamePrefix)
}

func (c *Crawler) budgetExhausted() (string, bool) {
	stats := c.Stats()
	if c.cfg.MaxPlayers > 0 && stats.PlayersFetched >= c.cfg.MaxPlayers {
		return "player budget exhausted", true
	}
	if c.cfg.MaxBattles > 0 && stats.BattlesProcessed >= c.cfg.MaxBattles {
		return "battle budget exhausted", true
	}
	return "", false
}

// waitForSlot blocks until MinDelay has passed since the previous fetch started.
func (c *Crawler) waitForSlot(ctx context.Context) error {
	if !c.lastFetch.IsZero() {
		if wait := c.cfg.MinDelay - c.clock.Since(c.lastFetch); wait > 0 {
			c.logger.Debug().Dur("wait", wait).Msg("throttling before next fetch")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.clock.After(wait):
			}
		}
	}
	c.lastFetch = c.clock.Now()
	return nil
}

func (c *Crawler) update(fn func(s *CrawlStats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}
