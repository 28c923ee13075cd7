package config

import (
	"fmt"
	"os"
	"royale-tracker/internal/constants"
	applog "royale-tracker/internal/logger"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	APIToken   string
	APIBaseURL string
	DBPath     string
	LogLevel   string
	StatusPort string

	CrawlMaxDepth      int
	CrawlMaxPlayers    int
	CrawlMaxBattles    int
	CrawlMinDelay      time.Duration
	CrawlRecencyWindow time.Duration
	CrawlSeedTags      []string
	CrawlInterval      time.Duration
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		APIToken:      getEnv("CR_API_TOKEN", ""),
		APIBaseURL:    strings.TrimRight(getEnv("CR_API_BASE_URL", constants.DefaultAPIBaseURL), "/"),
		DBPath:        getEnv("DB_PATH", "royale.db"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		StatusPort:    getEnv("STATUS_PORT", ""),
		CrawlSeedTags: parseTags(getEnv("CRAWL_SEED_TAGS", "")),
	}

	level, err := applog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	if cfg.APIToken == "" {
		return nil, fmt.Errorf("CR_API_TOKEN is required")
	}

	if cfg.CrawlMaxDepth, err = getEnvAsInt("CRAWL_MAX_DEPTH", constants.DefaultMaxDepth); err != nil {
		return nil, err
	}
	if cfg.CrawlMaxPlayers, err = getEnvAsInt("CRAWL_MAX_PLAYERS", constants.DefaultMaxPlayers); err != nil {
		return nil, err
	}
	if cfg.CrawlMaxBattles, err = getEnvAsInt("CRAWL_MAX_BATTLES", constants.DefaultMaxBattles); err != nil {
		return nil, err
	}
	if cfg.CrawlMinDelay, err = getEnvAsDuration("CRAWL_MIN_DELAY", constants.DefaultMinDelay); err != nil {
		return nil, err
	}
	if cfg.CrawlRecencyWindow, err = getEnvAsDuration("CRAWL_RECENCY_WINDOW", constants.DefaultRecencyWindow); err != nil {
		return nil, err
	}
	if cfg.CrawlInterval, err = getEnvAsDuration("CRAWL_INTERVAL", constants.DefaultCrawlInterval); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("api_base_url", cfg.APIBaseURL).
		Str("log_level", cfg.LogLevel).
		Int("max_depth", cfg.CrawlMaxDepth).
		Int("max_players", cfg.CrawlMaxPlayers).
		Int("max_battles", cfg.CrawlMaxBattles).
		Dur("min_delay", cfg.CrawlMinDelay).
		Dur("recency_window", cfg.CrawlRecencyWindow).
		Int("seed_tags", len(cfg.CrawlSeedTags)).
		Msg("configuration loaded")

	return cfg, nil
}

func (c *Config) validate() error {
	if c.CrawlMaxDepth <= 0 {
		return fmt.Errorf("CRAWL_MAX_DEPTH must be > 0")
	}
	if c.CrawlMaxPlayers < 0 {
		return fmt.Errorf("CRAWL_MAX_PLAYERS must be >= 0")
	}
	if c.CrawlMaxBattles < 0 {
		return fmt.Errorf("CRAWL_MAX_BATTLES must be >= 0")
	}
	if c.CrawlMinDelay < 0 {
		return fmt.Errorf("CRAWL_MIN_DELAY must be >= 0")
	}
	if c.CrawlRecencyWindow <= 0 {
		return fmt.Errorf("CRAWL_RECENCY_WINDOW must be > 0")
	}
	if c.CrawlInterval <= 0 {
		return fmt.Errorf("CRAWL_INTERVAL must be > 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

// parseTags splits a comma separated list and adds the leading '#' when missing.
func parseTags(raw string) []string {
	var tags []string
	for _, part := range strings.Split(raw, ",") {
		tag := strings.ToUpper(strings.TrimSpace(part))
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		tags = append(tags, tag)
	}
	return tags
}

var Module = fx.Provide(Load)
