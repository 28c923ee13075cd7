package constants

import "time"

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	CatalogTimeout     = 60 * time.Second
)

const (
	DBMaxOpenConns    = 10
	DBMaxIdleConns    = 4
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBusyTimeoutMs   = 5000
)

const (
	ShutdownTimeout = 5 * time.Second
)

// crawl defaults
const (
	DefaultMaxDepth      = 3
	DefaultMaxPlayers    = 5000
	DefaultMaxBattles    = 0
	DefaultMinDelay      = 1500 * time.Millisecond
	DefaultRecencyWindow = 7 * 24 * time.Hour
	DefaultCrawlInterval = 1 * time.Hour
)

const (
	LadderModeName       = "Ladder"
	RankedModeNamePrefix = "Ranked1v1"
)

const (
	DeckSize         = 9
	DeckSupportCards = 1
)

const (
	DefaultAPIBaseURL = "https://api.clashroyale.com/v1"
)
