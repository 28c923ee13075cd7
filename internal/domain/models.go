package domain

import (
	"fmt"
	"time"
)

// CardIdentifier is the upstream natural key of a card. Base and evolution forms share
// RemoteID and differ by IsEvolution.
type CardIdentifier struct {
	RemoteID    int64
	IsEvolution bool
}

func (c CardIdentifier) String() string {
	evo := 0
	if c.IsEvolution {
		evo = 1
	}
	return fmt.Sprintf("%d-%d", c.RemoteID, evo)
}

type Card struct {
	ID          int64
	RemoteID    int64
	IsEvolution bool
	Name        string
	Rarity      string
	ElixirCost  *int
	MaxLevel    int
	IsSupport   bool
	IconURL     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (c Card) Identifier() CardIdentifier {
	return CardIdentifier{RemoteID: c.RemoteID, IsEvolution: c.IsEvolution}
}

type Deck struct {
	ID        string // nanoid
	Hash      string // sha256 of sorted card ids
	CardIDs   []int64
	CreatedAt time.Time
}

type Player struct {
	Tag           string
	LastFetchedAt *time.Time
	CreatedAt     time.Time
}

func (p Player) Fetched() bool {
	return p.LastFetchedAt != nil
}

type GameMode struct {
	ID   int64
	Name string
}

type Outcome string

const (
	OutcomeWin  Outcome = "WIN"
	OutcomeLoss Outcome = "LOSS"
	OutcomeDraw Outcome = "DRAW"
)

// team sides inside a battle
const (
	SideTeam     = 0
	SideOpponent = 1
)

type Battle struct {
	ID         string
	Time       time.Time
	Type       string
	GameModeID int64
	Teams      []Team
	CreatedAt  time.Time
}

type Team struct {
	ID       string
	BattleID string
	Side     int
	Crowns   int
	Outcome  Outcome
	Members  []TeamMember
}

type TeamMember struct {
	ID               string
	TeamID           string
	PlayerTag        string
	DeckID           string
	StartingTrophies *int
}
