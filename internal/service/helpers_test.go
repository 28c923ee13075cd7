package service

import (
	"context"
	"path/filepath"
	"royale-tracker/internal/api"
	"royale-tracker/internal/config"
	"royale-tracker/internal/database"
	"royale-tracker/internal/repository"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	knight        int64 = 26000000 // has an evolution
	towerPrincess int64 = 159000000
	cannoneer     int64 = 159000001
)

type stubCatalog struct {
	resp *api.CardsResponse
}

func (s *stubCatalog) GetCards(context.Context) (*api.CardsResponse, error) {
	return s.resp, nil
}

func testCatalog() *api.CardsResponse {
	cost := 3
	resp := &api.CardsResponse{}
	for i := int64(0); i < 10; i++ {
		item := api.CardItem{ID: knight + i, Name: "card", Rarity: "common", MaxLevel: 16, ElixirCost: &cost}
		item.IconURLs.Medium = "https://cdn.example.com/medium.png"
		if i == 0 {
			item.MaxEvolutionLevel = 1
			item.IconURLs.EvolutionMedium = "https://cdn.example.com/evo.png"
		}
		resp.Items = append(resp.Items, item)
	}
	resp.SupportItems = []api.CardItem{
		{ID: towerPrincess, Name: "Tower Princess", Rarity: "common", MaxLevel: 16},
		{ID: cannoneer, Name: "Cannoneer", Rarity: "epic", MaxLevel: 16},
	}
	return resp
}

type testEnv struct {
	db       *sqlx.DB
	cards    *repository.CardRepository
	decks    *repository.DeckRepository
	players  *repository.PlayerRepository
	battles  *repository.BattleRepository
	modes    *repository.GameModeRepository
	resolver *CardResolver
	mapper   *TeamMapper
	recorder *BattleRecorder
	catalog  *CatalogService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.New(&config.Config{DBPath: filepath.Join(t.TempDir(), "service.db")}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := zerolog.Nop()
	env := &testEnv{
		db:      db,
		cards:   repository.NewCardRepository(db, log),
		decks:   repository.NewDeckRepository(db, log),
		players: repository.NewPlayerRepository(db, log),
		battles: repository.NewBattleRepository(db, log),
		modes:   repository.NewGameModeRepository(db, log),
	}
	env.resolver = NewCardResolver(env.cards, log)
	env.mapper = NewTeamMapper(env.resolver)
	env.recorder = NewBattleRecorder(db, env.mapper, env.battles, env.decks, env.players, env.modes, log)
	env.catalog = NewCatalogService(&stubCatalog{resp: testCatalog()}, db, env.cards, env.resolver, log)

	_, err = env.catalog.Refresh(t.Context())
	require.NoError(t, err)
	return env
}

func (e *testEnv) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}

func refs(ids ...int64) []api.CardRef {
	out := make([]api.CardRef, len(ids))
	for i, id := range ids {
		out[i] = api.CardRef{ID: id, Level: 14}
	}
	return out
}

// mainCards returns eight regular cards starting at knight+offset.
func mainCards(offset int64) []api.CardRef {
	ids := make([]int64, 8)
	for i := range ids {
		ids[i] = knight + offset + int64(i)
	}
	return refs(ids...)
}

func player(tag string, crowns int, offset int64) api.PlayerBattleData {
	return api.PlayerBattleData{
		Tag:          tag,
		Crowns:       crowns,
		Cards:        mainCards(offset),
		SupportCards: refs(towerPrincess),
	}
}

func newBattle(at time.Time, mode string, team, opponent api.PlayerBattleData) api.Battle {
	return api.Battle{
		Type:       "PvP",
		BattleTime: api.CompactTime{Time: at},
		GameMode:   api.GameMode{ID: 72000006, Name: mode},
		Team:       []api.PlayerBattleData{team},
		Opponent:   []api.PlayerBattleData{opponent},
	}
}
