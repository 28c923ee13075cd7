package repository

import (
	"path/filepath"
	"royale-tracker/internal/config"
	"royale-tracker/internal/database"
	"royale-tracker/internal/domain"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.New(&config.Config{DBPath: filepath.Join(t.TempDir(), "repo.db")}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCardRepository_UpsertAndGet(t *testing.T) {
	db := openTestDB(t)
	repo := NewCardRepository(db, zerolog.Nop())
	ctx := t.Context()

	cost := 3
	require.NoError(t, repo.Upsert(ctx, &domain.Card{RemoteID: 26000000, Name: "Knight", Rarity: "common", ElixirCost: &cost, MaxLevel: 16}))
	require.NoError(t, repo.Upsert(ctx, &domain.Card{RemoteID: 26000000, IsEvolution: true, Name: "Knight", Rarity: "common", ElixirCost: &cost, MaxLevel: 16}))

	// second upsert updates in place
	require.NoError(t, repo.Upsert(ctx, &domain.Card{RemoteID: 26000000, Name: "Knight", Rarity: "rare", ElixirCost: &cost, MaxLevel: 16}))

	base, err := repo.GetByIdentifier(ctx, domain.CardIdentifier{RemoteID: 26000000})
	require.NoError(t, err)
	require.NotNil(t, base)
	assert.Equal(t, "rare", base.Rarity)
	assert.False(t, base.IsEvolution)
	assert.Equal(t, 3, *base.ElixirCost)

	evo, err := repo.GetByIdentifier(ctx, domain.CardIdentifier{RemoteID: 26000000, IsEvolution: true})
	require.NoError(t, err)
	require.NotNil(t, evo)
	assert.NotEqual(t, base.ID, evo.ID)

	missing, err := repo.GetByIdentifier(ctx, domain.CardIdentifier{RemoteID: 1})
	require.NoError(t, err)
	assert.Nil(t, missing)

	cards, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, cards, 2)
}

func TestDeckRepository_CreateIsIdempotentPerHash(t *testing.T) {
	db := openTestDB(t)
	cards := NewCardRepository(db, zerolog.Nop())
	decks := NewDeckRepository(db, zerolog.Nop())
	ctx := t.Context()

	require.NoError(t, cards.Upsert(ctx, &domain.Card{RemoteID: 1, Name: "a"}))
	require.NoError(t, cards.Upsert(ctx, &domain.Card{RemoteID: 2, Name: "b"}))
	all, err := cards.List(ctx)
	require.NoError(t, err)
	ids := []int64{all[0].ID, all[1].ID}

	first, created, err := decks.Create(ctx, "hash-1", ids)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, first.ID, 21)
	assert.ElementsMatch(t, ids, first.CardIDs)

	second, created, err := decks.Create(ctx, "hash-1", ids)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	count, err := decks.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	none, err := decks.GetByHash(ctx, "other")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestPlayerRepository_UnfetchedLifecycle(t *testing.T) {
	db := openTestDB(t)
	repo := NewPlayerRepository(db, zerolog.Nop())
	ctx := t.Context()

	require.NoError(t, repo.Ensure(ctx, "#AAA"))
	require.NoError(t, repo.Ensure(ctx, "#BBB"))
	require.NoError(t, repo.Ensure(ctx, "#AAA"))

	unfetched, err := repo.ListUnfetched(ctx)
	require.NoError(t, err)
	require.Len(t, unfetched, 2)
	assert.Equal(t, "#AAA", unfetched[0].Tag)

	now := time.Date(2025, 9, 8, 7, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SetLastFetchedAt(ctx, "#AAA", now))

	unfetched, err = repo.ListUnfetched(ctx)
	require.NoError(t, err)
	require.Len(t, unfetched, 1)
	assert.Equal(t, "#BBB", unfetched[0].Tag)

	player, err := repo.Get(ctx, "#AAA")
	require.NoError(t, err)
	require.True(t, player.Fetched())
	assert.True(t, now.Equal(*player.LastFetchedAt))

	assert.Error(t, repo.SetLastFetchedAt(ctx, "#NOPE", now))
}

func TestBattleRepository_CreateAndFind(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()
	cards := NewCardRepository(db, zerolog.Nop())
	decks := NewDeckRepository(db, zerolog.Nop())
	players := NewPlayerRepository(db, zerolog.Nop())
	modes := NewGameModeRepository(db, zerolog.Nop())
	battles := NewBattleRepository(db, zerolog.Nop())

	require.NoError(t, cards.Upsert(ctx, &domain.Card{RemoteID: 1, Name: "a"}))
	all, err := cards.List(ctx)
	require.NoError(t, err)
	deck, _, err := decks.Create(ctx, "h", []int64{all[0].ID})
	require.NoError(t, err)
	require.NoError(t, players.Ensure(ctx, "#AAA"))
	require.NoError(t, players.Ensure(ctx, "#BBB"))
	require.NoError(t, modes.Ensure(ctx, domain.GameMode{ID: 72000006, Name: "Ladder"}))
	require.NoError(t, modes.Ensure(ctx, domain.GameMode{ID: 72000006, Name: "Renamed"}))

	trophies := 6500
	at := time.Date(2025, 9, 8, 7, 10, 45, 0, time.UTC)
	battle := &domain.Battle{
		Time:       at,
		Type:       "PvP",
		GameModeID: 72000006,
		Teams: []domain.Team{
			{Side: domain.SideTeam, Crowns: 3, Outcome: domain.OutcomeWin, Members: []domain.TeamMember{{PlayerTag: "#AAA", DeckID: deck.ID, StartingTrophies: &trophies}}},
			{Side: domain.SideOpponent, Crowns: 1, Outcome: domain.OutcomeLoss, Members: []domain.TeamMember{{PlayerTag: "#BBB", DeckID: deck.ID}}},
		},
	}
	require.NoError(t, battles.Create(ctx, battle))
	require.NotEmpty(t, battle.ID)

	found, err := battles.FindByTimeAndParticipants(ctx, at, []string{"#ZZZ", "#BBB"})
	require.NoError(t, err)
	assert.Equal(t, battle.ID, found)

	found, err = battles.FindByTimeAndParticipants(ctx, at.Add(time.Second), []string{"#AAA"})
	require.NoError(t, err)
	assert.Empty(t, found)

	loaded, err := battles.GetByID(ctx, battle.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, at.Equal(loaded.Time))
	require.Len(t, loaded.Teams, 2)
	assert.Equal(t, domain.OutcomeWin, loaded.Teams[0].Outcome)
	assert.Equal(t, 6500, *loaded.Teams[0].Members[0].StartingTrophies)
	assert.Nil(t, loaded.Teams[1].Members[0].StartingTrophies)

	modeCount, err := modes.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, modeCount)

	var modeName string
	require.NoError(t, db.Get(&modeName, "SELECT name FROM game_modes WHERE id = ?", 72000006))
	assert.Equal(t, "Ladder", modeName)

	battleCount, err := battles.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, battleCount)

	playerCount, err := players.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, playerCount)
}
