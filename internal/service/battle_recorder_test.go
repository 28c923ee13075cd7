package service

import (
	"royale-tracker/internal/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var battleTime = time.Date(2025, 9, 8, 7, 10, 45, 0, time.UTC)

func TestBattleRecorder_RecordsBattle(t *testing.T) {
	env := newTestEnv(t)

	raw := newBattle(battleTime, "Ladder", player("#AAA", 3, 0), player("#BBB", 1, 1))
	battle, created, err := env.recorder.RecordBattle(t.Context(), raw)
	require.NoError(t, err)
	assert.True(t, created)

	require.Len(t, battle.Teams, 2)
	assert.Equal(t, domain.SideTeam, battle.Teams[0].Side)
	assert.Equal(t, domain.OutcomeWin, battle.Teams[0].Outcome)
	assert.Equal(t, domain.OutcomeLoss, battle.Teams[1].Outcome)
	assert.Equal(t, "#BBB", battle.Teams[1].Members[0].PlayerTag)

	assert.Equal(t, 1, env.count(t, "battles"))
	assert.Equal(t, 2, env.count(t, "teams"))
	assert.Equal(t, 2, env.count(t, "team_members"))
	assert.Equal(t, 2, env.count(t, "decks"))
	assert.Equal(t, 1, env.count(t, "game_modes"))

	for _, tag := range []string{"#AAA", "#BBB"} {
		p, err := env.players.Get(t.Context(), tag)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.False(t, p.Fetched())
	}
}

func TestBattleRecorder_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	raw := newBattle(battleTime, "Ladder", player("#AAA", 3, 0), player("#BBB", 1, 1))

	first, created, err := env.recorder.RecordBattle(t.Context(), raw)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := env.recorder.RecordBattle(t.Context(), raw)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	assert.Equal(t, 1, env.count(t, "battles"))
	assert.Equal(t, 2, env.count(t, "teams"))
	assert.Equal(t, 2, env.count(t, "team_members"))
	assert.Equal(t, 2, env.count(t, "decks"))
}

func TestBattleRecorder_SameBattleSeenFromOpponent(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.recorder.RecordBattle(t.Context(), newBattle(battleTime, "Ladder", player("#AAA", 3, 0), player("#BBB", 1, 1)))
	require.NoError(t, err)

	mirrored := newBattle(battleTime, "Ladder", player("#BBB", 1, 1), player("#AAA", 3, 0))
	_, created, err := env.recorder.RecordBattle(t.Context(), mirrored)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, env.count(t, "battles"))
}

func TestBattleRecorder_DedupesMirrorDecks(t *testing.T) {
	env := newTestEnv(t)

	raw := newBattle(battleTime, "Ranked1v1_NewArena", player("#AAA", 1, 0), player("#BBB", 1, 0))
	battle, created, err := env.recorder.RecordBattle(t.Context(), raw)
	require.NoError(t, err)
	require.True(t, created)

	assert.Equal(t, 1, env.count(t, "decks"))
	assert.Equal(t, battle.Teams[0].Members[0].DeckID, battle.Teams[1].Members[0].DeckID)
	assert.Equal(t, domain.OutcomeDraw, battle.Teams[0].Outcome)
}

func TestBattleRecorder_RollsBackOnUnknownCard(t *testing.T) {
	env := newTestEnv(t)

	opponent := player("#BBB", 1, 1)
	opponent.Cards[7].ID = 26999999
	raw := newBattle(battleTime, "Ladder", player("#AAA", 3, 0), opponent)

	_, _, err := env.recorder.RecordBattle(t.Context(), raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCardNotFound)

	for _, table := range []string{"players", "decks", "deck_cards", "battles", "teams", "team_members", "game_modes"} {
		assert.Equal(t, 0, env.count(t, table), table)
	}
}

func TestBattleRecorder_RollsBackFailedInsert(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.db.Exec(`
		CREATE TRIGGER reject_team_members BEFORE INSERT ON team_members
		BEGIN
			SELECT RAISE(ABORT, 'team members rejected');
		END
	`)
	require.NoError(t, err)

	raw := newBattle(battleTime, "Ladder", player("#AAA", 3, 0), player("#BBB", 1, 1))
	_, created, err := env.recorder.RecordBattle(t.Context(), raw)
	require.Error(t, err)
	assert.False(t, created)
	assert.Contains(t, err.Error(), "team members rejected")
	assert.False(t, domain.IsBattleSkippable(err))

	for _, table := range []string{"players", "decks", "deck_cards", "game_modes", "battles", "teams", "team_members"} {
		assert.Equal(t, 0, env.count(t, table), table)
	}
}

func TestBattleRecorder_EmptyTeam(t *testing.T) {
	env := newTestEnv(t)

	raw := newBattle(battleTime, "Ladder", player("#AAA", 3, 0), player("#BBB", 1, 1))
	raw.Opponent = nil

	_, _, err := env.recorder.RecordBattle(t.Context(), raw)
	assert.ErrorIs(t, err, domain.ErrEmptyTeam)
	assert.Equal(t, 0, env.count(t, "battles"))
}

func TestBattleRecorder_StoredBattleRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	trophies := 6400
	team := player("#AAA", 0, 0)
	team.StartingTrophies = &trophies
	raw := newBattle(battleTime, "Ladder", team, player("#BBB", 2, 1))

	recorded, _, err := env.recorder.RecordBattle(t.Context(), raw)
	require.NoError(t, err)

	loaded, err := env.battles.GetByID(t.Context(), recorded.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, battleTime.Equal(loaded.Time))
	assert.Equal(t, int64(72000006), loaded.GameModeID)
	assert.Equal(t, domain.OutcomeLoss, loaded.Teams[0].Outcome)
	assert.Equal(t, 2, loaded.Teams[1].Crowns)
	assert.Equal(t, 6400, *loaded.Teams[0].Members[0].StartingTrophies)
	assert.Nil(t, loaded.Teams[1].Members[0].StartingTrophies)
}
