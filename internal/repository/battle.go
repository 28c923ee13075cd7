package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"royale-tracker/internal/domain"
	"time"

	"github.com/jmoiron/sqlx"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type BattleRepository struct {
	db     DBTX
	logger zerolog.Logger
}

func NewBattleRepository(sqlDB *sqlx.DB, logger zerolog.Logger) *BattleRepository {
	return &BattleRepository{
		db:     sqlDB,
		logger: logger,
	}
}

func (r *BattleRepository) WithTx(tx *sqlx.Tx) *BattleRepository {
	return &BattleRepository{db: tx, logger: r.logger}
}

type battleRow struct {
	ID         string    `db:"id"`
	BattleTime time.Time `db:"battle_time"`
	BattleType string    `db:"battle_type"`
	GameModeID int64     `db:"game_mode_id"`
	CreatedAt  time.Time `db:"created_at"`
}

type teamRow struct {
	ID       string `db:"id"`
	BattleID string `db:"battle_id"`
	Side     int    `db:"side"`
	Crowns   int    `db:"crowns"`
	Outcome  string `db:"outcome"`
}

type teamMemberRow struct {
	ID               string        `db:"id"`
	TeamID           string        `db:"team_id"`
	PlayerTag        string        `db:"player_tag"`
	DeckID           string        `db:"deck_id"`
	StartingTrophies sql.NullInt64 `db:"starting_trophies"`
}

// FindByTimeAndParticipants returns the id of a battle fought at battleTime that involves
// any of the given players, or "" when there is none.
func (r *BattleRepository) FindByTimeAndParticipants(ctx context.Context, battleTime time.Time, tags []string) (string, error) {
	if len(tags) == 0 {
		return "", nil
	}

	query, args, err := sqlx.In(`
		SELECT b.id
		FROM battles b
		JOIN teams t ON t.battle_id = b.id
		JOIN team_members m ON m.team_id = t.id
		WHERE b.battle_time = ? AND m.player_tag IN (?)
		LIMIT 1
	`, battleTime.UTC(), tags)
	if err != nil {
		return "", fmt.Errorf("failed to build battle lookup: %w", err)
	}

	var id string
	err = r.db.GetContext(ctx, &id, r.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up battle at %s: %w", battleTime.Format(time.RFC3339), err)
	}
	return id, nil
}

// Create inserts the battle with its teams and members and fills in the generated ids.
func (r *BattleRepository) Create(ctx context.Context, battle *domain.Battle) error {
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate nanoid: %w", err)
	}

	battle.ID = id
	battle.Time = battle.Time.UTC()
	battle.CreatedAt = time.Now().UTC()

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO battles (id, battle_time, battle_type, game_mode_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		battle.ID, battle.Time, battle.Type, battle.GameModeID, battle.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert battle: %w", err)
	}

	for i := range battle.Teams {
		if err := r.createTeam(ctx, battle.ID, &battle.Teams[i]); err != nil {
			return err
		}
	}

	r.logger.Debug().
		Str("battle_id", battle.ID).
		Time("battle_time", battle.Time).
		Int64("game_mode_id", battle.GameModeID).
		Msg("battle created")
	return nil
}

func (r *BattleRepository) createTeam(ctx context.Context, battleID string, team *domain.Team) error {
	teamID, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate nanoid: %w", err)
	}
	team.ID = teamID
	team.BattleID = battleID

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO teams (id, battle_id, side, crowns, outcome) VALUES (?, ?, ?, ?, ?)`,
		team.ID, team.BattleID, team.Side, team.Crowns, string(team.Outcome),
	); err != nil {
		return fmt.Errorf("failed to insert team %d: %w", team.Side, err)
	}

	for i := range team.Members {
		member := &team.Members[i]
		memberID, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}
		member.ID = memberID
		member.TeamID = team.ID

		var trophies sql.NullInt64
		if member.StartingTrophies != nil {
			trophies = sql.NullInt64{Int64: int64(*member.StartingTrophies), Valid: true}
		}

		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO team_members (id, team_id, player_tag, deck_id, starting_trophies) VALUES (?, ?, ?, ?, ?)`,
			member.ID, member.TeamID, member.PlayerTag, member.DeckID, trophies,
		); err != nil {
			return fmt.Errorf("failed to insert team member %s: %w", member.PlayerTag, err)
		}
	}
	return nil
}

// GetByID returns nil when the battle does not exist.
func (r *BattleRepository) GetByID(ctx context.Context, id string) (*domain.Battle, error) {
	var row battleRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, battle_time, battle_type, game_mode_id, created_at FROM battles WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get battle %s: %w", id, err)
	}

	var teams []teamRow
	if err := r.db.SelectContext(ctx, &teams,
		`SELECT id, battle_id, side, crowns, outcome FROM teams WHERE battle_id = ? ORDER BY side`, id); err != nil {
		return nil, fmt.Errorf("failed to get teams of battle %s: %w", id, err)
	}

	var members []teamMemberRow
	if err := r.db.SelectContext(ctx, &members, `
		SELECT m.id, m.team_id, m.player_tag, m.deck_id, m.starting_trophies
		FROM team_members m
		JOIN teams t ON t.id = m.team_id
		WHERE t.battle_id = ?
		ORDER BY t.side, m.rowid
	`, id); err != nil {
		return nil, fmt.Errorf("failed to get members of battle %s: %w", id, err)
	}

	membersByTeam := make(map[string][]domain.TeamMember, len(teams))
	for _, m := range members {
		member := domain.TeamMember{
			ID:        m.ID,
			TeamID:    m.TeamID,
			PlayerTag: m.PlayerTag,
			DeckID:    m.DeckID,
		}
		if m.StartingTrophies.Valid {
			trophies := int(m.StartingTrophies.Int64)
			member.StartingTrophies = &trophies
		}
		membersByTeam[m.TeamID] = append(membersByTeam[m.TeamID], member)
	}

	battle := &domain.Battle{
		ID:         row.ID,
		Time:       row.BattleTime.UTC(),
		Type:       row.BattleType,
		GameModeID: row.GameModeID,
		CreatedAt:  row.CreatedAt,
		Teams:      make([]domain.Team, 0, len(teams)),
	}
	for _, t := range teams {
		battle.Teams = append(battle.Teams, domain.Team{
			ID:       t.ID,
			BattleID: t.BattleID,
			Side:     t.Side,
			Crowns:   t.Crowns,
			Outcome:  domain.Outcome(t.Outcome),
			Members:  membersByTeam[t.ID],
		})
	}
	return battle, nil
}

func (r *BattleRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM battles`); err != nil {
		return 0, fmt.Errorf("failed to count battles: %w", err)
	}
	return count, nil
}
