package service

import (
	"context"
	"fmt"
	"royale-tracker/internal/api"
	"royale-tracker/internal/domain"
	"royale-tracker/internal/repository"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

type BattleRecorder struct {
	db         *sqlx.DB
	mapper     *TeamMapper
	battleRepo *repository.BattleRepository
	deckRepo   *repository.DeckRepository
	playerRepo *repository.PlayerRepository
	modeRepo   *repository.GameModeRepository
	logger     zerolog.Logger
}

func NewBattleRecorder(
	db *sqlx.DB,
	mapper *TeamMapper,
	battleRepo *repository.BattleRepository,
	deckRepo *repository.DeckRepository,
	playerRepo *repository.PlayerRepository,
	modeRepo *repository.GameModeRepository,
	logger zerolog.Logger,
) *BattleRecorder {
	return &BattleRecorder{
		db:         db,
		mapper:     mapper,
		battleRepo: battleRepo,
		deckRepo:   deckRepo,
		playerRepo: playerRepo,
		modeRepo:   modeRepo,
		logger:     logger,
	}
}

// RecordBattle stores the battle unless one at the same time with a shared participant
// already exists. created reports whether a new battle was written.
func (s *BattleRecorder) RecordBattle(ctx context.Context, raw api.Battle) (battle *domain.Battle, created bool, err error) {
	team, err := s.mapper.BuildTeam(ctx, raw.Team)
	if err != nil {
		return nil, false, fmt.Errorf("team: %w", err)
	}
	opponent, err := s.mapper.BuildTeam(ctx, raw.Opponent)
	if err != nil {
		return nil, false, fmt.Errorf("opponent: %w", err)
	}

	battleTime := raw.BattleTime.UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	battles := s.battleRepo.WithTx(tx)
	decks := s.deckRepo.WithTx(tx)
	players := s.playerRepo.WithTx(tx)
	modes := s.modeRepo.WithTx(tx)

	existingID, err := battles.FindByTimeAndParticipants(ctx, battleTime, raw.ParticipantTags())
	if err != nil {
		return nil, false, err
	}
	if existingID != "" {
		existing, err := battles.GetByID(ctx, existingID)
		if err != nil {
			return nil, false, err
		}
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
		}
		s.logger.Debug().
			Str("battle_id", existingID).
			Time("battle_time", battleTime).
			Msg("battle already recorded")
		return existing, false, nil
	}

	deckIDs := make(map[string]string)
	for _, side := range []*Team{team, opponent} {
		for _, member := range side.Members {
			hash := member.Deck.Hash()
			if _, ok := deckIDs[hash]; ok {
				continue
			}
			deck, err := member.Deck.GetOrCreate(ctx, decks)
			if err != nil {
				return nil, false, fmt.Errorf("deck of %s: %w", member.PlayerTag, err)
			}
			deckIDs[hash] = deck.ID
		}
	}

	mode := domain.GameMode{ID: raw.GameMode.ID, Name: raw.GameMode.Name}
	if err := modes.Ensure(ctx, mode); err != nil {
		return nil, false, err
	}

	battle = &domain.Battle{
		Time:       battleTime,
		Type:       raw.Type,
		GameModeID: mode.ID,
		Teams: []domain.Team{
			toDomainTeam(domain.SideTeam, team, opponent, deckIDs),
			toDomainTeam(domain.SideOpponent, opponent, team, deckIDs),
		},
	}

	for _, t := range battle.Teams {
		for _, member := range t.Members {
			if err := players.Ensure(ctx, member.PlayerTag); err != nil {
				return nil, false, err
			}
		}
	}

	if err := battles.Create(ctx, battle); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info().
		Str("battle_id", battle.ID).
		Time("battle_time", battle.Time).
		Str("game_mode", mode.Name).
		Int("decks", len(deckIDs)).
		Msg("battle recorded")
	return battle, true, nil
}

func toDomainTeam(side int, team, opponent *Team, deckIDs map[string]string) domain.Team {
	result := domain.Team{
		Side:    side,
		Crowns:  team.Crowns,
		Outcome: team.Outcome(opponent),
		Members: make([]domain.TeamMember, 0, len(team.Members)),
	}
	for _, m := range team.Members {
		result.Members = append(result.Members, domain.TeamMember{
			PlayerTag:        m.PlayerTag,
			DeckID:           deckIDs[m.Deck.Hash()],
			StartingTrophies: m.StartingTrophies,
		})
	}
	return result
}
