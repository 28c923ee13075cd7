package repository

import (
	"context"
	"fmt"
	"royale-tracker/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

type GameModeRepository struct {
	db     DBTX
	logger zerolog.Logger
}

func NewGameModeRepository(sqlDB *sqlx.DB, logger zerolog.Logger) *GameModeRepository {
	return &GameModeRepository{
		db:     sqlDB,
		logger: logger,
	}
}

func (r *GameModeRepository) WithTx(tx *sqlx.Tx) *GameModeRepository {
	return &GameModeRepository{db: tx, logger: r.logger}
}

// Ensure stores the mode under its upstream id. An existing row keeps its name.
func (r *GameModeRepository) Ensure(ctx context.Context, mode domain.GameMode) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO game_modes (id, name) VALUES (?, ?) ON CONFLICT (id) DO NOTHING`,
		mode.ID, mode.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure game mode %d: %w", mode.ID, err)
	}
	return nil
}

func (r *GameModeRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM game_modes`); err != nil {
		return 0, fmt.Errorf("failed to count game modes: %w", err)
	}
	return count, nil
}
