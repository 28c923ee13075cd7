package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"royale-tracker/internal/domain"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

type PlayerRepository struct {
	db     DBTX
	logger zerolog.Logger
}

func NewPlayerRepository(sqlDB *sqlx.DB, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{
		db:     sqlDB,
		logger: logger,
	}
}

func (r *PlayerRepository) WithTx(tx *sqlx.Tx) *PlayerRepository {
	return &PlayerRepository{db: tx, logger: r.logger}
}

type playerRow struct {
	Tag           string       `db:"tag"`
	LastFetchedAt sql.NullTime `db:"last_fetched_at"`
	CreatedAt     time.Time    `db:"created_at"`
}

func (row playerRow) toDomain() domain.Player {
	player := domain.Player{
		Tag:       row.Tag,
		CreatedAt: row.CreatedAt,
	}
	if row.LastFetchedAt.Valid {
		fetched := row.LastFetchedAt.Time
		player.LastFetchedAt = &fetched
	}
	return player
}

// Ensure creates the player with an empty fetch stamp unless it already exists.
func (r *PlayerRepository) Ensure(ctx context.Context, tag string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO players (tag, last_fetched_at, created_at) VALUES (?, NULL, ?) ON CONFLICT (tag) DO NOTHING`,
		tag, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to ensure player %s: %w", tag, err)
	}
	return nil
}

// Get returns nil when the player is unknown.
func (r *PlayerRepository) Get(ctx context.Context, tag string) (*domain.Player, error) {
	var row playerRow
	err := r.db.GetContext(ctx, &row, `SELECT tag, last_fetched_at, created_at FROM players WHERE tag = ?`, tag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player %s: %w", tag, err)
	}

	player := row.toDomain()
	return &player, nil
}

// ListUnfetched returns every player that was never fetched, oldest first.
func (r *PlayerRepository) ListUnfetched(ctx context.Context) ([]domain.Player, error) {
	var rows []playerRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT tag, last_fetched_at, created_at
		FROM players
		WHERE last_fetched_at IS NULL
		ORDER BY created_at, tag
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unfetched players: %w", err)
	}

	result := make([]domain.Player, len(rows))
	for i, row := range rows {
		result[i] = row.toDomain()
	}
	return result, nil
}

func (r *PlayerRepository) SetLastFetchedAt(ctx context.Context, tag string, lastFetchedAt time.Time) error {
	r.logger.Debug().
		Str("player_tag", tag).
		Time("last_fetched_at", lastFetchedAt).
		Msg("setting last fetched at")

	res, err := r.db.ExecContext(ctx,
		`UPDATE players SET last_fetched_at = ? WHERE tag = ?`,
		lastFetchedAt.UTC(), tag,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("player_tag", tag).Msg("failed to set last fetched at")
		return fmt.Errorf("failed to set last fetched at for %s: %w", tag, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to set last fetched at for %s: %w", tag, sql.ErrNoRows)
	}
	return nil
}

func (r *PlayerRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM players`); err != nil {
		return 0, fmt.Errorf("failed to count players: %w", err)
	}
	return count, nil
}
