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

type CardRepository struct {
	db     DBTX
	logger zerolog.Logger
}

func NewCardRepository(sqlDB *sqlx.DB, logger zerolog.Logger) *CardRepository {
	return &CardRepository{
		db:     sqlDB,
		logger: logger,
	}
}

func (r *CardRepository) WithTx(tx *sqlx.Tx) *CardRepository {
	return &CardRepository{db: tx, logger: r.logger}
}

type cardRow struct {
	ID          int64         `db:"id"`
	RemoteID    int64         `db:"remote_id"`
	IsEvolution bool          `db:"is_evolution"`
	Name        string        `db:"name"`
	Rarity      string        `db:"rarity"`
	ElixirCost  sql.NullInt64 `db:"elixir_cost"`
	MaxLevel    int           `db:"max_level"`
	IsSupport   bool          `db:"is_support"`
	IconURL     string        `db:"icon_url"`
	CreatedAt   time.Time     `db:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at"`
}

func (row cardRow) toDomain() domain.Card {
	card := domain.Card{
		ID:          row.ID,
		RemoteID:    row.RemoteID,
		IsEvolution: row.IsEvolution,
		Name:        row.Name,
		Rarity:      row.Rarity,
		MaxLevel:    row.MaxLevel,
		IsSupport:   row.IsSupport,
		IconURL:     row.IconURL,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.ElixirCost.Valid {
		cost := int(row.ElixirCost.Int64)
		card.ElixirCost = &cost
	}
	return card
}

const cardColumns = `id, remote_id, is_evolution, name, rarity, elixir_cost, max_level, is_support, icon_url, created_at, updated_at`

// Upsert inserts the card or refreshes its attributes, keyed by (remote_id, is_evolution).
func (r *CardRepository) Upsert(ctx context.Context, card *domain.Card) error {
	now := time.Now().UTC()

	var elixir sql.NullInt64
	if card.ElixirCost != nil {
		elixir = sql.NullInt64{Int64: int64(*card.ElixirCost), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cards (remote_id, is_evolution, name, rarity, elixir_cost, max_level, is_support, icon_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (remote_id, is_evolution) DO UPDATE SET
			name = excluded.name,
			rarity = excluded.rarity,
			elixir_cost = excluded.elixir_cost,
			max_level = excluded.max_level,
			is_support = excluded.is_support,
			icon_url = excluded.icon_url,
			updated_at = excluded.updated_at
	`,
		card.RemoteID,
		card.IsEvolution,
		card.Name,
		card.Rarity,
		elixir,
		card.MaxLevel,
		card.IsSupport,
		card.IconURL,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert card %s: %w", card.Identifier(), err)
	}
	return nil
}

// GetByIdentifier returns nil when no card matches.
func (r *CardRepository) GetByIdentifier(ctx context.Context, id domain.CardIdentifier) (*domain.Card, error) {
	var row cardRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+cardColumns+` FROM cards WHERE remote_id = ? AND is_evolution = ?`,
		id.RemoteID, id.IsEvolution,
	)
	if errors.Is(err, sql.ErrNoRows) {
		r.logger.Debug().Str("card", id.String()).Msg("card not found")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card %s: %w", id, err)
	}

	card := row.toDomain()
	return &card, nil
}

func (r *CardRepository) List(ctx context.Context) ([]domain.Card, error) {
	var rows []cardRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+cardColumns+` FROM cards ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}

	result := make([]domain.Card, len(rows))
	for i, row := range rows {
		result[i] = row.toDomain()
	}
	return result, nil
}
