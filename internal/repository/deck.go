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

type DeckRepository struct {
	db     DBTX
	logger zerolog.Logger
}

func NewDeckRepository(sqlDB *sqlx.DB, logger zerolog.Logger) *DeckRepository {
	return &DeckRepository{
		db:     sqlDB,
		logger: logger,
	}
}

func (r *DeckRepository) WithTx(tx *sqlx.Tx) *DeckRepository {
	return &DeckRepository{db: tx, logger: r.logger}
}

type deckRow struct {
	ID        string    `db:"id"`
	Hash      string    `db:"hash"`
	CreatedAt time.Time `db:"created_at"`
}

// GetByHash returns nil when no deck has the hash.
func (r *DeckRepository) GetByHash(ctx context.Context, hash string) (*domain.Deck, error) {
	var row deckRow
	err := r.db.GetContext(ctx, &row, `SELECT id, hash, created_at FROM decks WHERE hash = ?`, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deck %s: %w", hash, err)
	}

	var cardIDs []int64
	if err := r.db.SelectContext(ctx, &cardIDs, `SELECT card_id FROM deck_cards WHERE deck_id = ? ORDER BY card_id`, row.ID); err != nil {
		return nil, fmt.Errorf("failed to get cards of deck %s: %w", row.ID, err)
	}

	return &domain.Deck{
		ID:        row.ID,
		Hash:      row.Hash,
		CardIDs:   cardIDs,
		CreatedAt: row.CreatedAt,
	}, nil
}

// Create inserts a deck and its card links. When another writer already stored the same hash
// the existing row is returned and created is false.
func (r *DeckRepository) Create(ctx context.Context, hash string, cardIDs []int64) (deck *domain.Deck, created bool, err error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate nanoid: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO decks (id, hash, created_at) VALUES (?, ?, ?) ON CONFLICT (hash) DO NOTHING`,
		id, hash, time.Now().UTC(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert deck %s: %w", hash, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert deck %s: %w", hash, err)
	}

	if affected == 1 {
		for _, cardID := range cardIDs {
			if _, err := r.db.ExecContext(ctx,
				`INSERT INTO deck_cards (deck_id, card_id) VALUES (?, ?)`,
				id, cardID,
			); err != nil {
				return nil, false, fmt.Errorf("failed to link card %d to deck %s: %w", cardID, id, err)
			}
		}
		r.logger.Debug().Str("deck_id", id).Str("hash", hash).Msg("deck created")
	} else {
		r.logger.Debug().Str("hash", hash).Msg("deck already stored by another writer")
	}

	deck, err = r.GetByHash(ctx, hash)
	if err != nil {
		return nil, false, err
	}
	if deck == nil {
		return nil, false, fmt.Errorf("deck %s missing after insert", hash)
	}
	return deck, affected == 1, nil
}

func (r *DeckRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM decks`); err != nil {
		return 0, fmt.Errorf("failed to count decks: %w", err)
	}
	return count, nil
}
