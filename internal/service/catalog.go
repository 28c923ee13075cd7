package service

import (
	"context"
	"fmt"
	"royale-tracker/internal/api"
	"royale-tracker/internal/constants"
	"royale-tracker/internal/domain"
	"royale-tracker/internal/repository"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

type CardCatalogSource interface {
	GetCards(ctx context.Context) (*api.CardsResponse, error)
}

// CatalogService mirrors the upstream card catalog into the cards table.
type CatalogService struct {
	source   CardCatalogSource
	db       *sqlx.DB
	cardRepo *repository.CardRepository
	resolver *CardResolver
	logger   zerolog.Logger
}

func NewCatalogService(source CardCatalogSource, db *sqlx.DB, cardRepo *repository.CardRepository, resolver *CardResolver, logger zerolog.Logger) *CatalogService {
	return &CatalogService{source: source, db: db, cardRepo: cardRepo, resolver: resolver, logger: logger}
}

// Refresh upserts every catalog card, plus an evolution row for cards that have one, and
// warms the resolver. It returns the number of rows written.
func (s *CatalogService) Refresh(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.CatalogTimeout)
	defer cancel()

	s.logger.Info().Msg("refreshing card catalog")

	catalog, err := s.source.GetCards(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to fetch card catalog")
		return 0, fmt.Errorf("failed to fetch card catalog: %w", err)
	}

	var cards []domain.Card
	for _, item := range catalog.Items {
		cards = append(cards, catalogCards(item, false)...)
	}
	for _, item := range catalog.SupportItems {
		cards = append(cards, catalogCards(item, true)...)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	repo := s.cardRepo.WithTx(tx)
	for i := range cards {
		if err := repo.Upsert(ctx, &cards[i]); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if err := s.resolver.Warm(ctx); err != nil {
		return 0, err
	}

	s.logger.Info().
		Int("items", len(catalog.Items)).
		Int("support_items", len(catalog.SupportItems)).
		Int("rows", len(cards)).
		Msg("card catalog refreshed")
	return len(cards), nil
}

func catalogCards(item api.CardItem, support bool) []domain.Card {
	base := domain.Card{
		RemoteID:   item.ID,
		Name:       item.Name,
		Rarity:     item.Rarity,
		ElixirCost: item.ElixirCost,
		MaxLevel:   item.MaxLevel,
		IsSupport:  support,
		IconURL:    item.IconURLs.Medium,
	}
	if !item.HasEvolution() {
		return []domain.Card{base}
	}

	evo := base
	evo.IsEvolution = true
	if item.IconURLs.EvolutionMedium != "" {
		evo.IconURL = item.IconURLs.EvolutionMedium
	}
	return []domain.Card{base, evo}
}
