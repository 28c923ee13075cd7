package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"royale-tracker/internal/constants"
	"royale-tracker/internal/domain"
	"royale-tracker/internal/repository"
	"slices"
	"strconv"
	"strings"
)

// DeckBuilder accumulates the cards of one player's deck. A deck is valid once it holds
// constants.DeckSize cards with distinct remote ids, one of them a support card.
type DeckBuilder struct {
	resolver *CardResolver
	cards    []domain.Card
	remote   map[int64]struct{}
	support  int
}

func NewDeckBuilder(resolver *CardResolver) *DeckBuilder {
	return &DeckBuilder{
		resolver: resolver,
		cards:    make([]domain.Card, 0, constants.DeckSize),
		remote:   make(map[int64]struct{}, constants.DeckSize),
	}
}

func (b *DeckBuilder) AddCard(ctx context.Context, id domain.CardIdentifier) error {
	card, err := b.resolver.Resolve(ctx, id)
	if err != nil {
		return err
	}

	if len(b.cards) >= constants.DeckSize {
		return fmt.Errorf("add %s: %w", id, domain.ErrDeckFull)
	}
	if _, dup := b.remote[card.RemoteID]; dup {
		return fmt.Errorf("add %s: %w", id, domain.ErrDuplicateCard)
	}
	if card.IsSupport && b.support >= constants.DeckSupportCards {
		return fmt.Errorf("add %s: %w", id, domain.ErrMultipleSupportCards)
	}

	b.cards = append(b.cards, card)
	b.remote[card.RemoteID] = struct{}{}
	if card.IsSupport {
		b.support++
	}
	return nil
}

func (b *DeckBuilder) Len() int {
	return len(b.cards)
}

func (b *DeckBuilder) IsValid() bool {
	return len(b.cards) == constants.DeckSize &&
		len(b.remote) == constants.DeckSize &&
		b.support == constants.DeckSupportCards
}

// CardIDs returns the internal ids of the accumulated cards in ascending order.
func (b *DeckBuilder) CardIDs() []int64 {
	ids := make([]int64, len(b.cards))
	for i, card := range b.cards {
		ids[i] = card.ID
	}
	slices.Sort(ids)
	return ids
}

// Hash is the hex sha256 of the sorted internal card ids joined by "-".
func (b *DeckBuilder) Hash() string {
	ids := b.CardIDs()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "-")))
	return hex.EncodeToString(sum[:])
}

// GetOrCreate returns the stored deck with this card set, creating it when absent.
func (b *DeckBuilder) GetOrCreate(ctx context.Context, decks *repository.DeckRepository) (*domain.Deck, error) {
	if !b.IsValid() {
		return nil, fmt.Errorf("%w: %d cards, %d support", domain.ErrInvalidDeck, len(b.cards), b.support)
	}

	hash := b.Hash()
	deck, err := decks.GetByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if deck != nil {
		return deck, nil
	}

	deck, _, err = decks.Create(ctx, hash, b.CardIDs())
	if err != nil {
		return nil, err
	}
	return deck, nil
}
