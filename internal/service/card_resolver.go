package service

import (
	"context"
	"fmt"
	"royale-tracker/internal/domain"
	"royale-tracker/internal/repository"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// CardResolver maps upstream card identifiers to stored cards. Hits are memoized for the
// lifetime of the resolver and never evicted.
type CardResolver struct {
	repo   *repository.CardRepository
	logger zerolog.Logger

	mu    sync.RWMutex
	cache map[domain.CardIdentifier]domain.Card
	group singleflight.Group
}

func NewCardResolver(repo *repository.CardRepository, logger zerolog.Logger) *CardResolver {
	return &CardResolver{
		repo:   repo,
		logger: logger,
		cache:  make(map[domain.CardIdentifier]domain.Card),
	}
}

func (r *CardResolver) Resolve(ctx context.Context, id domain.CardIdentifier) (domain.Card, error) {
	r.mu.RLock()
	card, ok := r.cache[id]
	r.mu.RUnlock()
	if ok {
		return card, nil
	}

	v, err, _ := r.group.Do(id.String(), func() (any, error) {
		stored, err := r.repo.GetByIdentifier(ctx, id)
		if err != nil {
			return domain.Card{}, err
		}
		if stored == nil {
			return domain.Card{}, fmt.Errorf("%w: %s", domain.ErrCardNotFound, id)
		}

		r.mu.Lock()
		r.cache[id] = *stored
		r.mu.Unlock()
		return *stored, nil
	})
	if err != nil {
		return domain.Card{}, err
	}
	return v.(domain.Card), nil
}

// Warm loads the whole stored catalog into the cache.
func (r *CardResolver) Warm(ctx context.Context) error {
	cards, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to warm card cache: %w", err)
	}

	r.mu.Lock()
	for _, card := range cards {
		r.cache[card.Identifier()] = card
	}
	size := len(r.cache)
	r.mu.Unlock()

	r.logger.Info().Int("cards", size).Msg("card cache warmed")
	return nil
}

func (r *CardResolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}
