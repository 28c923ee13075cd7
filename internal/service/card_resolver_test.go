package service

import (
	"royale-tracker/internal/domain"
	"royale-tracker/internal/repository"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardResolver_CachesAfterFirstMiss(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	resolver := NewCardResolver(env.cards, zerolog.Nop())
	require.Equal(t, 0, resolver.Len())

	card, err := resolver.Resolve(ctx, domain.CardIdentifier{RemoteID: knight, IsEvolution: true})
	require.NoError(t, err)
	assert.True(t, card.IsEvolution)
	assert.Equal(t, 1, resolver.Len())

	// served from memory once the row is gone
	_, err = env.db.Exec("DELETE FROM cards WHERE remote_id = ? AND is_evolution = 1", knight)
	require.NoError(t, err)

	again, err := resolver.Resolve(ctx, domain.CardIdentifier{RemoteID: knight, IsEvolution: true})
	require.NoError(t, err)
	assert.Equal(t, card, again)
}

func TestCardResolver_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.resolver.Resolve(t.Context(), domain.CardIdentifier{RemoteID: 99999999})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCardNotFound)
	assert.Contains(t, err.Error(), "99999999-0")

	// the base form exists but no evolution of a support card does
	_, err = env.resolver.Resolve(t.Context(), domain.CardIdentifier{RemoteID: towerPrincess, IsEvolution: true})
	assert.ErrorIs(t, err, domain.ErrCardNotFound)
}

func TestCardResolver_ConcurrentResolve(t *testing.T) {
	env := newTestEnv(t)
	resolver := NewCardResolver(repository.NewCardRepository(env.db, zerolog.Nop()), zerolog.Nop())

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := resolver.Resolve(t.Context(), domain.CardIdentifier{RemoteID: knight + int64(i%4)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 4, resolver.Len())
}
