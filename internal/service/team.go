package service

import (
	"context"
	"fmt"
	"royale-tracker/internal/api"
	"royale-tracker/internal/domain"
)

// Team is one side of a battle with every member's deck already resolved and validated.
type Team struct {
	Crowns  int
	Members []TeamMember
}

type TeamMember struct {
	PlayerTag        string
	Deck             *DeckBuilder
	StartingTrophies *int
}

// Outcome compares crowns with the opposing side.
func (t *Team) Outcome(opponent *Team) domain.Outcome {
	switch {
	case t.Crowns > opponent.Crowns:
		return domain.OutcomeWin
	case t.Crowns < opponent.Crowns:
		return domain.OutcomeLoss
	default:
		return domain.OutcomeDraw
	}
}

type TeamMapper struct {
	resolver *CardResolver
}

func NewTeamMapper(resolver *CardResolver) *TeamMapper {
	return &TeamMapper{resolver: resolver}
}

// BuildTeam maps one side of a battle payload. All players on a side share the crown count,
// so it is read from the first one.
func (m *TeamMapper) BuildTeam(ctx context.Context, players []api.PlayerBattleData) (*Team, error) {
	if len(players) == 0 {
		return nil, domain.ErrEmptyTeam
	}

	team := &Team{
		Crowns:  players[0].Crowns,
		Members: make([]TeamMember, 0, len(players)),
	}

	for _, p := range players {
		deck := NewDeckBuilder(m.resolver)

		refs := make([]api.CardRef, 0, len(p.Cards)+len(p.SupportCards))
		refs = append(refs, p.Cards...)
		refs = append(refs, p.SupportCards...)

		for _, ref := range refs {
			id := domain.CardIdentifier{RemoteID: ref.ID, IsEvolution: ref.IsEvolution()}
			if err := deck.AddCard(ctx, id); err != nil {
				return nil, fmt.Errorf("deck of %s: %w", p.Tag, err)
			}
		}
		if !deck.IsValid() {
			return nil, fmt.Errorf("deck of %s: %w: %d cards", p.Tag, domain.ErrInvalidDeck, deck.Len())
		}

		team.Members = append(team.Members, TeamMember{
			PlayerTag:        p.Tag,
			Deck:             deck,
			StartingTrophies: p.StartingTrophies,
		})
	}

	return team, nil
}
