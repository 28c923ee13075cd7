package domain

import (
	"errors"
	"fmt"
)

var (
	ErrCardNotFound = errors.New("card not found")
	ErrInvalidDeck  = errors.New("invalid deck")
	ErrEmptyTeam    = errors.New("team has no players")
)

// deck builder rejections, all of them are invalid decks
var (
	ErrDeckFull             = fmt.Errorf("%w: deck already holds the maximum number of cards", ErrInvalidDeck)
	ErrDuplicateCard        = fmt.Errorf("%w: a card with the same remote id is already in the deck", ErrInvalidDeck)
	ErrMultipleSupportCards = fmt.Errorf("%w: deck already holds a support card", ErrInvalidDeck)
)

// IsBattleSkippable reports whether err only invalidates the battle being recorded.
// Such battles are skipped by the crawler; anything else aborts the crawl.
func IsBattleSkippable(err error) bool {
	return errors.Is(err, ErrCardNotFound) ||
		errors.Is(err, ErrInvalidDeck) ||
		errors.Is(err, ErrEmptyTeam)
}
