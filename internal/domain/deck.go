package domain

import (
	"fmt"
	"strconv"
)

// Suit is one of the four French suits, encoded by its letter.
type Suit byte

const (
	SuitHearts   Suit = 'H'
	SuitDiamonds Suit = 'D'
	SuitClubs    Suit = 'C'
	SuitSpades   Suit = 'S'
)

// Suits lists the suits in deck construction order.
var Suits = [4]Suit{SuitHearts, SuitDiamonds, SuitClubs, SuitSpades}

// Valid reports whether s is a known suit letter.
func (s Suit) Valid() bool {
	switch s {
	case SuitHearts, SuitDiamonds, SuitClubs, SuitSpades:
		return true
	}
	return false
}

// Symbol returns the display glyph of the suit.
func (s Suit) Symbol() string {
	switch s {
	case SuitHearts:
		return "♥"
	case SuitDiamonds:
		return "♦"
	case SuitClubs:
		return "♣"
	case SuitSpades:
		return "♠"
	default:
		return "?"
	}
}

// Card is an immutable playing card. Rank runs from 2 to 14 (ace high).
type Card struct {
	Suit Suit
	Rank int
}

// ID returns the stable identifier of the card, e.g. "10H" or "14S".
func (c Card) ID() string {
	return strconv.Itoa(c.Rank) + string(rune(c.Suit))
}

// String renders the card for people, e.g. "10♥". Use ID for storage.
func (c Card) String() string {
	return strconv.Itoa(c.Rank) + c.Suit.Symbol()
}

// MarshalText encodes the card as its id so decks persist as arrays of strings.
func (c Card) MarshalText() ([]byte, error) {
	if !c.Suit.Valid() || c.Rank < MinRank || c.Rank > MaxRank {
		return nil, fmt.Errorf("%w: rank=%d suit=%q", ErrInvalidCard, c.Rank, rune(c.Suit))
	}
	return []byte(c.ID()), nil
}

// UnmarshalText decodes a card id.
func (c *Card) UnmarshalText(text []byte) error {
	card, err := ParseCard(string(text))
	if err != nil {
		return err
	}
	*c = card
	return nil
}

// ParseCard reconstructs a card from its id.
func ParseCard(id string) (Card, error) {
	if len(id) < 2 {
		return Card{}, fmt.Errorf("%w: %q", ErrInvalidCard, id)
	}
	suit := Suit(id[len(id)-1])
	if !suit.Valid() {
		return Card{}, fmt.Errorf("%w: %q", ErrInvalidCard, id)
	}
	rank, err := strconv.Atoi(id[:len(id)-1])
	if err != nil || rank < MinRank || rank > MaxRank {
		return Card{}, fmt.Errorf("%w: %q", ErrInvalidCard, id)
	}
	card := Card{Suit: suit, Rank: rank}
	if card.ID() != id {
		return Card{}, fmt.Errorf("%w: %q is not canonical", ErrInvalidCard, id)
	}
	return card, nil
}

// MustParseCards parses a list of ids and panics on failure. Intended for fixtures.
func MustParseCards(ids ...string) []Card {
	cards := make([]Card, 0, len(ids))
	for _, id := range ids {
		card, err := ParseCard(id)
		if err != nil {
			panic(err)
		}
		cards = append(cards, card)
	}
	return cards
}

// NewDeck returns the 52-card deck in a fixed order.
func NewDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for _, s := range Suits {
		for r := MinRank; r <= MaxRank; r++ {
			deck = append(deck, Card{Suit: s, Rank: r})
		}
	}
	return deck
}
