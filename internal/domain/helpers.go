package domain

// CardIDs converts cards to their ids.
func CardIDs(cards []Card) []string {
	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.ID()
	}
	return ids
}

// SplitDeck deals a deck into two independent halves.
func SplitDeck(deck []Card) ([]Card, []Card) {
	half := len(deck) / 2
	first := append([]Card{}, deck[:half]...)
	second := append([]Card{}, deck[half:]...)
	return first, second
}

// LowestRankIndex returns the index of the first card with the lowest rank, or -1 for an empty deck.
func LowestRankIndex(deck []Card) int {
	idx := -1
	for i, c := range deck {
		if idx == -1 || c.Rank < deck[idx].Rank {
			idx = i
		}
	}
	return idx
}

// RemoveAt returns a copy of deck without the card at index i.
func RemoveAt(deck []Card, i int) []Card {
	out := make([]Card, 0, len(deck)-1)
	out = append(out, deck[:i]...)
	return append(out, deck[i+1:]...)
}

func cloneCards(cards []Card) []Card {
	if cards == nil {
		return nil
	}
	return append(make([]Card, 0, len(cards)), cards...)
}
