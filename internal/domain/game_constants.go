package domain

const (
	MinRank  = 2
	MaxRank  = 14
	DeckSize = 52
)
