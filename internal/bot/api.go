package bot

import (
	"bataille/internal/domain"
)

// Move represents the decision made by the AI for the current round.
type Move struct {
	Special domain.Special
}

// Brain is the interface that all bot strategies must implement.
type Brain interface {
	Decide(m *domain.Match, self *domain.PlayerState) Move
}
