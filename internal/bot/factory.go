package bot

import (
	"fmt"

	"bataille/internal/domain"
)

// PassiveBrain locks every round immediately and never spends a charge.
type PassiveBrain struct{}

func (PassiveBrain) Decide(*domain.Match, *domain.PlayerState) Move {
	return Move{Special: domain.SpecialNone}
}

// AggressiveBrain attacks whenever the special can be paid for.
type AggressiveBrain struct{}

func (AggressiveBrain) Decide(m *domain.Match, self *domain.PlayerState) Move {
	if self.HasCooldown || (self.SpecialCharges == 0 && !self.HasMomentum) {
		return Move{Special: domain.SpecialNone}
	}
	return Move{Special: domain.SpecialAttack}
}

// NewBrain creates a new AI brain for the given difficulty.
func NewBrain(difficulty string) (Brain, error) {
	switch difficulty {
	case "", "easy", "passive":
		return PassiveBrain{}, nil
	case "hard", "aggressive":
		return AggressiveBrain{}, nil
	default:
		return nil, fmt.Errorf("unknown bot difficulty: %q", difficulty)
	}
}
