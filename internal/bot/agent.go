package bot

import (
	"bataille/internal/domain"
)

// Agent represents an autonomous bot player.
type Agent struct {
	ID       string
	Name     string
	Strategy Brain
}

// NewAgent builds an agent for the given identity with the brain matching its difficulty.
func NewAgent(identity BotIdentity) *Agent {
	brain, err := NewBrain(identity.Difficulty)
	if err != nil {
		brain = PassiveBrain{}
	}
	return &Agent{ID: identity.UserID, Name: identity.DisplayName, Strategy: brain}
}

// Play asks the agent for its move. Agents outside the match never use a special.
func (a *Agent) Play(m *domain.Match) Move {
	self, _ := m.Players(a.ID)
	if self == nil || a.Strategy == nil {
		return Move{Special: domain.SpecialNone}
	}
	move := a.Strategy.Decide(m, self)
	if move.Special == "" {
		move.Special = domain.SpecialNone
	}
	return move
}
