package domain

import (
	"fmt"
	"time"
)

// Players returns the seat of userID and the opposing seat. Both are nil when userID is not a participant.
func (m *Match) Players(userID string) (*PlayerState, *PlayerState) {
	switch {
	case userID == "":
		return nil, nil
	case m.Player1.UserID == userID:
		return &m.Player1, &m.Player2
	case m.Player2.UserID == userID:
		return &m.Player2, &m.Player1
	default:
		return nil, nil
	}
}

// IsParticipant reports whether userID occupies one of the two seats.
func (m *Match) IsParticipant(userID string) bool {
	p, _ := m.Players(userID)
	return p != nil
}

// Seats returns both seats in order.
func (m *Match) Seats() [2]*PlayerState {
	return [2]*PlayerState{&m.Player1, &m.Player2}
}

// BothLocked reports whether both seats have committed their card.
func (m *Match) BothLocked() bool {
	return m.Player1.IsLocked && m.Player2.IsLocked
}

// CardsInPlay counts the cards held in both decks and the pot.
func (m *Match) CardsInPlay() int {
	return len(m.Player1.Deck) + len(m.Player2.Deck) + len(m.Pot)
}

// TransitionTo moves the match to next if the phase table allows it.
func (m *Match) TransitionTo(next Phase) error {
	if !m.Phase.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.Phase, next)
	}
	m.Phase = next
	return nil
}

// Finish closes the match. winner is nil for a draw.
func (m *Match) Finish(winner *string, reason DefeatReason, now time.Time) error {
	if err := m.TransitionTo(PhaseGameOver); err != nil {
		return err
	}
	if winner != nil {
		w := *winner
		m.Winner = &w
	} else {
		m.Winner = nil
	}
	m.DefeatReason = &reason
	m.EndedAt = &now
	m.Player1.IsLocked, m.Player2.IsLocked = false, false
	m.Player1.UsingSpecial, m.Player2.UsingSpecial = SpecialNone, SpecialNone
	return nil
}

// Clone returns a deep copy safe to mutate independently of m.
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	c.Player1 = m.Player1.clone()
	c.Player2 = m.Player2.clone()
	c.Pot = cloneCards(m.Pot)
	if m.EndedAt != nil {
		t := *m.EndedAt
		c.EndedAt = &t
	}
	if m.RapidTimeLeft != nil {
		v := *m.RapidTimeLeft
		c.RapidTimeLeft = &v
	}
	if m.Winner != nil {
		w := *m.Winner
		c.Winner = &w
	}
	if m.DefeatReason != nil {
		r := *m.DefeatReason
		c.DefeatReason = &r
	}
	if m.LastRound != nil {
		c.LastRound = m.LastRound.clone()
	}
	return &c
}

// ViewFor returns a copy of the match as userID may see it: the opponent's
// pending special stays hidden until the round resolves, including what a lock
// already paid for it.
func (m *Match) ViewFor(userID string) *Match {
	v := m.Clone()
	if v == nil {
		return nil
	}
	if _, opp := v.Players(userID); opp != nil {
		hideSpecial(opp, v.Phase)
	}
	return v
}

// hideSpecial rolls a seat back to its pre-lock special economy.
func hideSpecial(p *PlayerState, phase Phase) {
	if p.IsLocked && phase == PhaseWaiting && p.UsingSpecial != SpecialNone {
		if p.SpentMomentum {
			p.HasMomentum = true
		} else {
			p.SpecialCharges++
		}
	}
	p.UsingSpecial = SpecialNone
	p.SpentMomentum = false
}

func (p PlayerState) clone() PlayerState {
	p.Deck = cloneCards(p.Deck)
	return p
}

func (s *RoundSummary) clone() *RoundSummary {
	c := *s
	if s.Player1Card != nil {
		card := *s.Player1Card
		c.Player1Card = &card
	}
	if s.Player2Card != nil {
		card := *s.Player2Card
		c.Player2Card = &card
	}
	if s.KrakenRemoved != nil {
		c.KrakenRemoved = make(map[string]Card, len(s.KrakenRemoved))
		for k, v := range s.KrakenRemoved {
			c.KrakenRemoved[k] = v
		}
	}
	return &c
}
