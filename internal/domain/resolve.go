package domain

import (
	"math/rand"
	"time"
)

// Resolve plays the round once both players are locked. It mutates m in place and
// leaves it either WAITING for the next round or GAME_OVER.
// rng is only consulted by the random tie-break when both decks run out together.
func Resolve(m *Match, rules Rules, rng *rand.Rand, now time.Time) (*RoundSummary, error) {
	if m.Phase != PhaseWaiting {
		return nil, ErrWrongPhase
	}
	if !m.BothLocked() {
		return nil, ErrNotBothLocked
	}
	if err := m.TransitionTo(PhaseResolving); err != nil {
		return nil, err
	}

	p1, p2 := &m.Player1, &m.Player2
	summary := &RoundSummary{
		Round:          m.RoundCount,
		Outcome:        OutcomeNone,
		Player1Special: p1.UsingSpecial,
		Player2Special: p2.UsingSpecial,
	}
	m.LastRound = summary

	if ended, err := finishIfExhausted(m, rules, rng, now); ended || err != nil {
		return summary, err
	}

	c1, c2 := p1.Deck[0], p2.Deck[0]
	e1 := c1.Rank + rules.Bonus(p1.UsingSpecial)
	e2 := c2.Rank + rules.Bonus(p2.UsingSpecial)
	summary.Player1Card, summary.Player2Card = &c1, &c2
	summary.Player1Effective, summary.Player2Effective = e1, e2

	p1.Deck = p1.Deck[1:]
	p2.Deck = p2.Deck[1:]

	switch {
	case e1 == e2:
		m.Pot = append(m.Pot, c1, c2)
		summary.Outcome = OutcomeTie
	case e1 > e2:
		takeTrick(m, p1, c1, c2)
		summary.Outcome = OutcomePlayer1
	default:
		takeTrick(m, p2, c2, c1)
		summary.Outcome = OutcomePlayer2
	}

	settleSpecials(p1, summary.Outcome == OutcomePlayer1)
	settleSpecials(p2, summary.Outcome == OutcomePlayer2)

	applyPeriodicEvents(m, rules, summary)

	if ended, err := finishIfExhausted(m, rules, rng, now); ended || err != nil {
		return summary, err
	}

	for _, p := range m.Seats() {
		p.IsLocked = false
		p.UsingSpecial = SpecialNone
	}
	m.RoundCount++
	return summary, m.TransitionTo(PhaseWaiting)
}

func takeTrick(m *Match, winner *PlayerState, own, taken Card) {
	deck := make([]Card, 0, len(winner.Deck)+len(m.Pot)+2)
	deck = append(deck, winner.Deck...)
	deck = append(deck, m.Pot...)
	winner.Deck = append(deck, own, taken)
	winner.Score++
	m.Pot = []Card{}
}

func finishIfExhausted(m *Match, rules Rules, rng *rand.Rand, now time.Time) (bool, error) {
	empty1, empty2 := len(m.Player1.Deck) == 0, len(m.Player2.Deck) == 0
	var winner *string
	switch {
	case empty1 && empty2:
		winner = rules.DecideWinner(m, rng)
	case empty1:
		winner = &m.Player2.UserID
	case empty2:
		winner = &m.Player1.UserID
	default:
		return false, nil
	}
	return true, m.Finish(winner, ReasonNormal, now)
}
