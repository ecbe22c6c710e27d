package domain

import (
	"fmt"
	"math/rand"
	"time"
)

// WinnerPolicy decides the winner when a match ends without a natural loser.
type WinnerPolicy string

const (
	PolicyScore WinnerPolicy = "score"
	PolicyCards WinnerPolicy = "cards"
)

// TieBreak settles a policy tie.
type TieBreak string

const (
	TieBreakRandom  TieBreak = "random"
	TieBreakPlayer1 TieBreak = "player1"
	TieBreakDraw    TieBreak = "draw"
)

// Rules holds every tunable constant of the game.
type Rules struct {
	AttackBonus          int
	DefenseBonus         int
	MaxCharges           int
	RapidStartingCharges int
	ChargeUnlockInterval int
	KrakenInterval       int
	RapidDuration        time.Duration
	RoundTimeout         time.Duration
	MaxTimeouts          int
	WinnerPolicy         WinnerPolicy
	TieBreak             TieBreak
	InactivityModes      []Mode
}

// DefaultRules returns the standard rule set.
func DefaultRules() Rules {
	return Rules{
		AttackBonus:          10,
		DefenseBonus:         10,
		MaxCharges:           3,
		RapidStartingCharges: 3,
		ChargeUnlockInterval: 10,
		KrakenInterval:       15,
		RapidDuration:        180 * time.Second,
		RoundTimeout:         10 * time.Second,
		MaxTimeouts:          6,
		WinnerPolicy:         PolicyScore,
		TieBreak:             TieBreakRandom,
		InactivityModes:      []Mode{ModeRapid},
	}
}

// Validate rejects rule sets that would break the game invariants.
func (r Rules) Validate() error {
	switch {
	case r.MaxCharges < 0:
		return fmt.Errorf("max charges must not be negative: %d", r.MaxCharges)
	case r.RapidStartingCharges < 0 || r.RapidStartingCharges > r.MaxCharges:
		return fmt.Errorf("rapid starting charges %d outside [0,%d]", r.RapidStartingCharges, r.MaxCharges)
	case r.ChargeUnlockInterval < 0 || r.KrakenInterval < 0:
		return fmt.Errorf("periodic intervals must not be negative")
	case r.RapidDuration <= 0:
		return fmt.Errorf("rapid duration must be positive: %s", r.RapidDuration)
	case r.RoundTimeout <= 0:
		return fmt.Errorf("round timeout must be positive: %s", r.RoundTimeout)
	case r.MaxTimeouts < 0:
		return fmt.Errorf("max timeouts must not be negative: %d", r.MaxTimeouts)
	}
	switch r.WinnerPolicy {
	case PolicyScore, PolicyCards:
	default:
		return fmt.Errorf("unknown winner policy %q", r.WinnerPolicy)
	}
	switch r.TieBreak {
	case TieBreakRandom, TieBreakPlayer1, TieBreakDraw:
	default:
		return fmt.Errorf("unknown tie break %q", r.TieBreak)
	}
	return nil
}

// StartingCharges returns the charges each player receives at match creation.
func (r Rules) StartingCharges(mode Mode) int {
	if mode.Timed() {
		return r.RapidStartingCharges
	}
	return 0
}

// Bonus returns the rank bonus granted by a special.
func (r Rules) Bonus(s Special) int {
	switch s {
	case SpecialAttack:
		return r.AttackBonus
	case SpecialDefense:
		return r.DefenseBonus
	default:
		return 0
	}
}

// WatchesInactivity reports whether the inactivity watchdog applies to mode.
func (r Rules) WatchesInactivity(mode Mode) bool {
	for _, m := range r.InactivityModes {
		if m == mode {
			return true
		}
	}
	return false
}

// DecideWinner applies the winner policy and tie-break. It returns nil for a draw.
func (r Rules) DecideWinner(m *Match, rng *rand.Rand) *string {
	a, b := m.Player1.Score, m.Player2.Score
	if r.WinnerPolicy == PolicyCards {
		a, b = len(m.Player1.Deck), len(m.Player2.Deck)
	}
	switch {
	case a > b:
		return &m.Player1.UserID
	case b > a:
		return &m.Player2.UserID
	}
	switch r.TieBreak {
	case TieBreakPlayer1:
		return &m.Player1.UserID
	case TieBreakDraw:
		return nil
	default:
		if rng != nil && rng.Intn(2) == 1 {
			return &m.Player2.UserID
		}
		return &m.Player1.UserID
	}
}
