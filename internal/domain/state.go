package domain

import (
	"fmt"
	"time"
)

// Phase represents the lifecycle stage of a match.
type Phase string

const (
	// PhaseWaiting is the only phase in which player intents are accepted.
	PhaseWaiting Phase = "WAITING"
	// PhaseResolving is held while a round is being computed.
	PhaseResolving Phase = "RESOLVING"
	// PhaseGameOver is terminal.
	PhaseGameOver Phase = "GAME_OVER"
)

var phaseTransitions = map[Phase][]Phase{
	PhaseWaiting:   {PhaseResolving, PhaseGameOver},
	PhaseResolving: {PhaseWaiting, PhaseGameOver},
	PhaseGameOver:  nil,
}

// CanTransitionTo reports whether next is a legal successor of p.
func (p Phase) CanTransitionTo(next Phase) bool {
	for _, allowed := range phaseTransitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Mode selects the match variant.
type Mode string

const (
	ModeClassic Mode = "classic"
	ModeRapid   Mode = "rapid"
	ModeDaily   Mode = "daily"
)

// ParseMode validates a client supplied mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeClassic, ModeRapid, ModeDaily:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Timed reports whether the mode runs an overall match clock.
func (m Mode) Timed() bool {
	return m == ModeRapid
}

// Special is the pending special ability selection of a player.
type Special string

const (
	SpecialNone    Special = "none"
	SpecialAttack  Special = "attack"
	SpecialDefense Special = "defense"
)

// ParseSpecial validates a client supplied special type. An empty string clears the selection.
func ParseSpecial(s string) (Special, error) {
	switch sp := Special(s); sp {
	case SpecialNone, SpecialAttack, SpecialDefense:
		return sp, nil
	case "":
		return SpecialNone, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSpecial, s)
	}
}

// DefeatReason explains how a match reached GAME_OVER.
type DefeatReason string

const (
	ReasonNormal     DefeatReason = "normal"
	ReasonInactivity DefeatReason = "inactivity"
	ReasonSurrender  DefeatReason = "surrender"
)

// PlayerState holds the per-seat state of a match.
type PlayerState struct {
	UserID         string  `json:"identity"`
	IsBot          bool    `json:"isBot"`
	Deck           []Card  `json:"deck"`
	Score          int     `json:"score"`
	SpecialCharges int     `json:"specialCharges"`
	IsLocked       bool    `json:"isLocked"`
	UsingSpecial   Special `json:"usingSpecial"`
	TimeoutCount   int     `json:"timeoutCount"`
	HasMomentum    bool    `json:"hasMomentum"`
	HasCooldown    bool    `json:"hasCooldown"`
	// SpentMomentum is set when this round's lock was paid with momentum instead of a charge.
	SpentMomentum bool `json:"spentMomentum"`
}

// RoundOutcome names the result of a single round.
type RoundOutcome string

const (
	OutcomePlayer1 RoundOutcome = "player1"
	OutcomePlayer2 RoundOutcome = "player2"
	OutcomeTie     RoundOutcome = "tie"
	// OutcomeNone is used when the round ended the match before any card was played.
	OutcomeNone RoundOutcome = "none"
)

// RoundSummary describes the last resolved round for client display.
type RoundSummary struct {
	Round            int             `json:"round"`
	Outcome          RoundOutcome    `json:"outcome"`
	Player1Card      *Card           `json:"player1Card,omitempty"`
	Player2Card      *Card           `json:"player2Card,omitempty"`
	Player1Special   Special         `json:"player1Special"`
	Player2Special   Special         `json:"player2Special"`
	Player1Effective int             `json:"player1Effective"`
	Player2Effective int             `json:"player2Effective"`
	ChargesUnlocked  bool            `json:"chargesUnlocked"`
	KrakenRemoved    map[string]Card `json:"krakenRemoved,omitempty"` // userID -> removed card
}

// Match is the authoritative aggregate of one session.
type Match struct {
	ID            string        `json:"id"`
	Version       int64         `json:"version"`
	Mode          Mode          `json:"mode"`
	Phase         Phase         `json:"phase"`
	Player1       PlayerState   `json:"player1"`
	Player2       PlayerState   `json:"player2"`
	Pot           []Card        `json:"pot"`
	RoundCount    int           `json:"roundCount"`
	StartedAt     time.Time     `json:"startedAt"`
	LastActionAt  time.Time     `json:"lastActionAt"`
	EndedAt       *time.Time    `json:"endedAt,omitempty"`
	RapidTimeLeft *int          `json:"rapidTimeLeft"`
	Winner        *string       `json:"winner"`
	DefeatReason  *DefeatReason `json:"defeatReason"`
	LastRound     *RoundSummary `json:"lastRound,omitempty"`
}
