package app

import "bataille/internal/domain"

// EventKind identifies emitted domain events for transport dispatch.
type EventKind string

const (
	EventGameCreated     EventKind = "game_created"
	EventSpecialSelected EventKind = "special_selected"
	EventCardLocked      EventKind = "card_locked"
	EventRoundResolved   EventKind = "round_resolved"
	EventChargesUnlocked EventKind = "charges_unlocked"
	EventKraken          EventKind = "kraken"
	EventPlayerTimedOut  EventKind = "player_timed_out"
	EventGameEnded       EventKind = "game_ended"
)

// Event is a domain/app event with optional targeted recipients.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []string // user IDs; empty means broadcast
}

type GameCreatedPayload struct {
	GameID  string      `json:"gameId"`
	Mode    domain.Mode `json:"mode"`
	Player1 string      `json:"player1"`
	Player2 string      `json:"player2"`
	BotGame bool        `json:"botGame"`
	BotName string      `json:"botName,omitempty"`
}

type SpecialSelectedPayload struct {
	UserID  string         `json:"userId"`
	Special domain.Special `json:"specialType"`
}

type CardLockedPayload struct {
	UserID string `json:"userId"`
	// Auto is set when the lock was made by a bot or the inactivity watchdog.
	Auto bool `json:"auto"`
}

type RoundResolvedPayload struct {
	Summary domain.RoundSummary `json:"summary"`
}

type ChargesUnlockedPayload struct {
	Round   int            `json:"round"`
	Charges map[string]int `json:"charges"`
}

type KrakenPayload struct {
	Round   int               `json:"round"`
	Removed map[string]string `json:"removed"` // userID -> card id
}

type PlayerTimedOutPayload struct {
	UserID       string `json:"userId"`
	TimeoutCount int    `json:"timeoutCount"`
	Defeated     bool   `json:"defeated"`
}

type GameEndedPayload struct {
	Winner       *string             `json:"winner"`
	DefeatReason domain.DefeatReason `json:"defeatReason"`
	Scores       map[string]int      `json:"scores"`
}
