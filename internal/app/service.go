package app

import (
	"math/rand"
	"sync"
	"time"

	"bataille/internal/bot"
	"bataille/internal/domain"
)

// Service contains the Bataille use-cases operating on domain state.
// Every operation mutates the match it is given; callers pass a working copy and
// commit it only when events were produced.
type Service struct {
	rules domain.Rules

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// NewService constructs a Service with provided rng or a time-seeded default.
func NewService(rules domain.Rules, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{rules: rules, rng: rng}
}

// Rules returns the rule set the service was built with.
func (s *Service) Rules() domain.Rules {
	return s.rules
}

// CreateGame shuffles and deals a new match. An empty opponent or bot.SentinelOpponent starts a bot match.
func (s *Service) CreateGame(gameID string, mode domain.Mode, creatorID, opponentID string, now time.Time) (*domain.Match, []Event, error) {
	if creatorID == "" {
		return nil, nil, ErrUnauthenticated
	}
	if _, err := domain.ParseMode(string(mode)); err != nil {
		return nil, nil, err
	}

	botGame := opponentID == "" || opponentID == bot.SentinelOpponent
	var botName string
	if botGame {
		s.mu.Lock()
		identity := bot.PickIdentity(s.rng)
		s.mu.Unlock()
		opponentID = identity.UserID
		if botName = bot.GetBotDisplayName(opponentID); botName == "" {
			botName = identity.DisplayName
		}
	} else if opponentID == creatorID {
		return nil, nil, ErrInvalidOpponent
	}

	deck := domain.NewDeck()
	s.shuffle(deck)
	first, second := domain.SplitDeck(deck)
	charges := s.rules.StartingCharges(mode)

	m := &domain.Match{
		ID:           gameID,
		Mode:         mode,
		Phase:        domain.PhaseWaiting,
		Player1:      newPlayer(creatorID, first, charges, false),
		Player2:      newPlayer(opponentID, second, charges, botGame),
		Pot:          []domain.Card{},
		RoundCount:   1,
		StartedAt:    now,
		LastActionAt: now,
	}
	s.refreshClock(m, now)

	events := []Event{{
		Kind: EventGameCreated,
		Payload: GameCreatedPayload{
			GameID:  gameID,
			Mode:    mode,
			Player1: creatorID,
			Player2: opponentID,
			BotGame: botGame,
			BotName: botName,
		},
	}}
	return m, events, nil
}

func newPlayer(userID string, deck []domain.Card, charges int, isBot bool) domain.PlayerState {
	return domain.PlayerState{
		UserID:         userID,
		IsBot:          isBot,
		Deck:           deck,
		SpecialCharges: charges,
		UsingSpecial:   domain.SpecialNone,
	}
}

// LockCard commits the caller's head card for this round. When the opponent is a bot it
// locks immediately, and the round resolves as soon as both seats are locked.
func (s *Service) LockCard(m *domain.Match, userID string, now time.Time) ([]Event, error) {
	p, _, err := s.actor(m, userID)
	if err != nil {
		return nil, err
	}
	if m.Phase != domain.PhaseWaiting {
		return nil, domain.ErrWrongPhase
	}
	if s.clockExpired(m, now) {
		events, err := s.expire(m, now)
		if err != nil {
			return nil, err
		}
		return events, ErrMatchClockExpired
	}
	if p.IsLocked {
		return nil, domain.ErrAlreadyLocked
	}

	p.TimeoutCount = 0
	events := s.lock(m, p, now, false)
	return s.afterLock(m, events, now)
}

// UseSpecial selects, changes or clears (domain.SpecialNone) the caller's pending special.
func (s *Service) UseSpecial(m *domain.Match, userID string, kind domain.Special, now time.Time) ([]Event, error) {
	kind, err := domain.ParseSpecial(string(kind))
	if err != nil {
		return nil, err
	}
	p, _, err := s.actor(m, userID)
	if err != nil {
		return nil, err
	}
	if m.Phase != domain.PhaseWaiting {
		return nil, domain.ErrWrongPhase
	}
	if err := domain.SelectSpecial(p, kind); err != nil {
		return nil, err
	}
	// A selection is not an action for the inactivity watchdog; only locks are.
	s.refreshClock(m, now)

	return []Event{{
		Kind:       EventSpecialSelected,
		Payload:    SpecialSelectedPayload{UserID: userID, Special: kind},
		Recipients: []string{userID},
	}}, nil
}

// Surrender ends the match in favour of the opponent.
func (s *Service) Surrender(m *domain.Match, userID string, now time.Time) ([]Event, error) {
	_, opp, err := s.actor(m, userID)
	if err != nil {
		return nil, err
	}
	winner := opp.UserID
	if err := m.Finish(&winner, domain.ReasonSurrender, now); err != nil {
		return nil, err
	}
	s.refreshClock(m, now)
	return []Event{gameEnded(m)}, nil
}

// actor resolves the caller's seat and rejects intents on finished matches.
func (s *Service) actor(m *domain.Match, userID string) (*domain.PlayerState, *domain.PlayerState, error) {
	if userID == "" {
		return nil, nil, ErrUnauthenticated
	}
	if m == nil {
		return nil, nil, ErrGameNotFound
	}
	p, opp := m.Players(userID)
	if p == nil {
		return nil, nil, ErrNotParticipant
	}
	if m.Phase == domain.PhaseGameOver {
		return nil, nil, ErrGameOver
	}
	return p, opp, nil
}

func (s *Service) lock(m *domain.Match, p *domain.PlayerState, now time.Time, auto bool) []Event {
	domain.CommitSpecial(p)
	p.IsLocked = true
	m.LastActionAt = now
	return []Event{{
		Kind:    EventCardLocked,
		Payload: CardLockedPayload{UserID: p.UserID, Auto: auto},
	}}
}

// afterLock lets bot seats answer and resolves the round once both seats are locked.
func (s *Service) afterLock(m *domain.Match, events []Event, now time.Time) ([]Event, error) {
	for _, seat := range m.Seats() {
		if seat.IsBot && !seat.IsLocked {
			identity, ok := bot.GetBotConfig(seat.UserID)
			if !ok {
				identity = bot.BotIdentity{UserID: seat.UserID}
			}
			move := bot.NewAgent(identity).Play(m)
			if err := domain.SelectSpecial(seat, move.Special); err != nil {
				seat.UsingSpecial = domain.SpecialNone
			}
			events = append(events, s.lock(m, seat, now, true)...)
		}
	}
	if m.BothLocked() {
		resolved, err := s.resolve(m, now)
		if err != nil {
			return nil, err
		}
		events = append(events, resolved...)
	}
	s.refreshClock(m, now)
	return events, nil
}

func (s *Service) resolve(m *domain.Match, now time.Time) ([]Event, error) {
	s.mu.Lock()
	summary, err := domain.Resolve(m, s.rules, s.rng, now)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	m.LastActionAt = now

	events := []Event{{Kind: EventRoundResolved, Payload: RoundResolvedPayload{Summary: *summary}}}
	if summary.ChargesUnlocked {
		events = append(events, Event{
			Kind: EventChargesUnlocked,
			Payload: ChargesUnlockedPayload{
				Round:   summary.Round,
				Charges: map[string]int{m.Player1.UserID: m.Player1.SpecialCharges, m.Player2.UserID: m.Player2.SpecialCharges},
			},
		})
	}
	if len(summary.KrakenRemoved) > 0 {
		removed := make(map[string]string, len(summary.KrakenRemoved))
		for userID, card := range summary.KrakenRemoved {
			removed[userID] = card.ID()
		}
		events = append(events, Event{Kind: EventKraken, Payload: KrakenPayload{Round: summary.Round, Removed: removed}})
	}
	if m.Phase == domain.PhaseGameOver {
		events = append(events, gameEnded(m))
	}
	return events, nil
}

func (s *Service) shuffle(deck []domain.Card) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
}

func gameEnded(m *domain.Match) Event {
	var reason domain.DefeatReason
	if m.DefeatReason != nil {
		reason = *m.DefeatReason
	}
	return Event{
		Kind: EventGameEnded,
		Payload: GameEndedPayload{
			Winner:       m.Winner,
			DefeatReason: reason,
			Scores:       map[string]int{m.Player1.UserID: m.Player1.Score, m.Player2.UserID: m.Player2.Score},
		},
	}
}
