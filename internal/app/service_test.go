package app

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"bataille/internal/bot"
	"bataille/internal/domain"
	"bataille/internal/ports"
)

var testStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestService() *Service {
	return NewService(domain.DefaultRules(), rand.New(rand.NewSource(42)))
}

func newGame(t *testing.T, svc *Service, mode domain.Mode, opponent string) *domain.Match {
	t.Helper()
	m, _, err := svc.CreateGame("game-1", mode, "alice", opponent, testStart)
	if err != nil {
		t.Fatalf("create game error: %v", err)
	}
	return m
}

func setDecks(m *domain.Match, deck1, deck2 []string) {
	m.Player1.Deck = domain.MustParseCards(deck1...)
	m.Player2.Deck = domain.MustParseCards(deck2...)
}

func findEvent(evs []Event, kind EventKind) (Event, bool) {
	for _, ev := range evs {
		if ev.Kind == kind {
			return ev, true
		}
	}
	return Event{}, false
}

func TestCreateGameDealsDecks(t *testing.T) {
	tests := []struct {
		mode     domain.Mode
		charges  int
		timeLeft *int
	}{
		{domain.ModeClassic, 0, nil},
		{domain.ModeDaily, 0, nil},
		{domain.ModeRapid, 3, intPtr(180)},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			svc := newTestService()
			m, evs, err := svc.CreateGame("game-1", tt.mode, "alice", "bob", testStart)
			if err != nil {
				t.Fatalf("create game error: %v", err)
			}
			if m.Phase != domain.PhaseWaiting || m.RoundCount != 1 || m.Version != 0 {
				t.Fatalf("unexpected initial match %+v", m)
			}
			if len(m.Player1.Deck) != 26 || len(m.Player2.Deck) != 26 || len(m.Pot) != 0 {
				t.Fatalf("deal = %d/%d", len(m.Player1.Deck), len(m.Player2.Deck))
			}
			seen := map[string]bool{}
			for _, c := range append(append([]domain.Card{}, m.Player1.Deck...), m.Player2.Deck...) {
				seen[c.ID()] = true
			}
			if len(seen) != domain.DeckSize {
				t.Fatalf("deal contains duplicates: %d distinct cards", len(seen))
			}
			if m.Player1.SpecialCharges != tt.charges || m.Player2.SpecialCharges != tt.charges {
				t.Errorf("charges = %d/%d, want %d", m.Player1.SpecialCharges, m.Player2.SpecialCharges, tt.charges)
			}
			if (tt.timeLeft == nil) != (m.RapidTimeLeft == nil) || (tt.timeLeft != nil && *tt.timeLeft != *m.RapidTimeLeft) {
				t.Errorf("rapidTimeLeft = %v, want %v", m.RapidTimeLeft, tt.timeLeft)
			}
			if _, ok := findEvent(evs, EventGameCreated); !ok {
				t.Error("missing game_created event")
			}
		})
	}
}

func TestCreateGameWithBot(t *testing.T) {
	for _, opponent := range []string{"", bot.SentinelOpponent} {
		svc := newTestService()
		m := newGame(t, svc, domain.ModeClassic, opponent)
		if !m.Player2.IsBot || !bot.IsBot(m.Player2.UserID) || m.Player2.UserID == bot.SentinelOpponent {
			t.Errorf("opponent %q: expected generated bot seat, got %+v", opponent, m.Player2.UserID)
		}
		if m.Player1.IsBot {
			t.Error("creator must not be a bot")
		}
	}

	svc := newTestService()
	_, evs, err := svc.CreateGame("g-bot", domain.ModeClassic, "alice", "", testStart)
	if err != nil {
		t.Fatal(err)
	}
	created, ok := findEvent(evs, EventGameCreated)
	if !ok || created.Payload.(GameCreatedPayload).BotName == "" {
		t.Errorf("bot games announce the bot's name: %+v", evs)
	}
	_, evs, _ = svc.CreateGame("g-human", domain.ModeClassic, "alice", "bob", testStart)
	if created, _ := findEvent(evs, EventGameCreated); created.Payload.(GameCreatedPayload).BotName != "" {
		t.Error("human games carry no bot name")
	}
}

func TestCreateGameValidation(t *testing.T) {
	svc := newTestService()
	tests := []struct {
		name     string
		mode     domain.Mode
		creator  string
		opponent string
		want     error
	}{
		{"unauthenticated", domain.ModeClassic, "", "bob", ErrUnauthenticated},
		{"invalid mode", "blitz", "alice", "bob", domain.ErrInvalidMode},
		{"self opponent", domain.ModeClassic, "alice", "alice", ErrInvalidOpponent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.CreateGame("g", tt.mode, tt.creator, tt.opponent, testStart)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLockCardResolvesWhenBothLocked(t *testing.T) {
	svc := newTestService()
	m := newGame(t, svc, domain.ModeClassic, "bob")
	setDecks(m, []string{"10H", "2C"}, []string{"5D", "3C"})

	evs, err := svc.LockCard(m, "alice", testStart.Add(time.Second))
	if err != nil {
		t.Fatalf("lock error: %v", err)
	}
	if _, ok := findEvent(evs, EventRoundResolved); ok || !m.Player1.IsLocked {
		t.Fatal("round must wait for the second lock")
	}
	if _, err := svc.LockCard(m, "alice", testStart.Add(time.Second)); !errors.Is(err, domain.ErrAlreadyLocked) {
		t.Fatalf("second lock err = %v", err)
	}

	evs, err = svc.LockCard(m, "bob", testStart.Add(2*time.Second))
	if err != nil {
		t.Fatalf("lock error: %v", err)
	}
	ev, ok := findEvent(evs, EventRoundResolved)
	if !ok {
		t.Fatal("missing round_resolved event")
	}
	if ev.Payload.(RoundResolvedPayload).Summary.Outcome != domain.OutcomePlayer1 {
		t.Errorf("outcome = %s", ev.Payload.(RoundResolvedPayload).Summary.Outcome)
	}
	if len(m.Player1.Deck) != 3 || len(m.Player2.Deck) != 1 || m.Player1.Score != 1 {
		t.Errorf("after round: %d/%d score %d", len(m.Player1.Deck), len(m.Player2.Deck), m.Player1.Score)
	}
	if m.RoundCount != 2 || m.Player1.IsLocked || m.Player2.IsLocked || !m.LastActionAt.Equal(testStart.Add(2*time.Second)) {
		t.Errorf("round not reset: %+v", m)
	}
}

func TestLockCardBotAnswersImmediately(t *testing.T) {
	svc := newTestService()
	m := newGame(t, svc, domain.ModeRapid, bot.SentinelOpponent)
	m.Player2.SpecialCharges = 3
	setDecks(m, []string{"7H", "9C"}, []string{"4D", "2C"})

	evs, err := svc.LockCard(m, "alice", testStart.Add(time.Second))
	if err != nil {
		t.Fatalf("lock error: %v", err)
	}
	locks := 0
	for _, ev := range evs {
		if ev.Kind == EventCardLocked {
			locks++
		}
	}
	if locks != 2 {
		t.Fatalf("expected the human and the bot lock, got %d", locks)
	}
	ev, ok := findEvent(evs, EventRoundResolved)
	if !ok {
		t.Fatal("bot game must resolve in the same call")
	}
	if ev.Payload.(RoundResolvedPayload).Summary.Player2Special != domain.SpecialNone || m.Player2.SpecialCharges != 3 {
		t.Error("bot must never spend a special")
	}
}

func TestLockCardRejections(t *testing.T) {
	svc := newTestService()
	m := newGame(t, svc, domain.ModeClassic, "bob")

	if _, err := svc.LockCard(m, "mallory", testStart); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("stranger err = %v", err)
	}
	if _, err := svc.LockCard(m, "", testStart); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("anonymous err = %v", err)
	}
	if _, err := svc.LockCard(nil, "alice", testStart); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("missing game err = %v", err)
	}
	if _, err := svc.Surrender(m, "bob", testStart); err != nil {
		t.Fatalf("surrender error: %v", err)
	}
	if _, err := svc.LockCard(m, "alice", testStart); !errors.Is(err, ErrGameOver) {
		t.Errorf("finished game err = %v", err)
	}
}

func TestLockCardAfterRapidDeadline(t *testing.T) {
	svc := newTestService()
	m := newGame(t, svc, domain.ModeRapid, "bob")
	m.Player1.Score, m.Player2.Score = 2, 5

	evs, err := svc.LockCard(m, "alice", testStart.Add(181*time.Second))
	if !errors.Is(err, ErrMatchClockExpired) {
		t.Fatalf("err = %v, want ErrMatchClockExpired", err)
	}
	if _, ok := findEvent(evs, EventGameEnded); !ok {
		t.Fatal("the expired match must be closed so it can be committed")
	}
	if m.Phase != domain.PhaseGameOver || *m.DefeatReason != domain.ReasonNormal || *m.Winner != "bob" {
		t.Errorf("unexpected end state %+v", m)
	}
	if *m.RapidTimeLeft != 0 {
		t.Errorf("rapidTimeLeft = %d", *m.RapidTimeLeft)
	}
}

func TestUseSpecial(t *testing.T) {
	svc := newTestService()

	classic := newGame(t, svc, domain.ModeClassic, "bob")
	if _, err := svc.UseSpecial(classic, "alice", domain.SpecialAttack, testStart); !errors.Is(err, domain.ErrNoSpecialAvailable) {
		t.Errorf("classic without charges err = %v", err)
	}

	rapid := newGame(t, svc, domain.ModeRapid, "bob")
	if _, err := svc.UseSpecial(rapid, "alice", "fireball", testStart); !errors.Is(err, domain.ErrInvalidSpecial) {
		t.Errorf("unknown special err = %v", err)
	}
	evs, err := svc.UseSpecial(rapid, "alice", domain.SpecialAttack, testStart.Add(time.Second))
	if err != nil {
		t.Fatalf("use special error: %v", err)
	}
	if len(evs) != 1 || evs[0].Recipients[0] != "alice" {
		t.Errorf("selection must only be reported to the caller: %+v", evs)
	}
	if _, err := svc.UseSpecial(rapid, "alice", domain.SpecialDefense, testStart); err != nil {
		t.Fatalf("changing the selection failed: %v", err)
	}
	if rapid.Player1.UsingSpecial != domain.SpecialDefense || rapid.Player1.SpecialCharges != 3 {
		t.Errorf("selection must not spend a charge: %+v", rapid.Player1)
	}
	if _, err := svc.UseSpecial(rapid, "alice", domain.SpecialNone, testStart); err != nil || rapid.Player1.UsingSpecial != domain.SpecialNone {
		t.Fatalf("clearing failed: %v", err)
	}

	if _, err := svc.UseSpecial(rapid, "alice", domain.SpecialAttack, testStart); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.LockCard(rapid, "alice", testStart.Add(2*time.Second)); err != nil {
		t.Fatal(err)
	}
	if rapid.Player1.SpecialCharges != 2 {
		t.Errorf("lock must spend one charge, have %d", rapid.Player1.SpecialCharges)
	}
	if _, err := svc.UseSpecial(rapid, "alice", domain.SpecialDefense, testStart); !errors.Is(err, domain.ErrAlreadyLocked) {
		t.Errorf("after lock err = %v", err)
	}
}

func TestSurrender(t *testing.T) {
	svc := newTestService()
	m := newGame(t, svc, domain.ModeDaily, "bob")

	evs, err := svc.Surrender(m, "alice", testStart.Add(time.Minute))
	if err != nil {
		t.Fatalf("surrender error: %v", err)
	}
	ev, ok := findEvent(evs, EventGameEnded)
	if !ok {
		t.Fatal("missing game_ended")
	}
	payload := ev.Payload.(GameEndedPayload)
	if *payload.Winner != "bob" || payload.DefeatReason != domain.ReasonSurrender {
		t.Errorf("payload = %+v", payload)
	}
	if _, err := svc.Surrender(m, "bob", testStart); !errors.Is(err, ErrGameOver) {
		t.Errorf("second surrender err = %v", err)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{ErrUnauthenticated, KindUnauthenticated},
		{fmt.Errorf("wrapped: %w", domain.ErrInvalidMode), KindInvalidArgument},
		{domain.ErrInvalidSpecial, KindInvalidArgument},
		{ErrGameNotFound, KindNotFound},
		{ports.ErrNotFound, KindNotFound},
		{ErrNotParticipant, KindPermissionDenied},
		{domain.ErrWrongPhase, KindFailedPrecondition},
		{domain.ErrAlreadyLocked, KindFailedPrecondition},
		{domain.ErrOnCooldown, KindFailedPrecondition},
		{ErrGameOver, KindFailedPrecondition},
		{ErrMatchClockExpired, KindDeadlineExceeded},
		{fmt.Errorf("%w: %w", ErrCommitFailed, ports.ErrVersionConflict), KindInternal},
		{errors.New("disk on fire"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func intPtr(v int) *int { return &v }
