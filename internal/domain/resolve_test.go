package domain

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"reflect"
	"testing"
)

func lockBoth(t *testing.T, m *Match, s1, s2 Special) {
	t.Helper()
	if err := SelectSpecial(&m.Player1, s1); err != nil {
		t.Fatalf("player1 select %s: %v", s1, err)
	}
	if err := SelectSpecial(&m.Player2, s2); err != nil {
		t.Fatalf("player2 select %s: %v", s2, err)
	}
	CommitSpecial(&m.Player1)
	CommitSpecial(&m.Player2)
	m.Player1.IsLocked, m.Player2.IsLocked = true, true
}

func TestResolveOutrightWin(t *testing.T) {
	m := newTestMatch(ModeClassic, []string{"10H", "2C"}, []string{"5D", "3C"})
	lockBoth(t, m, SpecialNone, SpecialNone)

	summary, err := Resolve(m, DefaultRules(), nil, m.StartedAt)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if summary.Outcome != OutcomePlayer1 {
		t.Fatalf("outcome = %s", summary.Outcome)
	}
	if got := CardIDs(m.Player1.Deck); !reflect.DeepEqual(got, []string{"2C", "10H", "5D"}) {
		t.Errorf("player1 deck = %v", got)
	}
	if got := CardIDs(m.Player2.Deck); !reflect.DeepEqual(got, []string{"3C"}) {
		t.Errorf("player2 deck = %v", got)
	}
	if m.Player1.Score != 1 || m.Player2.Score != 0 || len(m.Pot) != 0 {
		t.Errorf("score/pot = %d/%d/%d", m.Player1.Score, m.Player2.Score, len(m.Pot))
	}
	if m.Phase != PhaseWaiting || m.RoundCount != 2 || m.Player1.IsLocked || m.Player2.IsLocked {
		t.Errorf("round was not reset: %+v", m)
	}
}

func TestResolveTieFillsPotAndNextWinnerTakesIt(t *testing.T) {
	m := newTestMatch(ModeClassic, []string{"7H", "9H", "2S"}, []string{"7D", "4D", "3S"})
	rules := DefaultRules()

	lockBoth(t, m, SpecialNone, SpecialNone)
	summary, err := Resolve(m, rules, nil, m.StartedAt)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if summary.Outcome != OutcomeTie {
		t.Fatalf("outcome = %s", summary.Outcome)
	}
	if got := CardIDs(m.Pot); !reflect.DeepEqual(got, []string{"7H", "7D"}) {
		t.Errorf("pot = %v", got)
	}
	if len(m.Player1.Deck) != 2 || len(m.Player2.Deck) != 2 || m.Player1.Score != 0 || m.Player2.Score != 0 {
		t.Errorf("tie must only move the heads into the pot")
	}
	if m.Player1.HasMomentum || m.Player2.HasMomentum {
		t.Error("a tie never grants momentum")
	}

	lockBoth(t, m, SpecialNone, SpecialNone)
	if _, err := Resolve(m, rules, nil, m.StartedAt); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := CardIDs(m.Player1.Deck); !reflect.DeepEqual(got, []string{"2S", "7H", "7D", "9H", "4D"}) {
		t.Errorf("player1 deck = %v", got)
	}
	if len(m.Pot) != 0 {
		t.Errorf("pot not cleared: %v", CardIDs(m.Pot))
	}
}

func TestResolveAttackGrantsMomentumThenCooldown(t *testing.T) {
	m := newTestMatch(ModeRapid, []string{"3H", "2H", "2D", "14H"}, []string{"8D", "13D", "13C", "4C"})
	m.Player1.SpecialCharges = 3
	rules := DefaultRules()

	// Round 1: 3+10 beats 8 with a charge.
	lockBoth(t, m, SpecialAttack, SpecialNone)
	summary, err := Resolve(m, rules, nil, m.StartedAt)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if summary.Player1Effective != 13 || summary.Player2Effective != 8 || summary.Outcome != OutcomePlayer1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if m.Player1.SpecialCharges != 2 || !m.Player1.HasMomentum || m.Player1.HasCooldown {
		t.Fatalf("after round 1: %+v", m.Player1)
	}

	// Round 2: momentum pays for the special, no charge is consumed.
	lockBoth(t, m, SpecialDefense, SpecialNone)
	if m.Player1.SpecialCharges != 2 || m.Player1.HasMomentum {
		t.Fatalf("momentum must be spent before charges: %+v", m.Player1)
	}
	if _, err := Resolve(m, rules, nil, m.StartedAt); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !m.Player1.HasCooldown || m.Player1.HasMomentum {
		t.Fatalf("after round 2: %+v", m.Player1)
	}

	// Round 3: cooldown blocks activation for exactly one round.
	if err := SelectSpecial(&m.Player1, SpecialAttack); err != ErrOnCooldown {
		t.Fatalf("expected ErrOnCooldown, got %v", err)
	}
	lockBoth(t, m, SpecialNone, SpecialNone)
	if _, err := Resolve(m, rules, nil, m.StartedAt); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if m.Player1.HasCooldown {
		t.Fatal("cooldown must last one round")
	}
	if err := SelectSpecial(&m.Player1, SpecialAttack); err != nil {
		t.Fatalf("special should be available again: %v", err)
	}
}

func TestResolveUnusedMomentumExpires(t *testing.T) {
	m := newTestMatch(ModeRapid, []string{"3H", "5H", "6H"}, []string{"8D", "9D", "10D"})
	m.Player1.SpecialCharges = 1
	rules := DefaultRules()

	lockBoth(t, m, SpecialAttack, SpecialNone)
	if _, err := Resolve(m, rules, nil, m.StartedAt); err != nil {
		t.Fatal(err)
	}
	if !m.Player1.HasMomentum {
		t.Fatal("expected momentum")
	}
	lockBoth(t, m, SpecialNone, SpecialNone)
	if _, err := Resolve(m, rules, nil, m.StartedAt); err != nil {
		t.Fatal(err)
	}
	if m.Player1.HasMomentum || m.Player1.HasCooldown {
		t.Errorf("unused momentum must expire without cooldown: %+v", m.Player1)
	}
}

func TestResolveChargeUnlock(t *testing.T) {
	tests := []struct {
		mode     Mode
		round    int
		charges  [2]int
		expected [2]int
		unlocked bool
	}{
		{ModeClassic, 10, [2]int{0, 3}, [2]int{1, 3}, true},
		{ModeDaily, 20, [2]int{2, 1}, [2]int{3, 2}, true},
		{ModeClassic, 9, [2]int{0, 0}, [2]int{0, 0}, false},
		{ModeRapid, 10, [2]int{0, 1}, [2]int{0, 1}, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s round %d", tt.mode, tt.round), func(t *testing.T) {
			m := newTestMatch(tt.mode, []string{"9H", "2H"}, []string{"4D", "3D"})
			m.RoundCount = tt.round
			m.Player1.SpecialCharges, m.Player2.SpecialCharges = tt.charges[0], tt.charges[1]
			lockBoth(t, m, SpecialNone, SpecialNone)

			summary, err := Resolve(m, DefaultRules(), nil, m.StartedAt)
			if err != nil {
				t.Fatal(err)
			}
			got := [2]int{m.Player1.SpecialCharges, m.Player2.SpecialCharges}
			if got != tt.expected {
				t.Errorf("charges = %v, want %v", got, tt.expected)
			}
			if summary.ChargesUnlocked != tt.unlocked {
				t.Errorf("summary.ChargesUnlocked = %v", summary.ChargesUnlocked)
			}
		})
	}
}

func TestResolveKraken(t *testing.T) {
	m := newTestMatch(ModeClassic, []string{"9H", "4S", "3H", "12C", "3C"}, []string{"8D", "2D", "11D"})
	m.RoundCount = 15
	lockBoth(t, m, SpecialNone, SpecialNone)

	summary, err := Resolve(m, DefaultRules(), nil, m.StartedAt)
	if err != nil {
		t.Fatal(err)
	}
	// Player1 wins 9H vs 8D first, then loses the first 3 in the deck.
	if got := CardIDs(m.Player1.Deck); !reflect.DeepEqual(got, []string{"4S", "12C", "3C", "9H", "8D"}) {
		t.Errorf("player1 deck = %v", got)
	}
	if got := CardIDs(m.Player2.Deck); !reflect.DeepEqual(got, []string{"11D"}) {
		t.Errorf("player2 deck = %v", got)
	}
	if summary.KrakenRemoved["alice"].ID() != "3H" || summary.KrakenRemoved["bob"].ID() != "2D" {
		t.Errorf("kraken report = %v", summary.KrakenRemoved)
	}
}

func TestResolveEndsOnExhaustion(t *testing.T) {
	m := newTestMatch(ModeClassic, []string{"14H"}, []string{"2D"})
	lockBoth(t, m, SpecialNone, SpecialNone)
	if _, err := Resolve(m, DefaultRules(), nil, m.StartedAt); err != nil {
		t.Fatal(err)
	}
	if m.Phase != PhaseGameOver || *m.Winner != "alice" || *m.DefeatReason != ReasonNormal {
		t.Errorf("unexpected end state phase=%s winner=%v", m.Phase, m.Winner)
	}
}

func TestResolveBothExhaustedUsesPolicy(t *testing.T) {
	m := newTestMatch(ModeClassic, []string{"7H"}, []string{"7D"})
	m.Player2.Score = 4
	lockBoth(t, m, SpecialNone, SpecialNone)
	if _, err := Resolve(m, DefaultRules(), rand.New(rand.NewSource(3)), m.StartedAt); err != nil {
		t.Fatal(err)
	}
	if m.Phase != PhaseGameOver || m.Winner == nil || *m.Winner != "bob" {
		t.Errorf("expected bob to win on score, got %v", m.Winner)
	}
	if len(m.Pot) != 2 {
		t.Errorf("pot must keep the tied cards, got %v", CardIDs(m.Pot))
	}
}

func TestResolvePreconditions(t *testing.T) {
	m := newTestMatch(ModeClassic, []string{"2H"}, []string{"3H"})
	if _, err := Resolve(m, DefaultRules(), nil, m.StartedAt); err != ErrNotBothLocked {
		t.Errorf("expected ErrNotBothLocked, got %v", err)
	}
	m.Phase = PhaseGameOver
	if _, err := Resolve(m, DefaultRules(), nil, m.StartedAt); err != ErrWrongPhase {
		t.Errorf("expected ErrWrongPhase, got %v", err)
	}
}

// playRandomMatch drives a full match with random specials and checks the invariants on every round.
func playRandomMatch(t *testing.T, seed int64) *Match {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	deck := NewDeck()
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	first, second := SplitDeck(deck)

	modes := []Mode{ModeClassic, ModeRapid, ModeDaily}
	rules := DefaultRules()
	m := newTestMatch(modes[seed%3], nil, nil)
	m.Player1.Deck, m.Player2.Deck = first, second
	m.Player1.SpecialCharges = rules.StartingCharges(m.Mode)
	m.Player2.SpecialCharges = rules.StartingCharges(m.Mode)

	specials := []Special{SpecialNone, SpecialAttack, SpecialDefense}
	for round := 0; round < 2000 && m.Phase == PhaseWaiting; round++ {
		before := m.CardsInPlay()
		for _, p := range m.Seats() {
			_ = SelectSpecial(p, specials[rng.Intn(len(specials))])
			CommitSpecial(p)
			p.IsLocked = true
			if p.HasMomentum && p.HasCooldown {
				t.Fatalf("seed %d: momentum and cooldown at once", seed)
			}
		}
		summary, err := Resolve(m, rules, rng, m.StartedAt)
		if err != nil {
			t.Fatalf("seed %d round %d: %v", seed, round, err)
		}
		after := m.CardsInPlay()
		lost := before - after
		if lost != len(summary.KrakenRemoved) {
			t.Fatalf("seed %d round %d: lost %d cards, kraken removed %d", seed, round, lost, len(summary.KrakenRemoved))
		}
		if len(summary.KrakenRemoved) > 0 && summary.Round%rules.KrakenInterval != 0 {
			t.Fatalf("seed %d: kraken outside its interval", seed)
		}
		for _, p := range m.Seats() {
			if p.SpecialCharges < 0 || p.SpecialCharges > rules.MaxCharges {
				t.Fatalf("seed %d: charges out of bounds: %d", seed, p.SpecialCharges)
			}
		}
	}
	return m
}

func TestResolveInvariantsHoldOverFullMatches(t *testing.T) {
	for seed := int64(0); seed < 30; seed++ {
		playRandomMatch(t, seed)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	for seed := int64(0); seed < 5; seed++ {
		a, _ := json.Marshal(playRandomMatch(t, seed))
		b, _ := json.Marshal(playRandomMatch(t, seed))
		if string(a) != string(b) {
			t.Fatalf("seed %d: identical inputs produced different matches", seed)
		}
	}
}
