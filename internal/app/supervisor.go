package app

import (
	"time"

	"bataille/internal/domain"
)

// Supervise enforces the match clock and the inactivity watchdog at time now.
// It returns no events when nothing was due, so callers can skip the commit.
func (s *Service) Supervise(m *domain.Match, now time.Time) ([]Event, error) {
	if m == nil || m.Phase != domain.PhaseWaiting {
		return nil, nil
	}
	if s.clockExpired(m, now) {
		return s.expire(m, now)
	}
	if !s.rules.WatchesInactivity(m.Mode) || now.Sub(m.LastActionAt) < s.rules.RoundTimeout {
		return nil, nil
	}

	var events []Event
	for _, p := range m.Seats() {
		if p.IsBot || p.IsLocked {
			continue
		}
		if p.TimeoutCount >= s.rules.MaxTimeouts {
			_, opp := m.Players(p.UserID)
			winner := opp.UserID
			if err := m.Finish(&winner, domain.ReasonInactivity, now); err != nil {
				return nil, err
			}
			s.refreshClock(m, now)
			events = append(events,
				Event{Kind: EventPlayerTimedOut, Payload: PlayerTimedOutPayload{UserID: p.UserID, TimeoutCount: p.TimeoutCount, Defeated: true}},
				gameEnded(m),
			)
			return events, nil
		}
		p.TimeoutCount++
		p.UsingSpecial = domain.SpecialNone
		events = append(events, Event{
			Kind:    EventPlayerTimedOut,
			Payload: PlayerTimedOutPayload{UserID: p.UserID, TimeoutCount: p.TimeoutCount},
		})
		events = append(events, s.lock(m, p, now, true)...)
	}
	if len(events) == 0 {
		return nil, nil
	}
	return s.afterLock(m, events, now)
}

func (s *Service) clockExpired(m *domain.Match, now time.Time) bool {
	return m.Mode.Timed() && now.Sub(m.StartedAt) >= s.rules.RapidDuration
}

// expire closes a timed match whose clock ran out, picking the winner by policy.
// The match ends normally; callers learn about the clock from ErrMatchClockExpired.
func (s *Service) expire(m *domain.Match, now time.Time) ([]Event, error) {
	s.mu.Lock()
	winner := s.rules.DecideWinner(m, s.rng)
	s.mu.Unlock()
	if err := m.Finish(winner, domain.ReasonNormal, now); err != nil {
		return nil, err
	}
	s.refreshClock(m, now)
	return []Event{gameEnded(m)}, nil
}

// refreshClock recomputes rapidTimeLeft in whole seconds. It stays nil for untimed modes.
func (s *Service) refreshClock(m *domain.Match, now time.Time) {
	if !m.Mode.Timed() {
		m.RapidTimeLeft = nil
		return
	}
	left := s.rules.RapidDuration - now.Sub(m.StartedAt)
	if left < 0 {
		left = 0
	}
	secs := int(left / time.Second)
	m.RapidTimeLeft = &secs
}
