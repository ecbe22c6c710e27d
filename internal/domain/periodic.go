package domain

// applyPeriodicEvents runs the charge unlock and the Kraken for the round just resolved.
func applyPeriodicEvents(m *Match, rules Rules, summary *RoundSummary) {
	round := m.RoundCount

	if !m.Mode.Timed() && rules.ChargeUnlockInterval > 0 && round%rules.ChargeUnlockInterval == 0 {
		for _, p := range m.Seats() {
			p.SpecialCharges = min(p.SpecialCharges+1, rules.MaxCharges)
		}
		summary.ChargesUnlocked = true
	}

	if rules.KrakenInterval > 0 && round%rules.KrakenInterval == 0 {
		removed := make(map[string]Card, 2)
		for _, p := range m.Seats() {
			idx := LowestRankIndex(p.Deck)
			if idx < 0 {
				continue
			}
			removed[p.UserID] = p.Deck[idx]
			p.Deck = RemoveAt(p.Deck, idx)
		}
		summary.KrakenRemoved = removed
	}
}
