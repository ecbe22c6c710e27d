package domain

// SelectSpecial records a pending special for the next lock. SpecialNone clears the selection.
func SelectSpecial(p *PlayerState, kind Special) error {
	if p.IsLocked {
		return ErrAlreadyLocked
	}
	if kind == SpecialNone {
		p.UsingSpecial = SpecialNone
		return nil
	}
	if p.HasCooldown {
		return ErrOnCooldown
	}
	if p.SpecialCharges <= 0 && !p.HasMomentum {
		return ErrNoSpecialAvailable
	}
	p.UsingSpecial = kind
	return nil
}

// CommitSpecial pays for the pending special when the player locks.
// Momentum is consumed before a charge; a selection that can no longer be paid is dropped.
func CommitSpecial(p *PlayerState) {
	p.SpentMomentum = false
	if p.UsingSpecial == "" {
		p.UsingSpecial = SpecialNone
	}
	if p.UsingSpecial == SpecialNone {
		return
	}
	switch {
	case p.HasCooldown:
		p.UsingSpecial = SpecialNone
	case p.HasMomentum:
		p.HasMomentum = false
		p.SpentMomentum = true
	case p.SpecialCharges > 0:
		p.SpecialCharges--
	default:
		p.UsingSpecial = SpecialNone
	}
}

// settleSpecials derives next round's momentum and cooldown from the round just played.
func settleSpecials(p *PlayerState, won bool) {
	paidWithCharge := p.UsingSpecial != SpecialNone && !p.SpentMomentum
	p.HasCooldown = p.SpentMomentum
	p.HasMomentum = won && paidWithCharge
	p.SpentMomentum = false
}
