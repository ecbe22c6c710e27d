package domain

import "errors"

var (
	ErrInvalidCard        = errors.New("invalid card")
	ErrInvalidMode        = errors.New("invalid game mode")
	ErrInvalidSpecial     = errors.New("invalid special type")
	ErrIllegalTransition  = errors.New("illegal phase transition")
	ErrWrongPhase         = errors.New("match is not waiting for actions")
	ErrAlreadyLocked      = errors.New("card already locked this round")
	ErrNotBothLocked      = errors.New("both players must lock before resolution")
	ErrNoSpecialAvailable = errors.New("no special charge or momentum available")
	ErrOnCooldown         = errors.New("special ability is on cooldown")
)
