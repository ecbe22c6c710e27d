package app

import (
	"errors"

	"bataille/internal/domain"
	"bataille/internal/ports"
)

var (
	ErrUnauthenticated   = errors.New("caller identity is required")
	ErrInvalidOpponent   = errors.New("opponent must be another player")
	ErrGameNotFound      = errors.New("game not found")
	ErrNotParticipant    = errors.New("caller is not a participant of this game")
	ErrGameOver          = errors.New("game is already over")
	ErrMatchClockExpired = errors.New("match clock has run out")
	ErrCommitFailed      = errors.New("failed to commit match state")
)

// ErrorKind classifies errors for transport status codes.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindUnauthenticated
	KindInvalidArgument
	KindNotFound
	KindPermissionDenied
	KindFailedPrecondition
	KindDeadlineExceeded
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindFailedPrecondition:
		return "failed_precondition"
	case KindDeadlineExceeded:
		return "deadline_exceeded"
	default:
		return "internal"
	}
}

// KindOf maps an error returned by the service or a repository to its kind.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrCommitFailed):
		return KindInternal
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrInvalidOpponent),
		errors.Is(err, domain.ErrInvalidMode),
		errors.Is(err, domain.ErrInvalidSpecial),
		errors.Is(err, domain.ErrInvalidCard):
		return KindInvalidArgument
	case errors.Is(err, ErrGameNotFound), errors.Is(err, ports.ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrNotParticipant):
		return KindPermissionDenied
	case errors.Is(err, ErrMatchClockExpired):
		return KindDeadlineExceeded
	case errors.Is(err, ErrGameOver),
		errors.Is(err, domain.ErrWrongPhase),
		errors.Is(err, domain.ErrAlreadyLocked),
		errors.Is(err, domain.ErrNoSpecialAvailable),
		errors.Is(err, domain.ErrOnCooldown),
		errors.Is(err, ports.ErrVersionConflict):
		return KindFailedPrecondition
	default:
		return KindInternal
	}
}
