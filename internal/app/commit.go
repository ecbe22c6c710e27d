package app

import (
	"context"
	"fmt"
	"time"

	"bataille/internal/domain"
	"bataille/internal/ports"
)

// Op is a use-case applied to a working copy of a match.
type Op func(m *domain.Match, now time.Time) ([]Event, error)

// Commit applies op to a clone of current and persists the clone when op produced events.
// Finished matches are archived instead of saved. It returns the match that is authoritative
// afterwards, the events to publish and the error reported by op.
func Commit(ctx context.Context, repo ports.MatchRepository, current *domain.Match, now time.Time, op Op) (*domain.Match, []Event, error) {
	working := current.Clone()
	events, opErr := op(working, now)
	if len(events) == 0 {
		return current, nil, opErr
	}

	working.Version = current.Version + 1
	var err error
	if working.Phase == domain.PhaseGameOver {
		err = repo.Archive(ctx, working)
	} else {
		err = repo.Save(ctx, working)
	}
	if err != nil {
		return current, nil, fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}
	return working, events, opErr
}
