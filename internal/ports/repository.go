package ports

import (
	"context"
	"errors"

	"bataille/internal/domain"
)

var (
	ErrNotFound        = errors.New("match not found")
	ErrAlreadyExists   = errors.New("match already exists")
	ErrVersionConflict = errors.New("match version conflict")
)

// MatchRepository persists match aggregates with optimistic concurrency on Match.Version.
//
// Save and Archive expect m.Version to be exactly one above the stored version and fail
// with ErrVersionConflict otherwise. Neither mutates m.
type MatchRepository interface {
	// Create stores a new live match. Fails with ErrAlreadyExists if the id is taken.
	Create(ctx context.Context, m *domain.Match) error
	// Load returns the live match, or the archived one once the match is over.
	Load(ctx context.Context, id string) (*domain.Match, error)
	// Save replaces the live match.
	Save(ctx context.Context, m *domain.Match) error
	// Archive moves a finished match out of the live set in one atomic step.
	Archive(ctx context.Context, m *domain.Match) error
}

// LiveMatchLister is implemented by repositories that outlive the process holding the
// single writers, so a restarted server can take the unfinished matches back.
type LiveMatchLister interface {
	// ListLive returns the ids of every match that is not archived, in id order.
	ListLive(ctx context.Context) ([]string, error)
}
