package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bataille/internal/domain"
	"bataille/internal/ports"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func fixture(id string) *domain.Match {
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	return &domain.Match{
		ID:           id,
		Mode:         domain.ModeRapid,
		Phase:        domain.PhaseWaiting,
		Player1:      domain.PlayerState{UserID: "alice", Deck: domain.MustParseCards("10H", "2C"), SpecialCharges: 3, UsingSpecial: domain.SpecialNone},
		Player2:      domain.PlayerState{UserID: "bob", Deck: domain.MustParseCards("14S"), SpecialCharges: 3, UsingSpecial: domain.SpecialNone},
		Pot:          []domain.Card{},
		RoundCount:   1,
		StartedAt:    start,
		LastActionAt: start,
	}
}

func TestRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	m := fixture("g1")

	require.NoError(t, repo.Create(ctx, m))
	assert.ErrorIs(t, repo.Create(ctx, m), ports.ErrAlreadyExists)

	loaded, err := repo.Load(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"10H", "2C"}, domain.CardIDs(loaded.Player1.Deck))
	assert.Equal(t, 3, loaded.Player2.SpecialCharges)
	assert.True(t, loaded.StartedAt.Equal(m.StartedAt))

	_, err = repo.Load(ctx, "nope")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRepositoryOptimisticSave(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	m := fixture("g2")
	require.NoError(t, repo.Create(ctx, m))

	next := m.Clone()
	next.Version = 1
	next.Player1.IsLocked = true
	require.NoError(t, repo.Save(ctx, next))

	// A writer that still holds version 0 loses.
	stale := m.Clone()
	stale.Version = 1
	stale.Player2.IsLocked = true
	assert.ErrorIs(t, repo.Save(ctx, stale), ports.ErrVersionConflict)

	loaded, err := repo.Load(ctx, "g2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), loaded.Version)
	assert.True(t, loaded.Player1.IsLocked)
	assert.False(t, loaded.Player2.IsLocked)

	missing := fixture("ghost")
	missing.Version = 1
	assert.ErrorIs(t, repo.Save(ctx, missing), ports.ErrNotFound)
}

func TestRepositoryArchive(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	m := fixture("g3")
	require.NoError(t, repo.Create(ctx, m))
	require.NoError(t, repo.Create(ctx, fixture("g4")))

	live, err := repo.ListLive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"g3", "g4"}, live)

	final := m.Clone()
	final.Version = 1
	winner := "bob"
	require.NoError(t, final.Finish(&winner, domain.ReasonSurrender, m.StartedAt.Add(time.Minute)))

	wrong := final.Clone()
	wrong.Version = 5
	assert.ErrorIs(t, repo.Archive(ctx, wrong), ports.ErrVersionConflict)

	require.NoError(t, repo.Archive(ctx, final))
	live, err = repo.ListLive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"g4"}, live)
	assert.ErrorIs(t, repo.Save(ctx, final), ports.ErrVersionConflict)
	assert.ErrorIs(t, repo.Create(ctx, m), ports.ErrAlreadyExists)

	loaded, err := repo.Load(ctx, "g3")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseGameOver, loaded.Phase)
	require.NotNil(t, loaded.Winner)
	assert.Equal(t, "bob", *loaded.Winner)

	results, err := repo.RecentResults(ctx, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "g3", results[0].ID)
	assert.Equal(t, "bob", results[0].Winner.String)
	assert.Equal(t, string(domain.ReasonSurrender), results[0].DefeatReason.String)
}
