// Package memory is an in-process MatchRepository used by tests and the standalone server without a database.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"bataille/internal/domain"
	"bataille/internal/ports"
)

type record struct {
	version int64
	doc     []byte
}

// Store keeps matches as encoded documents so callers never share memory with it.
type Store struct {
	mu       sync.RWMutex
	live     map[string]record
	archived map[string][]byte
}

func NewStore() *Store {
	return &Store{
		live:     make(map[string]record),
		archived: make(map[string][]byte),
	}
}

func (s *Store) Create(ctx context.Context, m *domain.Match) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode match %s: %w", m.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live[m.ID]; ok {
		return ports.ErrAlreadyExists
	}
	if _, ok := s.archived[m.ID]; ok {
		return ports.ErrAlreadyExists
	}
	s.live[m.ID] = record{version: m.Version, doc: doc}
	return nil
}

func (s *Store) Load(ctx context.Context, id string) (*domain.Match, error) {
	s.mu.RLock()
	rec, ok := s.live[id]
	doc := rec.doc
	if !ok {
		doc, ok = s.archived[id]
	}
	s.mu.RUnlock()
	if !ok {
		return nil, ports.ErrNotFound
	}
	var m domain.Match
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, fmt.Errorf("decode match %s: %w", id, err)
	}
	return &m, nil
}

func (s *Store) Save(ctx context.Context, m *domain.Match) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode match %s: %w", m.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkVersion(m); err != nil {
		return err
	}
	s.live[m.ID] = record{version: m.Version, doc: doc}
	return nil
}

func (s *Store) Archive(ctx context.Context, m *domain.Match) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode match %s: %w", m.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkVersion(m); err != nil {
		return err
	}
	delete(s.live, m.ID)
	s.archived[m.ID] = doc
	return nil
}

// LiveCount reports how many matches are not archived yet.
func (s *Store) LiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.live)
}

func (s *Store) ListLive(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.live))
	for id := range s.live {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) checkVersion(m *domain.Match) error {
	rec, ok := s.live[m.ID]
	if !ok {
		if _, archived := s.archived[m.ID]; archived {
			return ports.ErrVersionConflict
		}
		return ports.ErrNotFound
	}
	if rec.version != m.Version-1 {
		return ports.ErrVersionConflict
	}
	return nil
}

var (
	_ ports.MatchRepository = (*Store)(nil)
	_ ports.LiveMatchLister = (*Store)(nil)
)
