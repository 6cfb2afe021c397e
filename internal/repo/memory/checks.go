package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/hamed0406/uptimeworker/internal/domain"
	"github.com/hamed0406/uptimeworker/internal/repo"
)

type CheckStore struct {
	mu     sync.RWMutex
	checks map[string]domain.Record
}

func NewCheckStore() *CheckStore {
	return &CheckStore{checks: make(map[string]domain.Record)}
}

// Put stores a raw record under id, replacing any previous one.
func (s *CheckStore) Put(id string, rec domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[id] = maps.Clone(rec)
}

func (s *CheckStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.checks)), nil
}

func (s *CheckStore) Read(ctx context.Context, id string) (domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.checks[id]
	if !ok {
		return nil, fmt.Errorf("check %s: %w", id, repo.ErrNotFound)
	}
	return maps.Clone(rec), nil
}

func (s *CheckStore) Update(ctx context.Context, c domain.Check) error {
	rec, err := domain.RecordOf(c)
	if err != nil {
		return fmt.Errorf("encode check %s: %w", c.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.checks[c.ID]; !ok {
		return fmt.Errorf("check %s: %w", c.ID, repo.ErrNotFound)
	}
	s.checks[c.ID] = rec
	return nil
}
