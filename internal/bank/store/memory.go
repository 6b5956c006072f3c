// Package store holds the bank store implementations. Error contract:
// lookups return sentinel.ErrNotFound when no bank exists for the ID.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"bloodlink/internal/bank/models"
	"bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

// Memory stores banks in process memory for tests and dev mode. Cascade of
// inventory on delete is coordinated at the service layer for the memory
// pair; postgres relies on the FK.
type Memory struct {
	mu    sync.RWMutex
	banks map[domain.BankID]*models.Bank
}

func NewMemory() *Memory {
	return &Memory{banks: make(map[domain.BankID]*models.Bank)}
}

func (s *Memory) Create(_ context.Context, b *models.Bank) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.banks[b.ID]; ok {
		return fmt.Errorf("bank %s: %w", b.ID, sentinel.ErrConflict)
	}
	cp := *b
	s.banks[b.ID] = &cp
	return nil
}

func (s *Memory) Update(_ context.Context, b *models.Bank) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.banks[b.ID]; !ok {
		return fmt.Errorf("bank %s: %w", b.ID, sentinel.ErrNotFound)
	}
	cp := *b
	s.banks[b.ID] = &cp
	return nil
}

func (s *Memory) FindByID(_ context.Context, id domain.BankID) (*models.Bank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.banks[id]
	if !ok {
		return nil, fmt.Errorf("bank %s: %w", id, sentinel.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (s *Memory) Delete(_ context.Context, id domain.BankID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.banks[id]; !ok {
		return fmt.Errorf("bank %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.banks, id)
	return nil
}

func (s *Memory) List(_ context.Context) ([]*models.Bank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Bank, 0, len(s.banks))
	for _, b := range s.banks {
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *Memory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.banks), nil
}
