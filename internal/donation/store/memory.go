// Package store holds the donation store implementations. Error contract:
// lookups return sentinel.ErrNotFound when no donation exists for the ID.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"bloodlink/internal/donation/models"
	"bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

// Memory stores donations in process memory for tests and dev mode.
type Memory struct {
	mu        sync.RWMutex
	donations map[domain.DonationID]*models.Donation
}

func NewMemory() *Memory {
	return &Memory{donations: make(map[domain.DonationID]*models.Donation)}
}

func (s *Memory) Create(_ context.Context, d *models.Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.donations[d.ID]; ok {
		return fmt.Errorf("donation %s: %w", d.ID, sentinel.ErrConflict)
	}
	cp := *d
	s.donations[d.ID] = &cp
	return nil
}

func (s *Memory) FindByID(_ context.Context, id domain.DonationID) (*models.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.donations[id]
	if !ok {
		return nil, fmt.Errorf("donation %s: %w", id, sentinel.ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

func (s *Memory) Delete(_ context.Context, id domain.DonationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.donations[id]; !ok {
		return fmt.Errorf("donation %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.donations, id)
	return nil
}

// ListRecent returns up to limit donations, newest visit first.
func (s *Memory) ListRecent(_ context.Context, limit int) ([]*models.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Donation, 0, len(s.donations))
	for _, d := range s.donations {
		cp := *d
		out = append(out, &cp)
	}
	sortDonations(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Memory) ListAll(ctx context.Context) ([]*models.Donation, error) {
	return s.ListRecent(ctx, 0)
}

func sortDonations(donations []*models.Donation) {
	sort.Slice(donations, func(i, j int) bool {
		if !donations[i].DonatedAt.Equal(donations[j].DonatedAt) {
			return donations[i].DonatedAt.After(donations[j].DonatedAt)
		}
		return donations[i].ID.String() < donations[j].ID.String()
	})
}
