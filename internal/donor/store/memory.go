// Package store holds the donor store implementations. Error contract:
// lookups return sentinel.ErrNotFound when no donor exists for the ID.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bloodlink/internal/donor/models"
	"bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

// Memory stores donors in process memory for tests and dev mode.
type Memory struct {
	mu     sync.RWMutex
	donors map[domain.DonorID]*models.Donor
}

func NewMemory() *Memory {
	return &Memory{donors: make(map[domain.DonorID]*models.Donor)}
}

func (s *Memory) Create(_ context.Context, d *models.Donor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.donors[d.ID]; ok {
		return fmt.Errorf("donor %s: %w", d.ID, sentinel.ErrConflict)
	}
	cp := *d
	s.donors[d.ID] = &cp
	return nil
}

func (s *Memory) Update(_ context.Context, d *models.Donor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.donors[d.ID]; !ok {
		return fmt.Errorf("donor %s: %w", d.ID, sentinel.ErrNotFound)
	}
	cp := *d
	s.donors[d.ID] = &cp
	return nil
}

func (s *Memory) FindByID(_ context.Context, id domain.DonorID) (*models.Donor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.donors[id]
	if !ok {
		return nil, fmt.Errorf("donor %s: %w", id, sentinel.ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

func (s *Memory) Delete(_ context.Context, id domain.DonorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.donors[id]; !ok {
		return fmt.Errorf("donor %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.donors, id)
	return nil
}

// List returns donors matching the filter, newest first with ID as the
// tie-break so order is deterministic.
func (s *Memory) List(_ context.Context, f models.Filter) ([]*models.Donor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Donor
	for _, d := range s.donors {
		if f.Matches(d) {
			cp := *d
			out = append(out, &cp)
		}
	}
	sortDonors(out)
	return out, nil
}

// ListInactive returns donors whose last donation predates the cutoff,
// including donors who never donated.
func (s *Memory) ListInactive(_ context.Context, cutoff time.Time) ([]*models.Donor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Donor
	for _, d := range s.donors {
		if d.InactiveSince(cutoff) {
			cp := *d
			out = append(out, &cp)
		}
	}
	sortDonors(out)
	return out, nil
}

func (s *Memory) SetLastDonationDate(_ context.Context, id domain.DonorID, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.donors[id]
	if !ok {
		return fmt.Errorf("donor %s: %w", id, sentinel.ErrNotFound)
	}
	d.LastDonationDate = &date
	d.UpdatedAt = date
	return nil
}

func (s *Memory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.donors), nil
}

func sortDonors(donors []*models.Donor) {
	sort.Slice(donors, func(i, j int) bool {
		if !donors[i].CreatedAt.Equal(donors[j].CreatedAt) {
			return donors[i].CreatedAt.After(donors[j].CreatedAt)
		}
		return donors[i].ID.String() < donors[j].ID.String()
	})
}
