// Package store holds the request store implementations.
//
// Error contract: lookups return sentinel.ErrNotFound for unknown IDs; the
// conditional transitions return sentinel.ErrInvalidState when the request
// exists but is not in an accepted source state.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bloodlink/internal/request/models"
	"bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

// Memory stores requests in process memory. The mutex spans every
// check-and-write so conditional transitions are atomic, matching the
// postgres store's conditional UPDATEs.
type Memory struct {
	mu       sync.Mutex
	requests map[domain.RequestID]*models.Request
}

func NewMemory() *Memory {
	return &Memory{requests: make(map[domain.RequestID]*models.Request)}
}

func (s *Memory) Create(_ context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID]; ok {
		return fmt.Errorf("request %s: %w", r.ID, sentinel.ErrConflict)
	}
	cp := *r
	s.requests[r.ID] = &cp
	return nil
}

func (s *Memory) FindByID(_ context.Context, id domain.RequestID) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s *Memory) Delete(_ context.Context, id domain.RequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[id]; !ok {
		return fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.requests, id)
	return nil
}

func (s *Memory) List(_ context.Context, f models.Filter) ([]*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Request
	for _, r := range s.requests {
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Memory) CountByStatus(_ context.Context, status models.Status) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, r := range s.requests {
		if r.Status == status {
			n++
		}
	}
	return n, nil
}

// AssignIfPending atomically moves a pending request to assigned, binding
// the source. ErrInvalidState when the request left pending under the
// caller.
func (s *Memory) AssignIfPending(_ context.Context, id domain.RequestID, kind models.AssignedKind, bankID *domain.BankID, donorID *domain.DonorID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
	}
	if r.Status != models.StatusPending {
		return fmt.Errorf("request %s is %s: %w", id, r.Status, sentinel.ErrInvalidState)
	}
	r.Status = models.StatusAssigned
	r.AssignedKind = kind
	r.AssignedBankID = bankID
	r.AssignedDonorID = donorID
	r.UpdatedAt = now
	return nil
}

// UpdateStatusIf atomically transitions the request to the target status
// when its current status is in from. ErrInvalidState when it is not.
func (s *Memory) UpdateStatusIf(_ context.Context, id domain.RequestID, from []models.Status, to models.Status, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
	}
	for _, status := range from {
		if r.Status == status {
			r.Status = to
			r.UpdatedAt = now
			return nil
		}
	}
	return fmt.Errorf("request %s is %s: %w", id, r.Status, sentinel.ErrInvalidState)
}
