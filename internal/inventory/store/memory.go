// Package store holds the inventory store implementations.
//
// Error contract: DecrementIfAvailable returns sentinel.ErrInsufficientStock
// when the shelf does not hold enough units at decrement time. That error is
// the storage-level signal the allocation engine turns into a stale
// candidate.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"bloodlink/internal/inventory/models"
	"bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

type shelfKey struct {
	bankID domain.BankID
	group  domain.BloodGroup
}

// Memory stores inventory in process memory. The mutex spans the
// check-and-write in DecrementIfAvailable, giving the same atomicity the
// postgres store gets from its conditional UPDATE.
type Memory struct {
	mu      sync.Mutex
	records map[shelfKey]*models.Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[shelfKey]*models.Record)}
}

// AddUnits increments the shelf, creating the record on first use.
func (s *Memory) AddUnits(_ context.Context, bankID domain.BankID, group domain.BloodGroup, units int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := shelfKey{bankID, group}
	rec, ok := s.records[key]
	if !ok {
		rec = &models.Record{BankID: bankID, BloodGroup: group}
		s.records[key] = rec
	}
	rec.Units += units
	rec.UpdatedAt = now
	return nil
}

// DecrementIfAvailable atomically removes units from the shelf. The whole
// check-and-write holds the lock: two concurrent decrements can never both
// succeed against the same last units.
func (s *Memory) DecrementIfAvailable(_ context.Context, bankID domain.BankID, group domain.BloodGroup, units int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[shelfKey{bankID, group}]
	if !ok || rec.Units < units {
		return sentinel.ErrInsufficientStock
	}
	rec.Units -= units
	rec.UpdatedAt = time.Now()
	return nil
}

// FindSufficient returns records of the given group holding at least the
// required units.
func (s *Memory) FindSufficient(_ context.Context, group domain.BloodGroup, units int) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Record
	for _, rec := range s.records {
		if rec.BloodGroup == group && rec.Units >= units {
			out = append(out, *rec)
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *Memory) ListByBank(_ context.Context, bankID domain.BankID) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Record
	for _, rec := range s.records {
		if rec.BankID == bankID {
			out = append(out, *rec)
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *Memory) ListAll(_ context.Context) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *rec)
	}
	sortRecords(out)
	return out, nil
}

// ListBelow returns records holding fewer than threshold units.
func (s *Memory) ListBelow(_ context.Context, threshold int) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Record
	for _, rec := range s.records {
		if rec.Units < threshold {
			out = append(out, *rec)
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *Memory) SumUnits(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, rec := range s.records {
		total += rec.Units
	}
	return total, nil
}

// DeleteByBank removes the bank's whole shelf. Bank deletion cascade.
func (s *Memory) DeleteByBank(_ context.Context, bankID domain.BankID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.records {
		if key.bankID == bankID {
			delete(s.records, key)
		}
	}
	return nil
}

func sortRecords(records []models.Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].BankID != records[j].BankID {
			return records[i].BankID.String() < records[j].BankID.String()
		}
		return records[i].BloodGroup < records[j].BloodGroup
	})
}
