// Package store holds the challenge store implementations. The memory
// store backs tests and single-instance dev; the Redis store is the
// production choice when multiple instances share gate state.
//
// Error contract: methods return sentinel.ErrNotFound when no live entry
// exists for the key and sentinel.ErrInvalidState when a verification is
// bound to a different email. The service translates these into the gate's
// domain errors.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bloodlink/internal/gate/models"
	"bloodlink/pkg/platform/sentinel"
)

// Memory stores challenges and verifications in process memory.
// TTLs are honored lazily: expired entries are treated as absent when read
// (the service owns the expiry decision for challenges it does find).
type Memory struct {
	mu            sync.Mutex
	challenges    map[string]*models.Challenge
	verifications map[string]verificationEntry
}

type verificationEntry struct {
	verification *models.Verification
	expiresAt    time.Time
}

func NewMemory() *Memory {
	return &Memory{
		challenges:    make(map[string]*models.Challenge),
		verifications: make(map[string]verificationEntry),
	}
}

// PutChallenge stores a challenge, overwriting any prior challenge for the
// same action key. Last-writer-wins is the documented issuance semantic.
func (s *Memory) PutChallenge(_ context.Context, ch *models.Challenge, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[ch.ActionKey] = ch
	return nil
}

func (s *Memory) GetChallenge(_ context.Context, actionKey string) (*models.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[actionKey]
	if !ok {
		return nil, fmt.Errorf("challenge for %q: %w", actionKey, sentinel.ErrNotFound)
	}
	return ch, nil
}

func (s *Memory) DeleteChallenge(_ context.Context, actionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, actionKey)
	return nil
}

func (s *Memory) PutVerification(_ context.Context, v *models.Verification, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifications[v.ActionKey] = verificationEntry{
		verification: v,
		expiresAt:    time.Now().Add(ttl),
	}
	return nil
}

// ConsumeVerification atomically redeems the one-shot verification for the
// key. The email comparison happens under the lock so two concurrent
// mutating calls can never both redeem the same verification.
func (s *Memory) ConsumeVerification(_ context.Context, actionKey, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.verifications[actionKey]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(s.verifications, actionKey)
		return fmt.Errorf("verification for %q: %w", actionKey, sentinel.ErrNotFound)
	}
	if entry.verification.Email != email {
		// Stale verification: the entered email changed after confirm.
		// Left in place so the operator can switch back and retry.
		return fmt.Errorf("verification bound to different email: %w", sentinel.ErrInvalidState)
	}

	delete(s.verifications, actionKey)
	return nil
}
