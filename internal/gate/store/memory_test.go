package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bloodlink/internal/gate/models"
	"bloodlink/internal/gate/store"
	"bloodlink/pkg/platform/sentinel"
)

func TestMemoryChallengeLifecycle(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	_, err := s.GetChallenge(ctx, "missing")
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	ch := &models.Challenge{
		ActionKey: "donor-registration:a@b.com",
		Code:      "123456",
		Email:     "a@b.com",
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}
	require.NoError(t, s.PutChallenge(ctx, ch, 5*time.Minute))

	got, err := s.GetChallenge(ctx, ch.ActionKey)
	require.NoError(t, err)
	require.Equal(t, "123456", got.Code)

	// Overwrite on re-issue.
	ch2 := &models.Challenge{ActionKey: ch.ActionKey, Code: "654321", Email: "a@b.com", ExpiresAt: ch.ExpiresAt}
	require.NoError(t, s.PutChallenge(ctx, ch2, 5*time.Minute))
	got, err = s.GetChallenge(ctx, ch.ActionKey)
	require.NoError(t, err)
	require.Equal(t, "654321", got.Code)

	require.NoError(t, s.DeleteChallenge(ctx, ch.ActionKey))
	_, err = s.GetChallenge(ctx, ch.ActionKey)
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemoryConsumeVerification(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	err := s.ConsumeVerification(ctx, "k", "a@b.com")
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	v := &models.Verification{ActionKey: "k", Email: "a@b.com"}
	require.NoError(t, s.PutVerification(ctx, v, 5*time.Minute))

	// Email mismatch does not consume.
	err = s.ConsumeVerification(ctx, "k", "c@d.com")
	require.ErrorIs(t, err, sentinel.ErrInvalidState)

	require.NoError(t, s.ConsumeVerification(ctx, "k", "a@b.com"))

	// One-shot.
	err = s.ConsumeVerification(ctx, "k", "a@b.com")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemoryConsumeVerificationExpired(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	v := &models.Verification{ActionKey: "k", Email: "a@b.com"}
	require.NoError(t, s.PutVerification(ctx, v, -time.Second))

	err := s.ConsumeVerification(ctx, "k", "a@b.com")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemoryConsumeVerificationConcurrent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	v := &models.Verification{ActionKey: "k", Email: "a@b.com"}
	require.NoError(t, s.PutVerification(ctx, v, 5*time.Minute))

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.ConsumeVerification(ctx, "k", "a@b.com")
		}()
	}
	wg.Wait()
	close(results)

	var succeeded int
	for err := range results {
		if err == nil {
			succeeded++
		}
	}
	require.Equal(t, 1, succeeded, "exactly one concurrent redeem may succeed")
}
