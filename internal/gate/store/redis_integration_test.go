//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bloodlink/internal/gate/models"
	"bloodlink/internal/gate/store"
	"bloodlink/pkg/platform/sentinel"
	"bloodlink/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.Redis
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = store.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestChallengeRoundTrip() {
	ctx := context.Background()

	_, err := s.store.GetChallenge(ctx, "missing")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	expiry := time.Now().Add(5 * time.Minute).Truncate(time.Millisecond)
	ch := &models.Challenge{
		ActionKey: "donor-registration:a@b.com",
		Code:      "123456",
		Email:     "a@b.com",
		ExpiresAt: expiry,
	}
	s.Require().NoError(s.store.PutChallenge(ctx, ch, 5*time.Minute))

	got, err := s.store.GetChallenge(ctx, ch.ActionKey)
	s.Require().NoError(err)
	s.Equal("123456", got.Code)
	s.Equal("a@b.com", got.Email)
	s.True(expiry.Equal(got.ExpiresAt))

	s.Require().NoError(s.store.DeleteChallenge(ctx, ch.ActionKey))
	_, err = s.store.GetChallenge(ctx, ch.ActionKey)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestChallengeOverwrite() {
	ctx := context.Background()

	ch := &models.Challenge{ActionKey: "k", Code: "111111", Email: "a@b.com", ExpiresAt: time.Now().Add(time.Minute)}
	s.Require().NoError(s.store.PutChallenge(ctx, ch, time.Minute))

	ch.Code = "222222"
	s.Require().NoError(s.store.PutChallenge(ctx, ch, time.Minute))

	got, err := s.store.GetChallenge(ctx, "k")
	s.Require().NoError(err)
	s.Equal("222222", got.Code)
}

func (s *RedisStoreSuite) TestConsumeVerificationOneShot() {
	ctx := context.Background()

	err := s.store.ConsumeVerification(ctx, "k", "a@b.com")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	v := &models.Verification{ActionKey: "k", Email: "a@b.com"}
	s.Require().NoError(s.store.PutVerification(ctx, v, time.Minute))

	s.Require().NoError(s.store.ConsumeVerification(ctx, "k", "a@b.com"))

	err = s.store.ConsumeVerification(ctx, "k", "a@b.com")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestConsumeVerificationStaleEmailRestores() {
	ctx := context.Background()

	v := &models.Verification{ActionKey: "k", Email: "a@b.com"}
	s.Require().NoError(s.store.PutVerification(ctx, v, time.Minute))

	err := s.store.ConsumeVerification(ctx, "k", "other@b.com")
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)

	// The mismatch must restore the entry so the bound email can still redeem.
	s.Require().NoError(s.store.ConsumeVerification(ctx, "k", "a@b.com"))
}
