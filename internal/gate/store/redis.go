package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bloodlink/internal/gate/models"
	"bloodlink/pkg/platform/sentinel"
)

const (
	challengeKeyPrefix    = "gate:challenge:"
	verificationKeyPrefix = "gate:verified:"
)

// Redis stores challenges and verifications with native TTLs so expired
// entries vanish without sweeps. Production choice for multi-instance
// deployments where the operator UI and the API may hit different pods.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

type challengeRecord struct {
	Code      string    `json:"code"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PutChallenge stores the challenge with SET, overwriting any prior entry
// for the key. The Redis TTL is a safety net slightly past the logical
// expiry; the service still checks ExpiresAt so both stores behave
// identically at the boundary.
func (s *Redis) PutChallenge(ctx context.Context, ch *models.Challenge, ttl time.Duration) error {
	payload, err := json.Marshal(challengeRecord{Code: ch.Code, Email: ch.Email, ExpiresAt: ch.ExpiresAt})
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	if err := s.client.Set(ctx, challengeKeyPrefix+ch.ActionKey, payload, ttl+time.Minute).Err(); err != nil {
		return fmt.Errorf("put challenge: %w", err)
	}
	return nil
}

func (s *Redis) GetChallenge(ctx context.Context, actionKey string) (*models.Challenge, error) {
	raw, err := s.client.Get(ctx, challengeKeyPrefix+actionKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("challenge for %q: %w", actionKey, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}

	var rec challengeRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal challenge: %w", err)
	}
	return &models.Challenge{
		ActionKey: actionKey,
		Code:      rec.Code,
		Email:     rec.Email,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

func (s *Redis) DeleteChallenge(ctx context.Context, actionKey string) error {
	if err := s.client.Del(ctx, challengeKeyPrefix+actionKey).Err(); err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}

func (s *Redis) PutVerification(ctx context.Context, v *models.Verification, ttl time.Duration) error {
	if err := s.client.Set(ctx, verificationKeyPrefix+v.ActionKey, v.Email, ttl).Err(); err != nil {
		return fmt.Errorf("put verification: %w", err)
	}
	return nil
}

// ConsumeVerification redeems the one-shot verification via GETDEL so two
// concurrent mutating calls can never both succeed. A stale-email miss
// restores the entry, keeping the retry path open until its TTL runs out.
func (s *Redis) ConsumeVerification(ctx context.Context, actionKey, email string) error {
	key := verificationKeyPrefix + actionKey

	stored, err := s.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("verification for %q: %w", actionKey, sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("consume verification: %w", err)
	}

	if stored != email {
		if err := s.client.Set(ctx, key, stored, time.Minute).Err(); err != nil {
			return fmt.Errorf("restore verification: %w", err)
		}
		return fmt.Errorf("verification bound to different email: %w", sentinel.ErrInvalidState)
	}
	return nil
}
