// Package gate implements the time-boxed verification gate. Every mutating
// flow that acts on behalf of an email owner (donor registration, request
// creation) must pass through it: a code is issued to the address, the
// owner echoes it back, and the resulting verification is redeemable for
// exactly one mutation.
package gate

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	gatemetrics "bloodlink/internal/gate/metrics"
	"bloodlink/internal/gate/models"
	"bloodlink/internal/notify"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/email"
	"bloodlink/pkg/platform/sentinel"
)

// Store persists challenges and one-shot verifications. Implementations
// must make ConsumeVerification atomic: concurrent redeems of the same key
// may not both succeed.
type Store interface {
	PutChallenge(ctx context.Context, ch *models.Challenge, ttl time.Duration) error
	GetChallenge(ctx context.Context, actionKey string) (*models.Challenge, error)
	DeleteChallenge(ctx context.Context, actionKey string) error
	PutVerification(ctx context.Context, v *models.Verification, ttl time.Duration) error
	ConsumeVerification(ctx context.Context, actionKey, email string) error
}

// Service issues and confirms one-time codes.
type Service struct {
	store   Store
	sender  notify.Sender
	logger  *slog.Logger
	metrics *gatemetrics.Metrics
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock injects the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics attaches gate metrics.
func WithMetrics(m *gatemetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, sender notify.Sender, logger *slog.Logger, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		store:  store,
		sender: sender,
		logger: logger,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue generates a 6-digit code for the action key, stores it with the
// gate TTL (overwriting any prior unconsumed challenge for the key), and
// dispatches it to the address. A delivery failure is reported to the
// caller but the challenge stays stored; the caller re-issues to get a
// fresh delivery attempt.
func (s *Service) Issue(ctx context.Context, actionKey, address string) error {
	if !email.ValidAddress(address) {
		return dErrors.New(dErrors.CodeBadRequest, "invalid email address")
	}

	code, err := generateCode()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate code")
	}

	ch := &models.Challenge{
		ActionKey: actionKey,
		Code:      code,
		Email:     address,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.store.PutChallenge(ctx, ch, s.ttl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store challenge")
	}
	s.incrementIssued()

	subject := "Bloodlink — your verification code"
	body := fmt.Sprintf("Your verification code is: %s\nThis code expires in %d minutes.", code, int(s.ttl.Minutes()))
	if err := s.sender.Send(ctx, address, subject, body); err != nil {
		s.incrementDeliveryFailure()
		s.logger.WarnContext(ctx, "code delivery failed",
			"recipient", email.Mask(address),
			"error", err.Error(),
		)
		return dErrors.Wrap(err, dErrors.CodeDeliveryFailed, "failed to deliver verification code")
	}

	return nil
}

// Confirm checks a submitted code against the live challenge for the key.
// On match it consumes the challenge and records a one-shot verification
// for the bound email; the verified address is returned. Expiry consumes
// the challenge; a mismatch does not, so the owner can retry until the TTL
// runs out.
func (s *Service) Confirm(ctx context.Context, actionKey, submittedCode string) (string, error) {
	ch, err := s.store.GetChallenge(ctx, actionKey)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.observeConfirmation("no_challenge")
			return "", dErrors.New(dErrors.CodeNotFound, "no verification requested for this action")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load challenge")
	}

	if ch.Expired(s.now()) {
		if err := s.store.DeleteChallenge(ctx, actionKey); err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to discard expired challenge")
		}
		s.observeConfirmation("expired")
		return "", dErrors.New(dErrors.CodeExpired, "verification code has expired")
	}

	if submittedCode != ch.Code {
		s.observeConfirmation("mismatch")
		return "", dErrors.New(dErrors.CodeMismatch, "incorrect verification code")
	}

	if err := s.store.DeleteChallenge(ctx, actionKey); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume challenge")
	}
	v := &models.Verification{ActionKey: actionKey, Email: ch.Email}
	if err := s.store.PutVerification(ctx, v, s.ttl); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to record verification")
	}

	s.observeConfirmation("verified")
	return ch.Email, nil
}

// ConsumeVerification redeems the one-shot verification produced by a
// successful Confirm. Fails with not_verified when no verification exists
// for the key or when it is bound to a different address (the entered
// email changed after confirm — the caller must re-verify).
func (s *Service) ConsumeVerification(ctx context.Context, actionKey, address string) error {
	err := s.store.ConsumeVerification(ctx, actionKey, address)
	if err == nil {
		return nil
	}
	if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrInvalidState) {
		return dErrors.New(dErrors.CodeNotVerified, "email has not been verified for this action")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume verification")
}

// generateCode draws a uniform 6-digit zero-padded code. Collisions across
// time are fine; the action key scopes each code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func (s *Service) incrementIssued() {
	if s.metrics != nil {
		s.metrics.CodesIssued.Inc()
	}
}

func (s *Service) incrementDeliveryFailure() {
	if s.metrics != nil {
		s.metrics.DeliveryFailures.Inc()
	}
}

func (s *Service) observeConfirmation(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveConfirmation(outcome)
	}
}
