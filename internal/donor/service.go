// Package donor manages donor registration and lookup. Registration is
// gated: the contact email must hold a consumed verification, so every
// donor record is backed by a proven mailbox.
package donor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bloodlink/internal/audit"
	"bloodlink/internal/donor/models"
	gatemodels "bloodlink/internal/gate/models"
	"bloodlink/internal/platform/metrics"
	"bloodlink/internal/platform/middleware"
	"bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/sentinel"
)

type Store interface {
	Create(ctx context.Context, d *models.Donor) error
	Update(ctx context.Context, d *models.Donor) error
	FindByID(ctx context.Context, id domain.DonorID) (*models.Donor, error)
	Delete(ctx context.Context, id domain.DonorID) error
	List(ctx context.Context, f models.Filter) ([]*models.Donor, error)
	ListInactive(ctx context.Context, cutoff time.Time) ([]*models.Donor, error)
	SetLastDonationDate(ctx context.Context, id domain.DonorID, date time.Time) error
	Count(ctx context.Context) (int, error)
}

// Verifier is the slice of the gate the donor flow needs.
type Verifier interface {
	ConsumeVerification(ctx context.Context, actionKey, email string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates donor lifecycle.
type Service struct {
	donors  Store
	gate    Verifier
	logger  *slog.Logger
	audit   AuditPublisher
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Service)

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.audit = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(donors Store, gate Verifier, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		donors: donors,
		gate:   gate,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a donor. The contact email must carry a live
// verification for the donor-registration action; the verification is
// consumed here, so a second register with the same verification fails.
func (s *Service) Register(ctx context.Context, p models.DonorParams) (*models.Donor, error) {
	d, err := models.NewDonor(domain.DonorID(uuid.New()), p, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.gate.ConsumeVerification(ctx, gatemodels.DonorRegistrationKey(d.Email), d.Email); err != nil {
		return nil, err
	}

	if err := s.donors.Create(ctx, d); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create donor")
	}

	s.emitAudit(ctx, audit.Event{
		Action:  audit.ActionDonorRegistered,
		Subject: d.ID.String(),
		Email:   d.Email,
	})
	if s.metrics != nil {
		s.metrics.DonorsRegistered.Inc()
	}
	return d, nil
}

// Update replaces the donor's editable fields. No gate: updates are an
// operator action, not a self-service one.
func (s *Service) Update(ctx context.Context, id domain.DonorID, p models.DonorParams) (*models.Donor, error) {
	existing, err := s.donors.FindByID(ctx, id)
	if err != nil {
		return nil, wrapDonorErr(err)
	}

	updated, err := models.NewDonor(id, p, s.now())
	if err != nil {
		return nil, err
	}
	updated.CreatedAt = existing.CreatedAt
	updated.LastDonationDate = existing.LastDonationDate

	if err := s.donors.Update(ctx, updated); err != nil {
		return nil, wrapDonorErr(err)
	}
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id domain.DonorID) (*models.Donor, error) {
	d, err := s.donors.FindByID(ctx, id)
	if err != nil {
		return nil, wrapDonorErr(err)
	}
	return d, nil
}

func (s *Service) List(ctx context.Context, f models.Filter) ([]*models.Donor, error) {
	donors, err := s.donors.List(ctx, f)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list donors")
	}
	return donors, nil
}

// Delete removes the donor; donation history goes with it (FK cascade).
// Inventory contributed by past donations stays on the shelf.
func (s *Service) Delete(ctx context.Context, id domain.DonorID) error {
	if err := s.donors.Delete(ctx, id); err != nil {
		return wrapDonorErr(err)
	}
	s.emitAudit(ctx, audit.Event{
		Action:  audit.ActionDonorDeleted,
		Subject: id.String(),
	})
	return nil
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	event.RequestID = middleware.GetRequestID(ctx)
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err.Error(),
		)
	}
}

func wrapDonorErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "donor not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "donor store failure")
}
