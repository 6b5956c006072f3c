// Package donation logs donation visits. Logging a donation is the only
// path that adds inventory units; deleting one never removes them (the
// blood is already on the shelf and may have been allocated since).
package donation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bloodlink/internal/audit"
	bankmodels "bloodlink/internal/bank/models"
	"bloodlink/internal/donation/models"
	donormodels "bloodlink/internal/donor/models"
	"bloodlink/internal/platform/metrics"
	"bloodlink/internal/platform/middleware"
	"bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/sentinel"
)

type Store interface {
	Create(ctx context.Context, d *models.Donation) error
	FindByID(ctx context.Context, id domain.DonationID) (*models.Donation, error)
	Delete(ctx context.Context, id domain.DonationID) error
	ListRecent(ctx context.Context, limit int) ([]*models.Donation, error)
	ListAll(ctx context.Context) ([]*models.Donation, error)
}

// DonorDirectory is the slice of the donor store the donation flow needs.
type DonorDirectory interface {
	FindByID(ctx context.Context, id domain.DonorID) (*donormodels.Donor, error)
	SetLastDonationDate(ctx context.Context, id domain.DonorID, date time.Time) error
}

// BankDirectory verifies the receiving bank exists.
type BankDirectory interface {
	FindByID(ctx context.Context, id domain.BankID) (*bankmodels.Bank, error)
}

// InventoryAdder credits the shelf.
type InventoryAdder interface {
	AddUnits(ctx context.Context, bankID domain.BankID, group domain.BloodGroup, units int, now time.Time) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates donation logging.
type Service struct {
	donations Store
	donors    DonorDirectory
	banks     BankDirectory
	inventory InventoryAdder
	logger    *slog.Logger
	audit     AuditPublisher
	metrics   *metrics.Metrics
	now       func() time.Time
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

func NewService(donations Store, donors DonorDirectory, banks BankDirectory, inventory InventoryAdder, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		donations: donations,
		donors:    donors,
		banks:     banks,
		inventory: inventory,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Log records a donation visit: it inserts the record, stamps the donor's
// last donation date, and credits the bank's shelf for the donor's group.
// The shelf entry is created implicitly on the first donation of a group
// at a bank.
func (s *Service) Log(ctx context.Context, p models.DonationParams) (*models.Donation, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	donorID, err := domain.ParseDonorID(p.DonorID)
	if err != nil {
		return nil, err
	}
	bankID, err := domain.ParseBankID(p.BankID)
	if err != nil {
		return nil, err
	}

	d, err := s.donors.FindByID(ctx, donorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "donor not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load donor")
	}
	if _, err := s.banks.FindByID(ctx, bankID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "bank not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load bank")
	}

	now := s.now()
	donatedAt := now
	if p.DonatedAt != nil {
		donatedAt = *p.DonatedAt
	}

	donation := &models.Donation{
		ID:         domain.DonationID(uuid.New()),
		DonorID:    donorID,
		BankID:     bankID,
		BloodGroup: d.BloodGroup,
		Units:      p.Units,
		Hemoglobin: p.Hemoglobin,
		DonatedAt:  donatedAt,
		CreatedAt:  now,
	}
	if err := s.donations.Create(ctx, donation); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record donation")
	}
	if err := s.donors.SetLastDonationDate(ctx, donorID, donatedAt); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update donor history")
	}
	if err := s.inventory.AddUnits(ctx, bankID, d.BloodGroup, p.Units, now); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to credit inventory")
	}

	s.emitAudit(ctx, audit.Event{
		Action:  audit.ActionDonationLogged,
		Subject: donation.ID.String(),
		Email:   d.Email,
	})
	if s.metrics != nil {
		s.metrics.DonationsLogged.Inc()
	}
	return donation, nil
}

// Delete removes the donation record only. The inventory credit stands:
// units added at logging time may already be allocated, so reversing them
// could drive a shelf negative.
func (s *Service) Delete(ctx context.Context, id domain.DonationID) error {
	if err := s.donations.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "donation not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete donation")
	}
	s.emitAudit(ctx, audit.Event{
		Action:  audit.ActionDonationDeleted,
		Subject: id.String(),
	})
	return nil
}

// ListRecent returns the latest visits, newest first.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*models.Donation, error) {
	donations, err := s.donations.ListRecent(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list donations")
	}
	return donations, nil
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
