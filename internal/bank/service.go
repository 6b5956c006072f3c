// Package bank manages blood bank records.
package bank

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bloodlink/internal/audit"
	"bloodlink/internal/bank/models"
	"bloodlink/internal/platform/middleware"
	"bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/sentinel"
)

type Store interface {
	Create(ctx context.Context, b *models.Bank) error
	Update(ctx context.Context, b *models.Bank) error
	FindByID(ctx context.Context, id domain.BankID) (*models.Bank, error)
	Delete(ctx context.Context, id domain.BankID) error
	List(ctx context.Context) ([]*models.Bank, error)
	Count(ctx context.Context) (int, error)
}

// InventorySweeper removes a deleted bank's shelf. The postgres pair also
// has an FK cascade; the sweep keeps the memory pair consistent and makes
// the cascade explicit in one place.
type InventorySweeper interface {
	DeleteByBank(ctx context.Context, bankID domain.BankID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates bank lifecycle.
type Service struct {
	banks     Store
	inventory InventorySweeper
	logger    *slog.Logger
	audit     AuditPublisher
	now       func() time.Time
}

type Option func(*Service)

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.audit = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(banks Store, inventory InventorySweeper, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
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

func (s *Service) Create(ctx context.Context, p models.BankParams) (*models.Bank, error) {
	b, err := models.NewBank(domain.BankID(uuid.New()), p, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.banks.Create(ctx, b); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create bank")
	}
	s.emitAudit(ctx, audit.Event{
		Action:  audit.ActionBankCreated,
		Subject: b.ID.String(),
	})
	return b, nil
}

func (s *Service) Update(ctx context.Context, id domain.BankID, p models.BankParams) (*models.Bank, error) {
	existing, err := s.banks.FindByID(ctx, id)
	if err != nil {
		return nil, wrapBankErr(err)
	}

	updated, err := models.NewBank(id, p, s.now())
	if err != nil {
		return nil, err
	}
	updated.CreatedAt = existing.CreatedAt

	if err := s.banks.Update(ctx, updated); err != nil {
		return nil, wrapBankErr(err)
	}
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id domain.BankID) (*models.Bank, error) {
	b, err := s.banks.FindByID(ctx, id)
	if err != nil {
		return nil, wrapBankErr(err)
	}
	return b, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Bank, error) {
	banks, err := s.banks.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list banks")
	}
	return banks, nil
}

// Delete removes the bank and its entire inventory shelf.
func (s *Service) Delete(ctx context.Context, id domain.BankID) error {
	if err := s.banks.Delete(ctx, id); err != nil {
		return wrapBankErr(err)
	}
	if err := s.inventory.DeleteByBank(ctx, id); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to cascade inventory delete")
	}
	s.emitAudit(ctx, audit.Event{
		Action:  audit.ActionBankDeleted,
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

func wrapBankErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "bank not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "bank store failure")
}
