// Package request implements the request lifecycle controller. It owns
// every status transition; the allocation engine asks the store for the
// pending->assigned edge but all operator-facing transitions come through
// here.
package request

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bloodlink/internal/audit"
	gatemodels "bloodlink/internal/gate/models"
	"bloodlink/internal/platform/metrics"
	"bloodlink/internal/platform/middleware"
	"bloodlink/internal/request/models"
	"bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/sentinel"
)

type Store interface {
	Create(ctx context.Context, r *models.Request) error
	FindByID(ctx context.Context, id domain.RequestID) (*models.Request, error)
	Delete(ctx context.Context, id domain.RequestID) error
	List(ctx context.Context, f models.Filter) ([]*models.Request, error)
	CountByStatus(ctx context.Context, status models.Status) (int, error)
	AssignIfPending(ctx context.Context, id domain.RequestID, kind models.AssignedKind, bankID *domain.BankID, donorID *domain.DonorID, now time.Time) error
	UpdateStatusIf(ctx context.Context, id domain.RequestID, from []models.Status, to models.Status, now time.Time) error
}

// Verifier is the slice of the gate the request flow needs.
type Verifier interface {
	ConsumeVerification(ctx context.Context, actionKey, email string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the lifecycle controller.
type Service struct {
	requests Store
	gate     Verifier
	logger   *slog.Logger
	audit    AuditPublisher
	metrics  *metrics.Metrics
	now      func() time.Time
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

func NewService(requests Store, gate Verifier, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		requests: requests,
		gate:     gate,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a pending request. The contact email must carry a live
// verification for the request-creation action; the verification is
// consumed here, so one confirm authorizes exactly one request.
func (s *Service) Create(ctx context.Context, p models.RequestParams) (*models.Request, error) {
	r, err := models.NewRequest(domain.RequestID(uuid.New()), p, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.gate.ConsumeVerification(ctx, gatemodels.RequestCreationKey(r.Email), r.Email); err != nil {
		return nil, err
	}

	if err := s.requests.Create(ctx, r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create request")
	}

	s.emitAudit(ctx, audit.Event{
		Action:  audit.ActionRequestCreated,
		Subject: r.ID.String(),
		Email:   r.Email,
	})
	if s.metrics != nil {
		s.metrics.RequestsCreated.Inc()
	}
	return r, nil
}

func (s *Service) Get(ctx context.Context, id domain.RequestID) (*models.Request, error) {
	r, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, wrapRequestErr(err)
	}
	return r, nil
}

func (s *Service) List(ctx context.Context, f models.Filter) ([]*models.Request, error) {
	requests, err := s.requests.List(ctx, f)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list requests")
	}
	return requests, nil
}

// MarkFulfilled closes the request as satisfied. Pending requests qualify
// too: requesters sometimes source blood outside the system. The
// transition is conditional at the store so a concurrent cancel cannot be
// overwritten.
func (s *Service) MarkFulfilled(ctx context.Context, id domain.RequestID) (*models.Request, error) {
	err := s.requests.UpdateStatusIf(ctx, id,
		[]models.Status{models.StatusPending, models.StatusAssigned},
		models.StatusFulfilled, s.now())
	if err != nil {
		return nil, wrapRequestErr(err)
	}

	s.emitAudit(ctx, audit.Event{
		Action:  audit.ActionRequestFulfilled,
		Subject: id.String(),
	})
	return s.Get(ctx, id)
}

// Cancel closes the request unmet. Non-admin callers may only cancel
// pending requests; the admin capability also covers assigned ones.
// Cancelling never returns stock: an assigned request's units were handed
// to the requester's hospital and their fate is settled offline.
func (s *Service) Cancel(ctx context.Context, id domain.RequestID, admin bool, reason string) (*models.Request, error) {
	from := []models.Status{models.StatusPending}
	if admin {
		from = append(from, models.StatusAssigned)
	}

	err := s.requests.UpdateStatusIf(ctx, id, from, models.StatusCancelled, s.now())
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) && !admin {
			// Disambiguate for the caller: an assigned request is
			// cancellable, just not by them.
			if r, loadErr := s.requests.FindByID(ctx, id); loadErr == nil {
				if cancelErr := r.CanCancel(admin); cancelErr != nil {
					return nil, cancelErr
				}
			}
		}
		return nil, wrapRequestErr(err)
	}

	s.emitAudit(ctx, audit.Event{
		Action:  audit.ActionRequestCancelled,
		Subject: id.String(),
		Reason:  reason,
	})
	return s.Get(ctx, id)
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

func wrapRequestErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "request not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvalidState, "request is not in an allowed state for this transition")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "request store failure")
	}
}
