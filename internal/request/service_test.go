package request_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bloodlink/internal/audit"
	gatemodels "bloodlink/internal/gate/models"
	"bloodlink/internal/request"
	"bloodlink/internal/request/models"
	"bloodlink/internal/request/store"
	"bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
)

type stubVerifier struct {
	verified map[string]string
}

func (v *stubVerifier) allow(actionKey, email string) {
	if v.verified == nil {
		v.verified = make(map[string]string)
	}
	v.verified[actionKey] = email
}

func (v *stubVerifier) ConsumeVerification(_ context.Context, actionKey, email string) error {
	stored, ok := v.verified[actionKey]
	if !ok || stored != email {
		return dErrors.New(dErrors.CodeNotVerified, "email has not been verified for this action")
	}
	delete(v.verified, actionKey)
	return nil
}

type syncPublisher struct{ store audit.Store }

func (p syncPublisher) Emit(ctx context.Context, event audit.Event) error {
	return p.store.Append(ctx, event)
}

type ServiceSuite struct {
	suite.Suite

	store    *store.Memory
	verifier *stubVerifier
	auditLog *audit.MemoryStore
	now      time.Time
	service  *request.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewMemory()
	s.verifier = &stubVerifier{}
	s.auditLog = audit.NewMemoryStore()
	s.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = request.NewService(s.store, s.verifier, logger,
		request.WithClock(func() time.Time { return s.now }),
		request.WithAuditPublisher(syncPublisher{s.auditLog}),
	)
}

func validParams() models.RequestParams {
	return models.RequestParams{
		PatientName:   "Kwame Boateng",
		BloodGroup:    "B+",
		UnitsRequired: 2,
		City:          "Accra",
		Email:         "ward4@example.com",
		Lat:           5.6,
		Lon:           -0.19,
	}
}

func (s *ServiceSuite) createPending() *models.Request {
	s.verifier.allow(gatemodels.RequestCreationKey("ward4@example.com"), "ward4@example.com")
	r, err := s.service.Create(context.Background(), validParams())
	s.Require().NoError(err)
	return r
}

func (s *ServiceSuite) TestCreateRequiresVerification() {
	_, err := s.service.Create(context.Background(), validParams())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotVerified))
}

func (s *ServiceSuite) TestCreateOpensPending() {
	r := s.createPending()
	s.Equal(models.StatusPending, r.Status)
	s.Equal(domain.BloodGroupBPos, r.BloodGroup)
	s.Empty(r.AssignedKind)

	events, err := s.auditLog.ListRecent(context.Background(), 1)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionRequestCreated, events[0].Action)
	s.Equal(r.ID.String(), events[0].Subject)
}

func (s *ServiceSuite) TestCreateValidationBeforeGate() {
	s.verifier.allow(gatemodels.RequestCreationKey("ward4@example.com"), "ward4@example.com")

	p := validParams()
	p.UnitsRequired = 11
	_, err := s.service.Create(context.Background(), p)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	// The verification survived the rejected attempt.
	_, err = s.service.Create(context.Background(), validParams())
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestFulfillFromPending() {
	r := s.createPending()

	fulfilled, err := s.service.MarkFulfilled(context.Background(), r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusFulfilled, fulfilled.Status)
}

func (s *ServiceSuite) TestFulfillFromAssigned() {
	r := s.createPending()
	bankID := domain.BankID(r.ID) // any uuid will do
	s.Require().NoError(s.store.AssignIfPending(context.Background(), r.ID,
		models.AssignedKindBank, &bankID, nil, s.now))

	fulfilled, err := s.service.MarkFulfilled(context.Background(), r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusFulfilled, fulfilled.Status)
}

func (s *ServiceSuite) TestFulfillTerminalRejected() {
	r := s.createPending()
	_, err := s.service.Cancel(context.Background(), r.ID, false, "no longer needed")
	s.Require().NoError(err)

	_, err = s.service.MarkFulfilled(context.Background(), r.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ServiceSuite) TestCancelPending() {
	r := s.createPending()

	cancelled, err := s.service.Cancel(context.Background(), r.ID, false, "duplicate entry")
	s.Require().NoError(err)
	s.Equal(models.StatusCancelled, cancelled.Status)

	events, err := s.auditLog.ListRecent(context.Background(), 1)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionRequestCancelled, events[0].Action)
	s.Equal("duplicate entry", events[0].Reason)
}

func (s *ServiceSuite) TestCancelAssignedNeedsAdmin() {
	r := s.createPending()
	bankID := domain.BankID(r.ID)
	s.Require().NoError(s.store.AssignIfPending(context.Background(), r.ID,
		models.AssignedKindBank, &bankID, nil, s.now))

	_, err := s.service.Cancel(context.Background(), r.ID, false, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	// Still assigned.
	current, err := s.service.Get(context.Background(), r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusAssigned, current.Status)

	cancelled, err := s.service.Cancel(context.Background(), r.ID, true, "hospital withdrew")
	s.Require().NoError(err)
	s.Equal(models.StatusCancelled, cancelled.Status)
}

func (s *ServiceSuite) TestCancelTerminalRejected() {
	r := s.createPending()
	_, err := s.service.MarkFulfilled(context.Background(), r.ID)
	s.Require().NoError(err)

	_, err = s.service.Cancel(context.Background(), r.ID, true, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ServiceSuite) TestCancelUnknownRequest() {
	id, err := domain.ParseRequestID("1b671a64-40d5-491e-99b0-da01ff1f3341")
	s.Require().NoError(err)

	_, err = s.service.Cancel(context.Background(), id, true, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestListByStatus() {
	first := s.createPending()
	s.now = s.now.Add(time.Minute)

	s.verifier.allow(gatemodels.RequestCreationKey("ward5@example.com"), "ward5@example.com")
	p := validParams()
	p.Email = "ward5@example.com"
	second, err := s.service.Create(context.Background(), p)
	s.Require().NoError(err)

	_, err = s.service.MarkFulfilled(context.Background(), first.ID)
	s.Require().NoError(err)

	pending := models.StatusPending
	got, err := s.service.List(context.Background(), models.Filter{Status: &pending})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(second.ID, got[0].ID)
}
