package donor_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bloodlink/internal/audit"
	"bloodlink/internal/donor"
	"bloodlink/internal/donor/models"
	"bloodlink/internal/donor/store"
	gatemodels "bloodlink/internal/gate/models"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/domain"
)

// stubVerifier records consumed keys and fails after the first consume,
// mirroring the gate's one-shot contract.
type stubVerifier struct {
	verified map[string]string // actionKey -> email
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

type ServiceSuite struct {
	suite.Suite

	store    *store.Memory
	verifier *stubVerifier
	auditLog *audit.MemoryStore
	now      time.Time
	service  *donor.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

// syncPublisher appends directly to the store so tests can assert on the
// trail without running the worker.
type syncPublisher struct{ store audit.Store }

func (p syncPublisher) Emit(ctx context.Context, event audit.Event) error {
	return p.store.Append(ctx, event)
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewMemory()
	s.verifier = &stubVerifier{}
	s.auditLog = audit.NewMemoryStore()
	s.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = donor.NewService(s.store, s.verifier, logger,
		donor.WithClock(func() time.Time { return s.now }),
		donor.WithAuditPublisher(syncPublisher{s.auditLog}),
	)
}

func validParams() models.DonorParams {
	return models.DonorParams{
		Name:       "Dana Osei",
		Gender:     "female",
		BloodGroup: "O-",
		Phone:      "5550001111",
		Email:      "dana@example.com",
		City:       "Accra",
		Lat:        5.6,
		Lon:        -0.19,
	}
}

func (s *ServiceSuite) TestRegisterRequiresVerification() {
	_, err := s.service.Register(context.Background(), validParams())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotVerified))
}

func (s *ServiceSuite) TestRegisterWithVerifiedEmail() {
	s.verifier.allow(gatemodels.DonorRegistrationKey("dana@example.com"), "dana@example.com")

	d, err := s.service.Register(context.Background(), validParams())
	s.Require().NoError(err)
	s.False(d.ID.IsNil())
	s.Equal(domain.BloodGroupONeg, d.BloodGroup)
	s.Nil(d.LastDonationDate)

	events, err := s.auditLog.ListRecent(context.Background(), 1)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionDonorRegistered, events[0].Action)
	s.Equal(d.ID.String(), events[0].Subject)
}

func (s *ServiceSuite) TestRegisterVerificationIsOneShot() {
	s.verifier.allow(gatemodels.DonorRegistrationKey("dana@example.com"), "dana@example.com")

	_, err := s.service.Register(context.Background(), validParams())
	s.Require().NoError(err)

	_, err = s.service.Register(context.Background(), validParams())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotVerified))
}

func (s *ServiceSuite) TestRegisterValidationBeforeGate() {
	p := validParams()
	p.Phone = "123"
	_, err := s.service.Register(context.Background(), p)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest),
		"invalid input must fail validation, not burn the verification")
}

func (s *ServiceSuite) TestRegisterRejectsLoneCoordinate() {
	p := validParams()
	p.Lon = 0
	_, err := s.service.Register(context.Background(), p)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestUpdatePreservesHistory() {
	s.verifier.allow(gatemodels.DonorRegistrationKey("dana@example.com"), "dana@example.com")
	d, err := s.service.Register(context.Background(), validParams())
	s.Require().NoError(err)

	donated := s.now.Add(time.Hour)
	s.Require().NoError(s.store.SetLastDonationDate(context.Background(), d.ID, donated))

	s.now = s.now.Add(48 * time.Hour)
	p := validParams()
	p.City = "Kumasi"
	updated, err := s.service.Update(context.Background(), d.ID, p)
	s.Require().NoError(err)

	s.Equal("Kumasi", updated.City)
	s.Equal(d.CreatedAt, updated.CreatedAt)
	s.Require().NotNil(updated.LastDonationDate)
	s.True(updated.LastDonationDate.Equal(donated))
}

func (s *ServiceSuite) TestGetUnknownDonor() {
	id, err := domain.ParseDonorID("1b671a64-40d5-491e-99b0-da01ff1f3341")
	s.Require().NoError(err)

	_, err = s.service.Get(context.Background(), id)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestDelete() {
	s.verifier.allow(gatemodels.DonorRegistrationKey("dana@example.com"), "dana@example.com")
	d, err := s.service.Register(context.Background(), validParams())
	s.Require().NoError(err)

	s.Require().NoError(s.service.Delete(context.Background(), d.ID))

	_, err = s.service.Get(context.Background(), d.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	err = s.service.Delete(context.Background(), d.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestListFilters() {
	ctx := context.Background()
	people := []struct{ name, email, city, group string }{
		{"Dana Osei", "dana@example.com", "Accra", "O-"},
		{"Kofi Mensah", "kofi@example.com", "Kumasi", "A+"},
		{"Ama Darko", "ama@example.com", "Accra", "A+"},
	}
	for _, person := range people {
		s.verifier.allow(gatemodels.DonorRegistrationKey(person.email), person.email)
		p := validParams()
		p.Name, p.Email, p.City, p.BloodGroup = person.name, person.email, person.city, person.group
		_, err := s.service.Register(ctx, p)
		s.Require().NoError(err)
	}

	all, err := s.service.List(ctx, models.Filter{})
	s.Require().NoError(err)
	s.Len(all, 3)

	group := domain.BloodGroupAPos
	filtered, err := s.service.List(ctx, models.Filter{City: "accra", BloodGroup: &group})
	s.Require().NoError(err)
	s.Require().Len(filtered, 1)
	s.Equal("Ama Darko", filtered[0].Name)

	byName, err := s.service.List(ctx, models.Filter{Name: "osei"})
	s.Require().NoError(err)
	s.Require().Len(byName, 1)
	s.Equal("Dana Osei", byName[0].Name)
}
