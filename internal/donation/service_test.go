package donation_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	bankmodels "bloodlink/internal/bank/models"
	bankstore "bloodlink/internal/bank/store"
	"bloodlink/internal/donation"
	"bloodlink/internal/donation/models"
	"bloodlink/internal/donation/store"
	donormodels "bloodlink/internal/donor/models"
	donorstore "bloodlink/internal/donor/store"
	invstore "bloodlink/internal/inventory/store"
	"bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite

	donations *store.Memory
	donors    *donorstore.Memory
	banks     *bankstore.Memory
	inventory *invstore.Memory
	now       time.Time
	service   *donation.Service

	donor *donormodels.Donor
	bank  *bankmodels.Bank
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	ctx := context.Background()
	s.donations = store.NewMemory()
	s.donors = donorstore.NewMemory()
	s.banks = bankstore.NewMemory()
	s.inventory = invstore.NewMemory()
	s.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = donation.NewService(s.donations, s.donors, s.banks, s.inventory, logger,
		donation.WithClock(func() time.Time { return s.now }),
	)

	d, err := donormodels.NewDonor(domain.DonorID(uuid.New()), donormodels.DonorParams{
		Name:       "Dana Osei",
		BloodGroup: "O-",
		Phone:      "5550001111",
		Email:      "dana@example.com",
		City:       "Accra",
	}, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.donors.Create(ctx, d))
	s.donor = d

	b, err := bankmodels.NewBank(domain.BankID(uuid.New()), bankmodels.BankParams{
		Name:  "Central Bank",
		Phone: "5550002222",
		City:  "Accra",
	}, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.banks.Create(ctx, b))
	s.bank = b
}

func (s *ServiceSuite) params(units int) models.DonationParams {
	return models.DonationParams{
		DonorID:    s.donor.ID.String(),
		BankID:     s.bank.ID.String(),
		Units:      units,
		Hemoglobin: 13.5,
	}
}

func (s *ServiceSuite) TestLogCreditsInventoryAndStampsDonor() {
	ctx := context.Background()

	d, err := s.service.Log(ctx, s.params(3))
	s.Require().NoError(err)
	s.Equal(domain.BloodGroupONeg, d.BloodGroup, "group comes from the donor record")

	records, err := s.inventory.ListByBank(ctx, s.bank.ID)
	s.Require().NoError(err)
	s.Require().Len(records, 1, "first donation creates the shelf entry")
	s.Equal(3, records[0].Units)

	donor, err := s.donors.FindByID(ctx, s.donor.ID)
	s.Require().NoError(err)
	s.Require().NotNil(donor.LastDonationDate)
	s.True(donor.LastDonationDate.Equal(s.now))
}

func (s *ServiceSuite) TestLogAccumulates() {
	ctx := context.Background()
	_, err := s.service.Log(ctx, s.params(2))
	s.Require().NoError(err)
	_, err = s.service.Log(ctx, s.params(3))
	s.Require().NoError(err)

	records, err := s.inventory.ListByBank(ctx, s.bank.ID)
	s.Require().NoError(err)
	s.Equal(5, records[0].Units)
}

func (s *ServiceSuite) TestLogUnitBounds() {
	for _, units := range []int{0, 6, -1} {
		_, err := s.service.Log(context.Background(), s.params(units))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	}
}

func (s *ServiceSuite) TestLogUnknownDonor() {
	p := s.params(2)
	p.DonorID = uuid.NewString()
	_, err := s.service.Log(context.Background(), p)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestLogUnknownBank() {
	p := s.params(2)
	p.BankID = uuid.NewString()
	_, err := s.service.Log(context.Background(), p)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestDeleteKeepsInventory() {
	ctx := context.Background()
	d, err := s.service.Log(ctx, s.params(4))
	s.Require().NoError(err)

	s.Require().NoError(s.service.Delete(ctx, d.ID))

	// The record is gone but the credited units stay on the shelf.
	recent, err := s.service.ListRecent(ctx, 10)
	s.Require().NoError(err)
	s.Empty(recent)

	records, err := s.inventory.ListByBank(ctx, s.bank.ID)
	s.Require().NoError(err)
	s.Equal(4, records[0].Units)
}

func (s *ServiceSuite) TestDeleteUnknown() {
	err := s.service.Delete(context.Background(), domain.DonationID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestListRecentOrderAndLimit() {
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		s.now = s.now.Add(time.Hour)
		_, err := s.service.Log(ctx, s.params(1))
		s.Require().NoError(err)
	}

	recent, err := s.service.ListRecent(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(recent, 10)
	for i := 1; i < len(recent); i++ {
		s.False(recent[i].DonatedAt.After(recent[i-1].DonatedAt), "newest first")
	}
}
