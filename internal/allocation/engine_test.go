package allocation_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"bloodlink/internal/allocation"
	"bloodlink/internal/audit"
	bankmodels "bloodlink/internal/bank/models"
	bankstore "bloodlink/internal/bank/store"
	donormodels "bloodlink/internal/donor/models"
	donorstore "bloodlink/internal/donor/store"
	invstore "bloodlink/internal/inventory/store"
	reqmodels "bloodlink/internal/request/models"
	reqstore "bloodlink/internal/request/store"
	"bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
)

type syncPublisher struct{ store audit.Store }

func (p syncPublisher) Emit(ctx context.Context, event audit.Event) error {
	return p.store.Append(ctx, event)
}

type EngineSuite struct {
	suite.Suite

	requests  *reqstore.Memory
	inventory *invstore.Memory
	banks     *bankstore.Memory
	donors    *donorstore.Memory
	auditLog  *audit.MemoryStore
	now       time.Time
	engine    *allocation.Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.requests = reqstore.NewMemory()
	s.inventory = invstore.NewMemory()
	s.banks = bankstore.NewMemory()
	s.donors = donorstore.NewMemory()
	s.auditLog = audit.NewMemoryStore()
	s.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.engine = allocation.NewEngine(s.requests, s.inventory, s.banks, s.donors, logger,
		allocation.WithClock(func() time.Time { return s.now }),
		allocation.WithAuditPublisher(syncPublisher{s.auditLog}),
	)
}

// newRequest opens a pending B+ request for 2 units at the origin.
func (s *EngineSuite) newRequest() *reqmodels.Request {
	r, err := reqmodels.NewRequest(domain.RequestID(uuid.New()), reqmodels.RequestParams{
		PatientName:   "Kwame Boateng",
		BloodGroup:    "B+",
		UnitsRequired: 2,
		City:          "Accra",
		Email:         "ward4@example.com",
		Lat:           0.01,
		Lon:           0.01,
	}, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.requests.Create(context.Background(), r))
	return r
}

// newBank registers a bank at the given coordinates.
func (s *EngineSuite) newBank(name string, lat, lon float64) *bankmodels.Bank {
	b, err := bankmodels.NewBank(domain.BankID(uuid.New()), bankmodels.BankParams{
		Name:  name,
		Phone: "5550002222",
		City:  "Accra",
		Lat:   lat,
		Lon:   lon,
	}, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.banks.Create(context.Background(), b))
	return b
}

// newDonor registers a donor of the given group at the coordinates.
func (s *EngineSuite) newDonor(name, email, group string, lat, lon float64) *donormodels.Donor {
	d, err := donormodels.NewDonor(domain.DonorID(uuid.New()), donormodels.DonorParams{
		Name:       name,
		BloodGroup: group,
		Phone:      "5550001111",
		Email:      email,
		City:       "Accra",
		Lat:        lat,
		Lon:        lon,
	}, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.donors.Create(context.Background(), d))
	return d
}

func (s *EngineSuite) stock(bankID domain.BankID, group domain.BloodGroup, units int) {
	s.Require().NoError(s.inventory.AddUnits(context.Background(), bankID, group, units, s.now))
}

func (s *EngineSuite) TestProposeRanksBanksByDistance() {
	ctx := context.Background()
	r := s.newRequest()

	far := s.newBank("Far Bank", 10, 10)
	near := s.newBank("Near Bank", 0.02, 0.02)
	s.stock(far.ID, domain.BloodGroupBPos, 5)
	s.stock(near.ID, domain.BloodGroupBPos, 5)

	candidates, err := s.engine.Propose(ctx, r.ID)
	s.Require().NoError(err)
	s.Require().Len(candidates, 2)
	s.Equal(near.ID, *candidates[0].BankID)
	s.Equal(far.ID, *candidates[1].BankID)
	s.Less(candidates[0].DistanceSquared, candidates[1].DistanceSquared)
}

func (s *EngineSuite) TestProposeSkipsInsufficientAndWrongGroup() {
	ctx := context.Background()
	r := s.newRequest()

	short := s.newBank("Short Bank", 0.02, 0.02)
	wrong := s.newBank("Wrong Group Bank", 0.02, 0.02)
	good := s.newBank("Good Bank", 5, 5)
	s.stock(short.ID, domain.BloodGroupBPos, 1) // request needs 2
	s.stock(wrong.ID, domain.BloodGroupAPos, 10)
	s.stock(good.ID, domain.BloodGroupBPos, 2)

	candidates, err := s.engine.Propose(ctx, r.ID)
	s.Require().NoError(err)
	s.Require().Len(candidates, 1)
	s.Equal(good.ID, *candidates[0].BankID)
}

func (s *EngineSuite) TestProposeTieBreaksOnLowerID() {
	ctx := context.Background()
	r := s.newRequest()

	// Same spot, so the distances are identical and the ID decides.
	a := s.newBank("Bank A", 2, 2)
	b := s.newBank("Bank B", 2, 2)
	s.stock(a.ID, domain.BloodGroupBPos, 5)
	s.stock(b.ID, domain.BloodGroupBPos, 5)

	candidates, err := s.engine.Propose(ctx, r.ID)
	s.Require().NoError(err)
	s.Require().Len(candidates, 2)
	s.Equal(candidates[0].DistanceSquared, candidates[1].DistanceSquared)
	s.Less(candidates[0].BankID.String(), candidates[1].BankID.String())
}

func (s *EngineSuite) TestProposeFallsBackToDonors() {
	ctx := context.Background()
	r := s.newRequest()

	far := s.newDonor("Far Donor", "far@example.com", "B+", 10, 10)
	near := s.newDonor("Near Donor", "near@example.com", "B+", 0.02, 0.02)
	s.newDonor("Wrong Group", "wrong@example.com", "O-", 0.02, 0.02)

	candidates, err := s.engine.Propose(ctx, r.ID)
	s.Require().NoError(err)
	s.Require().Len(candidates, 2)
	s.Equal(reqmodels.AssignedKindDonor, candidates[0].Kind)
	s.Equal(near.ID, *candidates[0].DonorID)
	s.Equal(far.ID, *candidates[1].DonorID)
}

func (s *EngineSuite) TestProposeBanksShadowDonors() {
	ctx := context.Background()
	r := s.newRequest()

	b := s.newBank("Stocked Bank", 8, 8)
	s.stock(b.ID, domain.BloodGroupBPos, 5)
	s.newDonor("Closer Donor", "closer@example.com", "B+", 0.02, 0.02)

	// A qualifying bank exists, so donors stay out of the list even when
	// one is nearer.
	candidates, err := s.engine.Propose(ctx, r.ID)
	s.Require().NoError(err)
	s.Require().Len(candidates, 1)
	s.Equal(reqmodels.AssignedKindBank, candidates[0].Kind)
}

func (s *EngineSuite) TestProposeNoSupply() {
	ctx := context.Background()
	r := s.newRequest()

	_, err := s.engine.Propose(ctx, r.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNoSupply))
}

func (s *EngineSuite) TestProposeNonPendingRejected() {
	ctx := context.Background()
	r := s.newRequest()
	s.Require().NoError(s.requests.UpdateStatusIf(ctx, r.ID,
		[]reqmodels.Status{reqmodels.StatusPending}, reqmodels.StatusCancelled, s.now))

	_, err := s.engine.Propose(ctx, r.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *EngineSuite) TestCommitBankTakesStockAndAssigns() {
	ctx := context.Background()
	r := s.newRequest()
	b := s.newBank("Stocked Bank", 0.02, 0.02)
	s.stock(b.ID, domain.BloodGroupBPos, 5)

	candidates, err := s.engine.Propose(ctx, r.ID)
	s.Require().NoError(err)

	assigned, err := s.engine.Commit(ctx, r.ID, candidates[0])
	s.Require().NoError(err)
	s.Equal(reqmodels.StatusAssigned, assigned.Status)
	s.Equal(reqmodels.AssignedKindBank, assigned.AssignedKind)
	s.Require().NotNil(assigned.AssignedBankID)
	s.Equal(b.ID, *assigned.AssignedBankID)

	shelf, err := s.inventory.ListByBank(ctx, b.ID)
	s.Require().NoError(err)
	s.Require().Len(shelf, 1)
	s.Equal(3, shelf[0].Units)

	events, err := s.auditLog.ListRecent(ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionRequestAssigned, events[0].Action)
}

func (s *EngineSuite) TestCommitStaleCandidateLeavesEverythingUntouched() {
	ctx := context.Background()
	r := s.newRequest()
	b := s.newBank("Stocked Bank", 0.02, 0.02)
	s.stock(b.ID, domain.BloodGroupBPos, 2)

	candidates, err := s.engine.Propose(ctx, r.ID)
	s.Require().NoError(err)

	// Stock drains between propose and commit.
	s.Require().NoError(s.inventory.DecrementIfAvailable(ctx, b.ID, domain.BloodGroupBPos, 1))

	_, err = s.engine.Commit(ctx, r.ID, candidates[0])
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeStaleCandidate))

	current, err := s.requests.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(reqmodels.StatusPending, current.Status)

	shelf, err := s.inventory.ListByBank(ctx, b.ID)
	s.Require().NoError(err)
	s.Require().Len(shelf, 1)
	s.Equal(1, shelf[0].Units, "a stale commit must not touch stock")
}

func (s *EngineSuite) TestCommitSecondLoses() {
	ctx := context.Background()
	r := s.newRequest()
	b := s.newBank("Stocked Bank", 0.02, 0.02)
	s.stock(b.ID, domain.BloodGroupBPos, 10)

	candidates, err := s.engine.Propose(ctx, r.ID)
	s.Require().NoError(err)

	_, err = s.engine.Commit(ctx, r.ID, candidates[0])
	s.Require().NoError(err)

	_, err = s.engine.Commit(ctx, r.ID, candidates[0])
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	// The losing commit returned its decrement.
	shelf, err := s.inventory.ListByBank(ctx, b.ID)
	s.Require().NoError(err)
	s.Require().Len(shelf, 1)
	s.Equal(8, shelf[0].Units)
}

func (s *EngineSuite) TestCommitDonorSkipsInventory() {
	ctx := context.Background()
	r := s.newRequest()
	d := s.newDonor("Near Donor", "near@example.com", "B+", 0.02, 0.02)

	candidates, err := s.engine.Propose(ctx, r.ID)
	s.Require().NoError(err)

	assigned, err := s.engine.Commit(ctx, r.ID, candidates[0])
	s.Require().NoError(err)
	s.Equal(reqmodels.StatusAssigned, assigned.Status)
	s.Equal(reqmodels.AssignedKindDonor, assigned.AssignedKind)
	s.Require().NotNil(assigned.AssignedDonorID)
	s.Equal(d.ID, *assigned.AssignedDonorID)
}

func (s *EngineSuite) TestCommitUnknownRequest() {
	ctx := context.Background()
	bankID := domain.BankID(uuid.New())
	id := domain.RequestID(uuid.New())

	_, err := s.engine.Commit(ctx, id, allocation.Candidate{
		Kind:   reqmodels.AssignedKindBank,
		BankID: &bankID,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *EngineSuite) TestCommitKindWithoutID() {
	ctx := context.Background()
	r := s.newRequest()

	_, err := s.engine.Commit(ctx, r.ID, allocation.Candidate{Kind: reqmodels.AssignedKindBank})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}
