// Package allocation matches pending requests to supply. Matching is a
// two-phase conversation: Propose computes a ranked, advisory candidate
// list from a snapshot; Commit re-checks the chosen candidate against
// live stock at the storage boundary. Proposals carry no reservation, so
// a committed candidate can always turn out stale.
package allocation

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"bloodlink/internal/allocation/metrics"
	"bloodlink/internal/audit"
	bankmodels "bloodlink/internal/bank/models"
	donormodels "bloodlink/internal/donor/models"
	invmodels "bloodlink/internal/inventory/models"
	"bloodlink/internal/platform/middleware"
	reqmodels "bloodlink/internal/request/models"
	"bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/sentinel"
)

// Candidate is one advisory match. Exactly one of BankID/DonorID is set,
// according to Kind. Units is the bank's available stock at proposal time;
// zero for donor candidates.
type Candidate struct {
	Kind            reqmodels.AssignedKind
	BankID          *domain.BankID
	DonorID         *domain.DonorID
	Units           int
	DistanceSquared float64
}

// RequestStore is the slice of the request store the engine needs.
type RequestStore interface {
	FindByID(ctx context.Context, id domain.RequestID) (*reqmodels.Request, error)
	AssignIfPending(ctx context.Context, id domain.RequestID, kind reqmodels.AssignedKind, bankID *domain.BankID, donorID *domain.DonorID, now time.Time) error
}

// InventoryStore is the slice of the inventory store the engine needs.
type InventoryStore interface {
	FindSufficient(ctx context.Context, group domain.BloodGroup, units int) ([]invmodels.Record, error)
	DecrementIfAvailable(ctx context.Context, bankID domain.BankID, group domain.BloodGroup, units int) error
	AddUnits(ctx context.Context, bankID domain.BankID, group domain.BloodGroup, units int, now time.Time) error
}

// BankDirectory resolves bank locations for ranking.
type BankDirectory interface {
	FindByID(ctx context.Context, id domain.BankID) (*bankmodels.Bank, error)
}

// DonorDirectory lists fallback donors by exact blood group.
type DonorDirectory interface {
	List(ctx context.Context, f donormodels.Filter) ([]*donormodels.Donor, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Engine proposes and commits allocations.
type Engine struct {
	requests  RequestStore
	inventory InventoryStore
	banks     BankDirectory
	donors    DonorDirectory
	logger    *slog.Logger
	audit     AuditPublisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

type Option func(*Engine)

func WithAuditPublisher(p AuditPublisher) Option {
	return func(e *Engine) { e.audit = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(requests RequestStore, inventory InventoryStore, banks BankDirectory, donors DonorDirectory, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		requests:  requests,
		inventory: inventory,
		banks:     banks,
		donors:    donors,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Propose returns the ranked candidate list for a pending request. Banks
// holding enough stock of the exact group come first, ordered by squared
// straight-line distance with the lower ID breaking ties. Only when no
// bank qualifies does the engine fall back to individual donors of the
// exact group, ranked the same way. The list is advisory: nothing is
// reserved.
func (e *Engine) Propose(ctx context.Context, requestID domain.RequestID) ([]Candidate, error) {
	r, err := e.loadPending(ctx, requestID)
	if err != nil {
		return nil, err
	}

	records, err := e.inventory.FindSufficient(ctx, r.BloodGroup, r.UnitsRequired)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to scan inventory")
	}
	if len(records) > 0 {
		candidates, err := e.rankBanks(ctx, r, records)
		if err != nil {
			return nil, err
		}
		e.metrics.ObserveProposal("banks")
		return candidates, nil
	}

	donors, err := e.donors.List(ctx, donormodels.Filter{BloodGroup: &r.BloodGroup})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to scan donors")
	}
	if len(donors) == 0 {
		e.metrics.ObserveProposal("no_supply")
		return nil, dErrors.New(dErrors.CodeNoSupply, "no bank or donor can satisfy this request")
	}

	candidates := e.rankDonors(r, donors)
	e.metrics.ObserveProposal("donors")
	return candidates, nil
}

// Commit assigns the chosen candidate to the request. For bank candidates
// the stock is re-checked and taken in one atomic decrement first: if the
// shelf moved since the proposal, the commit fails stale and nothing
// changes. Donor candidates assign without touching inventory.
func (e *Engine) Commit(ctx context.Context, requestID domain.RequestID, c Candidate) (*reqmodels.Request, error) {
	r, err := e.loadPending(ctx, requestID)
	if err != nil {
		return nil, err
	}

	switch c.Kind {
	case reqmodels.AssignedKindBank:
		if c.BankID == nil {
			return nil, dErrors.New(dErrors.CodeBadRequest, "bank candidate requires a bank id")
		}
		return e.commitBank(ctx, r, *c.BankID)
	case reqmodels.AssignedKindDonor:
		if c.DonorID == nil {
			return nil, dErrors.New(dErrors.CodeBadRequest, "donor candidate requires a donor id")
		}
		return e.commitDonor(ctx, r, *c.DonorID)
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown candidate kind")
	}
}

func (e *Engine) commitBank(ctx context.Context, r *reqmodels.Request, bankID domain.BankID) (*reqmodels.Request, error) {
	// Take the stock first. The conditional decrement is the commit-time
	// re-check: zero rows means the proposal went stale.
	if err := e.inventory.DecrementIfAvailable(ctx, bankID, r.BloodGroup, r.UnitsRequired); err != nil {
		if errors.Is(err, sentinel.ErrInsufficientStock) {
			e.metrics.ObserveCommit("stale_candidate")
			return nil, dErrors.New(dErrors.CodeStaleCandidate, "bank stock changed since the proposal; re-propose")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to take stock")
	}

	if err := e.requests.AssignIfPending(ctx, r.ID, reqmodels.AssignedKindBank, &bankID, nil, e.now()); err != nil {
		// The request left pending while we held the stock; put it back.
		if addErr := e.inventory.AddUnits(ctx, bankID, r.BloodGroup, r.UnitsRequired, e.now()); addErr != nil {
			e.logger.ErrorContext(ctx, "failed to return stock after assign race",
				"bank_id", bankID.String(),
				"request_id", middleware.GetRequestID(ctx),
				"error", addErr.Error(),
			)
		}
		e.metrics.ObserveCommit("assign_race")
		return nil, wrapAssignErr(err)
	}

	e.metrics.ObserveCommit("bank_assigned")
	e.emitAssigned(ctx, r.ID, "bank "+bankID.String())
	return e.requests.FindByID(ctx, r.ID)
}

func (e *Engine) commitDonor(ctx context.Context, r *reqmodels.Request, donorID domain.DonorID) (*reqmodels.Request, error) {
	if err := e.requests.AssignIfPending(ctx, r.ID, reqmodels.AssignedKindDonor, nil, &donorID, e.now()); err != nil {
		e.metrics.ObserveCommit("assign_race")
		return nil, wrapAssignErr(err)
	}

	e.metrics.ObserveCommit("donor_assigned")
	e.emitAssigned(ctx, r.ID, "donor "+donorID.String())
	return e.requests.FindByID(ctx, r.ID)
}

func (e *Engine) loadPending(ctx context.Context, requestID domain.RequestID) (*reqmodels.Request, error) {
	r, err := e.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request")
	}
	if err := r.CanAssign(); err != nil {
		return nil, err
	}
	return r, nil
}

func (e *Engine) rankBanks(ctx context.Context, r *reqmodels.Request, records []invmodels.Record) ([]Candidate, error) {
	candidates := make([]Candidate, 0, len(records))
	for _, rec := range records {
		b, err := e.banks.FindByID(ctx, rec.BankID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				// Shelf entry for a bank deleted mid-scan; skip it.
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load bank")
		}
		bankID := rec.BankID
		candidates = append(candidates, Candidate{
			Kind:            reqmodels.AssignedKindBank,
			BankID:          &bankID,
			Units:           rec.Units,
			DistanceSquared: b.Location.DistanceSquared(r.Location),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].DistanceSquared != candidates[j].DistanceSquared {
			return candidates[i].DistanceSquared < candidates[j].DistanceSquared
		}
		return candidates[i].BankID.String() < candidates[j].BankID.String()
	})
	return candidates, nil
}

func (e *Engine) rankDonors(r *reqmodels.Request, donors []*donormodels.Donor) []Candidate {
	candidates := make([]Candidate, 0, len(donors))
	for _, d := range donors {
		donorID := d.ID
		candidates = append(candidates, Candidate{
			Kind:            reqmodels.AssignedKindDonor,
			DonorID:         &donorID,
			DistanceSquared: d.Location.DistanceSquared(r.Location),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].DistanceSquared != candidates[j].DistanceSquared {
			return candidates[i].DistanceSquared < candidates[j].DistanceSquared
		}
		return candidates[i].DonorID.String() < candidates[j].DonorID.String()
	})
	return candidates
}

func (e *Engine) emitAssigned(ctx context.Context, requestID domain.RequestID, reason string) {
	if e.audit == nil {
		return
	}
	event := audit.Event{
		Action:    audit.ActionRequestAssigned,
		Subject:   requestID.String(),
		RequestID: middleware.GetRequestID(ctx),
		Reason:    reason,
	}
	if err := e.audit.Emit(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err.Error(),
		)
	}
}

func wrapAssignErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "request not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvalidState, "request left pending during commit")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to assign request")
	}
}
