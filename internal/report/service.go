// Package report aggregates operational numbers across the feature stores
// and renders CSV exports.
package report

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	bankmodels "bloodlink/internal/bank/models"
	donationmodels "bloodlink/internal/donation/models"
	donormodels "bloodlink/internal/donor/models"
	invmodels "bloodlink/internal/inventory/models"
	reqmodels "bloodlink/internal/request/models"
	dErrors "bloodlink/pkg/domain-errors"
)

type DonorReader interface {
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, f donormodels.Filter) ([]*donormodels.Donor, error)
	ListInactive(ctx context.Context, cutoff time.Time) ([]*donormodels.Donor, error)
}

type BankReader interface {
	Count(ctx context.Context) (int, error)
	List(ctx context.Context) ([]*bankmodels.Bank, error)
}

type InventoryReader interface {
	SumUnits(ctx context.Context) (int, error)
	ListAll(ctx context.Context) ([]invmodels.Record, error)
	ListBelow(ctx context.Context, threshold int) ([]invmodels.Record, error)
}

type DonationReader interface {
	ListAll(ctx context.Context) ([]*donationmodels.Donation, error)
}

type RequestReader interface {
	CountByStatus(ctx context.Context, status reqmodels.Status) (int, error)
	List(ctx context.Context, f reqmodels.Filter) ([]*reqmodels.Request, error)
}

// Summary is the operational dashboard payload.
type Summary struct {
	TotalDonors     int
	TotalBanks      int
	TotalUnits      int
	PendingRequests int
	InactiveDonors  int
	LowInventory    []invmodels.Record
}

// Service computes summaries and exports.
type Service struct {
	donors    DonorReader
	banks     BankReader
	inventory InventoryReader
	donations DonationReader
	requests  RequestReader
	logger    *slog.Logger

	lowStockThreshold  int
	inactiveDonorAfter time.Duration
	now                func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(donors DonorReader, banks BankReader, inventory InventoryReader, donations DonationReader, requests RequestReader, logger *slog.Logger, lowStockThreshold int, inactiveDonorAfter time.Duration, opts ...Option) *Service {
	s := &Service{
		donors:             donors,
		banks:              banks,
		inventory:          inventory,
		donations:          donations,
		requests:           requests,
		logger:             logger,
		lowStockThreshold:  lowStockThreshold,
		inactiveDonorAfter: inactiveDonorAfter,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summary fans the six store reads out concurrently; one failing read fails
// the whole summary.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	var out Summary
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.donors.Count(gctx)
		out.TotalDonors = n
		return err
	})
	g.Go(func() error {
		n, err := s.banks.Count(gctx)
		out.TotalBanks = n
		return err
	})
	g.Go(func() error {
		n, err := s.inventory.SumUnits(gctx)
		out.TotalUnits = n
		return err
	})
	g.Go(func() error {
		n, err := s.requests.CountByStatus(gctx, reqmodels.StatusPending)
		out.PendingRequests = n
		return err
	})
	g.Go(func() error {
		donors, err := s.donors.ListInactive(gctx, s.now().Add(-s.inactiveDonorAfter))
		out.InactiveDonors = len(donors)
		return err
	})
	g.Go(func() error {
		records, err := s.inventory.ListBelow(gctx, s.lowStockThreshold)
		out.LowInventory = records
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build summary")
	}
	return &out, nil
}

// ExportTables lists the table names ExportCSV accepts.
func ExportTables() []string {
	return []string{"donors", "banks", "inventory", "donations", "requests"}
}

// ExportCSV streams the named table as CSV, header row first.
func (s *Service) ExportCSV(ctx context.Context, table string, w io.Writer) error {
	cw := csv.NewWriter(w)
	var err error
	switch table {
	case "donors":
		err = s.exportDonors(ctx, cw)
	case "banks":
		err = s.exportBanks(ctx, cw)
	case "inventory":
		err = s.exportInventory(ctx, cw)
	case "donations":
		err = s.exportDonations(ctx, cw)
	case "requests":
		err = s.exportRequests(ctx, cw)
	default:
		return dErrors.New(dErrors.CodeNotFound, "unknown export table: "+table)
	}
	if err != nil {
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to flush export")
	}
	return nil
}

func (s *Service) exportDonors(ctx context.Context, cw *csv.Writer) error {
	donors, err := s.donors.List(ctx, donormodels.Filter{})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list donors")
	}
	if err := cw.Write([]string{"id", "name", "blood_group", "phone", "email", "city", "lat", "lon", "last_donation_date", "created_at"}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write export")
	}
	for _, d := range donors {
		lastDate := ""
		if d.LastDonationDate != nil {
			lastDate = d.LastDonationDate.Format(time.RFC3339)
		}
		row := []string{
			d.ID.String(), d.Name, d.BloodGroup.String(), d.Phone, d.Email, d.City,
			formatFloat(d.Location.Lat), formatFloat(d.Location.Lon),
			lastDate, d.CreatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write export")
		}
	}
	return nil
}

func (s *Service) exportBanks(ctx context.Context, cw *csv.Writer) error {
	banks, err := s.banks.List(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list banks")
	}
	if err := cw.Write([]string{"id", "name", "address", "phone", "city", "lat", "lon", "created_at"}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write export")
	}
	for _, b := range banks {
		row := []string{
			b.ID.String(), b.Name, b.Address, b.Phone, b.City,
			formatFloat(b.Location.Lat), formatFloat(b.Location.Lon),
			b.CreatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write export")
		}
	}
	return nil
}

func (s *Service) exportInventory(ctx context.Context, cw *csv.Writer) error {
	records, err := s.inventory.ListAll(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list inventory")
	}
	if err := cw.Write([]string{"bank_id", "blood_group", "units", "updated_at"}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write export")
	}
	for _, rec := range records {
		row := []string{
			rec.BankID.String(), rec.BloodGroup.String(),
			strconv.Itoa(rec.Units), rec.UpdatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write export")
		}
	}
	return nil
}

func (s *Service) exportDonations(ctx context.Context, cw *csv.Writer) error {
	donations, err := s.donations.ListAll(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list donations")
	}
	if err := cw.Write([]string{"id", "donor_id", "bank_id", "blood_group", "units", "hemoglobin", "donated_at"}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write export")
	}
	for _, d := range donations {
		row := []string{
			d.ID.String(), d.DonorID.String(), d.BankID.String(), d.BloodGroup.String(),
			strconv.Itoa(d.Units), formatFloat(d.Hemoglobin),
			d.DonatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write export")
		}
	}
	return nil
}

func (s *Service) exportRequests(ctx context.Context, cw *csv.Writer) error {
	requests, err := s.requests.List(ctx, reqmodels.Filter{})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list requests")
	}
	if err := cw.Write([]string{"id", "patient_name", "blood_group", "units_required", "city", "contact_email", "status", "assigned_kind", "assigned_id", "created_at"}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write export")
	}
	for _, r := range requests {
		assignedID := ""
		if r.AssignedBankID != nil {
			assignedID = r.AssignedBankID.String()
		} else if r.AssignedDonorID != nil {
			assignedID = r.AssignedDonorID.String()
		}
		row := []string{
			r.ID.String(), r.PatientName, r.BloodGroup.String(),
			strconv.Itoa(r.UnitsRequired), r.City, r.Email,
			string(r.Status), string(r.AssignedKind), assignedID,
			r.CreatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write export")
		}
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
