package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bloodlink/internal/donation/models"
	"bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

// Postgres persists donations in the donations table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const donationColumns = `id, donor_id, bank_id, blood_group, units, hemoglobin, donated_at, created_at`

func (s *Postgres) Create(ctx context.Context, d *models.Donation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO donations (`+donationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(d.ID), uuid.UUID(d.DonorID), uuid.UUID(d.BankID), d.BloodGroup.String(),
		d.Units, d.Hemoglobin, d.DonatedAt, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create donation: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.DonationID) (*models.Donation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+donationColumns+` FROM donations WHERE id = $1`, uuid.UUID(id))
	d, err := scanDonation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("donation %s: %w", id, sentinel.ErrNotFound)
	}
	return d, err
}

func (s *Postgres) Delete(ctx context.Context, id domain.DonationID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM donations WHERE id = $1`, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("delete donation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("donation %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Postgres) ListRecent(ctx context.Context, limit int) ([]*models.Donation, error) {
	return s.queryDonations(ctx, `
		SELECT `+donationColumns+` FROM donations
		ORDER BY donated_at DESC, id
		LIMIT $1`, limit)
}

func (s *Postgres) ListAll(ctx context.Context) ([]*models.Donation, error) {
	return s.queryDonations(ctx, `
		SELECT `+donationColumns+` FROM donations
		ORDER BY donated_at DESC, id`)
}

func (s *Postgres) queryDonations(ctx context.Context, query string, args ...any) ([]*models.Donation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	defer rows.Close()

	var out []*models.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate donations: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDonation(row rowScanner) (*models.Donation, error) {
	var (
		d                   models.Donation
		id, donorID, bankID uuid.UUID
		group               string
	)
	err := row.Scan(&id, &donorID, &bankID, &group, &d.Units, &d.Hemoglobin, &d.DonatedAt, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan donation: %w", err)
	}
	d.ID = domain.DonationID(id)
	d.DonorID = domain.DonorID(donorID)
	d.BankID = domain.BankID(bankID)
	g, err := domain.ParseBloodGroup(group)
	if err != nil {
		return nil, fmt.Errorf("stored blood group %q: %w", group, err)
	}
	d.BloodGroup = g
	return &d, nil
}
