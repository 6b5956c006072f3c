package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bloodlink/internal/donor/models"
	"bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

// Postgres persists donors in the donors table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const donorColumns = `id, name, gender, date_of_birth, blood_group, phone, email, city,
	latitude, longitude, last_donation_date, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, d *models.Donor) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO donors (`+donorColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.UUID(d.ID), d.Name, d.Gender, nullTime(d.DateOfBirth), d.BloodGroup.String(),
		d.Phone, d.Email, d.City, d.Location.Lat, d.Location.Lon,
		nullTime(d.LastDonationDate), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create donor: %w", err)
	}
	return nil
}

func (s *Postgres) Update(ctx context.Context, d *models.Donor) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE donors
		SET name = $2, gender = $3, date_of_birth = $4, blood_group = $5, phone = $6,
		    email = $7, city = $8, latitude = $9, longitude = $10, updated_at = $11
		WHERE id = $1`,
		uuid.UUID(d.ID), d.Name, d.Gender, nullTime(d.DateOfBirth), d.BloodGroup.String(),
		d.Phone, d.Email, d.City, d.Location.Lat, d.Location.Lon, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update donor: %w", err)
	}
	return requireRow(res, d.ID.String())
}

func (s *Postgres) FindByID(ctx context.Context, id domain.DonorID) (*models.Donor, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+donorColumns+` FROM donors WHERE id = $1`, uuid.UUID(id))
	d, err := scanDonor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("donor %s: %w", id, sentinel.ErrNotFound)
	}
	return d, err
}

func (s *Postgres) Delete(ctx context.Context, id domain.DonorID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM donors WHERE id = $1`, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("delete donor: %w", err)
	}
	return requireRow(res, id.String())
}

func (s *Postgres) List(ctx context.Context, f models.Filter) ([]*models.Donor, error) {
	query := `SELECT ` + donorColumns + ` FROM donors`
	var conds []string
	var args []any
	if f.Name != "" {
		args = append(args, "%"+strings.ToLower(f.Name)+"%")
		conds = append(conds, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)))
	}
	if f.City != "" {
		args = append(args, f.City)
		conds = append(conds, fmt.Sprintf("LOWER(city) = LOWER($%d)", len(args)))
	}
	if f.BloodGroup != nil {
		args = append(args, f.BloodGroup.String())
		conds = append(conds, fmt.Sprintf("blood_group = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	return s.queryDonors(ctx, query, args...)
}

func (s *Postgres) ListInactive(ctx context.Context, cutoff time.Time) ([]*models.Donor, error) {
	return s.queryDonors(ctx, `
		SELECT `+donorColumns+` FROM donors
		WHERE last_donation_date IS NULL OR last_donation_date < $1
		ORDER BY created_at DESC, id`, cutoff)
}

func (s *Postgres) SetLastDonationDate(ctx context.Context, id domain.DonorID, date time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE donors SET last_donation_date = $2, updated_at = $2 WHERE id = $1`,
		uuid.UUID(id), date,
	)
	if err != nil {
		return fmt.Errorf("set last donation date: %w", err)
	}
	return requireRow(res, id.String())
}

func (s *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM donors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count donors: %w", err)
	}
	return n, nil
}

func (s *Postgres) queryDonors(ctx context.Context, query string, args ...any) ([]*models.Donor, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list donors: %w", err)
	}
	defer rows.Close()

	var out []*models.Donor
	for rows.Next() {
		d, err := scanDonor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate donors: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDonor(row rowScanner) (*models.Donor, error) {
	var (
		d        models.Donor
		id       uuid.UUID
		group    string
		dob      sql.NullTime
		lastDate sql.NullTime
	)
	err := row.Scan(&id, &d.Name, &d.Gender, &dob, &group, &d.Phone, &d.Email, &d.City,
		&d.Location.Lat, &d.Location.Lon, &lastDate, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan donor: %w", err)
	}
	d.ID = domain.DonorID(id)
	g, err := domain.ParseBloodGroup(group)
	if err != nil {
		return nil, fmt.Errorf("stored blood group %q: %w", group, err)
	}
	d.BloodGroup = g
	if dob.Valid {
		t := dob.Time
		d.DateOfBirth = &t
	}
	if lastDate.Valid {
		t := lastDate.Time
		d.LastDonationDate = &t
	}
	return &d, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("donor %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}
