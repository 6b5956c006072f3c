package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bloodlink/internal/bank/models"
	"bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

// Postgres persists banks in the banks table. Deleting a bank cascades to
// its inventory rows via the FK.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const bankColumns = `id, name, address, phone, city, latitude, longitude, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, b *models.Bank) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO banks (`+bankColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(b.ID), b.Name, b.Address, b.Phone, b.City,
		b.Location.Lat, b.Location.Lon, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create bank: %w", err)
	}
	return nil
}

func (s *Postgres) Update(ctx context.Context, b *models.Bank) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE banks
		SET name = $2, address = $3, phone = $4, city = $5, latitude = $6, longitude = $7, updated_at = $8
		WHERE id = $1`,
		uuid.UUID(b.ID), b.Name, b.Address, b.Phone, b.City,
		b.Location.Lat, b.Location.Lon, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update bank: %w", err)
	}
	return requireBankRow(res, b.ID)
}

func (s *Postgres) FindByID(ctx context.Context, id domain.BankID) (*models.Bank, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bankColumns+` FROM banks WHERE id = $1`, uuid.UUID(id))
	b, err := scanBank(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bank %s: %w", id, sentinel.ErrNotFound)
	}
	return b, err
}

func (s *Postgres) Delete(ctx context.Context, id domain.BankID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM banks WHERE id = $1`, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("delete bank: %w", err)
	}
	return requireBankRow(res, id)
}

func (s *Postgres) List(ctx context.Context) ([]*models.Bank, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bankColumns+` FROM banks ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list banks: %w", err)
	}
	defer rows.Close()

	var out []*models.Bank
	for rows.Next() {
		b, err := scanBank(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate banks: %w", err)
	}
	return out, nil
}

func (s *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM banks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count banks: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBank(row rowScanner) (*models.Bank, error) {
	var (
		b  models.Bank
		id uuid.UUID
	)
	err := row.Scan(&id, &b.Name, &b.Address, &b.Phone, &b.City,
		&b.Location.Lat, &b.Location.Lon, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan bank: %w", err)
	}
	b.ID = domain.BankID(id)
	return &b, nil
}

func requireBankRow(res sql.Result, id domain.BankID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("bank %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}
