package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bloodlink/internal/inventory/models"
	"bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

// Postgres persists inventory in the inventory table, keyed by
// (bank_id, blood_group).
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// AddUnits upserts the shelf entry, incrementing on conflict. First
// donation of a group at a bank creates the row.
func (s *Postgres) AddUnits(ctx context.Context, bankID domain.BankID, group domain.BloodGroup, units int, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory (bank_id, blood_group, units, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (bank_id, blood_group)
		DO UPDATE SET units = inventory.units + EXCLUDED.units, updated_at = EXCLUDED.updated_at`,
		uuid.UUID(bankID), group.String(), units, now,
	)
	if err != nil {
		return fmt.Errorf("add units: %w", err)
	}
	return nil
}

// DecrementIfAvailable removes units in a single conditional UPDATE. The
// availability check and the write are one statement, so no interleaving
// can drive the shelf negative; zero rows affected means the stock moved
// under the caller.
func (s *Postgres) DecrementIfAvailable(ctx context.Context, bankID domain.BankID, group domain.BloodGroup, units int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE inventory
		SET units = units - $3, updated_at = NOW()
		WHERE bank_id = $1 AND blood_group = $2 AND units >= $3`,
		uuid.UUID(bankID), group.String(), units,
	)
	if err != nil {
		return fmt.Errorf("decrement units: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrInsufficientStock
	}
	return nil
}

func (s *Postgres) FindSufficient(ctx context.Context, group domain.BloodGroup, units int) ([]models.Record, error) {
	return s.queryRecords(ctx, `
		SELECT bank_id, blood_group, units, updated_at FROM inventory
		WHERE blood_group = $1 AND units >= $2
		ORDER BY bank_id, blood_group`, group.String(), units)
}

func (s *Postgres) ListByBank(ctx context.Context, bankID domain.BankID) ([]models.Record, error) {
	return s.queryRecords(ctx, `
		SELECT bank_id, blood_group, units, updated_at FROM inventory
		WHERE bank_id = $1
		ORDER BY bank_id, blood_group`, uuid.UUID(bankID))
}

func (s *Postgres) ListAll(ctx context.Context) ([]models.Record, error) {
	return s.queryRecords(ctx, `
		SELECT bank_id, blood_group, units, updated_at FROM inventory
		ORDER BY bank_id, blood_group`)
}

func (s *Postgres) ListBelow(ctx context.Context, threshold int) ([]models.Record, error) {
	return s.queryRecords(ctx, `
		SELECT bank_id, blood_group, units, updated_at FROM inventory
		WHERE units < $1
		ORDER BY bank_id, blood_group`, threshold)
}

func (s *Postgres) SumUnits(ctx context.Context) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(units), 0) FROM inventory`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum units: %w", err)
	}
	return total, nil
}

// DeleteByBank removes the bank's shelf. The FK cascade already covers the
// bank-delete path; this keeps the store pair interchangeable.
func (s *Postgres) DeleteByBank(ctx context.Context, bankID domain.BankID) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM inventory WHERE bank_id = $1`, uuid.UUID(bankID)); err != nil {
		return fmt.Errorf("delete bank inventory: %w", err)
	}
	return nil
}

func (s *Postgres) queryRecords(ctx context.Context, query string, args ...any) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		var (
			rec    models.Record
			bankID uuid.UUID
			group  string
		)
		if err := rows.Scan(&bankID, &group, &rec.Units, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory record: %w", err)
		}
		rec.BankID = domain.BankID(bankID)
		g, err := domain.ParseBloodGroup(group)
		if err != nil {
			return nil, fmt.Errorf("stored blood group %q: %w", group, err)
		}
		rec.BloodGroup = g
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory: %w", err)
	}
	return out, nil
}
