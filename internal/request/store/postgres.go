package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"bloodlink/internal/request/models"
	"bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

// Postgres persists requests in the requests table. Status transitions are
// single conditional UPDATEs: the status check and the write cannot
// interleave with a concurrent transition.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const requestColumns = `id, patient_name, blood_group, units_required, city, contact_email,
	latitude, longitude, status, assigned_kind, assigned_id, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, r *models.Request) error {
	kind, assignedID := assignedColumns(r)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.UUID(r.ID), r.PatientName, r.BloodGroup.String(), r.UnitsRequired, r.City, r.Email,
		r.Location.Lat, r.Location.Lon, string(r.Status), kind, assignedID, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.RequestID) (*models.Request, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = $1`, uuid.UUID(id))
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
	}
	return r, err
}

func (s *Postgres) Delete(ctx context.Context, id domain.RequestID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM requests WHERE id = $1`, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Postgres) List(ctx context.Context, f models.Filter) ([]*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests`
	var args []any
	if f.Status != nil {
		args = append(args, string(*f.Status))
		query += " WHERE status = $1"
	}
	query += " ORDER BY created_at DESC, id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var out []*models.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return out, nil
}

func (s *Postgres) CountByStatus(ctx context.Context, status models.Status) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM requests WHERE status = $1`, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count requests: %w", err)
	}
	return n, nil
}

// AssignIfPending moves a pending request to assigned in one conditional
// UPDATE. Zero rows affected means the request either vanished or already
// left pending; the follow-up read disambiguates.
func (s *Postgres) AssignIfPending(ctx context.Context, id domain.RequestID, kind models.AssignedKind, bankID *domain.BankID, donorID *domain.DonorID, now time.Time) error {
	var assignedID uuid.NullUUID
	if bankID != nil {
		assignedID = uuid.NullUUID{UUID: uuid.UUID(*bankID), Valid: true}
	} else if donorID != nil {
		assignedID = uuid.NullUUID{UUID: uuid.UUID(*donorID), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE requests
		SET status = $2, assigned_kind = $3, assigned_id = $4, updated_at = $5
		WHERE id = $1 AND status = $6`,
		uuid.UUID(id), string(models.StatusAssigned), string(kind), assignedID, now,
		string(models.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("assign request: %w", err)
	}
	return s.resolveMiss(ctx, res, id)
}

// UpdateStatusIf transitions the request when its current status is in
// from, in one conditional UPDATE.
func (s *Postgres) UpdateStatusIf(ctx context.Context, id domain.RequestID, from []models.Status, to models.Status, now time.Time) error {
	fromStrs := make([]string, len(from))
	for i, status := range from {
		fromStrs[i] = string(status)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE requests
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = ANY($4)`,
		uuid.UUID(id), string(to), now, pq.Array(fromStrs),
	)
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	return s.resolveMiss(ctx, res, id)
}

// resolveMiss turns a zero-rows conditional update into the right sentinel.
func (s *Postgres) resolveMiss(ctx context.Context, res sql.Result, id domain.RequestID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var status string
	err = s.db.QueryRowContext(ctx,
		`SELECT status FROM requests WHERE id = $1`, uuid.UUID(id)).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load request status: %w", err)
	}
	return fmt.Errorf("request %s is %s: %w", id, status, sentinel.ErrInvalidState)
}

func assignedColumns(r *models.Request) (sql.NullString, uuid.NullUUID) {
	var kind sql.NullString
	var assignedID uuid.NullUUID
	if r.AssignedKind != "" {
		kind = sql.NullString{String: string(r.AssignedKind), Valid: true}
	}
	if r.AssignedBankID != nil {
		assignedID = uuid.NullUUID{UUID: uuid.UUID(*r.AssignedBankID), Valid: true}
	} else if r.AssignedDonorID != nil {
		assignedID = uuid.NullUUID{UUID: uuid.UUID(*r.AssignedDonorID), Valid: true}
	}
	return kind, assignedID
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.Request, error) {
	var (
		r          models.Request
		id         uuid.UUID
		group      string
		status     string
		kind       sql.NullString
		assignedID uuid.NullUUID
	)
	err := row.Scan(&id, &r.PatientName, &group, &r.UnitsRequired, &r.City, &r.Email,
		&r.Location.Lat, &r.Location.Lon, &status, &kind, &assignedID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan request: %w", err)
	}
	r.ID = domain.RequestID(id)
	g, err := domain.ParseBloodGroup(group)
	if err != nil {
		return nil, fmt.Errorf("stored blood group %q: %w", group, err)
	}
	r.BloodGroup = g
	parsedStatus, err := models.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("stored status %q: %w", status, err)
	}
	r.Status = parsedStatus
	if kind.Valid {
		r.AssignedKind = models.AssignedKind(kind.String)
		if assignedID.Valid {
			switch r.AssignedKind {
			case models.AssignedKindBank:
				bankID := domain.BankID(assignedID.UUID)
				r.AssignedBankID = &bankID
			case models.AssignedKindDonor:
				donorID := domain.DonorID(assignedID.UUID)
				r.AssignedDonorID = &donorID
			}
		}
	}
	return &r, nil
}
