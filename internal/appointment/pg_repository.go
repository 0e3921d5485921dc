package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

func NewPgRepository(pool *pgxpool.Pool, loc *time.Location) *PgRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &PgRepository{pool: pool, loc: loc}
}

const appointmentColumns = `id, reference, patient_id, provider_id, slot_id, slot_ids, starts_at,
	duration_seconds, status, patient_type, reason, created_at, updated_at`

// Helpers

func (r *PgRepository) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var seconds int64

	err := row.Scan(
		&a.ID,
		&a.Reference,
		&a.PatientID,
		&a.ProviderID,
		&a.SlotID,
		&a.SlotIDs,
		&a.StartsAt,
		&seconds,
		&a.Status,
		&a.PatientType,
		&a.Reason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.StartsAt = a.StartsAt.In(r.loc)
	a.Duration = time.Duration(seconds) * time.Second
	return &a, nil
}

// uniqueViolation returns the constraint behind a Postgres 23505 error.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// claimSlots records a as the owner of its slot units. A unit already owned
// by another active appointment fails the whole claim with ErrSlotTaken.
func claimSlots(ctx context.Context, tx pgx.Tx, a *Appointment) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO appointment_slots (slot_id, appointment_id)
		SELECT unnest($1::uuid[]), $2
	`, a.SlotIDs, a.ID)
	return claimError(err)
}

// claimError maps only a collision on slot ownership to ErrSlotTaken; any
// other unique violation stays a storage failure.
func claimError(err error) error {
	if err == nil {
		return nil
	}
	if constraint, ok := uniqueViolation(err); ok && constraint == "appointment_slots_pkey" {
		return ErrSlotTaken
	}
	return fmt.Errorf("claim appointment slots: %w", err)
}

// Interface methods

func (r *PgRepository) Create(ctx context.Context, a *Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments (id, reference, patient_id, provider_id, slot_id, slot_ids, starts_at,
			duration_seconds, status, patient_type, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, a.ID, a.Reference, a.PatientID, a.ProviderID, a.SlotID, a.SlotIDs, a.StartsAt,
		int64(a.Duration/time.Second), a.Status, a.PatientType, a.Reason, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}

	if a.Status != StatusCancelled {
		if err := claimSlots(ctx, tx, a); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return r.scanAppointment(row)
}

func (r *PgRepository) GetByReference(ctx context.Context, ref string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE reference = $1
	`, ref)
	return r.scanAppointment(row)
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// UpdateStatus also maintains slot ownership: leaving cancelled claims the
// slots again, entering it gives them up.
func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns, id, to, from)

	a, err := r.scanAppointment(row)
	if err != nil {
		return nil, err
	}

	switch {
	case to == StatusCancelled && from != StatusCancelled:
		if _, err := tx.Exec(ctx, `DELETE FROM appointment_slots WHERE appointment_id = $1`, id); err != nil {
			return nil, fmt.Errorf("free appointment slots: %w", err)
		}
	case from == StatusCancelled && to != StatusCancelled:
		if err := claimSlots(ctx, tx, a); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return a, nil
}

func (r *PgRepository) List(ctx context.Context, f Filter) ([]Appointment, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.ProviderID != nil {
		add("provider_id = $%d", *f.ProviderID)
	}
	if f.PatientID != nil {
		add("patient_id = $%d", *f.PatientID)
	}
	if from, to, ok := f.dayRange(); ok {
		add("starts_at >= $%d", from)
		add("starts_at < $%d", to)
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY starts_at, created_at`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	result := make([]Appointment, 0)
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
