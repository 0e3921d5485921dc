package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const jobColumns = `id, appointment_id, fire_at, kind, dispatched, dispatched_at, contact, payload, created_at`

func scanJob(row pgx.Row) (*Job, error) {
	var j Job

	err := row.Scan(
		&j.ID,
		&j.AppointmentID,
		&j.FireAt,
		&j.Kind,
		&j.Dispatched,
		&j.DispatchedAt,
		&j.Contact,
		&j.Payload,
		&j.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func collectJobs(rows pgx.Rows) ([]Job, error) {
	defer rows.Close()

	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PgStore) CreateBatch(ctx context.Context, jobs []Job) error {
	if len(jobs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, j := range jobs {
		batch.Queue(`
			INSERT INTO reminder_jobs (id, appointment_id, fire_at, kind, dispatched, contact, payload, created_at)
			VALUES ($1, $2, $3, $4, false, $5, $6, $7)
			ON CONFLICT (appointment_id, kind) DO NOTHING
		`, j.ID, j.AppointmentID, j.FireAt, j.Kind, j.Contact, j.Payload, j.CreatedAt)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert reminder jobs: %w", err)
	}
	return nil
}

func (s *PgStore) Due(ctx context.Context, now time.Time, limit int) ([]Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM reminder_jobs
		WHERE NOT dispatched AND fire_at <= $1
		ORDER BY fire_at, kind
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due reminders: %w", err)
	}
	return collectJobs(rows)
}

func (s *PgStore) MarkDispatched(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE reminder_jobs
		SET dispatched = true, dispatched_at = $2
		WHERE id = $1 AND NOT dispatched
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("mark reminder dispatched: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM reminder_jobs
		WHERE appointment_id = $1
		ORDER BY fire_at, kind
	`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return collectJobs(rows)
}

func (s *PgStore) DeletePending(ctx context.Context, appointmentID uuid.UUID) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM reminder_jobs
		WHERE appointment_id = $1 AND NOT dispatched
	`, appointmentID)
	if err != nil {
		return 0, fmt.Errorf("delete pending reminders: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
