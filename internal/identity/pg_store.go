package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const patientColumns = `id, full_name, date_of_birth, phone, email,
	insurance_provider, member_id, group_number, visit_history, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.FullName,
		&p.DateOfBirth,
		&p.Phone,
		&p.Email,
		&p.Insurance.Provider,
		&p.Insurance.MemberID,
		&p.Insurance.GroupNumber,
		&p.VisitHistory,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func collectPatients(rows pgx.Rows) ([]Patient, error) {
	defer rows.Close()

	var result []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PgStore) ListByDateOfBirth(ctx context.Context, dob time.Time) ([]Patient, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE date_of_birth = $1
		ORDER BY seq
	`, CivilDate(dob))
	if err != nil {
		return nil, fmt.Errorf("list patients by dob: %w", err)
	}
	return collectPatients(rows)
}

func (s *PgStore) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (s *PgStore) Create(ctx context.Context, p *Patient) error {
	history := p.VisitHistory
	if history == nil {
		history = []time.Time{}
	}

	var nameKey *string
	if n := NormalizeName(p.FullName); n != "" {
		nameKey = &n
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO patients (id, full_name, name_key, date_of_birth, phone, email,
			insurance_provider, member_id, group_number, visit_history, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING `+patientColumns,
		p.ID, p.FullName, nameKey, CivilDate(p.DateOfBirth), p.Phone, p.Email,
		p.Insurance.Provider, p.Insurance.MemberID, p.Insurance.GroupNumber, history)

	created, err := scanPatient(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrPatientExists
		}
		return fmt.Errorf("insert patient: %w", err)
	}
	*p = *created
	return nil
}

func (s *PgStore) AppendVisit(ctx context.Context, id uuid.UUID, visit time.Time) (*Patient, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE patients
		SET visit_history = array_append(visit_history, $2::date),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+patientColumns, id, CivilDate(visit))
	return scanPatient(row)
}

func (s *PgStore) Search(ctx context.Context, term string, limit int) ([]Patient, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE full_name ILIKE '%' || $1 || '%'
		   OR email ILIKE '%' || $1 || '%'
		   OR phone LIKE '%' || $1 || '%'
		ORDER BY seq
		LIMIT $2
	`, term, limit)
	if err != nil {
		return nil, fmt.Errorf("search patients: %w", err)
	}
	return collectPatients(rows)
}
