package slot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-booking/internal/metrics"
)

// PgStore keeps slots in Postgres. Reservation is a conditional UPDATE on the
// available flag so the row lock decides between concurrent callers.
type PgStore struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

func NewPgStore(pool *pgxpool.Pool, loc *time.Location) *PgStore {
	if loc == nil {
		loc = time.UTC
	}
	return &PgStore{pool: pool, loc: loc}
}

const slotColumns = `id, provider_id, starts_at, duration_seconds, available, held_by, created_at, updated_at`

// Helpers

func (s *PgStore) scanSlot(row pgx.Row) (*Slot, error) {
	var sl Slot
	var seconds int64

	err := row.Scan(
		&sl.ID,
		&sl.ProviderID,
		&sl.StartsAt,
		&seconds,
		&sl.Available,
		&sl.HeldBy,
		&sl.CreatedAt,
		&sl.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	sl.StartsAt = sl.StartsAt.In(s.loc)
	sl.Duration = time.Duration(seconds) * time.Second
	return &sl, nil
}

func (s *PgStore) collect(rows pgx.Rows) ([]Slot, error) {
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		sl, err := s.scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *sl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	err := row.Scan(&p.ID, &p.Name, &p.Specialty, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Interface methods

func (s *PgStore) Query(ctx context.Context, f Filter) ([]Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE available`
	var args []any

	if f.ProviderID != nil {
		args = append(args, *f.ProviderID)
		query += fmt.Sprintf(" AND provider_id = $%d", len(args))
	}
	if from, to, ok := f.dayRange(); ok {
		args = append(args, from, to)
		query += fmt.Sprintf(" AND starts_at >= $%d AND starts_at < $%d", len(args)-1, len(args))
	}
	query += " ORDER BY starts_at, provider_id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	return s.collect(rows)
}

func (s *PgStore) Get(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1`, id)
	return s.scanSlot(row)
}

func (s *PgStore) Reserve(ctx context.Context, slotID, patientID uuid.UUID) (*Slot, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE slots
		SET available = false,
		    held_by = $2,
		    updated_at = now()
		WHERE id = $1
		  AND available
		RETURNING `+slotColumns, slotID, patientID)

	sl, err := s.scanSlot(row)
	if err == nil {
		metrics.SlotReservations.WithLabelValues("ok").Inc()
		return sl, nil
	}
	if !errors.Is(err, ErrSlotNotFound) {
		return nil, fmt.Errorf("reserve slot: %w", err)
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM slots WHERE id = $1)`, slotID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check slot: %w", err)
	}
	if !exists {
		return nil, ErrSlotNotFound
	}
	metrics.SlotReservations.WithLabelValues("conflict").Inc()
	return nil, ErrAlreadyReserved
}

func (s *PgStore) ReserveRun(ctx context.Context, slotID, patientID uuid.UUID, units int) ([]Slot, error) {
	if units <= 1 {
		sl, err := s.Reserve(ctx, slotID, patientID)
		if err != nil {
			return nil, err
		}
		return []Slot{*sl}, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reserve run: %w", err)
	}
	defer tx.Rollback(ctx)

	// Rows are locked in start order, the same order every run uses.
	rows, err := tx.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE provider_id = (SELECT provider_id FROM slots WHERE id = $1)
		  AND starts_at >= (SELECT starts_at FROM slots WHERE id = $1)
		ORDER BY starts_at
		LIMIT $2
		FOR UPDATE
	`, slotID, units)
	if err != nil {
		return nil, fmt.Errorf("lock slot run: %w", err)
	}
	run, err := s.collect(rows)
	if err != nil {
		return nil, fmt.Errorf("lock slot run: %w", err)
	}

	if len(run) == 0 || run[0].ID != slotID {
		return nil, ErrSlotNotFound
	}
	views := make([]*Slot, len(run))
	for i := range run {
		views[i] = &run[i]
	}
	if len(run) < units || !contiguous(views) {
		return nil, ErrRunUnavailable
	}

	ids := make([]uuid.UUID, len(run))
	for i, sl := range run {
		if !sl.Available {
			metrics.SlotReservations.WithLabelValues("conflict").Inc()
			return nil, ErrAlreadyReserved
		}
		ids[i] = sl.ID
	}

	rows, err = tx.Query(ctx, `
		UPDATE slots
		SET available = false,
		    held_by = $2,
		    updated_at = now()
		WHERE id = ANY($1)
		RETURNING `+slotColumns, ids, patientID)
	if err != nil {
		return nil, fmt.Errorf("reserve slot run: %w", err)
	}
	held, err := s.collect(rows)
	if err != nil {
		return nil, fmt.Errorf("reserve slot run: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reserve run: %w", err)
	}

	sort.Slice(held, func(i, j int) bool { return held[i].StartsAt.Before(held[j].StartsAt) })
	metrics.SlotReservations.WithLabelValues("ok").Inc()
	return held, nil
}

func (s *PgStore) Release(ctx context.Context, patientID uuid.UUID, slotIDs ...uuid.UUID) error {
	if len(slotIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE slots
		SET available = true,
		    held_by = NULL,
		    updated_at = now()
		WHERE id = ANY($1)
		  AND held_by = $2
		  AND NOT available
	`, slotIDs, patientID)
	if err != nil {
		return fmt.Errorf("release slots: %w", err)
	}
	return nil
}

func (s *PgStore) BulkGenerate(ctx context.Context, spec GenerateSpec) (int, error) {
	planned, err := Plan(spec)
	if err != nil {
		return 0, err
	}
	if _, err := s.GetProvider(ctx, spec.ProviderID); err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	for _, sl := range planned {
		batch.Queue(`
			INSERT INTO slots (id, provider_id, starts_at, duration_seconds, available, created_at, updated_at)
			VALUES ($1, $2, $3, $4, true, now(), now())
			ON CONFLICT (provider_id, starts_at) DO NOTHING
		`, uuid.New(), sl.ProviderID, sl.StartsAt, int64(sl.Duration/time.Second))
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	created := 0
	for range planned {
		tag, err := results.Exec()
		if err != nil {
			return created, fmt.Errorf("insert slot: %w", err)
		}
		created += int(tag.RowsAffected())
	}

	metrics.SlotsGenerated.Add(float64(created))
	return created, nil
}

func (s *PgStore) AddProvider(ctx context.Context, p *Provider) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO providers (id, name, specialty, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, specialty = EXCLUDED.specialty
		RETURNING id, name, specialty, created_at
	`, p.ID, p.Name, p.Specialty)

	saved, err := scanProvider(row)
	if err != nil {
		return fmt.Errorf("upsert provider: %w", err)
	}
	*p = *saved
	return nil
}

func (s *PgStore) GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, name, specialty, created_at FROM providers WHERE id = $1`, id)
	return scanProvider(row)
}

func (s *PgStore) ListProviders(ctx context.Context) ([]Provider, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, specialty, created_at FROM providers ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var out []Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
