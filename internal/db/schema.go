package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// statements are idempotent and run in order on every start.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS providers (
		seq        BIGSERIAL UNIQUE,
		id         UUID PRIMARY KEY,
		name       TEXT NOT NULL,
		specialty  TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS slots (
		id               UUID PRIMARY KEY,
		provider_id      UUID NOT NULL REFERENCES providers (id),
		starts_at        TIMESTAMPTZ NOT NULL,
		duration_seconds BIGINT NOT NULL CHECK (duration_seconds > 0),
		available        BOOLEAN NOT NULL DEFAULT true,
		held_by          UUID,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (provider_id, starts_at),
		CHECK (available = (held_by IS NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS slots_open_idx ON slots (starts_at, provider_id) WHERE available`,

	`CREATE TABLE IF NOT EXISTS patients (
		seq                BIGSERIAL UNIQUE,
		id                 UUID PRIMARY KEY,
		full_name          TEXT NOT NULL,
		name_key           TEXT,
		date_of_birth      DATE NOT NULL,
		phone              TEXT NOT NULL DEFAULT '',
		email              TEXT NOT NULL DEFAULT '',
		insurance_provider TEXT NOT NULL DEFAULT '',
		member_id          TEXT NOT NULL DEFAULT '',
		group_number       TEXT NOT NULL DEFAULT '',
		visit_history      DATE[] NOT NULL DEFAULT '{}',
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`ALTER TABLE patients ADD COLUMN IF NOT EXISTS name_key TEXT`,
	`CREATE INDEX IF NOT EXISTS patients_dob_idx ON patients (date_of_birth, seq)`,
	// one record per person, name_key is the normalized full name
	`CREATE UNIQUE INDEX IF NOT EXISTS patients_identity_idx ON patients (name_key, date_of_birth)`,

	`CREATE TABLE IF NOT EXISTS appointments (
		id               UUID PRIMARY KEY,
		reference        TEXT NOT NULL UNIQUE,
		patient_id       UUID NOT NULL,
		provider_id      UUID NOT NULL REFERENCES providers (id),
		slot_id          UUID NOT NULL REFERENCES slots (id),
		slot_ids         UUID[] NOT NULL,
		starts_at        TIMESTAMPTZ NOT NULL,
		duration_seconds BIGINT NOT NULL,
		status           TEXT NOT NULL CHECK (status IN ('confirmed', 'cancelled', 'completed')),
		patient_type     TEXT NOT NULL CHECK (patient_type IN ('new', 'returning')),
		reason           TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`DROP INDEX IF EXISTS appointments_active_slot_idx`,
	// every slot unit of a non-cancelled appointment, at most one owner each
	`CREATE TABLE IF NOT EXISTS appointment_slots (
		slot_id        UUID PRIMARY KEY REFERENCES slots (id),
		appointment_id UUID NOT NULL REFERENCES appointments (id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS appointments_starts_idx ON appointments (starts_at)`,
	`CREATE INDEX IF NOT EXISTS appointments_patient_idx ON appointments (patient_id)`,

	`CREATE TABLE IF NOT EXISTS reminder_jobs (
		id             UUID PRIMARY KEY,
		appointment_id UUID NOT NULL REFERENCES appointments (id) ON DELETE CASCADE,
		fire_at        TIMESTAMPTZ NOT NULL,
		kind           TEXT NOT NULL,
		dispatched     BOOLEAN NOT NULL DEFAULT false,
		dispatched_at  TIMESTAMPTZ,
		contact        JSONB NOT NULL,
		payload        JSONB,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (appointment_id, kind)
	)`,
	`CREATE INDEX IF NOT EXISTS reminder_jobs_due_idx ON reminder_jobs (fire_at) WHERE NOT dispatched`,
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
