package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Patient numbers other than "-" are unique, which backs the pool's
// guarantee that no two patients hold the same number.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS patients (
		id         UUID PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		status     TEXT NOT NULL DEFAULT '',
		number     TEXT NOT NULL DEFAULT '-',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS patients_number_key
		ON patients (number) WHERE number <> '-'`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id               UUID PRIMARY KEY,
		kind             TEXT NOT NULL,
		patient_id       UUID REFERENCES patients (id) ON DELETE SET NULL,
		start_time       TIMESTAMPTZ NOT NULL,
		duration_minutes INTEGER NOT NULL CHECK (duration_minutes > 0),
		status           TEXT NOT NULL,
		note             TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS appointments_start_time_idx ON appointments (start_time)`,
	`CREATE INDEX IF NOT EXISTS appointments_patient_id_idx ON appointments (patient_id)`,
	`CREATE TABLE IF NOT EXISTS event_logs (
		id             BIGSERIAL PRIMARY KEY,
		event_type     TEXT NOT NULL,
		appointment_id UUID,
		patient_id     UUID,
		payload        JSONB,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates the tables the clinic store needs if they are
// missing. It is safe to run on every start.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
