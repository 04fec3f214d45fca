// Package postgres provides a PostgreSQL-backed implementation of
// [results.Store].
//
// Recordings live in a single table. Parts, summary and coverage are stored
// as JSONB next to a few scalar columns used for filtering and ordering.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.Save(ctx, &rec)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlRecordings = `
CREATE TABLE IF NOT EXISTS recordings (
    id                TEXT         PRIMARY KEY,
    script_id         TEXT         NOT NULL DEFAULT '',
    source            TEXT         NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ  NOT NULL DEFAULT now(),
    total_duration_ms BIGINT       NOT NULL DEFAULT 0,
    average_wpm       BIGINT       NOT NULL DEFAULT 0,
    parts             JSONB        NOT NULL DEFAULT '[]',
    summary           JSONB        NOT NULL,
    coverage          JSONB        NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_recordings_created_at
    ON recordings (created_at DESC);

CREATE INDEX IF NOT EXISTS idx_recordings_script_created
    ON recordings (script_id, created_at DESC);
`

// Migrate creates the recordings table and its indexes. It is idempotent
// and safe to call on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlRecordings} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
