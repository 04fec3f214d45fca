package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/podium/internal/results"
)

var _ results.Store = (*Store)(nil)

// Store persists recordings in PostgreSQL. All methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the PostgreSQL database at dsn and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres store: ping: %w", err)
	}
	return nil
}

// Save implements [results.Store]. An existing recording with the same id
// is replaced.
func (s *Store) Save(ctx context.Context, rec *results.Recording) error {
	results.Prepare(rec)

	parts, err := marshalArray(rec.Parts)
	if err != nil {
		return fmt.Errorf("postgres store: encode parts: %w", err)
	}
	summary, err := json.Marshal(rec.Summary)
	if err != nil {
		return fmt.Errorf("postgres store: encode summary: %w", err)
	}
	cov, err := marshalArray(rec.Coverage)
	if err != nil {
		return fmt.Errorf("postgres store: encode coverage: %w", err)
	}

	const q = `
		INSERT INTO recordings
		    (id, script_id, source, created_at, total_duration_ms, average_wpm, parts, summary, coverage)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
		    script_id         = EXCLUDED.script_id,
		    source            = EXCLUDED.source,
		    created_at        = EXCLUDED.created_at,
		    total_duration_ms = EXCLUDED.total_duration_ms,
		    average_wpm       = EXCLUDED.average_wpm,
		    parts             = EXCLUDED.parts,
		    summary           = EXCLUDED.summary,
		    coverage          = EXCLUDED.coverage`

	_, err = s.pool.Exec(ctx, q,
		rec.ID,
		rec.ScriptID,
		rec.Source,
		rec.CreatedAt,
		rec.Summary.TotalDurationMillis,
		rec.Summary.AverageWPM,
		parts,
		summary,
		cov,
	)
	if err != nil {
		return fmt.Errorf("postgres store: save: %w", err)
	}
	return nil
}

// Get implements [results.Store].
func (s *Store) Get(ctx context.Context, id string) (*results.Recording, error) {
	const q = `
		SELECT id, script_id, source, created_at, parts, summary, coverage
		FROM   recordings
		WHERE  id = $1`

	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("postgres store: get: %w", err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, scanRecording(true))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, results.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get: %w", err)
	}
	return &rec, nil
}

// List implements [results.Store].
func (s *Store) List(ctx context.Context, opts results.ListOptions) ([]results.Recording, error) {
	const q = `
		SELECT id, script_id, source, created_at, summary, coverage
		FROM   recordings
		WHERE  ($1 = '' OR script_id = $1)
		ORDER  BY created_at DESC, id
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, opts.ScriptID, opts.EffectiveLimit())
	if err != nil {
		return nil, fmt.Errorf("postgres store: list: %w", err)
	}
	recs, err := pgx.CollectRows(rows, scanRecording(false))
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan rows: %w", err)
	}
	if recs == nil {
		recs = []results.Recording{}
	}
	return recs, nil
}

// scanRecording returns a row scanner. withParts selects whether the row
// carries the parts column between created_at and summary.
func scanRecording(withParts bool) pgx.RowToFunc[results.Recording] {
	return func(row pgx.CollectableRow) (results.Recording, error) {
		var (
			rec                 results.Recording
			parts, summary, cov []byte
		)
		dest := []any{&rec.ID, &rec.ScriptID, &rec.Source, &rec.CreatedAt}
		if withParts {
			dest = append(dest, &parts)
		}
		dest = append(dest, &summary, &cov)
		if err := row.Scan(dest...); err != nil {
			return results.Recording{}, err
		}

		if withParts {
			if err := json.Unmarshal(parts, &rec.Parts); err != nil {
				return results.Recording{}, fmt.Errorf("decode parts: %w", err)
			}
		}
		if err := json.Unmarshal(summary, &rec.Summary); err != nil {
			return results.Recording{}, fmt.Errorf("decode summary: %w", err)
		}
		if err := json.Unmarshal(cov, &rec.Coverage); err != nil {
			return results.Recording{}, fmt.Errorf("decode coverage: %w", err)
		}
		return rec, nil
	}
}

// marshalArray encodes v, writing nil slices as an empty JSON array.
func marshalArray[T any](v []T) ([]byte, error) {
	if v == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(v)
}
