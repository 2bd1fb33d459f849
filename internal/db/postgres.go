package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/relief-intake/internal/types"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() error {
	if db.pool != nil {
		db.pool.Close()
	}
	return nil
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS resources (
	id BIGSERIAL PRIMARY KEY,
	category TEXT,
	subcategory TEXT,
	name TEXT NOT NULL,
	quantity INTEGER,
	num_available_people INTEGER,
	location_geojson JSONB,
	location_text TEXT,
	distance_km DOUBLE PRECISION,
	phone_number TEXT,
	email TEXT,
	first_name TEXT,
	last_name TEXT,
	source_text TEXT NOT NULL DEFAULT '',
	user_type TEXT,
	flagged BOOLEAN NOT NULL DEFAULT FALSE,
	abuse_reason TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_resources_category ON resources(category);

CREATE TABLE IF NOT EXISTS app_settings (
	id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	active_provider TEXT NOT NULL,
	fallback_provider TEXT NOT NULL DEFAULT '',
	openai_model TEXT NOT NULL DEFAULT '',
	gemini_model TEXT NOT NULL DEFAULT '',
	local_model TEXT NOT NULL DEFAULT '',
	match_strategy TEXT NOT NULL DEFAULT 'heuristic',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// Migrate creates the tables and seeds the settings row if it is missing.
// An existing settings row is left untouched.
func (db *DB) Migrate(ctx context.Context, seed *types.Settings) error {
	if _, err := db.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if seed == nil {
		seed = DefaultSettings()
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO app_settings (id, active_provider, fallback_provider, openai_model, gemini_model, local_model, match_strategy)
		 VALUES (1, $1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		settingsArgs(seed)...,
	)
	if err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}
	return nil
}

// CreateResource inserts a resource and returns it with its id and created_at
func (db *DB) CreateResource(ctx context.Context, in *ResourceInput) (*types.Resource, error) {
	return insertPostgresResource(ctx, db.pool, in)
}

// CreateResources inserts all inputs in one transaction. On error nothing is stored.
func (db *DB) CreateResources(ctx context.Context, ins []*ResourceInput) ([]types.Resource, error) {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin insert: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	created := make([]types.Resource, 0, len(ins))
	for _, in := range ins {
		r, err := insertPostgresResource(ctx, tx, in)
		if err != nil {
			return nil, err
		}
		created = append(created, *r)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit insert: %w", err)
	}
	return created, nil
}

type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertPostgresResource(ctx context.Context, q pgQuerier, in *ResourceInput) (*types.Resource, error) {
	args, err := insertArgs(in)
	if err != nil {
		return nil, err
	}

	var rr resourceRow
	err = q.QueryRow(ctx,
		`INSERT INTO resources (category, subcategory, name, quantity, num_available_people,
			location_geojson, location_text, distance_km, phone_number, email, first_name, last_name,
			source_text, user_type, flagged, abuse_reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 RETURNING `+resourceColumns+`, created_at`,
		args...,
	).Scan(rr.dest(&rr.r.CreatedAt)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return rr.resource()
}

// ListResources returns every resource ordered by id
func (db *DB) ListResources(ctx context.Context) ([]types.Resource, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+resourceColumns+`, created_at FROM resources ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	resources := []types.Resource{}
	for rows.Next() {
		var rr resourceRow
		if err := rows.Scan(rr.dest(&rr.r.CreatedAt)...); err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		r, err := rr.resource()
		if err != nil {
			return nil, err
		}
		resources = append(resources, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	return resources, nil
}

// GetResource retrieves a resource by id
func (db *DB) GetResource(ctx context.Context, id int64) (*types.Resource, error) {
	var rr resourceRow
	err := db.pool.QueryRow(ctx,
		`SELECT `+resourceColumns+`, created_at FROM resources WHERE id = $1`,
		id,
	).Scan(rr.dest(&rr.r.CreatedAt)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	return rr.resource()
}

// UpdateResource applies a partial update and returns the stored result
func (db *DB) UpdateResource(ctx context.Context, id int64, upd *ResourceUpdate) (*types.Resource, error) {
	if upd == nil || upd.Empty() {
		return db.GetResource(ctx, id)
	}

	set, args := upd.setClause(func(n int) string { return fmt.Sprintf("$%d", n) })
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE resources SET %s WHERE id = $%d RETURNING %s, created_at`, set, len(args), resourceColumns)

	var rr resourceRow
	if err := db.pool.QueryRow(ctx, query, args...).Scan(rr.dest(&rr.r.CreatedAt)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to update resource: %w", err)
	}
	return rr.resource()
}

// GetSettings reads the settings row
func (db *DB) GetSettings(ctx context.Context) (*types.Settings, error) {
	var sr settingsRow
	err := db.pool.QueryRow(ctx,
		`SELECT `+settingsColumns+` FROM app_settings WHERE id = 1`,
	).Scan(sr.dest(&sr.s.UpdatedAt)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingsMissing
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return sr.settings(), nil
}

// SetActiveProvider switches the active provider in a single statement
func (db *DB) SetActiveProvider(ctx context.Context, provider string) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE app_settings SET active_provider = $1, updated_at = NOW() WHERE id = 1`,
		provider,
	)
	if err != nil {
		return fmt.Errorf("failed to set active provider: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrSettingsMissing
	}
	return nil
}

// UpdateSettings overwrites the settings row
func (db *DB) UpdateSettings(ctx context.Context, s *types.Settings) (*types.Settings, error) {
	args := append(settingsArgs(s), time.Now())
	var sr settingsRow
	err := db.pool.QueryRow(ctx,
		`UPDATE app_settings SET active_provider = $1, fallback_provider = $2, openai_model = $3,
			gemini_model = $4, local_model = $5, match_strategy = $6, updated_at = $7
		 WHERE id = 1
		 RETURNING `+settingsColumns,
		args...,
	).Scan(sr.dest(&sr.s.UpdatedAt)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingsMissing
		}
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	return sr.settings(), nil
}

var _ Store = (*DB)(nil)
