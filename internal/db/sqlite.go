package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jonathan/relief-intake/internal/types"
)

// SQLite is a single-file Store for local and development use.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path with WAL mode enabled.
// The pool is limited to one connection so writes never contend.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if path != ":memory:" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	return &SQLite{db: db}, nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS resources (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	category TEXT,
	subcategory TEXT,
	name TEXT NOT NULL,
	quantity INTEGER,
	num_available_people INTEGER,
	location_geojson TEXT,
	location_text TEXT,
	distance_km REAL,
	phone_number TEXT,
	email TEXT,
	first_name TEXT,
	last_name TEXT,
	source_text TEXT NOT NULL DEFAULT '',
	user_type TEXT,
	flagged INTEGER NOT NULL DEFAULT 0,
	abuse_reason TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_resources_category ON resources(category);

CREATE TABLE IF NOT EXISTS app_settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	active_provider TEXT NOT NULL,
	fallback_provider TEXT NOT NULL DEFAULT '',
	openai_model TEXT NOT NULL DEFAULT '',
	gemini_model TEXT NOT NULL DEFAULT '',
	local_model TEXT NOT NULL DEFAULT '',
	match_strategy TEXT NOT NULL DEFAULT 'heuristic',
	updated_at TEXT NOT NULL
);`

// Migrate creates the tables and seeds the settings row if it is missing.
func (s *SQLite) Migrate(ctx context.Context, seed *types.Settings) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if seed == nil {
		seed = DefaultSettings()
	}
	args := append(settingsArgs(seed), formatTime(nowUTC()))
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO app_settings (id, active_provider, fallback_provider, openai_model, gemini_model, local_model, match_strategy, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}
	return nil
}

// timeText scans a TEXT timestamp column.
type timeText struct {
	dst *time.Time
	raw string
}

func (t *timeText) parse() error {
	v, err := time.Parse(time.RFC3339Nano, t.raw)
	if err != nil {
		return fmt.Errorf("invalid stored timestamp %q: %w", t.raw, err)
	}
	*t.dst = v
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteResource(row rowScanner) (*types.Resource, error) {
	var rr resourceRow
	created := timeText{dst: &rr.r.CreatedAt}
	if err := row.Scan(rr.dest(&created.raw)...); err != nil {
		return nil, err
	}
	if err := created.parse(); err != nil {
		return nil, err
	}
	return rr.resource()
}

// CreateResource inserts a resource and returns it with its id and created_at
func (s *SQLite) CreateResource(ctx context.Context, in *ResourceInput) (*types.Resource, error) {
	return insertSQLiteResource(ctx, s.db, in)
}

// CreateResources inserts all inputs in one transaction. On error nothing is stored.
func (s *SQLite) CreateResources(ctx context.Context, ins []*ResourceInput) ([]types.Resource, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin insert: %w", err)
	}
	defer tx.Rollback()

	created := make([]types.Resource, 0, len(ins))
	for _, in := range ins {
		r, err := insertSQLiteResource(ctx, tx, in)
		if err != nil {
			return nil, err
		}
		created = append(created, *r)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit insert: %w", err)
	}
	return created, nil
}

type sqliteExecer interface {
	sqliteQuerier
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertSQLiteResource(ctx context.Context, q sqliteExecer, in *ResourceInput) (*types.Resource, error) {
	args, err := insertArgs(in)
	if err != nil {
		return nil, err
	}
	args = append(args, formatTime(nowUTC()))

	result, err := q.ExecContext(ctx,
		`INSERT INTO resources (category, subcategory, name, quantity, num_available_people,
			location_geojson, location_text, distance_km, phone_number, email, first_name, last_name,
			source_text, user_type, flagged, abuse_reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read resource id: %w", err)
	}
	return getSQLiteResource(ctx, q, id)
}

// ListResources returns every resource ordered by id
func (s *SQLite) ListResources(ctx context.Context) ([]types.Resource, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+resourceColumns+`, created_at FROM resources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	resources := []types.Resource{}
	for rows.Next() {
		r, err := scanSQLiteResource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		resources = append(resources, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	return resources, nil
}

// GetResource retrieves a resource by id
func (s *SQLite) GetResource(ctx context.Context, id int64) (*types.Resource, error) {
	return getSQLiteResource(ctx, s.db, id)
}

type sqliteQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getSQLiteResource(ctx context.Context, q sqliteQuerier, id int64) (*types.Resource, error) {
	r, err := scanSQLiteResource(q.QueryRowContext(ctx,
		`SELECT `+resourceColumns+`, created_at FROM resources WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	return r, nil
}

// UpdateResource applies a partial update and returns the stored result
func (s *SQLite) UpdateResource(ctx context.Context, id int64, upd *ResourceUpdate) (*types.Resource, error) {
	if upd == nil || upd.Empty() {
		return s.GetResource(ctx, id)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin update: %w", err)
	}
	defer tx.Rollback()

	set, args := upd.setClause(func(int) string { return "?" })
	args = append(args, id)
	result, err := tx.ExecContext(ctx, `UPDATE resources SET `+set+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update resource: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, ErrResourceNotFound
	}

	r, err := getSQLiteResource(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}
	return r, nil
}

func scanSQLiteSettings(row rowScanner) (*types.Settings, error) {
	var sr settingsRow
	updated := timeText{dst: &sr.s.UpdatedAt}
	if err := row.Scan(sr.dest(&updated.raw)...); err != nil {
		return nil, err
	}
	if err := updated.parse(); err != nil {
		return nil, err
	}
	return sr.settings(), nil
}

// GetSettings reads the settings row
func (s *SQLite) GetSettings(ctx context.Context) (*types.Settings, error) {
	settings, err := scanSQLiteSettings(s.db.QueryRowContext(ctx,
		`SELECT `+settingsColumns+` FROM app_settings WHERE id = 1`))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSettingsMissing
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return settings, nil
}

// SetActiveProvider switches the active provider in a single statement
func (s *SQLite) SetActiveProvider(ctx context.Context, provider string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE app_settings SET active_provider = ?, updated_at = ? WHERE id = 1`,
		provider, formatTime(nowUTC()),
	)
	if err != nil {
		return fmt.Errorf("failed to set active provider: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrSettingsMissing
	}
	return nil
}

// UpdateSettings overwrites the settings row
func (s *SQLite) UpdateSettings(ctx context.Context, settings *types.Settings) (*types.Settings, error) {
	args := append(settingsArgs(settings), formatTime(nowUTC()))
	result, err := s.db.ExecContext(ctx,
		`UPDATE app_settings SET active_provider = ?, fallback_provider = ?, openai_model = ?,
			gemini_model = ?, local_model = ?, match_strategy = ?, updated_at = ?
		 WHERE id = 1`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, ErrSettingsMissing
	}
	return s.GetSettings(ctx)
}

var _ Store = (*SQLite)(nil)
