// Package postgres keeps observations in a PostgreSQL database, shared by
// the notary servers.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CZERTAINLY/notary-scan/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewRepository wraps an existing pool. Call EnsureSchema before using it.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, now: time.Now}
}

// EnsureSchema creates the observations and metrics tables if missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	ddl := `
CREATE TABLE IF NOT EXISTS observations (
  id BIGSERIAL PRIMARY KEY,
  service_id TEXT NOT NULL,
  fingerprint TEXT NOT NULL,
  first_seen TIMESTAMPTZ NOT NULL,
  last_seen TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS observations_service_id ON observations (service_id);
CREATE TABLE IF NOT EXISTS metrics (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  detail TEXT NOT NULL,
  reported_at TIMESTAMPTZ NOT NULL
);`
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// ReportObservation extends the latest observation of a service when the
// fingerprint is the same, otherwise a new observation starts now.
func (r *Repository) ReportObservation(ctx context.Context, serviceID, fingerprint string) error {
	now := r.now().UTC()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var (
		id     int64
		latest string
	)
	err = tx.QueryRow(ctx, `
SELECT id, fingerprint FROM observations
WHERE service_id = $1
ORDER BY id DESC
LIMIT 1
FOR UPDATE`, serviceID).Scan(&id, &latest)
	switch {
	case err == nil && latest == fingerprint:
		if _, err := tx.Exec(ctx, `UPDATE observations SET last_seen = $1 WHERE id = $2`, now, id); err != nil {
			return fmt.Errorf("update observation: %w", err)
		}
	case err == nil, errors.Is(err, pgx.ErrNoRows):
		_, err := tx.Exec(ctx, `
INSERT INTO observations (service_id, fingerprint, first_seen, last_seen)
VALUES ($1, $2, $3, $3)`, serviceID, fingerprint, now)
		if err != nil {
			return fmt.Errorf("insert observation: %w", err)
		}
	default:
		return fmt.Errorf("select observation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *Repository) ReportMetric(ctx context.Context, name, detail string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO metrics (name, detail, reported_at) VALUES ($1, $2, $3)`,
		name, detail, r.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert metric: %w", err)
	}
	return nil
}

// Observations returns the history of a service, the oldest first.
func (r *Repository) Observations(ctx context.Context, serviceID string) ([]model.ObservationRecord, error) {
	rows, err := r.pool.Query(ctx, `
SELECT service_id, fingerprint, first_seen, last_seen FROM observations
WHERE service_id = $1
ORDER BY id`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("select observations: %w", err)
	}
	ret, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ObservationRecord, error) {
		var rec model.ObservationRecord
		err := row.Scan(&rec.ServiceID, &rec.Fingerprint, &rec.FirstSeen, &rec.LastSeen)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect observations: %w", err)
	}
	return ret, nil
}

// Close releases the pool
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// NewDB opens a pgx pool with tuned defaults.
func NewDB(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	// flushes are serial, a small pool is enough
	cfg.MaxConns = 4
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// Open connects to the database and makes sure the schema exists.
func Open(ctx context.Context, connString string) (*Repository, error) {
	pool, err := NewDB(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return NewRepository(pool), nil
}
