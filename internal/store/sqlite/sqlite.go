// Package sqlite keeps observations in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CZERTAINLY/notary-scan/internal/model"

	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS observations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		service_id TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		first_seen TIMESTAMP NOT NULL,
		last_seen TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS observations_service_id ON observations (service_id)`,
	`CREATE TABLE IF NOT EXISTS metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		detail TEXT NOT NULL,
		reported_at TIMESTAMP NOT NULL
	)`,
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// InitDB opens the database at dbPath and creates the tables if needed.
func InitDB(ctx context.Context, dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer, concurrent flushes would get SQLITE_BUSY
	db.SetMaxOpenConns(1)

	for _, ddl := range schema {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("creating tables failed: %w", err)
		}
	}
	return db, nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Open is InitDB followed by New
func Open(ctx context.Context, dbPath string) (*Store, error) {
	db, err := InitDB(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// ReportObservation extends the latest observation of a service if its
// fingerprint did not change, otherwise it starts a new one.
func (s *Store) ReportObservation(ctx context.Context, serviceID, fingerprint string) error {
	now := s.now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "Calling `tx.Rollback()` failed.", slog.String("service_id", serviceID))
		}
	}()

	var (
		id     int64
		latest string
	)
	row := tx.QueryRowContext(ctx,
		`SELECT id, fingerprint FROM observations WHERE service_id=? ORDER BY id DESC LIMIT 1`,
		serviceID,
	)
	err = row.Scan(&id, &latest)
	switch {
	case err == nil && latest == fingerprint:
		_, err = tx.ExecContext(ctx, `UPDATE observations SET last_seen=? WHERE id=?`, now, id)
		if err != nil {
			return fmt.Errorf("executing sql update failed: %w", err)
		}
	case err == nil, errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			`INSERT INTO observations (service_id, fingerprint, first_seen, last_seen) VALUES (?,?,?,?)`,
			serviceID, fingerprint, now, now,
		)
		if err != nil {
			return fmt.Errorf("executing sql insert failed: %w", err)
		}
	default:
		return fmt.Errorf("executing sql query failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction failed: %w", err)
	}
	return nil
}

func (s *Store) ReportMetric(ctx context.Context, name, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metrics (name, detail, reported_at) VALUES (?,?,?)`,
		name, detail, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("executing sql insert failed: %w", err)
	}
	return nil
}

// Observations returns the history of a service, the oldest first.
func (s *Store) Observations(ctx context.Context, serviceID string) ([]model.ObservationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT service_id, fingerprint, first_seen, last_seen FROM observations WHERE service_id=? ORDER BY id`,
		serviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("executing sql query failed: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ret []model.ObservationRecord
	for rows.Next() {
		var r model.ObservationRecord
		if err := rows.Scan(&r.ServiceID, &r.Fingerprint, &r.FirstSeen, &r.LastSeen); err != nil {
			return nil, fmt.Errorf("scanning sql row failed: %w", err)
		}
		ret = append(ret, r)
	}
	return ret, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
