// Package store persists simulation output to SQLite. It implements the
// root package's Recorder interface: one row per simulation, one per
// run, and the raw per-instant samples and transition firings of every
// run. Aggregation (availability statistics over runs) is left to
// whatever reads the database.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/quentel/availsim/engine"
)

//go:embed schema.sql
var schema string

// Store is a SQLite-backed simulation recorder. A Store may be shared by
// sequential campaigns; it serializes writes through database/sql.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	// The sqlite driver is not safe for concurrent writers on one
	// connection pool entry; a single connection keeps writes ordered.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginSimulation registers a simulation campaign.
func (s *Store) BeginSimulation(ctx context.Context, id uuid.UUID, system string, cfg *engine.Config) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO simulations (id, system, nb_runs, seed, horizon) VALUES (?, ?, ?, ?, ?)`,
		id.String(), system, cfg.Runs, cfg.Seed, cfg.Horizon())
	if err != nil {
		return fmt.Errorf("insert simulation %s: %w", id, err)
	}
	return nil
}

// RecordRun persists one completed run atomically.
func (s *Store) RecordRun(ctx context.Context, id uuid.UUID, run engine.RunResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (simulation_id, run, seed) VALUES (?, ?, ?)`,
		id.String(), run.Run, run.Seed); err != nil {
		return fmt.Errorf("insert run %d: %w", run.Run, err)
	}

	sampleStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO samples (simulation_id, run, time, name, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare samples: %w", err)
	}
	defer sampleStmt.Close()
	for _, sm := range run.Samples {
		if _, err := sampleStmt.ExecContext(ctx, id.String(), run.Run, sm.Time, sm.Name, sm.Value); err != nil {
			return fmt.Errorf("insert sample: %w", err)
		}
	}

	firingStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO firings (simulation_id, run, seq, time, automaton, transition) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare firings: %w", err)
	}
	defer firingStmt.Close()
	for i, f := range run.Firings {
		if _, err := firingStmt.ExecContext(ctx, id.String(), run.Run, i, f.Time, f.Automaton, f.Transition); err != nil {
			return fmt.Errorf("insert firing: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %d: %w", run.Run, err)
	}
	return nil
}

// RunSamples reads back the samples of one run in insertion order.
func (s *Store) RunSamples(ctx context.Context, id uuid.UUID, run int) ([]engine.Sample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT time, name, value FROM samples WHERE simulation_id = ? AND run = ? ORDER BY rowid`,
		id.String(), run)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var out []engine.Sample
	for rows.Next() {
		var sm engine.Sample
		if err := rows.Scan(&sm.Time, &sm.Name, &sm.Value); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

// RunFirings reads back the firing trace of one run in firing order.
func (s *Store) RunFirings(ctx context.Context, id uuid.UUID, run int) ([]engine.Firing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT time, automaton, transition FROM firings WHERE simulation_id = ? AND run = ? ORDER BY seq`,
		id.String(), run)
	if err != nil {
		return nil, fmt.Errorf("query firings: %w", err)
	}
	defer rows.Close()

	var out []engine.Firing
	for rows.Next() {
		var f engine.Firing
		if err := rows.Scan(&f.Time, &f.Automaton, &f.Transition); err != nil {
			return nil, fmt.Errorf("scan firing: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
