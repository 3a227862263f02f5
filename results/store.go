// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package results provides a history of harness runs, stored in sqlite, so
// measurements can be compared across runs.
package results

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

//go:embed schema.sql
var schemaSQL string

// Store is the run history.
type Store struct {
	db *sql.DB
}

// Run is the record of one harness run.
type Run struct {
	ID        uuid.UUID
	StartedAt time.Time
	Backend   string
	Port      string

	Measurements []Measurement
	Scenarios    []Scenario
}

// Measurement is a named scalar result.
type Measurement struct {
	// e.g. "throughput.toggles_per_sec"
	Name  string
	Value float64
	Unit  string
}

// Scenario is the outcome of a correctness scenario.
type Scenario struct {
	Name   string
	Passed bool
	Error  string
}

// Sample is a historical value of a measurement.
type Sample struct {
	RunID     uuid.UUID
	StartedAt time.Time
	Value     float64
}

// NewRun creates a Run with a fresh time ordered ID.
func NewRun(backend, port string) (Run, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Run{}, errors.Wrap(err, "generate run id")
	}
	return Run{ID: id, StartedAt: time.Now(), Backend: backend, Port: port}, nil
}

// Add appends a measurement to the run.
func (r *Run) Add(name string, value float64, unit string) {
	r.Measurements = append(r.Measurements, Measurement{Name: name, Value: value, Unit: unit})
}

// AddScenario appends a scenario outcome to the run.
func (r *Run) AddScenario(name string, err error) {
	s := Scenario{Name: name, Passed: err == nil}
	if err != nil {
		s.Error = err.Error()
	}
	r.Scenarios = append(r.Scenarios, s)
}

// Open creates or opens the store at the given path.
//
// The database uses WAL mode, with a single connection as sqlite supports
// only one writer.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connect to database")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "execute %q", p)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores the run in a single transaction.
func (s *Store) Record(ctx context.Context, r Run) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	_, err = tx.ExecContext(ctx,
		"INSERT INTO runs (id, started_at, backend, port) VALUES (?, ?, ?, ?)",
		r.ID.String(), r.StartedAt.UnixNano(), r.Backend, r.Port)
	if err != nil {
		return errors.Wrapf(err, "insert run %s", r.ID)
	}
	for _, m := range r.Measurements {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO measurements (run_id, name, value, unit) VALUES (?, ?, ?, ?)",
			r.ID.String(), m.Name, m.Value, m.Unit)
		if err != nil {
			return errors.Wrapf(err, "insert measurement %s", m.Name)
		}
	}
	for i, sc := range r.Scenarios {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO scenarios (run_id, seq, name, passed, error) VALUES (?, ?, ?, ?, ?)",
			r.ID.String(), i, sc.Name, sc.Passed, sc.Error)
		if err != nil {
			return errors.Wrapf(err, "insert scenario %s", sc.Name)
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// Run returns the recorded run with the given ID.
func (s *Store) Run(ctx context.Context, id uuid.UUID) (Run, error) {
	r := Run{ID: id}
	var startedAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT started_at, backend, port FROM runs WHERE id = ?", id.String()).
		Scan(&startedAt, &r.Backend, &r.Port)
	if err != nil {
		return r, errors.Wrapf(err, "run %s", id)
	}
	r.StartedAt = time.Unix(0, startedAt)

	rows, err := s.db.QueryContext(ctx,
		"SELECT name, value, unit FROM measurements WHERE run_id = ? ORDER BY name", id.String())
	if err != nil {
		return r, errors.Wrap(err, "query measurements")
	}
	for rows.Next() {
		var m Measurement
		if err = rows.Scan(&m.Name, &m.Value, &m.Unit); err != nil {
			rows.Close()
			return r, errors.Wrap(err, "scan measurement")
		}
		r.Measurements = append(r.Measurements, m)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return r, err
	}

	rows, err = s.db.QueryContext(ctx,
		"SELECT name, passed, error FROM scenarios WHERE run_id = ? ORDER BY seq", id.String())
	if err != nil {
		return r, errors.Wrap(err, "query scenarios")
	}
	defer rows.Close()
	for rows.Next() {
		var sc Scenario
		if err = rows.Scan(&sc.Name, &sc.Passed, &sc.Error); err != nil {
			return r, errors.Wrap(err, "scan scenario")
		}
		r.Scenarios = append(r.Scenarios, sc)
	}
	return r, rows.Err()
}

// History returns up to limit of the most recent values of the named
// measurement, newest first.
func (s *Store) History(ctx context.Context, name string, limit int) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.started_at, m.value
		FROM measurements m JOIN runs r ON r.id = m.run_id
		WHERE m.name = ?
		ORDER BY r.started_at DESC, r.id DESC
		LIMIT ?`, name, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "query history of %s", name)
	}
	defer rows.Close()
	var hist []Sample
	for rows.Next() {
		var id string
		var startedAt int64
		var smp Sample
		if err = rows.Scan(&id, &startedAt, &smp.Value); err != nil {
			return nil, errors.Wrap(err, "scan sample")
		}
		if smp.RunID, err = uuid.Parse(id); err != nil {
			return nil, errors.Wrapf(err, "run id %q", id)
		}
		smp.StartedAt = time.Unix(0, startedAt)
		hist = append(hist, smp)
	}
	return hist, rows.Err()
}

// NotReproducibleError indicates a measurement differs from the mean of its
// history by more than the permitted factor.
type NotReproducibleError struct {
	Name   string
	Value  float64
	Mean   float64
	Factor float64
	Runs   int
}

func (e *NotReproducibleError) Error() string {
	return fmt.Sprintf("%s: %g differs from the mean %g of %d previous runs by more than a factor of %g",
		e.Name, e.Value, e.Mean, e.Runs, e.Factor)
}

// HistoryDepth is the number of previous runs considered by
// CheckReproducible.
const HistoryDepth = 20

// CheckReproducible checks the value of the named measurement is within a
// factor of the mean of its recent history.
//
// A measurement with no history is trivially reproducible.
func (s *Store) CheckReproducible(ctx context.Context, name string, value, factor float64) error {
	hist, err := s.History(ctx, name, HistoryDepth)
	if err != nil {
		return err
	}
	if len(hist) == 0 {
		return nil
	}
	sum := 0.0
	for _, h := range hist {
		sum += h.Value
	}
	mean := sum / float64(len(hist))
	if mean <= 0 || value <= 0 {
		if mean == value {
			return nil
		}
	} else if math.Max(value/mean, mean/value) <= factor {
		return nil
	}
	return &NotReproducibleError{Name: name, Value: value, Mean: mean, Factor: factor, Runs: len(hist)}
}
