package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// ErrSchemaAhead is returned when the store was written by a newer build
// whose schema version this binary does not know.
var ErrSchemaAhead = errors.New("schema version is ahead of this build")

// State is the lifecycle of a single migration step.
type State int

const (
	StatePending State = iota
	StateInProgress
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInProgress:
		return "in_progress"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Step is one forward-only schema transition to Version.
// A nil Up is a placeholder: it records the version and changes nothing.
type Step struct {
	Version     int
	Name        string
	Destructive bool
	Up          func(ctx context.Context, tx *sql.Tx) error
}

// StepResult reports how a step ended.
type StepResult struct {
	Version int
	Name    string
	State   State
	Err     error
}

// Migrator applies Steps in version order. Each step and its bookkeeping row
// commit together, so readers never see a half-applied step.
//
// The migrator does no locking of its own. Callers must keep every other
// access to the store out while it runs; Provider does this at startup.
type Migrator struct {
	Steps  []Step
	Logger *zap.Logger
	// Observe, if set, is called on every state transition.
	Observe func(Step, State)
}

// NewMigrator returns a migrator over DefaultSteps.
func NewMigrator(logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{Steps: DefaultSteps(), Logger: logger}
}

// Latest is the highest version among the steps.
func (m *Migrator) Latest() int {
	latest := 0
	for _, s := range m.Steps {
		if s.Version > latest {
			latest = s.Version
		}
	}
	return latest
}

// Version returns the version recorded in the store, 0 for a fresh one.
func (m *Migrator) Version(ctx context.Context, d *sql.DB) (int, error) {
	if err := ensureMigrationsTable(ctx, d); err != nil {
		return 0, err
	}
	var v int
	err := d.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// Migrate brings the store to Latest.
func (m *Migrator) Migrate(ctx context.Context, d *sql.DB) ([]StepResult, error) {
	return m.MigrateTo(ctx, d, m.Latest())
}

// MigrateTo applies, in order, every step above the recorded version up to
// and including target. A store already at or past target is left alone.
// The first failing step is rolled back and stops the run.
func (m *Migrator) MigrateTo(ctx context.Context, d *sql.DB, target int) ([]StepResult, error) {
	if d == nil {
		return nil, errors.New("nil db")
	}
	steps, err := m.ordered()
	if err != nil {
		return nil, err
	}
	current, err := m.Version(ctx, d)
	if err != nil {
		return nil, err
	}
	if current > m.Latest() {
		return nil, fmt.Errorf("%w: store at %d, latest known %d", ErrSchemaAhead, current, m.Latest())
	}
	if current >= target {
		m.logger().Debug("schema up to date", zap.Int("version", current))
		return nil, nil
	}

	m.logger().Info("migrating schema", zap.Int("from", current), zap.Int("to", target))
	var results []StepResult
	for _, s := range steps {
		if s.Version <= current || s.Version > target {
			continue
		}
		res := m.run(ctx, d, s)
		results = append(results, res)
		if res.State == StateFailed {
			return results, fmt.Errorf("migration %04d %s failed: %w", s.Version, s.Name, res.Err)
		}
	}
	return results, nil
}

func (m *Migrator) run(ctx context.Context, d *sql.DB, s Step) StepResult {
	log := m.logger().With(zap.Int("version", s.Version), zap.String("name", s.Name))
	m.transition(s, StatePending)

	err := WithTx(ctx, d, func(ctx context.Context, tx *sql.Tx) error {
		if s.Up != nil {
			m.transition(s, StateInProgress)
			if err := s.Up(ctx, tx); err != nil {
				return err
			}
		} else {
			log.Info("placeholder step, no schema changes", zap.Bool("destructive", s.Destructive))
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES(?, ?)`, s.Version, s.Name)
		return err
	})
	if err != nil {
		log.Error("migration step failed", zap.Error(err))
		m.transition(s, StateFailed)
		return StepResult{Version: s.Version, Name: s.Name, State: StateFailed, Err: err}
	}
	log.Info("migration step completed")
	m.transition(s, StateCompleted)
	return StepResult{Version: s.Version, Name: s.Name, State: StateCompleted}
}

func (m *Migrator) transition(s Step, st State) {
	if m.Observe != nil {
		m.Observe(s, st)
	}
}

func (m *Migrator) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}

// ordered returns the steps sorted by version, rejecting duplicates.
func (m *Migrator) ordered() ([]Step, error) {
	steps := append([]Step(nil), m.Steps...)
	sort.Slice(steps, func(i, j int) bool { return steps[i].Version < steps[j].Version })
	for i := range steps {
		if steps[i].Version <= 0 {
			return nil, fmt.Errorf("invalid migration version %d", steps[i].Version)
		}
		if i > 0 && steps[i].Version == steps[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %04d", steps[i].Version)
		}
	}
	return steps, nil
}

func ensureMigrationsTable(ctx context.Context, d *sql.DB) error {
	_, err := d.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
        version INTEGER PRIMARY KEY,
        name TEXT NOT NULL DEFAULT '',
        applied_at TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
    )`)
	return err
}
