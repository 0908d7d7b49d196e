package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/latticesim/contact-sim/sim/sweep"
)

// ErrRunNotFound is returned by LoadRun for an unknown run ID.
var ErrRunNotFound = errors.New("sweep run not found")

// Run is one persisted sweep: its configuration and per-point results.
type Run struct {
	ID        string
	Topology  string
	Scheduler string
	Horizon   float64
	Replicas  int
	Seed      int64
	CreatedAt time.Time
	Points    []sweep.PointResult
}

// NewRun stamps results of cfg with a fresh ID.
func NewRun(cfg sweep.Config, points []sweep.PointResult) Run {
	return Run{
		ID:        uuid.NewString(),
		Topology:  string(cfg.Topology),
		Scheduler: string(cfg.Scheduler),
		Horizon:   cfg.Horizon,
		Replicas:  cfg.Replicas,
		Seed:      cfg.Seed,
		CreatedAt: time.Now().UTC(),
		Points:    points,
	}
}

// Store keeps sweep runs in a SQLite database.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the database at path.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			topology TEXT NOT NULL,
			scheduler TEXT NOT NULL,
			horizon REAL NOT NULL,
			replicas INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS points (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			lambda REAL NOT NULL,
			alpha REAL NOT NULL,
			replicas INTEGER NOT NULL,
			extinct INTEGER NOT NULL,
			survived INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			extinction_fraction REAL NOT NULL,
			mean_active REAL NOT NULL,
			stddev_active REAL NOT NULL,
			stderr_active REAL NOT NULL,
			mean_steps REAL NOT NULL,
			err TEXT NOT NULL,
			PRIMARY KEY (run_id, lambda, alpha)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// SaveRun persists run and all its points in one transaction.
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, topology, scheduler, horizon, replicas, seed, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Topology, run.Scheduler, run.Horizon, run.Replicas, run.Seed, run.CreatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO points (run_id, lambda, alpha, replicas, extinct, survived, failed,
		extinction_fraction, mean_active, stddev_active, stderr_active, mean_steps, err)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, p := range run.Points {
		if _, err := stmt.ExecContext(ctx, run.ID, p.Lambda, p.Alpha, p.Replicas, p.Extinct, p.Survived, p.Failed,
			p.ExtinctionFraction, p.MeanActive, p.StdDevActive, p.StdErrActive, p.MeanSteps, p.Err); err != nil {
			return fmt.Errorf("insert point lambda=%g alpha=%g: %w", p.Lambda, p.Alpha, err)
		}
	}
	return tx.Commit()
}

// LoadRun reads a run and its points ordered by (λ, α).
func (s *Store) LoadRun(ctx context.Context, id string) (Run, error) {
	run := Run{ID: id}
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT topology, scheduler, horizon, replicas, seed, created_at FROM runs WHERE id = ?`, id,
	).Scan(&run.Topology, &run.Scheduler, &run.Horizon, &run.Replicas, &run.Seed, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, err
	}
	if run.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Run{}, fmt.Errorf("run %s created_at: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT lambda, alpha, replicas, extinct, survived, failed,
		extinction_fraction, mean_active, stddev_active, stderr_active, mean_steps, err
		FROM points WHERE run_id = ? ORDER BY lambda, alpha`, id)
	if err != nil {
		return Run{}, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var p sweep.PointResult
		if err := rows.Scan(&p.Lambda, &p.Alpha, &p.Replicas, &p.Extinct, &p.Survived, &p.Failed,
			&p.ExtinctionFraction, &p.MeanActive, &p.StdDevActive, &p.StdErrActive, &p.MeanSteps, &p.Err); err != nil {
			return Run{}, err
		}
		run.Points = append(run.Points, p)
	}
	return run, rows.Err()
}

// RunIDs lists stored runs, oldest first.
func (s *Store) RunIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM runs ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
