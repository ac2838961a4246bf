// Package store persists finished schedules in a SQLite database so runs
// can be compared and reloaded later.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/slotplan/pkg/export"
)

// ErrNotFound is returned when no run matches a query.
var ErrNotFound = errors.New("schedule not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    project TEXT NOT NULL,
    scenario TEXT NOT NULL,
    ok INTEGER NOT NULL,
    start_at INTEGER,
    end_at INTEGER,
    unscheduled INTEGER NOT NULL,
    errors INTEGER NOT NULL,
    warnings INTEGER NOT NULL,
    generated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_by_scenario ON runs(project, scenario, generated_at);
CREATE TABLE IF NOT EXISTS tasks (
    run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    task_id TEXT NOT NULL,
    name TEXT NOT NULL,
    parent TEXT NOT NULL,
    container INTEGER NOT NULL,
    milestone INTEGER NOT NULL,
    scheduled INTEGER NOT NULL,
    runaway INTEGER NOT NULL,
    start_at INTEGER,
    end_at INTEGER,
    effort_done REAL NOT NULL,
    criticalness REAL NOT NULL,
    path_criticalness REAL NOT NULL,
    resources TEXT NOT NULL,
    PRIMARY KEY(run_id, task_id)
);
CREATE TABLE IF NOT EXISTS resources (
    run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    resource_id TEXT NOT NULL,
    name TEXT NOT NULL,
    parent TEXT NOT NULL,
    allocated REAL NOT NULL,
    free REAL NOT NULL,
    cost REAL NOT NULL,
    criticalness REAL NOT NULL,
    PRIMARY KEY(run_id, resource_id)
);
CREATE TABLE IF NOT EXISTS bookings (
    run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    resource_id TEXT NOT NULL,
    task_id TEXT NOT NULL,
    start_at INTEGER NOT NULL,
    end_at INTEGER NOT NULL
);`

// SQLiteStore persists schedules in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// RunSummary describes one stored run.
type RunSummary struct {
	RunID       string
	Project     string
	Scenario    string
	OK          bool
	Start       time.Time
	End         time.Time
	Unscheduled int
	Errors      int
	Warnings    int
	GeneratedAt time.Time
}

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", path+sep+"_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save stores s. Saving a run id twice replaces the earlier copy.
func (s *SQLiteStore) Save(ctx context.Context, sch export.Schedule) (err error) {
	if sch.RunID == "" {
		return errors.New("schedule has no run id")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, sch.RunID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO runs
        (run_id, project, scenario, ok, start_at, end_at, unscheduled, errors, warnings, generated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sch.RunID, sch.Project, sch.Scenario, sch.OK, unixOrNull(sch.Start), unixOrNull(sch.End),
		sch.Unscheduled, sch.Errors, sch.Warnings, sch.GeneratedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for i, t := range sch.Tasks {
		_, err = tx.ExecContext(ctx, `INSERT INTO tasks
            (run_id, seq, task_id, name, parent, container, milestone, scheduled, runaway, start_at, end_at,
             effort_done, criticalness, path_criticalness, resources)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sch.RunID, i, t.ID, t.Name, t.Parent, t.Container, t.Milestone, t.Scheduled, t.Runaway,
			unixOrNull(t.Start), unixOrNull(t.End), t.EffortDone, t.Criticalness, t.PathCriticalness,
			strings.Join(t.Resources, ","))
		if err != nil {
			return fmt.Errorf("insert task %s: %w", t.ID, err)
		}
	}
	for i, r := range sch.Resources {
		_, err = tx.ExecContext(ctx, `INSERT INTO resources
            (run_id, seq, resource_id, name, parent, allocated, free, cost, criticalness)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sch.RunID, i, r.ID, r.Name, r.Parent, r.Allocated, r.Free, r.Cost, r.Criticalness)
		if err != nil {
			return fmt.Errorf("insert resource %s: %w", r.ID, err)
		}
		for _, b := range r.Bookings {
			_, err = tx.ExecContext(ctx, `INSERT INTO bookings (run_id, resource_id, task_id, start_at, end_at)
                VALUES (?, ?, ?, ?, ?)`, sch.RunID, r.ID, b.Task, b.Start.Unix(), b.End.Unix())
			if err != nil {
				return fmt.Errorf("insert booking: %w", err)
			}
		}
	}
	return tx.Commit()
}

// Runs lists the stored runs of a project scenario, newest first. An empty
// scenario matches all scenarios; limit <= 0 returns every run.
func (s *SQLiteStore) Runs(ctx context.Context, project, scenario string, limit int) ([]RunSummary, error) {
	q := `SELECT run_id, project, scenario, ok, start_at, end_at, unscheduled, errors, warnings, generated_at
        FROM runs WHERE project = ?`
	args := []any{project}
	if scenario != "" {
		q += ` AND scenario = ?`
		args = append(args, scenario)
	}
	q += ` ORDER BY generated_at DESC, rowid DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []RunSummary
	for rows.Next() {
		var r RunSummary
		var start, end sql.NullInt64
		var generated int64
		if err := rows.Scan(&r.RunID, &r.Project, &r.Scenario, &r.OK, &start, &end,
			&r.Unscheduled, &r.Errors, &r.Warnings, &generated); err != nil {
			return nil, err
		}
		if t := fromNull(start); t != nil {
			r.Start = *t
		}
		if t := fromNull(end); t != nil {
			r.End = *t
		}
		r.GeneratedAt = time.Unix(generated, 0).UTC()
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Latest loads the newest run of a project scenario.
func (s *SQLiteStore) Latest(ctx context.Context, project, scenario string) (export.Schedule, error) {
	runs, err := s.Runs(ctx, project, scenario, 1)
	if err != nil {
		return export.Schedule{}, err
	}
	if len(runs) == 0 {
		return export.Schedule{}, fmt.Errorf("%w: %s/%s", ErrNotFound, project, scenario)
	}
	return s.Load(ctx, runs[0].RunID)
}

// Load reads a run back.
func (s *SQLiteStore) Load(ctx context.Context, runID string) (export.Schedule, error) {
	var sch export.Schedule
	var start, end sql.NullInt64
	var generated int64
	err := s.db.QueryRowContext(ctx, `SELECT run_id, project, scenario, ok, start_at, end_at, unscheduled, errors, warnings, generated_at
        FROM runs WHERE run_id = ?`, runID).Scan(&sch.RunID, &sch.Project, &sch.Scenario, &sch.OK, &start, &end,
		&sch.Unscheduled, &sch.Errors, &sch.Warnings, &generated)
	if errors.Is(err, sql.ErrNoRows) {
		return sch, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	if err != nil {
		return sch, err
	}
	sch.Start, sch.End = fromNull(start), fromNull(end)
	sch.GeneratedAt = time.Unix(generated, 0).UTC()
	if sch.Tasks, err = s.loadTasks(ctx, runID); err != nil {
		return sch, err
	}
	if sch.Resources, err = s.loadResources(ctx, runID); err != nil {
		return sch, err
	}
	return sch, nil
}

func (s *SQLiteStore) loadTasks(ctx context.Context, runID string) ([]export.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT task_id, name, parent, container, milestone, scheduled, runaway,
        start_at, end_at, effort_done, criticalness, path_criticalness, resources
        FROM tasks WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []export.Task
	for rows.Next() {
		var t export.Task
		var start, end sql.NullInt64
		var resources string
		if err := rows.Scan(&t.ID, &t.Name, &t.Parent, &t.Container, &t.Milestone, &t.Scheduled, &t.Runaway,
			&start, &end, &t.EffortDone, &t.Criticalness, &t.PathCriticalness, &resources); err != nil {
			return nil, err
		}
		t.Start, t.End = fromNull(start), fromNull(end)
		if resources != "" {
			t.Resources = strings.Split(resources, ",")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) loadResources(ctx context.Context, runID string) ([]export.Resource, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT resource_id, name, parent, allocated, free, cost, criticalness
        FROM resources WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	var out []export.Resource
	idx := make(map[string]int)
	for rows.Next() {
		var r export.Resource
		if err := rows.Scan(&r.ID, &r.Name, &r.Parent, &r.Allocated, &r.Free, &r.Cost, &r.Criticalness); err != nil {
			_ = rows.Close()
			return nil, err
		}
		idx[r.ID] = len(out)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	brows, err := s.db.QueryContext(ctx, `SELECT resource_id, task_id, start_at, end_at
        FROM bookings WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = brows.Close() }()
	for brows.Next() {
		var res string
		var b export.Booking
		var start, end int64
		if err := brows.Scan(&res, &b.Task, &start, &end); err != nil {
			return nil, err
		}
		b.Start, b.End = time.Unix(start, 0).UTC(), time.Unix(end, 0).UTC()
		if i, ok := idx[res]; ok {
			out[i].Bookings = append(out[i].Bookings, b)
		}
	}
	return out, brows.Err()
}

// Prune deletes all but the newest keep runs of every project scenario.
func (s *SQLiteStore) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id IN (
        SELECT run_id FROM (
            SELECT run_id, ROW_NUMBER() OVER (
                PARTITION BY project, scenario ORDER BY generated_at DESC, rowid DESC) AS n
            FROM runs)
        WHERE n > ?)`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func unixOrNull(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.Unix()
}

func fromNull(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}
