package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"response_analytics/analysis"
)

const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

// Store wraps SQLite access for report runs and their results.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			trigger_source TEXT,
			status TEXT,
			started_at TIMESTAMP,
			finished_at TIMESTAMP,
			counts_json TEXT,
			sink_errors_json TEXT,
			last_error TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS run_logs (
			run_id TEXT,
			stage TEXT,
			line TEXT,
			created_at TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS joined_records (
			run_id TEXT,
			submission_id TEXT,
			subject_id TEXT,
			team TEXT,
			created_at TIMESTAMP,
			time_responded TIMESTAMP,
			response_days REAL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_joined_run ON joined_records(run_id);`,
		`CREATE TABLE IF NOT EXISTS aggregates (
			run_id TEXT,
			dimension TEXT,
			position INTEGER,
			group_key TEXT,
			mean REAL,
			median REAL,
			group_count INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_aggregates_run ON aggregates(run_id, dimension);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Run is one execution of the report pipeline.
type Run struct {
	ID         string            `json:"run_id"`
	Trigger    string            `json:"trigger"`
	Status     string            `json:"status"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at"`
	Counts     map[string]int    `json:"counts"`
	SinkErrors map[string]string `json:"sink_errors"`
	LastError  *string           `json:"last_error"`
}

// StartRun records a new running run and returns it with a fresh id.
func (s *Store) StartRun(ctx context.Context, trigger string, ts time.Time) (*Run, error) {
	run := &Run{ID: uuid.NewString(), Trigger: trigger, Status: StatusRunning, StartedAt: ts}
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs(run_id, trigger_source, status, started_at, counts_json, sink_errors_json) VALUES(?,?,?,?,?,?)`,
		run.ID, trigger, run.Status, ts, "{}", "{}")
	if err != nil {
		return nil, err
	}
	return run, nil
}

// FinishRun stores the final status, stage counts and sink failures of a run.
func (s *Store) FinishRun(ctx context.Context, id, status string, counts map[string]int, sinkErrors map[string]string, errMsg *string, ts time.Time) error {
	countsJSON, _ := json.Marshal(counts)
	sinkJSON, _ := json.Marshal(sinkErrors)
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET status=?, finished_at=?, counts_json=?, sink_errors_json=?, last_error=? WHERE run_id=?`,
		status, ts, string(countsJSON), string(sinkJSON), errMsg, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: no such run", id)
	}
	return nil
}

func (s *Store) AppendRunLog(ctx context.Context, id, stage, line string, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO run_logs(run_id, stage, line, created_at) VALUES(?,?,?,?)`, id, stage, line, ts)
	return err
}

func (s *Store) RunLogs(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT stage, line FROM run_logs WHERE run_id=? ORDER BY rowid ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []string
	for rows.Next() {
		var stage, line string
		if err := rows.Scan(&stage, &line); err != nil {
			return nil, err
		}
		lines = append(lines, stage+": "+line)
	}
	return lines, rows.Err()
}

// SaveJoined stores the joined records of a run in one transaction.
func (s *Store) SaveJoined(ctx context.Context, id string, records []analysis.JoinedRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO joined_records(run_id, submission_id, subject_id, team, created_at, time_responded, response_days) VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, id, r.SubmissionID, r.SubjectID, r.Team, r.CreatedAt.UTC(), r.TimeResponded.UTC(), r.ResponseDays); err != nil {
			tx.Rollback()
			return fmt.Errorf("save joined %s: %w", r.SubmissionID, err)
		}
	}
	return tx.Commit()
}

// JoinedRecords returns the stored records of a run in insertion order.
func (s *Store) JoinedRecords(ctx context.Context, id string) ([]analysis.JoinedRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT submission_id, subject_id, team, created_at, time_responded, response_days FROM joined_records WHERE run_id=? ORDER BY rowid ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []analysis.JoinedRecord
	for rows.Next() {
		var r analysis.JoinedRecord
		if err := rows.Scan(&r.SubmissionID, &r.SubjectID, &r.Team, &r.CreatedAt, &r.TimeResponded, &r.ResponseDays); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveAggregates stores one grouped aggregate. Undefined statistics are stored as NULL.
func (s *Store) SaveAggregates(ctx context.Context, id, dimension string, stats []analysis.GroupStat) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for i, g := range stats {
		_, err := tx.ExecContext(ctx, `INSERT INTO aggregates(run_id, dimension, position, group_key, mean, median, group_count) VALUES(?,?,?,?,?,?,?)`,
			id, dimension, i, g.Key, nullable(g.Mean), nullable(g.Median), g.Count)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("save aggregate %s/%s: %w", dimension, g.Key, err)
		}
	}
	return tx.Commit()
}

// RunAggregates returns one stored aggregate in its original order.
func (s *Store) RunAggregates(ctx context.Context, id, dimension string) ([]analysis.GroupStat, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT group_key, mean, median, group_count FROM aggregates WHERE run_id=? AND dimension=? ORDER BY position ASC`, id, dimension)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []analysis.GroupStat
	for rows.Next() {
		var g analysis.GroupStat
		var mean, median sql.NullFloat64
		if err := rows.Scan(&g.Key, &mean, &median, &g.Count); err != nil {
			return nil, err
		}
		g.Mean = analysis.Float{Value: mean.Float64, Valid: mean.Valid}
		g.Median = analysis.Float{Value: median.Float64, Valid: median.Valid}
		out = append(out, g)
	}
	return out, rows.Err()
}

const runColumns = `run_id, trigger_source, status, started_at, finished_at, counts_json, sink_errors_json, last_error`

// GetRun returns the run, or nil when it does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id=?`, id)
	run, err := scanRun(row)
	switch err {
	case nil:
		return run, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, err
	}
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Health returns err if DB not reachable.
func (s *Store) Health(ctx context.Context) error {
	row := s.db.QueryRowContext(ctx, `SELECT 1`)
	var v int
	if err := row.Scan(&v); err != nil {
		return fmt.Errorf("db health: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var run Run
	var finished sql.NullTime
	var counts, sinks, errMsg sql.NullString
	if err := sc.Scan(&run.ID, &run.Trigger, &run.Status, &run.StartedAt, &finished, &counts, &sinks, &errMsg); err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	if errMsg.Valid {
		run.LastError = &errMsg.String
	}
	if counts.Valid {
		_ = json.Unmarshal([]byte(counts.String), &run.Counts)
	}
	if sinks.Valid {
		_ = json.Unmarshal([]byte(sinks.String), &run.SinkErrors)
	}
	return &run, nil
}

func nullable(f analysis.Float) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f.Value, Valid: f.Valid}
}
