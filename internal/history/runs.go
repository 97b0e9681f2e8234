package history

import (
	"database/sql"
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a recorded run
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusDone    RunStatus = "done"
	RunStatusFailed  RunStatus = "failed"
)

// Run is one row of the runs table
type Run struct {
	ID          string
	Mode        string
	Status      RunStatus
	MCUImage    *string
	ModuleImage *string

	// Failure details (nil unless Status is failed)
	FailedStage *string
	Reason      *string
	ExitCode    *int

	Percent     int
	StartedAt   *time.Time
	CompletedAt *time.Time
	Error       *string
}

// Completion is the terminal outcome written by CompleteRun
type Completion struct {
	Status      RunStatus
	Percent     int
	FailedStage string
	Reason      string
	ExitCode    int
	Error       string
}

const runColumns = `id, mode, status, mcu_image, module_image, failed_stage, reason,
		       exit_code, percent, started_at, completed_at, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	run := &Run{}
	err := s.Scan(
		&run.ID,
		&run.Mode,
		&run.Status,
		&run.MCUImage,
		&run.ModuleImage,
		&run.FailedStage,
		&run.Reason,
		&run.ExitCode,
		&run.Percent,
		&run.StartedAt,
		&run.CompletedAt,
		&run.Error,
	)
	return run, err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CreateRun inserts a new run. StartedAt defaults to now.
func (db *DB) CreateRun(run *Run) error {
	if run.StartedAt == nil {
		now := time.Now().UTC()
		run.StartedAt = &now
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}

	query := `
		INSERT INTO runs (
			id, mode, status, mcu_image, module_image, failed_stage, reason,
			exit_code, percent, started_at, completed_at, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.conn.Exec(
		query,
		run.ID,
		run.Mode,
		run.Status,
		run.MCUImage,
		run.ModuleImage,
		run.FailedStage,
		run.Reason,
		run.ExitCode,
		run.Percent,
		run.StartedAt,
		run.CompletedAt,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// CompleteRun records the terminal outcome of a run and sets completed_at.
func (db *DB) CompleteRun(id string, c Completion) error {
	var exitCode *int
	if c.Reason != "" {
		code := c.ExitCode
		exitCode = &code
	}

	query := `
		UPDATE runs
		SET status = ?, percent = ?, failed_stage = ?, reason = ?, exit_code = ?,
		    error = ?, completed_at = ?
		WHERE id = ?
	`
	result, err := db.conn.Exec(query,
		c.Status,
		c.Percent,
		nullable(c.FailedStage),
		nullable(c.Reason),
		exitCode,
		nullable(c.Error),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

// GetRun retrieves a run by its ID.
// Returns nil, nil if the run does not exist.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.conn.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (db *DB) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// Summary counts runs by status
type Summary struct {
	Total   int
	Done    int
	Failed  int
	Running int
}

// Summarize counts recorded runs by status.
func (db *DB) Summarize() (Summary, error) {
	var s Summary
	rows, err := db.conn.Query(`SELECT status, COUNT(*) FROM runs GROUP BY status`)
	if err != nil {
		return s, fmt.Errorf("failed to summarize runs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status RunStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return s, fmt.Errorf("failed to scan summary: %w", err)
		}
		s.Total += n
		switch status {
		case RunStatusDone:
			s.Done = n
		case RunStatusFailed:
			s.Failed = n
		case RunStatusRunning:
			s.Running = n
		}
	}
	return s, rows.Err()
}

// DeleteRun removes a run and its events (cascade).
func (db *DB) DeleteRun(id string) error {
	if _, err := db.conn.Exec(`DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}
