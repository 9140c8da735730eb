package store

import (
	"context"
	"database/sql"
)

// LoadRun records one file import or archive download for auditing.
type LoadRun struct {
	ID            int64          `db:"id"`
	StartedAt     sql.NullTime   `db:"started_at"`
	FinishedAt    sql.NullTime   `db:"finished_at"`
	Source        string         `db:"source"` // "precip", "stations", "ftp"
	Target        string         `db:"target"` // file path or archive name
	RecordsParsed sql.NullInt64  `db:"records_parsed"`
	RecordsStored sql.NullInt64  `db:"records_stored"`
	ParseErrors   sql.NullInt64  `db:"parse_errors"` // lines that failed to parse
	Success       bool           `db:"success"`
	ErrorMessage  sql.NullString `db:"error_message"`
}

// StartLoadRun creates a new load run record and returns it.
func (s *Store) StartLoadRun(ctx context.Context, source, target string) (*LoadRun, error) {
	run := &LoadRun{
		StartedAt: sql.NullTime{Time: s.clock.Now().UTC(), Valid: true},
		Source:    source,
		Target:    target,
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO load_runs (started_at, source, target, success)
		VALUES (?, ?, ?, FALSE)
	`, run.StartedAt, run.Source, run.Target)
	if err != nil {
		return nil, err
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return run, nil
}

// CompleteLoadRun updates the load run with results.
func (s *Store) CompleteLoadRun(ctx context.Context, run *LoadRun) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: s.clock.Now().UTC(), Valid: true}

	_, err := s.db.ExecContext(ctx, `
		UPDATE load_runs SET
			finished_at = ?,
			records_parsed = ?,
			records_stored = ?,
			parse_errors = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.RecordsParsed, run.RecordsStored, run.ParseErrors,
		run.Success, run.ErrorMessage, run.ID)
	return err
}

// LoadHealthSummary aggregates load runs per source.
type LoadHealthSummary struct {
	Source           string `db:"source" json:"source"`
	TotalRuns        int    `db:"total_runs" json:"total_runs"`
	SuccessRuns      int    `db:"success_runs" json:"success_runs"`
	FailedRuns       int    `db:"failed_runs" json:"failed_runs"`
	TotalRecords     int64  `db:"total_records" json:"total_records"`
	TotalParseErrors int64  `db:"total_parse_errors" json:"total_parse_errors"`
}

// GetLoadHealth returns load run totals per source.
func (s *Store) GetLoadHealth(ctx context.Context) ([]LoadHealthSummary, error) {
	var results []LoadHealthSummary
	err := s.x.SelectContext(ctx, &results, `
		SELECT
			source,
			COUNT(*) AS total_runs,
			SUM(CASE WHEN success THEN 1 ELSE 0 END) AS success_runs,
			SUM(CASE WHEN NOT success THEN 1 ELSE 0 END) AS failed_runs,
			COALESCE(SUM(records_stored), 0) AS total_records,
			COALESCE(SUM(parse_errors), 0) AS total_parse_errors
		FROM load_runs
		GROUP BY source
		ORDER BY source
	`)
	return results, err
}

// GetRecentLoadErrors returns recent failed load runs.
func (s *Store) GetRecentLoadErrors(ctx context.Context, limit int) ([]LoadRun, error) {
	var results []LoadRun
	err := s.x.SelectContext(ctx, &results, `
		SELECT id, started_at, finished_at, source, target,
			   records_parsed, records_stored, parse_errors, success, error_message
		FROM load_runs
		WHERE success = FALSE
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	return results, err
}
