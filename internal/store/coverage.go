package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lox/precipqc/internal/models"
)

// InsertCoverage appends coverage rows in a single transaction. Rows are never
// merged: a station-period that already has a row fails the whole batch.
func (s *Store) InsertCoverage(ctx context.Context, records []models.CoverageRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.x.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO station_period_coverage (station, period, hours, missing_hours, coverage, cov_flag, units_flag)
		VALUES (:station, :period, :hours, :missing_hours, :coverage, :cov_flag, :units_flag)
	`)
	if err != nil {
		return fmt.Errorf("prepare coverage insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec); err != nil {
			return fmt.Errorf("insert coverage %s %s: %w", rec.Station, rec.Period, err)
		}
	}

	return tx.Commit()
}

// GetCoverage returns the coverage row for a station-period, or nil if none.
func (s *Store) GetCoverage(ctx context.Context, station, period string) (*models.CoverageRecord, error) {
	var rec models.CoverageRecord
	err := s.x.GetContext(ctx, &rec, `
		SELECT station, period, hours, missing_hours, coverage, cov_flag, units_flag
		FROM station_period_coverage
		WHERE station = ? AND period = ?
	`, station, period)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListCoverage returns coverage rows within r, ordered by station and period.
func (s *Store) ListCoverage(ctx context.Context, r Range) ([]models.CoverageRecord, error) {
	r = r.Normalize()

	var out []models.CoverageRecord
	err := s.x.SelectContext(ctx, &out, `
		SELECT station, period, hours, missing_hours, coverage, cov_flag, units_flag
		FROM station_period_coverage
		WHERE station BETWEEN ? AND ?
		AND period BETWEEN ? AND ?
		ORDER BY station, period
	`, r.StartStation, r.EndStation, r.StartPeriod, r.EndPeriod)
	if err != nil {
		return nil, fmt.Errorf("list coverage %s: %w", r, err)
	}
	return out, nil
}

// CoverageFlagCounts returns the number of coverage rows per cov_flag.
func (s *Store) CoverageFlagCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cov_flag, COUNT(1) FROM station_period_coverage GROUP BY cov_flag`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var flag string
		var n int
		if err := rows.Scan(&flag, &n); err != nil {
			return nil, err
		}
		counts[flag] = n
	}
	return counts, rows.Err()
}
