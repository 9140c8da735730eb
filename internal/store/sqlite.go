package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"

	"github.com/lox/precipqc/internal/models"
)

func init() {
	// modernc.org/sqlite registers as "sqlite", which sqlx does not know.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Store persists raw precipitation records and QC results in SQLite.
// Writers are expected to be serialized by the caller.
type Store struct {
	db    *sql.DB
	x     *sqlx.DB
	clock clockwork.Clock
}

// New wraps an open database. A nil clock uses the real clock.
func New(db *sql.DB, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{db: db, x: sqlx.NewDb(db, "sqlite"), clock: clock}
}

// Open opens a SQLite database file with the pragmas the loaders rely on.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return db, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertPrecipBatch inserts parsed hourly and daily rows in one transaction.
func (s *Store) InsertPrecipBatch(ctx context.Context, hourly []models.HourlyRecord, daily []models.DailyRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	hstmt, err := tx.PrepareContext(ctx, `
		INSERT INTO hourly_raw (station, state_code, units, period, read_date, read_hour, amount, flag1, flag2)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare hourly insert: %w", err)
	}
	defer hstmt.Close()

	for _, h := range hourly {
		if _, err := hstmt.ExecContext(ctx, h.Station, h.StateCode, h.Units, h.Period, h.ReadDate, h.ReadHour, h.Amount, h.Flag1, h.Flag2); err != nil {
			return fmt.Errorf("insert hourly %s %d %04d: %w", h.Station, h.ReadDate, h.ReadHour, err)
		}
	}

	dstmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_raw (station, state_code, units, period, read_date, amount, flag1, flag2)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare daily insert: %w", err)
	}
	defer dstmt.Close()

	for _, d := range daily {
		if _, err := dstmt.ExecContext(ctx, d.Station, d.StateCode, d.Units, d.Period, d.ReadDate, d.Amount, d.Flag1, d.Flag2); err != nil {
			return fmt.Errorf("insert daily %s %d: %w", d.Station, d.ReadDate, err)
		}
	}

	return tx.Commit()
}

// GetDailyRecord returns the daily record for a station-day, or nil if absent.
func (s *Store) GetDailyRecord(ctx context.Context, station string, day int) (*models.DailyRecord, error) {
	var d models.DailyRecord
	err := s.x.GetContext(ctx, &d, `
		SELECT station, state_code, units, period, read_date, amount, flag1, flag2
		FROM daily_raw
		WHERE station = ? AND read_date = ?
	`, station, day)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CountByYear returns row counts per year for hourly_raw or daily_raw.
func (s *Store) CountByYear(ctx context.Context, table string) (map[string]int64, error) {
	if table != "hourly_raw" && table != "daily_raw" {
		return nil, fmt.Errorf("count by year: unknown table %q", table)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT SUBSTR(period, 1, 4) AS year, COUNT(1)
		FROM `+table+`
		GROUP BY year
		ORDER BY year
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var year string
		var n int64
		if err := rows.Scan(&year, &n); err != nil {
			return nil, err
		}
		counts[year] = n
	}
	return counts, rows.Err()
}
