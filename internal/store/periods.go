package store

import (
	"context"
	"fmt"

	"github.com/lox/precipqc/internal/models"
)

// LoadCompletePeriods rebuilds station_period_d and station_period_h: the
// station-periods whose daily (respectively hourly) records carry no error
// flag at all, with their precipitation totals.
func (s *Store) LoadCompletePeriods(ctx context.Context) (daily, hourly int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"station_period_d", "station_period_h"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return 0, 0, fmt.Errorf("clear %s: %w", table, err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO station_period_d (station, period, amount, units_flag)
		SELECT station,
			period,
			SUM(amount),
			CASE WHEN MAX(units) = 'HI' THEN 1 ELSE 2 END
		FROM daily_raw dr
		WHERE NOT EXISTS (
			SELECT 1 FROM daily_raw dr2
			WHERE dr2.station = dr.station
			AND dr2.period = dr.period
			AND dr2.flag1 IN ('I', 'P')
		)
		GROUP BY station, period
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("fill station_period_d: %w", err)
	}
	if daily, err = res.RowsAffected(); err != nil {
		return 0, 0, err
	}

	res, err = tx.ExecContext(ctx, `
		INSERT INTO station_period_h (station, period, amount, units_flag)
		SELECT station,
			period,
			SUM(amount),
			CASE WHEN MAX(units) = 'HI' THEN 1 ELSE 2 END
		FROM hourly_raw hr
		WHERE NOT EXISTS (
			SELECT 1 FROM hourly_raw hr2
			WHERE hr2.station = hr.station
			AND hr2.period = hr.period
			AND (
				hr2.flag1 IN ('a', 'A', '[', ']', '{', '}')
				OR hr2.flag2 IN ('Q', 'q')
			)
		)
		GROUP BY station, period
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("fill station_period_h: %w", err)
	}
	if hourly, err = res.RowsAffected(); err != nil {
		return 0, 0, err
	}

	return daily, hourly, tx.Commit()
}

// ListCompletePeriods returns the complete periods of one station from
// station_period_d ("daily") or station_period_h ("hourly").
func (s *Store) ListCompletePeriods(ctx context.Context, kind, station string) ([]models.StationPeriodTotal, error) {
	var table string
	switch kind {
	case "daily":
		table = "station_period_d"
	case "hourly":
		table = "station_period_h"
	default:
		return nil, fmt.Errorf("unknown period kind %q", kind)
	}

	var out []models.StationPeriodTotal
	if err := s.x.SelectContext(ctx, &out, `
		SELECT station, period, amount, units_flag FROM `+table+`
		WHERE station = ?
		ORDER BY period
	`, station); err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return out, nil
}
