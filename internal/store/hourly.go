package store

import (
	"context"
	"fmt"

	"github.com/lox/precipqc/internal/models"
	"github.com/lox/precipqc/internal/quality"
)

// Range selects station-periods by lexical BETWEEN on station and period.
// Station ids must be zero-padded to six characters and periods must be
// "YYYY-MM" for the comparison to order correctly.
type Range struct {
	StartStation string
	StartPeriod  string
	EndStation   string
	EndPeriod    string
}

// Normalize fills an empty end bound with the corresponding start bound,
// selecting a single station or a single period.
func (r Range) Normalize() Range {
	if r.EndStation == "" {
		r.EndStation = r.StartStation
	}
	if r.EndPeriod == "" {
		r.EndPeriod = r.StartPeriod
	}
	return r
}

func (r Range) String() string {
	return fmt.Sprintf("%s..%s %s..%s", r.StartStation, r.EndStation, r.StartPeriod, r.EndPeriod)
}

// ForEachStationPeriod streams the hourly records in r and calls fn once per
// station-period, with records ordered by read_date and read_hour. fn must not
// write to the store: the read cursor stays open while it runs.
func (s *Store) ForEachStationPeriod(ctx context.Context, r Range, fn func([]models.HourlyRecord) error) error {
	r = r.Normalize()

	rows, err := s.x.QueryxContext(ctx, `
		SELECT station, state_code, units, period, read_date, read_hour, amount, flag1, flag2
		FROM hourly_raw
		WHERE station BETWEEN ? AND ?
		AND period BETWEEN ? AND ?
		ORDER BY station, period, read_date, read_hour
	`, r.StartStation, r.EndStation, r.StartPeriod, r.EndPeriod)
	if err != nil {
		return fmt.Errorf("query hourly %s: %w", r, err)
	}
	defer rows.Close()

	var group []models.HourlyRecord
	for rows.Next() {
		var rec models.HourlyRecord
		if err := rows.StructScan(&rec); err != nil {
			return fmt.Errorf("scan hourly: %w", err)
		}
		if len(group) > 0 && (rec.Station != group[0].Station || rec.Period != group[0].Period) {
			if err := fn(group); err != nil {
				return err
			}
			group = nil
		}
		group = append(group, rec)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate hourly: %w", err)
	}

	if len(group) > 0 {
		return fn(group)
	}
	return nil
}

// ErrorDaySets collects daily error days and hourly error evidence for the
// whole dataset.
func (s *Store) ErrorDaySets(ctx context.Context) (*quality.ErrorDaySets, error) {
	sets := quality.NewErrorDaySets()

	drows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT station, read_date, flag1
		FROM daily_raw
		WHERE flag1 IN ('I', 'P')
	`)
	if err != nil {
		return nil, fmt.Errorf("query daily error days: %w", err)
	}
	defer drows.Close()

	for drows.Next() {
		var station, flag1 string
		var day int
		if err := drows.Scan(&station, &day, &flag1); err != nil {
			return nil, fmt.Errorf("scan daily error day: %w", err)
		}
		sets.AddDaily(station, day, flag1)
	}
	if err := drows.Err(); err != nil {
		return nil, err
	}
	drows.Close()

	hrows, err := s.db.QueryContext(ctx, `
		SELECT station, read_date, read_hour, flag1, flag2
		FROM hourly_raw
		WHERE flag1 IN ('[', ']', '{', '}', 'a', 'A')
		OR flag2 IN ('Q', 'q')
	`)
	if err != nil {
		return nil, fmt.Errorf("query hourly error rows: %w", err)
	}
	defer hrows.Close()

	for hrows.Next() {
		var station, flag1, flag2 string
		var day, hour int
		if err := hrows.Scan(&station, &day, &hour, &flag1, &flag2); err != nil {
			return nil, fmt.Errorf("scan hourly error row: %w", err)
		}
		sets.AddHourly(station, day, hour, flag1, flag2)
	}
	return sets, hrows.Err()
}
