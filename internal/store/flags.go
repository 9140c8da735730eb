package store

import (
	"context"
	"fmt"
	"time"

	"github.com/lox/precipqc/internal/quality"
)

// DetectedMismatch is an audited mismatch from error_days_miss.
type DetectedMismatch struct {
	quality.Mismatch
	DetectedAt time.Time `db:"detected_at" json:"detected_at"`
}

// ForceDailyErrorFlag sets flag1 to P on the daily records of the given
// station-days and returns the number of rows changed. Days already flagged P
// are left untouched, so repeating the update changes nothing.
func (s *Store) ForceDailyErrorFlag(ctx context.Context, days []quality.DayKey) (int64, error) {
	if len(days) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE daily_raw SET flag1 = ?
		WHERE station = ? AND read_date = ? AND flag1 IS NOT ?
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare flag update: %w", err)
	}
	defer stmt.Close()

	var changed int64
	for _, d := range days {
		res, err := stmt.ExecContext(ctx, quality.FlagDailyPartial, d.Station, d.Day, quality.FlagDailyPartial)
		if err != nil {
			return 0, fmt.Errorf("force flag %s %d: %w", d.Station, d.Day, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		changed += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit flag update: %w", err)
	}
	return changed, nil
}

// RecordMismatches appends detected mismatches to error_days_miss.
func (s *Store) RecordMismatches(ctx context.Context, ms []quality.Mismatch) error {
	if len(ms) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO error_days_miss (station, read_date, reason, detected_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare mismatch insert: %w", err)
	}
	defer stmt.Close()

	now := s.clock.Now().UTC()
	for _, m := range ms {
		if _, err := stmt.ExecContext(ctx, m.Station, m.Day, m.Reason, now); err != nil {
			return fmt.Errorf("insert mismatch %s %d: %w", m.Station, m.Day, err)
		}
	}
	return tx.Commit()
}

// ListMismatches returns the most recently detected mismatches.
func (s *Store) ListMismatches(ctx context.Context, limit int) ([]DetectedMismatch, error) {
	var out []DetectedMismatch
	err := s.x.SelectContext(ctx, &out, `
		SELECT station, read_date, reason, detected_at
		FROM error_days_miss
		ORDER BY detected_at DESC, station, read_date, reason
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list mismatches: %w", err)
	}
	return out, nil
}
