// Package quality interprets DSI-3240 precipitation flags: it counts unusable
// hours per station-period, turns them into coverage records, and finds days
// whose daily error flag is missing despite hourly evidence.
//
// Nothing in this package performs I/O or logs. Callers supply ordered records
// and persist the results.
package quality

import (
	"errors"
	"fmt"
	"strconv"
)

var ErrInvalidPeriod = errors.New("invalid period")

// HourMark is a reading position: an ordinal day and an HHmm hour.
type HourMark struct {
	Day  int
	Hour int
}

// HoursBetween returns the number of hours from start to end, inclusive of
// both boundary hours. Hours must be HHmm with zero minutes.
func HoursBetween(start, end HourMark) int {
	return (end.Day-start.Day)*24 + (end.Hour-start.Hour)/100 + 1
}

// PeriodLengthHours returns the number of hours in a "YYYY-MM" period.
// February has 29 days in every year divisible by 4, including century years.
func PeriodLengthHours(period string) (int, error) {
	if len(period) != 7 || period[4] != '-' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
	year, err := strconv.Atoi(period[:4])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
	month, err := strconv.Atoi(period[5:])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}

	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31 * 24, nil
	case 4, 6, 9, 11:
		return 30 * 24, nil
	case 2:
		if year%4 == 0 {
			return 29 * 24, nil
		}
		return 28 * 24, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
}
