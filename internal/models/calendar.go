package models

import "time"

// Ordinal returns the proleptic Gregorian ordinal of t's date, where
// 0001-01-01 is day 1. Subtracting two ordinals yields a day count.
func Ordinal(t time.Time) int {
	prev := t.Year() - 1
	return prev*365 + prev/4 - prev/100 + prev/400 + t.YearDay()
}

// FromOrdinal is the inverse of Ordinal. The result is midnight UTC.
func FromOrdinal(n int) time.Time {
	return time.Date(1, time.January, n, 0, 0, 0, 0, time.UTC)
}

// PeriodOf returns the "YYYY-MM" period containing t.
func PeriodOf(t time.Time) string {
	return t.Format("2006-01")
}
