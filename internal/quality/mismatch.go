package quality

import (
	"cmp"
	"slices"

	"github.com/lox/precipqc/internal/models"
)

// Mismatch reasons.
const (
	ReasonSimple = "F" // simple hourly error flag on the day
	ReasonOdd    = "O" // odd number of accumulation markers on the day
	ReasonEven   = "E" // even count, but the day opens inside an accumulation
)

// DayKey identifies a station-day.
type DayKey struct {
	Station string
	Day     int
}

func compareDayKeys(a, b DayKey) int {
	if c := cmp.Compare(a.Station, b.Station); c != 0 {
		return c
	}
	return cmp.Compare(a.Day, b.Day)
}

// AccumDay tallies the accumulation markers (a, A) of one station-day.
type AccumDay struct {
	Count     int
	FirstFlag string // flag1 of the earliest marker
	FirstHour int
}

// OpensWithEnd reports whether the day's earliest accumulation marker is an
// end marker, meaning no start precedes it that day.
func (d AccumDay) OpensWithEnd() bool {
	return d.Count > 0 && d.FirstFlag == FlagAccumEnd
}

// ErrorDaySets holds the per-day error evidence for the whole dataset.
type ErrorDaySets struct {
	Daily        map[DayKey]struct{}
	HourlySimple map[DayKey]struct{}
	Accum        map[DayKey]AccumDay
}

func NewErrorDaySets() *ErrorDaySets {
	return &ErrorDaySets{
		Daily:        make(map[DayKey]struct{}),
		HourlySimple: make(map[DayKey]struct{}),
		Accum:        make(map[DayKey]AccumDay),
	}
}

// AddDaily records a daily record; only I and P flags count as errors.
func (s *ErrorDaySets) AddDaily(station string, day int, flag1 string) {
	if flag1 == FlagDailyIncomplete || flag1 == FlagDailyPartial {
		s.Daily[DayKey{station, day}] = struct{}{}
	}
}

// AddHourly records an hourly reading. Readings may arrive in any order.
func (s *ErrorDaySets) AddHourly(station string, day, hour int, flag1, flag2 string) {
	key := DayKey{station, day}

	switch flag1 {
	case FlagMissingStart, FlagMissingEnd, FlagDeletedStart, FlagDeletedEnd:
		s.HourlySimple[key] = struct{}{}
	case FlagAccumStart, FlagAccumEnd:
		d, ok := s.Accum[key]
		if !ok || hour < d.FirstHour {
			d.FirstFlag = flag1
			d.FirstHour = hour
		}
		d.Count++
		s.Accum[key] = d
	}
	if flag2 == FlagQualityUpper || flag2 == FlagQualityLower {
		s.HourlySimple[key] = struct{}{}
	}
}

// BuildErrorDaySets derives the sets from in-memory records.
func BuildErrorDaySets(daily []models.DailyRecord, hourly []models.HourlyRecord) *ErrorDaySets {
	s := NewErrorDaySets()
	for _, d := range daily {
		s.AddDaily(d.Station, d.ReadDate, d.Flag1)
	}
	for _, h := range hourly {
		s.AddHourly(h.Station, h.ReadDate, h.ReadHour, h.Flag1, h.Flag2)
	}
	return s
}

func (s *ErrorDaySets) flaggedDaily(key DayKey) bool {
	_, ok := s.Daily[key]
	return ok
}

// Mismatch is a station-day with hourly error evidence but no daily error flag.
type Mismatch struct {
	Station string `db:"station" json:"station"`
	Day     int    `db:"read_date" json:"read_date"`
	Reason  string `db:"reason" json:"reason"`
}

func (m Mismatch) Key() DayKey {
	return DayKey{m.Station, m.Day}
}

// RuleSimple selects days with a simple hourly error flag.
func RuleSimple(s *ErrorDaySets) []Mismatch {
	var out []Mismatch
	for key := range s.HourlySimple {
		if !s.flaggedDaily(key) {
			out = append(out, Mismatch{key.Station, key.Day, ReasonSimple})
		}
	}
	return out
}

// RuleOdd selects days with an odd number of accumulation markers: an
// accumulation crosses midnight into or out of the day.
func RuleOdd(s *ErrorDaySets) []Mismatch {
	var out []Mismatch
	for key, d := range s.Accum {
		if d.Count%2 == 1 && !s.flaggedDaily(key) {
			out = append(out, Mismatch{key.Station, key.Day, ReasonOdd})
		}
	}
	return out
}

// RuleEvenOpensInside selects days with a balanced marker count whose first
// marker is an end, so the day began inside the previous day's accumulation.
func RuleEvenOpensInside(s *ErrorDaySets) []Mismatch {
	var out []Mismatch
	for key, d := range s.Accum {
		if d.Count%2 == 0 && d.OpensWithEnd() && !s.flaggedDaily(key) {
			out = append(out, Mismatch{key.Station, key.Day, ReasonEven})
		}
	}
	return out
}

// Detect returns the union of all rules, ordered by station, day and reason.
// A day may appear once per rule it satisfies.
func Detect(s *ErrorDaySets) []Mismatch {
	var out []Mismatch
	out = append(out, RuleSimple(s)...)
	out = append(out, RuleOdd(s)...)
	out = append(out, RuleEvenOpensInside(s)...)

	slices.SortFunc(out, func(a, b Mismatch) int {
		if c := compareDayKeys(a.Key(), b.Key()); c != 0 {
			return c
		}
		return cmp.Compare(a.Reason, b.Reason)
	})
	return out
}

// MismatchDays collapses mismatches into distinct, ordered station-days.
func MismatchDays(ms []Mismatch) []DayKey {
	seen := make(map[DayKey]struct{}, len(ms))
	var days []DayKey
	for _, m := range ms {
		k := m.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		days = append(days, k)
	}
	slices.SortFunc(days, compareDayKeys)
	return days
}
