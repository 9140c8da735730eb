package quality

import (
	"github.com/lox/precipqc/internal/models"
)

// Hourly flag1 codes.
const (
	FlagAccumStart   = "a"
	FlagAccumEnd     = "A"
	FlagDeletedStart = "{"
	FlagDeletedEnd   = "}"
	FlagMissingStart = "["
	FlagMissingEnd   = "]"
)

// Hourly flag2 codes.
const (
	FlagQualityUpper = "Q"
	FlagQualityLower = "q"
)

// Daily flag1 error codes.
const (
	FlagDailyIncomplete = "I"
	FlagDailyPartial    = "P"
)

type DiagnosticKind int

const (
	DiagDuplicateStart DiagnosticKind = iota
	DiagMissingStart
	DiagUnclosedStart
)

func (k DiagnosticKind) String() string {
	switch k {
	case DiagDuplicateStart:
		return "duplicate_start"
	case DiagMissingStart:
		return "missing_start"
	case DiagUnclosedStart:
		return "unclosed_start"
	default:
		return "unknown"
	}
}

// Diagnostic reports a malformed flag sequence. It never aborts analysis.
type Diagnostic struct {
	Kind    DiagnosticKind
	Station string
	Period  string
	At      HourMark
}

// GroupResult is the outcome of analysing one station-period.
type GroupResult struct {
	Station      string
	Period       string
	Units        string // lexical minimum of the group's units codes
	Rows         int
	MissingHours int
	Diagnostics  []Diagnostic
}

// openInterval is an accumulation whose start marker has been seen.
// A nil *openInterval means no accumulation is open.
type openInterval struct {
	start   HourMark
	missing bool
}

// AnalyzeGroup counts the missing hours of one station-period. Records must
// belong to a single station-period and be ordered by read_date, read_hour.
func AnalyzeGroup(records []models.HourlyRecord) GroupResult {
	var res GroupResult
	if len(records) == 0 {
		return res
	}
	res.Station = records[0].Station
	res.Period = records[0].Period
	res.Units = records[0].Units
	res.Rows = len(records)

	var open *openInterval

	diag := func(kind DiagnosticKind, at HourMark) {
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Kind:    kind,
			Station: res.Station,
			Period:  res.Period,
			At:      at,
		})
	}

	for _, rec := range records {
		if rec.Units < res.Units {
			res.Units = rec.Units
		}

		at := HourMark{Day: rec.ReadDate, Hour: rec.ReadHour}
		var end *HourMark

		switch rec.Flag1 {
		case FlagAccumStart, FlagMissingStart, FlagDeletedStart:
			if open != nil {
				diag(DiagDuplicateStart, at)
				break
			}
			open = &openInterval{start: at, missing: rec.Flag1 != FlagAccumStart}
		case FlagAccumEnd:
			switch {
			case open == nil:
				diag(DiagMissingStart, at)
			case rec.Flag2 == FlagQualityUpper:
				// Ended normally but could not be resolved: the whole span is lost.
				open.missing = true
				end = &at
			default:
				open = nil
			}
		case FlagMissingEnd, FlagDeletedEnd:
			if open == nil {
				diag(DiagMissingStart, at)
				break
			}
			end = &at
		default:
			if rec.Flag2 == FlagQualityUpper || rec.Flag2 == FlagQualityLower {
				res.MissingHours++
			}
		}

		if end != nil {
			res.MissingHours += HoursBetween(open.start, *end)
			open = nil
		}
	}

	if open != nil {
		diag(DiagUnclosedStart, open.start)
	}

	return res
}

// GroupByStationPeriod splits records ordered by station, period, read_date
// and read_hour into one slice per station-period.
func GroupByStationPeriod(records []models.HourlyRecord) [][]models.HourlyRecord {
	var groups [][]models.HourlyRecord
	start := 0
	for i := 1; i <= len(records); i++ {
		if i == len(records) ||
			records[i].Station != records[start].Station ||
			records[i].Period != records[start].Period {
			if i > start {
				groups = append(groups, records[start:i])
			}
			start = i
		}
	}
	return groups
}
