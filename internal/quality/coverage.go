package quality

import (
	"github.com/lox/precipqc/internal/models"
)

// CoverageFlag classifies a station-period by coverage. The values are the
// single characters stored in station_period_coverage.cov_flag.
type CoverageFlag string

const (
	CoverageFull    CoverageFlag = "F"
	CoveragePartial CoverageFlag = "P"
	CoverageMissing CoverageFlag = "M"
)

func (f CoverageFlag) String() string {
	switch f {
	case CoverageFull:
		return "Full"
	case CoveragePartial:
		return "Partial"
	case CoverageMissing:
		return "Missing"
	default:
		return string(f)
	}
}

// UnitsHundredthsInch is the units code that maps to units flag 1.
const UnitsHundredthsInch = "HI"

// UnitsFlag maps a units code to the stored units flag: "HI" is 1, anything
// else is 2.
func UnitsFlag(units string) int {
	if units == UnitsHundredthsInch {
		return 1
	}
	return 2
}

// ClassifyCoverage derives the coverage flag. Only exact 1.0 and 0.0 are
// Full and Missing.
func ClassifyCoverage(coverage float64) CoverageFlag {
	switch coverage {
	case 1.0:
		return CoverageFull
	case 0.0:
		return CoverageMissing
	default:
		return CoveragePartial
	}
}

// NewCoverageRecord builds the coverage row for a station-period. Missing hours
// outside [0, hours] are clamped so that coverage stays within [0, 1].
func NewCoverageRecord(station, period string, missingHours int, units string) (models.CoverageRecord, error) {
	hours, err := PeriodLengthHours(period)
	if err != nil {
		return models.CoverageRecord{}, err
	}

	missingHours = max(0, min(missingHours, hours))
	coverage := 1.0 - float64(missingHours)/float64(hours)

	return models.CoverageRecord{
		Station:      station,
		Period:       period,
		Hours:        hours,
		MissingHours: missingHours,
		Coverage:     coverage,
		CovFlag:      string(ClassifyCoverage(coverage)),
		UnitsFlag:    UnitsFlag(units),
	}, nil
}

// FromGroup builds the coverage row for an analysed group.
func FromGroup(g GroupResult) (models.CoverageRecord, error) {
	return NewCoverageRecord(g.Station, g.Period, g.MissingHours, g.Units)
}
