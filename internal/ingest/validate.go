package ingest

const (
	WarnUnknownUnits    = "unknown_units"
	WarnHourOutOfRange  = "hour_out_of_range"
	WarnHourNotOnHour   = "hour_not_on_hour"
	WarnHoursUnordered  = "hours_unordered"
	WarnAmountNegative  = "amount_negative"
	WarnStationNotDigit = "station_not_numeric"
)

// ValidatePrecipLine returns warnings for values that parse but fall outside
// what the format allows. Warned lines are still loaded.
func ValidatePrecipLine(pl PrecipLine) []string {
	var warns []string

	if pl.Units != "HI" && pl.Units != "HT" && pl.Units != "MM" {
		warns = append(warns, WarnUnknownUnits)
	}

	for _, c := range pl.Station {
		if c < '0' || c > '9' {
			warns = append(warns, WarnStationNotDigit)
			break
		}
	}

	prev := -1
	var outOfRange, notOnHour, unordered, negative bool
	for _, h := range pl.Hours {
		if h.Hour < 0 || h.Hour > 2400 {
			outOfRange = true
		}
		if h.Hour%100 != 0 {
			notOnHour = true
		}
		if h.Hour <= prev {
			unordered = true
		}
		prev = h.Hour
		if h.Amount < 0 {
			negative = true
		}
	}
	if pl.DailyTotal < 0 {
		negative = true
	}

	if outOfRange {
		warns = append(warns, WarnHourOutOfRange)
	}
	if notOnHour {
		warns = append(warns, WarnHourNotOnHour)
	}
	if unordered {
		warns = append(warns, WarnHoursUnordered)
	}
	if negative {
		warns = append(warns, WarnAmountNegative)
	}

	return warns
}
