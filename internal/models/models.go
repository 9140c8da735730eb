package models

import (
	"database/sql"
)

// HourlyRecord is one hourly reading from hourly_raw.
type HourlyRecord struct {
	Station   string  `db:"station"`
	StateCode string  `db:"state_code"`
	Units     string  `db:"units"` // "HI" (hundredths of inches) or "HT"/"MM"
	Period    string  `db:"period"`
	ReadDate  int     `db:"read_date"` // day ordinal, see Ordinal
	ReadHour  int     `db:"read_hour"` // HHmm, minutes always 00
	Amount    float64 `db:"amount"`
	Flag1     string  `db:"flag1"`
	Flag2     string  `db:"flag2"`
}

// DailyRecord is the daily total line of a station-day from daily_raw.
type DailyRecord struct {
	Station   string  `db:"station"`
	StateCode string  `db:"state_code"`
	Units     string  `db:"units"`
	Period    string  `db:"period"`
	ReadDate  int     `db:"read_date"`
	Amount    float64 `db:"amount"`
	Flag1     string  `db:"flag1"`
	Flag2     string  `db:"flag2"`
}

// CoverageRecord is one row of station_period_coverage. Rows are append-only.
type CoverageRecord struct {
	Station      string  `db:"station" json:"station"`
	Period       string  `db:"period" json:"period"`
	Hours        int     `db:"hours" json:"hours"`
	MissingHours int     `db:"missing_hours" json:"missing_hours"`
	Coverage     float64 `db:"coverage" json:"coverage"`
	CovFlag      string  `db:"cov_flag" json:"cov_flag"`
	UnitsFlag    int     `db:"units_flag" json:"units_flag"`
}

// StationHistory is one row of the MSHR enhanced station history file.
type StationHistory struct {
	SourceID        sql.NullString
	Source          sql.NullString
	BeginDate       int
	EndDate         int
	StationStatus   sql.NullString
	NCDCStnID       sql.NullString
	CoopID          sql.NullString
	GHCNDID         sql.NullString
	NamePrincipal   sql.NullString
	NameCoop        sql.NullString
	NWSClimateDiv   sql.NullString
	State           sql.NullString
	County          sql.NullString
	NWSStateCode    sql.NullString
	FIPSCountryCode sql.NullString
	NWSRegion       sql.NullString
	ElevGround      sql.NullFloat64
	ElevBarom       sql.NullFloat64
	Lat             sql.NullFloat64
	Lon             sql.NullFloat64
	Relocation      sql.NullString
	UTCOffset       sql.NullFloat64
	GHCNMLTID       sql.NullString
	CountyFIPSCode  sql.NullString
	IGRAID          sql.NullString
	HPDID           sql.NullString
}

// Station is the latest history row for a station seen in daily_raw.
type Station struct {
	Station         string          `db:"station"`
	State           sql.NullString  `db:"state"`
	NWSStateCode    sql.NullString  `db:"nws_st_code"`
	FIPSCountryCode sql.NullString  `db:"fips_country_code"`
	ElevGround      sql.NullFloat64 `db:"elev_ground"`
	Lat             sql.NullFloat64 `db:"lat"`
	Lon             sql.NullFloat64 `db:"lon"`
	UTCOffset       sql.NullFloat64 `db:"utc_offset"`
	CountyFIPSCode  sql.NullString  `db:"county_fips_code"`
}

// DateRow is one row of the date dimension table.
type DateRow struct {
	ID        int    `db:"id"`
	ISODate   string `db:"iso_date"`
	Year      int    `db:"year"`
	Month     int    `db:"month"`
	Day       int    `db:"day"`
	DayOfYear int    `db:"day_of_year"`
	Period    string `db:"period"`
}

type State struct {
	Code string `db:"state_code"`
	Abbr string `db:"state_abbr"`
	Name string `db:"state_name"`
}

// StationPeriodTotal is a row of the complete-period tables
// (station_period_d and station_period_h).
type StationPeriodTotal struct {
	Station   string  `db:"station" json:"station"`
	Period    string  `db:"period" json:"period"`
	Amount    float64 `db:"amount" json:"amount"`
	UnitsFlag int     `db:"units_flag" json:"units_flag"`
}
