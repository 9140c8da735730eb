package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lox/precipqc/internal/models"
)

// States are the DSI-3240 state codes, which are not FIPS codes.
var States = []models.State{
	{Code: "01", Abbr: "AL", Name: "Alabama"},
	{Code: "02", Abbr: "AZ", Name: "Arizona"},
	{Code: "03", Abbr: "AR", Name: "Arkansas"},
	{Code: "04", Abbr: "CA", Name: "California"},
	{Code: "05", Abbr: "CO", Name: "Colorado"},
	{Code: "06", Abbr: "CT", Name: "Connecticut"},
	{Code: "07", Abbr: "DE", Name: "Delaware"},
	{Code: "08", Abbr: "FL", Name: "Florida"},
	{Code: "09", Abbr: "GA", Name: "Georgia"},
	{Code: "10", Abbr: "ID", Name: "Idaho"},
	{Code: "11", Abbr: "IL", Name: "Illinois"},
	{Code: "12", Abbr: "IN", Name: "Indiana"},
	{Code: "13", Abbr: "IA", Name: "Iowa"},
	{Code: "14", Abbr: "KS", Name: "Kansas"},
	{Code: "15", Abbr: "KY", Name: "Kentucky"},
	{Code: "16", Abbr: "LA", Name: "Louisiana"},
	{Code: "17", Abbr: "ME", Name: "Maine"},
	{Code: "18", Abbr: "MD", Name: "Maryland"},
	{Code: "19", Abbr: "MA", Name: "Massachusetts"},
	{Code: "20", Abbr: "MI", Name: "Michigan"},
	{Code: "21", Abbr: "MN", Name: "Minnesota"},
	{Code: "22", Abbr: "MS", Name: "Mississippi"},
	{Code: "23", Abbr: "MO", Name: "Missouri"},
	{Code: "24", Abbr: "MT", Name: "Montana"},
	{Code: "25", Abbr: "NE", Name: "Nebraska"},
	{Code: "26", Abbr: "NV", Name: "Nevada"},
	{Code: "27", Abbr: "NH", Name: "New Hampshire"},
	{Code: "28", Abbr: "NJ", Name: "New Jersey"},
	{Code: "29", Abbr: "NM", Name: "New Mexico"},
	{Code: "30", Abbr: "NY", Name: "New York"},
	{Code: "31", Abbr: "NC", Name: "North Carolina"},
	{Code: "32", Abbr: "ND", Name: "North Dakota"},
	{Code: "33", Abbr: "OH", Name: "Ohio"},
	{Code: "34", Abbr: "OK", Name: "Oklahoma"},
	{Code: "35", Abbr: "OR", Name: "Oregon"},
	{Code: "36", Abbr: "PA", Name: "Pennsylvania"},
	{Code: "37", Abbr: "RI", Name: "Rhode Island"},
	{Code: "38", Abbr: "SC", Name: "South Carolina"},
	{Code: "39", Abbr: "SD", Name: "South Dakota"},
	{Code: "40", Abbr: "TN", Name: "Tennessee"},
	{Code: "41", Abbr: "TX", Name: "Texas"},
	{Code: "42", Abbr: "UT", Name: "Utah"},
	{Code: "43", Abbr: "VT", Name: "Vermont"},
	{Code: "44", Abbr: "VA", Name: "Virginia"},
	{Code: "45", Abbr: "WA", Name: "Washington"},
	{Code: "46", Abbr: "WV", Name: "West Virginia"},
	{Code: "47", Abbr: "WI", Name: "Wisconsin"},
	{Code: "48", Abbr: "WY", Name: "Wyoming"},
	{Code: "50", Abbr: "AK", Name: "Alaska"},
	{Code: "51", Abbr: "HI", Name: "Hawaii"},
	{Code: "66", Abbr: "PR", Name: "Puerto Rico"},
	{Code: "67", Abbr: "VI", Name: "Virgin Islands"},
	{Code: "91", Abbr: "XX", Name: "Pacific Islands"},
}

// FillStates loads the state code table. Existing codes are replaced.
func (s *Store) FillStates(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, st := range States {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO state (state_code, state_abbr, state_name) VALUES (?, ?, ?)
			ON CONFLICT(state_code) DO UPDATE SET
				state_abbr = excluded.state_abbr,
				state_name = excluded.state_name
		`, st.Code, st.Abbr, st.Name); err != nil {
			return fmt.Errorf("insert state %s: %w", st.Code, err)
		}
	}
	return tx.Commit()
}

// GetState returns the state for a DSI-3240 state code, or nil if unknown.
func (s *Store) GetState(ctx context.Context, code string) (*models.State, error) {
	var st models.State
	err := s.x.GetContext(ctx, &st, `SELECT state_code, state_abbr, state_name FROM state WHERE state_code = ?`, code)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// LoadDates fills the date dimension for every day in [start, end] and
// returns the number of days written.
func (s *Store) LoadDates(ctx context.Context, start, end time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO date (id, iso_date, year, month, day, day_of_year, period)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare date insert: %w", err)
	}
	defer stmt.Close()

	n := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if _, err := stmt.ExecContext(ctx,
			models.Ordinal(d), d.Format("2006-01-02"), d.Year(), int(d.Month()), d.Day(), d.YearDay(), models.PeriodOf(d),
		); err != nil {
			return 0, fmt.Errorf("insert date %s: %w", d.Format("2006-01-02"), err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// GetDate looks up a date row by ordinal.
func (s *Store) GetDate(ctx context.Context, ordinal int) (*models.DateRow, error) {
	var d models.DateRow
	err := s.x.GetContext(ctx, &d, `
		SELECT id, iso_date, year, month, day, day_of_year, period FROM date WHERE id = ?
	`, ordinal)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// InsertStationHistory appends station history rows in one transaction.
func (s *Store) InsertStationHistory(ctx context.Context, rows []models.StationHistory) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO station_hist (
			source_id, source, begin_date, end_date, station_status, ncdcstn_id, coop_id, ghcnd_id,
			name_pr_sh, name_coop_sh, nws_climate_div, state, county, nws_st_code, fips_country_code,
			nws_region, elev_ground, elev_barom, lat, lon, relocation, utc_offset, ghcnmlt_id,
			county_fips_code, igra_id, hpd_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare station history insert: %w", err)
	}
	defer stmt.Close()

	for _, h := range rows {
		if _, err := stmt.ExecContext(ctx,
			h.SourceID, h.Source, h.BeginDate, h.EndDate, h.StationStatus, h.NCDCStnID, h.CoopID, h.GHCNDID,
			h.NamePrincipal, h.NameCoop, h.NWSClimateDiv, h.State, h.County, h.NWSStateCode, h.FIPSCountryCode,
			h.NWSRegion, h.ElevGround, h.ElevBarom, h.Lat, h.Lon, h.Relocation, h.UTCOffset, h.GHCNMLTID,
			h.CountyFIPSCode, h.IGRAID, h.HPDID,
		); err != nil {
			return fmt.Errorf("insert station history %s: %w", h.CoopID.String, err)
		}
	}
	return tx.Commit()
}

// RefreshStationMaster rebuilds the station table from the latest history
// row of every station present in daily_raw.
func (s *Store) RefreshStationMaster(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM station`); err != nil {
		return 0, fmt.Errorf("clear station: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO station (station, state, nws_st_code, fips_country_code, elev_ground, lat, lon, utc_offset, county_fips_code)
		SELECT DISTINCT dr.station, state, nws_st_code, fips_country_code, elev_ground, lat, lon, utc_offset, county_fips_code
		FROM station_hist sh,
		(SELECT DISTINCT station FROM daily_raw) dr
		WHERE dr.station = sh.coop_id
		AND sh.begin_date = (
			SELECT MAX(sh1.begin_date)
			FROM station_hist sh1
			WHERE sh1.coop_id = sh.coop_id
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("fill station: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// GetStation returns the master row for a station, or nil if unknown.
func (s *Store) GetStation(ctx context.Context, station string) (*models.Station, error) {
	var st models.Station
	err := s.x.GetContext(ctx, &st, `
		SELECT station, state, nws_st_code, fips_country_code, elev_ground, lat, lon, utc_offset, county_fips_code
		FROM station WHERE station = ?
	`, station)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}
