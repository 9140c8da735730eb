package store

import (
	"database/sql"
	"fmt"
	"log"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Raw hourly and daily precipitation tables",
		SQL: `
CREATE TABLE IF NOT EXISTS hourly_raw (
    station VARCHAR(6) NOT NULL,
    state_code VARCHAR(2) NOT NULL,
    units VARCHAR(2) NOT NULL,
    read_date INTEGER,
    read_hour INTEGER,
    amount REAL,
    flag1 VARCHAR(1),
    flag2 VARCHAR(1),
    period VARCHAR(7),
    PRIMARY KEY (station, read_date, read_hour)
);

CREATE TABLE IF NOT EXISTS daily_raw (
    station VARCHAR(6) NOT NULL,
    state_code VARCHAR(2) NOT NULL,
    units VARCHAR(2) NOT NULL,
    read_date INTEGER,
    amount REAL,
    flag1 VARCHAR(1),
    flag2 VARCHAR(1),
    period VARCHAR(7),
    PRIMARY KEY (station, read_date)
);

CREATE INDEX IF NOT EXISTS hr_period ON hourly_raw(station, period);
CREATE INDEX IF NOT EXISTS dr_period ON daily_raw(station, period);
`,
	},
	{
		Version:     2,
		Description: "Reference tables: dates, states, station history",
		SQL: `
CREATE TABLE IF NOT EXISTS date (
    id INTEGER PRIMARY KEY,
    iso_date VARCHAR(10),
    year INTEGER,
    month INTEGER,
    day INTEGER,
    day_of_year INTEGER,
    period VARCHAR(7)
);

CREATE INDEX IF NOT EXISTS date_period_idx ON date(period, day);

CREATE TABLE IF NOT EXISTS state (
    state_code VARCHAR(2) PRIMARY KEY,
    state_abbr VARCHAR(2),
    state_name VARCHAR(25)
);

CREATE INDEX IF NOT EXISTS state_abbr_idx ON state(state_abbr);

CREATE TABLE IF NOT EXISTS station_hist (
    source_id VARCHAR(20),
    source VARCHAR(10),
    begin_date INTEGER,
    end_date INTEGER,
    station_status VARCHAR(20),
    ncdcstn_id VARCHAR(20),
    coop_id VARCHAR(20),
    ghcnd_id VARCHAR(20),
    name_pr_sh VARCHAR(30),
    name_coop_sh VARCHAR(30),
    nws_climate_div VARCHAR(10),
    state VARCHAR(10),
    county VARCHAR(50),
    nws_st_code VARCHAR(2),
    fips_country_code VARCHAR(2),
    nws_region VARCHAR(30),
    elev_ground REAL,
    elev_barom REAL,
    lat REAL,
    lon REAL,
    relocation VARCHAR(62),
    utc_offset REAL,
    ghcnmlt_id VARCHAR(20),
    county_fips_code VARCHAR(5),
    igra_id VARCHAR(30),
    hpd_id VARCHAR(20)
);

CREATE INDEX IF NOT EXISTS src_dt ON station_hist(source, begin_date);
CREATE INDEX IF NOT EXISTS coop_dt ON station_hist(coop_id, begin_date);

CREATE TABLE IF NOT EXISTS station (
    station VARCHAR(6) PRIMARY KEY,
    state VARCHAR(10),
    nws_st_code VARCHAR(2),
    fips_country_code VARCHAR(2),
    elev_ground REAL,
    lat REAL,
    lon REAL,
    utc_offset REAL,
    county_fips_code VARCHAR(5)
);
`,
	},
	{
		Version:     3,
		Description: "QC results: coverage, detected flag mismatches, complete periods",
		SQL: `
CREATE TABLE IF NOT EXISTS station_period_coverage (
    station VARCHAR(6) NOT NULL,
    period VARCHAR(7) NOT NULL,
    hours INTEGER,
    missing_hours INTEGER,
    coverage REAL,
    cov_flag CHAR(1),
    units_flag INTEGER,
    PRIMARY KEY (station, period)
);

CREATE TABLE IF NOT EXISTS error_days_miss (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    station VARCHAR(6) NOT NULL,
    read_date INTEGER NOT NULL,
    reason CHAR(1) NOT NULL,
    detected_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS edm_idx ON error_days_miss(station, read_date);

CREATE TABLE IF NOT EXISTS station_period_d (
    station VARCHAR(6),
    period VARCHAR(7),
    amount REAL,
    units_flag INTEGER,
    PRIMARY KEY (station, period)
);

CREATE TABLE IF NOT EXISTS station_period_h (
    station VARCHAR(6),
    period VARCHAR(7),
    amount REAL,
    units_flag INTEGER,
    PRIMARY KEY (station, period)
);
`,
	},
	{
		Version:     4,
		Description: "Load run auditing",
		SQL: `
CREATE TABLE IF NOT EXISTS load_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at DATETIME NOT NULL,
    finished_at DATETIME,
    source TEXT NOT NULL,
    target TEXT NOT NULL,
    records_parsed INTEGER,
    records_stored INTEGER,
    parse_errors INTEGER,
    success BOOLEAN NOT NULL DEFAULT FALSE,
    error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_load_runs_started ON load_runs(started_at);
`,
	},
}

func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.Printf("migrations: applying %d - %s", m.Version, m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, s.clock.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}

		log.Printf("migrations: completed %d", m.Version)
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (s *Store) MigrationVersion() (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
