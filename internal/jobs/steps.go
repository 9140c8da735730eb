package jobs

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lox/precipqc/internal/ingest"
	"github.com/lox/precipqc/internal/store"
)

// YearCount compares the record totals of a year's raw files with the rows
// loaded for that year.
type YearCount struct {
	Year      int
	FileDays  int
	FileHours int
	DBDays    int64
	DBHours   int64
}

func (c YearCount) Match() bool {
	return int64(c.FileDays) == c.DBDays && int64(c.FileHours) == c.DBHours
}

// Reconcile counts the raw files for each year in fromYear..toYear and the
// loaded rows for the same years.
func Reconcile(ctx context.Context, st *store.Store, dir string, fromYear, toYear int) ([]YearCount, error) {
	daily, err := st.CountByYear(ctx, "daily_raw")
	if err != nil {
		return nil, fmt.Errorf("count daily_raw: %w", err)
	}
	hourly, err := st.CountByYear(ctx, "hourly_raw")
	if err != nil {
		return nil, fmt.Errorf("count hourly_raw: %w", err)
	}

	var out []YearCount
	for year := fromYear; year <= toYear; year++ {
		y := strconv.Itoa(year)
		days, hours, err := ingest.CountYear(dir, y)
		if err != nil {
			return nil, fmt.Errorf("count files %s: %w", y, err)
		}
		out = append(out, YearCount{
			Year: year, FileDays: days, FileHours: hours,
			DBDays: daily[y], DBHours: hourly[y],
		})
	}
	return out, nil
}

// StepsConfig drives a full load and QC pass.
type StepsConfig struct {
	RawDir       string
	StationFile  string
	DatesFrom    time.Time
	DatesTo      time.Time
	FromYear     int
	ToYear       int
	SkipLoad     bool
	SkipCoverage bool
}

// Steps runs the whole pipeline in order: raw loads, record reconciliation,
// reference data, flag fixes, coverage and derived tables.
type Steps struct {
	store    *store.Store
	loader   *ingest.Loader
	coverage *CoverageJob
	flagfix  *FlagFixJob
	derive   *DeriveJob
}

func NewSteps(st *store.Store, clock clockwork.Clock) *Steps {
	return &Steps{
		store:    st,
		loader:   ingest.NewLoader(st),
		coverage: NewCoverageJob(st, clock),
		flagfix:  NewFlagFixJob(st, clock),
		derive:   NewDeriveJob(st, clock),
	}
}

func (s *Steps) Run(ctx context.Context, cfg StepsConfig) error {
	if !cfg.SkipLoad {
		if err := s.loadRaw(ctx, cfg.RawDir); err != nil {
			return err
		}

		counts, err := Reconcile(ctx, s.store, cfg.RawDir, cfg.FromYear, cfg.ToYear)
		if err != nil {
			return err
		}
		for _, c := range counts {
			if !c.Match() {
				log.Printf("steps: %d: files have %d days/%d hours, loaded %d/%d",
					c.Year, c.FileDays, c.FileHours, c.DBDays, c.DBHours)
			}
		}

		if cfg.StationFile != "" {
			if _, err := s.loader.ImportStationFile(ctx, cfg.StationFile); err != nil {
				return fmt.Errorf("station history: %w", err)
			}
		}
	}

	n, err := s.store.LoadDates(ctx, cfg.DatesFrom, cfg.DatesTo)
	if err != nil {
		return fmt.Errorf("dates: %w", err)
	}
	log.Printf("steps: loaded %d dates", n)

	if err := s.store.FillStates(ctx); err != nil {
		return fmt.Errorf("states: %w", err)
	}

	if _, err := s.flagfix.Run(ctx); err != nil {
		return err
	}

	if !cfg.SkipCoverage {
		if _, err := s.coverage.RunYears(ctx, cfg.FromYear, cfg.ToYear); err != nil {
			return err
		}
	}

	if _, err := s.derive.Run(ctx); err != nil {
		return err
	}

	log.Println("steps: done")
	return nil
}

// loadRaw imports the monthly .dat files, then the yearly .txt files.
func (s *Steps) loadRaw(ctx context.Context, dir string) error {
	for _, pattern := range []string{"*.dat", "*.txt"} {
		files, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return err
		}
		sort.Strings(files)
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := s.loader.ImportPrecipFile(ctx, f); err != nil {
				return fmt.Errorf("load %s: %w", f, err)
			}
		}
	}
	return nil
}
