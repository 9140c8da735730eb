package ingest

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/lox/precipqc/internal/metrics"
	"github.com/lox/precipqc/internal/models"
	"github.com/lox/precipqc/internal/store"
)

const (
	DefaultPrecipBatch  = 10000
	DefaultStationBatch = 1000

	// MSHR lines run past 1800 characters.
	maxLineLen = 64 * 1024
)

// LoadResult summarizes one file import.
type LoadResult struct {
	Lines       int
	Hourly      int
	Daily       int
	Stations    int
	ParseErrors int
	Warnings    int
}

// Loader imports raw text files into the store.
type Loader struct {
	store        *store.Store
	PrecipBatch  int
	StationBatch int
}

func NewLoader(st *store.Store) *Loader {
	return &Loader{store: st, PrecipBatch: DefaultPrecipBatch, StationBatch: DefaultStationBatch}
}

// ImportPrecipFile loads a DSI-3240 file, flushing whenever more than
// PrecipBatch hourly rows are buffered. Lines that fail to parse are logged,
// counted and skipped.
func (l *Loader) ImportPrecipFile(ctx context.Context, path string) (*LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return l.track(ctx, "precip", path, func(res *LoadResult) error {
		return l.importPrecip(ctx, f, filepath.Base(path), res)
	})
}

func (l *Loader) importPrecip(ctx context.Context, r io.Reader, name string, res *LoadResult) error {
	var hourly []models.HourlyRecord
	var daily []models.DailyRecord

	flush := func() error {
		if len(daily) == 0 {
			return nil
		}
		if err := l.store.InsertPrecipBatch(ctx, hourly, daily); err != nil {
			return err
		}
		res.Hourly += len(hourly)
		res.Daily += len(daily)
		metrics.RecordsLoaded.WithLabelValues("hourly_raw").Add(float64(len(hourly)))
		metrics.RecordsLoaded.WithLabelValues("daily_raw").Add(float64(len(daily)))
		hourly, daily = hourly[:0], daily[:0]
		return nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineLen)
	for sc.Scan() {
		res.Lines++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		pl, err := ParsePrecipLine(line)
		if err != nil {
			res.ParseErrors++
			metrics.ParseErrors.WithLabelValues("precip").Inc()
			log.Printf("ingest: %s:%d: skipping line: %v", name, res.Lines, err)
			continue
		}
		if warns := ValidatePrecipLine(pl); len(warns) > 0 {
			res.Warnings++
			log.Printf("ingest: %s:%d: %s %s: %s", name, res.Lines, pl.Station, pl.Date.Format("2006-01-02"), strings.Join(warns, ","))
		}

		h, d := pl.Records()
		hourly = append(hourly, h...)
		daily = append(daily, d)

		if len(hourly) > l.PrecipBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	return flush()
}

// ImportStationFile loads an MSHR enhanced station history file.
func (l *Loader) ImportStationFile(ctx context.Context, path string) (*LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return l.track(ctx, "stations", path, func(res *LoadResult) error {
		return l.importStations(ctx, f, filepath.Base(path), res)
	})
}

func (l *Loader) importStations(ctx context.Context, r io.Reader, name string, res *LoadResult) error {
	var batch []models.StationHistory

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := l.store.InsertStationHistory(ctx, batch); err != nil {
			return err
		}
		res.Stations += len(batch)
		metrics.RecordsLoaded.WithLabelValues("station_hist").Add(float64(len(batch)))
		batch = batch[:0]
		return nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineLen)
	for sc.Scan() {
		res.Lines++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		h, err := ParseStationLine(line)
		if err != nil {
			res.ParseErrors++
			metrics.ParseErrors.WithLabelValues("stations").Inc()
			log.Printf("ingest: %s:%d: skipping line: %v", name, res.Lines, err)
			continue
		}
		batch = append(batch, h)

		if len(batch) > l.StationBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	return flush()
}

// track wraps an import in a load run record.
func (l *Loader) track(ctx context.Context, source, target string, fn func(*LoadResult) error) (*LoadResult, error) {
	run, err := l.store.StartLoadRun(ctx, source, target)
	if err != nil {
		log.Printf("ingest: failed to start load run: %v", err)
	}

	res := &LoadResult{}
	importErr := fn(res)

	if run != nil {
		run.RecordsParsed = sql.NullInt64{Int64: int64(res.Lines - res.ParseErrors), Valid: true}
		run.RecordsStored = sql.NullInt64{Int64: int64(res.Daily + res.Hourly + res.Stations), Valid: true}
		run.ParseErrors = sql.NullInt64{Int64: int64(res.ParseErrors), Valid: true}
		run.Success = importErr == nil
		if importErr != nil {
			run.ErrorMessage = sql.NullString{String: importErr.Error(), Valid: true}
		}
		if err := l.store.CompleteLoadRun(ctx, run); err != nil {
			log.Printf("ingest: failed to complete load run: %v", err)
		}
	}

	if importErr != nil {
		return res, importErr
	}
	log.Printf("ingest: loaded %s: %d lines, %d hourly, %d daily, %d stations, %d skipped",
		filepath.Base(target), res.Lines, res.Hourly, res.Daily, res.Stations, res.ParseErrors)
	return res, nil
}
