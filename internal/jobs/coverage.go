package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/jonboulle/clockwork"

	"github.com/lox/precipqc/internal/metrics"
	"github.com/lox/precipqc/internal/models"
	"github.com/lox/precipqc/internal/quality"
	"github.com/lox/precipqc/internal/store"
)

// CoverageSummary totals one coverage run.
type CoverageSummary struct {
	Groups      int
	Records     int
	Diagnostics int
	Flags       map[string]int
}

func (s *CoverageSummary) add(o *CoverageSummary) {
	s.Groups += o.Groups
	s.Records += o.Records
	s.Diagnostics += o.Diagnostics
	for k, v := range o.Flags {
		s.Flags[k] += v
	}
}

// CoverageJob computes missing hours and coverage for every station-period in
// a range and appends the results to station_period_coverage.
type CoverageJob struct {
	store *store.Store
	clock clockwork.Clock
}

func NewCoverageJob(st *store.Store, clock clockwork.Clock) *CoverageJob {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CoverageJob{store: st, clock: clock}
}

// Run analyses every station-period in r. Records are written only after the
// read finishes; a failed write aborts the run with nothing from it stored.
func (j *CoverageJob) Run(ctx context.Context, r store.Range) (*CoverageSummary, error) {
	start := j.clock.Now()
	defer func() {
		metrics.JobDuration.WithLabelValues("coverage").Observe(j.clock.Since(start).Seconds())
	}()

	sum := &CoverageSummary{Flags: make(map[string]int)}
	var records []models.CoverageRecord

	err := j.store.ForEachStationPeriod(ctx, r, func(rows []models.HourlyRecord) error {
		res := quality.AnalyzeGroup(rows)
		sum.Groups++
		metrics.GroupsAnalyzed.Inc()

		for _, d := range res.Diagnostics {
			sum.Diagnostics++
			metrics.Diagnostics.WithLabelValues(d.Kind.String()).Inc()
			log.Printf("coverage: %s %s: %s at %s %04d",
				d.Station, d.Period, d.Kind, models.FromOrdinal(d.At.Day).Format("2006-01-02"), d.At.Hour)
		}

		rec, err := quality.FromGroup(res)
		if err != nil {
			return fmt.Errorf("coverage %s %s: %w", res.Station, res.Period, err)
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := j.store.InsertCoverage(ctx, records); err != nil {
		return nil, fmt.Errorf("save coverage %s: %w", r.Normalize(), err)
	}

	for _, rec := range records {
		sum.Flags[rec.CovFlag]++
		metrics.CoverageRecords.WithLabelValues(rec.CovFlag).Inc()
	}
	sum.Records = len(records)

	log.Printf("coverage: %s: %d station-periods, %d diagnostics", r.Normalize(), sum.Groups, sum.Diagnostics)
	return sum, nil
}

// RunYears runs one pass per calendar year over all stations.
func (j *CoverageJob) RunYears(ctx context.Context, fromYear, toYear int) (*CoverageSummary, error) {
	total := &CoverageSummary{Flags: make(map[string]int)}
	for year := fromYear; year <= toYear; year++ {
		sum, err := j.Run(ctx, YearRange(year))
		if err != nil {
			return total, fmt.Errorf("year %d: %w", year, err)
		}
		total.add(sum)
	}
	return total, nil
}

// YearRange selects every station for the twelve periods of a year.
func YearRange(year int) store.Range {
	return store.Range{
		StartStation: "000000",
		EndStation:   "999999",
		StartPeriod:  fmt.Sprintf("%d-01", year),
		EndPeriod:    fmt.Sprintf("%d-12", year),
	}
}
