package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/jonboulle/clockwork"

	"github.com/lox/precipqc/internal/metrics"
	"github.com/lox/precipqc/internal/quality"
	"github.com/lox/precipqc/internal/store"
)

// FlagFixSummary totals one flag fix run.
type FlagFixSummary struct {
	Mismatches []quality.Mismatch
	Days       int   // distinct station-days
	Forced     int64 // daily rows changed
}

// FlagFixJob finds days whose hourly data carries error flags the daily
// record lacks, and forces those daily records to P.
type FlagFixJob struct {
	store  *store.Store
	clock  clockwork.Clock
	DryRun bool
}

func NewFlagFixJob(st *store.Store, clock clockwork.Clock) *FlagFixJob {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &FlagFixJob{store: st, clock: clock}
}

func (j *FlagFixJob) Run(ctx context.Context) (*FlagFixSummary, error) {
	start := j.clock.Now()
	defer func() {
		metrics.JobDuration.WithLabelValues("flagfix").Observe(j.clock.Since(start).Seconds())
	}()

	sets, err := j.store.ErrorDaySets(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect error days: %w", err)
	}

	ms := quality.Detect(sets)
	days := quality.MismatchDays(ms)
	sum := &FlagFixSummary{Mismatches: ms, Days: len(days)}

	for _, m := range ms {
		metrics.Mismatches.WithLabelValues(m.Reason).Inc()
	}
	log.Printf("flagfix: %d mismatches over %d station-days", len(ms), len(days))

	if j.DryRun || len(ms) == 0 {
		return sum, nil
	}

	if err := j.store.RecordMismatches(ctx, ms); err != nil {
		return nil, fmt.Errorf("record mismatches: %w", err)
	}

	sum.Forced, err = j.store.ForceDailyErrorFlag(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("force daily flags: %w", err)
	}
	metrics.DailyFlagsForced.Add(float64(sum.Forced))

	// Days with hourly evidence but no daily row cannot be forced.
	if missing := int64(len(days)) - sum.Forced; missing > 0 {
		log.Printf("flagfix: %d station-days have no daily record to update", missing)
	}
	log.Printf("flagfix: forced %d daily records to %s", sum.Forced, quality.FlagDailyPartial)
	return sum, nil
}
