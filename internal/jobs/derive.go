package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/jonboulle/clockwork"

	"github.com/lox/precipqc/internal/metrics"
	"github.com/lox/precipqc/internal/store"
)

// DeriveJob rebuilds the station master and the complete-period tables.
type DeriveJob struct {
	store *store.Store
	clock clockwork.Clock
}

func NewDeriveJob(st *store.Store, clock clockwork.Clock) *DeriveJob {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &DeriveJob{store: st, clock: clock}
}

// DeriveSummary counts rows written by a derive run.
type DeriveSummary struct {
	Stations      int64
	DailyPeriods  int64
	HourlyPeriods int64
}

func (j *DeriveJob) Run(ctx context.Context) (*DeriveSummary, error) {
	start := j.clock.Now()
	defer func() {
		metrics.JobDuration.WithLabelValues("derive").Observe(j.clock.Since(start).Seconds())
	}()

	var sum DeriveSummary
	var err error

	if sum.Stations, err = j.store.RefreshStationMaster(ctx); err != nil {
		return nil, fmt.Errorf("station master: %w", err)
	}
	if sum.DailyPeriods, sum.HourlyPeriods, err = j.store.LoadCompletePeriods(ctx); err != nil {
		return nil, fmt.Errorf("complete periods: %w", err)
	}

	log.Printf("derive: %d stations, %d complete daily periods, %d complete hourly periods",
		sum.Stations, sum.DailyPeriods, sum.HourlyPeriods)
	return &sum, nil
}
