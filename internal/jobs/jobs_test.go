package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/lox/precipqc/internal/models"
	"github.com/lox/precipqc/internal/quality"
	"github.com/lox/precipqc/internal/store"
)

// 2007-01-01
const jan1 = 732677

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	st := store.New(db, clockwork.NewFakeClock())
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}

func hr(station, period string, day, hour int, flag1, flag2 string) models.HourlyRecord {
	return models.HourlyRecord{
		Station: station, StateCode: station[:2], Units: "HI", Period: period,
		ReadDate: day, ReadHour: hour, Flag1: flag1, Flag2: flag2,
	}
}

func dr(station, period string, day int, flag1 string) models.DailyRecord {
	return models.DailyRecord{
		Station: station, StateCode: station[:2], Units: "HI", Period: period,
		ReadDate: day, Flag1: flag1, Flag2: " ",
	}
}

func seedCoverage(t *testing.T, st *store.Store) {
	t.Helper()
	require.NoError(t, st.InsertPrecipBatch(context.Background(), []models.HourlyRecord{
		hr("010008", "2007-01", jan1, 100, "[", " "),
		hr("010008", "2007-01", jan1, 500, "]", " "),
		hr("010009", "2007-01", jan1, 100, " ", " "),
		hr("010011", "2007-01", jan1, 300, "]", " "),
		hr("010008", "2007-02", jan1+31, 100, " ", " "),
		hr("010008", "2008-01", jan1+365, 100, " ", " "),
	}, nil))
}

func TestCoverageJob_Run(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	seedCoverage(t, st)

	job := NewCoverageJob(st, clockwork.NewFakeClock())
	sum, err := job.Run(ctx, store.Range{StartStation: "000000", EndStation: "999999", StartPeriod: "2007-01"})
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Groups)
	assert.Equal(t, 3, sum.Records)
	assert.Equal(t, 1, sum.Diagnostics, "end marker without a start")
	assert.Equal(t, map[string]int{"P": 1, "F": 2}, sum.Flags)

	rec, err := st.GetCoverage(ctx, "010008", "2007-01")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 5, rec.MissingHours)
	assert.Equal(t, 744, rec.Hours)
	assert.InDelta(t, 1-5.0/744, rec.Coverage, 1e-12)
	assert.Equal(t, 1, rec.UnitsFlag)

	feb, err := st.GetCoverage(ctx, "010008", "2007-02")
	require.NoError(t, err)
	assert.Nil(t, feb, "outside the range")
}

func TestCoverageJob_RerunFails(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	seedCoverage(t, st)

	job := NewCoverageJob(st, nil)
	r := store.Range{StartStation: "010008", StartPeriod: "2007-01"}
	_, err := job.Run(ctx, r)
	require.NoError(t, err)

	_, err = job.Run(ctx, r)
	assert.Error(t, err, "coverage rows are appended, never merged")
}

func TestCoverageJob_RunYears(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	seedCoverage(t, st)

	sum, err := NewCoverageJob(st, nil).RunYears(ctx, 2007, 2008)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Records)

	rows, err := st.ListCoverage(ctx, store.Range{StartStation: "010008", StartPeriod: "2007-01", EndPeriod: "2008-12"})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "2008-01", rows[2].Period)
	assert.Equal(t, 744, rows[2].Hours)
}

func TestYearRange(t *testing.T) {
	assert.Equal(t, store.Range{
		StartStation: "000000", EndStation: "999999", StartPeriod: "1999-01", EndPeriod: "1999-12",
	}, YearRange(1999))
}

func seedFlags(t *testing.T, st *store.Store) {
	t.Helper()
	require.NoError(t, st.InsertPrecipBatch(context.Background(),
		// Day 0 simple, day 1 odd, day 2 opens inside an accumulation, day 3
		// already flagged, day 4 balanced.
		[]models.HourlyRecord{
			hr("010008", "2007-01", jan1, 100, "[", " "),
			hr("010008", "2007-01", jan1+1, 400, "A", " "),
			hr("010008", "2007-01", jan1+2, 200, "A", " "),
			hr("010008", "2007-01", jan1+2, 2200, "a", " "),
			hr("010008", "2007-01", jan1+3, 100, " ", "Q"),
			hr("010008", "2007-01", jan1+4, 100, "a", " "),
			hr("010008", "2007-01", jan1+4, 500, "A", " "),
		},
		[]models.DailyRecord{
			dr("010008", "2007-01", jan1, " "),
			dr("010008", "2007-01", jan1+1, " "),
			dr("010008", "2007-01", jan1+2, " "),
			dr("010008", "2007-01", jan1+3, "I"),
			dr("010008", "2007-01", jan1+4, " "),
		},
	))
}

func TestFlagFixJob_ForcesAndIsIdempotent(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	seedFlags(t, st)

	job := NewFlagFixJob(st, nil)
	sum, err := job.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, []quality.Mismatch{
		{Station: "010008", Day: jan1, Reason: quality.ReasonSimple},
		{Station: "010008", Day: jan1 + 1, Reason: quality.ReasonOdd},
		{Station: "010008", Day: jan1 + 2, Reason: quality.ReasonEven},
	}, sum.Mismatches)
	assert.Equal(t, 3, sum.Days)
	assert.Equal(t, int64(3), sum.Forced)

	for _, day := range []int{jan1, jan1 + 1, jan1 + 2} {
		d, err := st.GetDailyRecord(ctx, "010008", day)
		require.NoError(t, err)
		assert.Equal(t, "P", d.Flag1, "day %d", day)
	}
	balanced, err := st.GetDailyRecord(ctx, "010008", jan1+4)
	require.NoError(t, err)
	assert.Equal(t, " ", balanced.Flag1)

	audit, err := st.ListMismatches(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, audit, 3)

	again, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Mismatches)
	assert.Zero(t, again.Forced)
}

func TestFlagFixJob_DryRun(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	seedFlags(t, st)

	job := NewFlagFixJob(st, nil)
	job.DryRun = true
	sum, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Len(t, sum.Mismatches, 3)
	assert.Zero(t, sum.Forced)

	d, err := st.GetDailyRecord(ctx, "010008", jan1)
	require.NoError(t, err)
	assert.Equal(t, " ", d.Flag1)
}

func TestDeriveJob_Run(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertStationHistory(ctx, []models.StationHistory{
		{CoopID: sql.NullString{String: "010008", Valid: true}, BeginDate: jan1 - 1000},
	}))
	require.NoError(t, st.InsertPrecipBatch(ctx,
		[]models.HourlyRecord{hr("010008", "2007-01", jan1, 100, " ", " ")},
		[]models.DailyRecord{dr("010008", "2007-01", jan1, " "), dr("010008", "2007-02", jan1+31, "I")},
	))

	sum, err := NewDeriveJob(st, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, &DeriveSummary{Stations: 1, DailyPeriods: 1, HourlyPeriods: 1}, sum)
}

func block(hour, amount int, flag1, flag2 string) string {
	return fmt.Sprintf("%04d%06d%s%s", hour, amount, flag1, flag2)
}

func precipLine(station, date string, blocks ...string) string {
	return "HPD" + station + "00HPCPHI" + date[0:4] + date[4:6] + "00" + date[6:8] +
		fmt.Sprintf("%03d", len(blocks)) + strings.Join(blocks, "")
}

func TestSteps_Run(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	yearly := []string{
		precipLine("010008", "20070101", block(100, 0, "[", " "), block(300, 0, "]", " "), block(2500, 0, " ", " ")),
		precipLine("010008", "20070102", block(100, 2, " ", " "), block(2500, 2, " ", " ")),
	}
	monthly := []string{
		precipLine("010008", "20070201", block(100, 1, " ", " "), block(2500, 1, " ", " ")),
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2007.txt"), []byte(strings.Join(yearly, "\n")+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "3240_200702_2007.dat"), []byte(strings.Join(monthly, "\n")+"\n"), 0o644))

	steps := NewSteps(st, nil)
	err := steps.Run(ctx, StepsConfig{
		RawDir:    dir,
		DatesFrom: time.Date(2007, 1, 1, 0, 0, 0, 0, time.UTC),
		DatesTo:   time.Date(2007, 12, 31, 0, 0, 0, 0, time.UTC),
		FromYear:  2007,
		ToYear:    2007,
	})
	require.NoError(t, err)

	counts, err := Reconcile(ctx, st, dir, 2007, 2007)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.True(t, counts[0].Match(), "%+v", counts[0])
	assert.Equal(t, 3, counts[0].FileDays)

	// The missing span on Jan 1 had no daily error flag.
	d, err := st.GetDailyRecord(ctx, "010008", jan1)
	require.NoError(t, err)
	assert.Equal(t, "P", d.Flag1)

	jan, err := st.GetCoverage(ctx, "010008", "2007-01")
	require.NoError(t, err)
	require.NotNil(t, jan)
	assert.Equal(t, 3, jan.MissingHours)

	feb, err := st.GetCoverage(ctx, "010008", "2007-02")
	require.NoError(t, err)
	require.NotNil(t, feb)
	assert.Equal(t, "F", feb.CovFlag)

	complete, err := st.ListCompletePeriods(ctx, "daily", "010008")
	require.NoError(t, err)
	require.Len(t, complete, 1, "January has a forced P day")
	assert.Equal(t, "2007-02", complete[0].Period)

	date, err := st.GetDate(ctx, jan1)
	require.NoError(t, err)
	require.NotNil(t, date)
	assert.Equal(t, "2007-01-01", date.ISODate)
}
