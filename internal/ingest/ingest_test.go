package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/lox/precipqc/internal/models"
	"github.com/lox/precipqc/internal/store"
)

func block(hour, amount int, flag1, flag2 string) string {
	return fmt.Sprintf("%04d%06d%s%s", hour, amount, flag1, flag2)
}

// precipLine builds a DSI-3240 record; date is YYYYMMDD and the last block is
// the daily total.
func precipLine(station, units, date string, blocks ...string) string {
	return "HPD" + station + "00HPCP" + units + date[0:4] + date[4:6] + "00" + date[6:8] +
		fmt.Sprintf("%03d", len(blocks)) + strings.Join(blocks, "")
}

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

func TestParsePrecipLine(t *testing.T) {
	line := precipLine("010008", "HI", "20070115",
		block(100, 3, " ", " "),
		block(2300, 0, "[", " "),
		block(2500, 3, " ", " "),
	)

	pl, err := ParsePrecipLine(line)
	require.NoError(t, err)

	assert.Equal(t, "010008", pl.Station)
	assert.Equal(t, "01", pl.StateCode)
	assert.Equal(t, "HI", pl.Units)
	assert.Equal(t, time.Date(2007, 1, 15, 0, 0, 0, 0, time.UTC), pl.Date)
	assert.Equal(t, []HourBlock{
		{Hour: 100, Amount: 3, Flag1: " ", Flag2: " "},
		{Hour: 2300, Amount: 0, Flag1: "[", Flag2: " "},
	}, pl.Hours)
	assert.Equal(t, 3, pl.DailyTotal)
}

func TestParsePrecipLine_TrimmedFlags(t *testing.T) {
	line := precipLine("010008", "HI", "20070115", block(100, 3, "a", " "), block(2500, 3, " ", " "))
	line = strings.TrimRight(line, " ") + "\r\n"

	pl, err := ParsePrecipLine(line)
	require.NoError(t, err)
	assert.Equal(t, " ", pl.DailyFlag1)
	assert.Equal(t, " ", pl.DailyFlag2)
	assert.Equal(t, "a", pl.Hours[0].Flag1)
}

func TestParsePrecipLine_Errors(t *testing.T) {
	good := precipLine("010008", "HI", "20070115", block(100, 3, " ", " "), block(2500, 3, " ", " "))

	tests := []struct {
		name    string
		line    string
		wantErr error
	}{
		{name: "shorter than header", line: good[:20], wantErr: ErrShortLine},
		{name: "missing daily block", line: good[:42], wantErr: ErrShortLine},
		{name: "count not numeric", line: good[:27] + "x02" + good[30:]},
		{name: "zero count", line: good[:27] + "000" + good[30:]},
		{name: "bad month", line: good[:21] + "13" + good[23:]},
		{name: "bad amount", line: good[:34] + "   x  " + good[40:]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePrecipLine(tt.line)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
		})
	}
}

func TestPrecipLine_Records(t *testing.T) {
	pl, err := ParsePrecipLine(precipLine("010008", "HI", "20070101",
		block(100, 3, " ", " "),
		block(200, 1, " ", "Q"),
		block(2500, 4, "I", " "),
	))
	require.NoError(t, err)

	hourly, daily := pl.Records()
	require.Len(t, hourly, 2)
	assert.Equal(t, models.HourlyRecord{
		Station: "010008", StateCode: "01", Units: "HI", Period: "2007-01",
		ReadDate: 732677, ReadHour: 200, Amount: 1, Flag1: " ", Flag2: "Q",
	}, hourly[1])
	assert.Equal(t, models.DailyRecord{
		Station: "010008", StateCode: "01", Units: "HI", Period: "2007-01",
		ReadDate: 732677, Amount: 4, Flag1: "I", Flag2: " ",
	}, daily)
}

func TestValidatePrecipLine(t *testing.T) {
	tests := []struct {
		name      string
		pl        PrecipLine
		wantWarns []string
	}{
		{
			name: "valid line - no warnings",
			pl: PrecipLine{Station: "010008", Units: "HI", Hours: []HourBlock{
				{Hour: 100}, {Hour: 2400},
			}},
			wantWarns: nil,
		},
		{
			name:      "unknown units",
			pl:        PrecipLine{Station: "010008", Units: "XX"},
			wantWarns: []string{WarnUnknownUnits},
		},
		{
			name:      "non numeric station",
			pl:        PrecipLine{Station: "01A008", Units: "MM"},
			wantWarns: []string{WarnStationNotDigit},
		},
		{
			name: "hour issues",
			pl: PrecipLine{Station: "010008", Units: "HT", Hours: []HourBlock{
				{Hour: 500}, {Hour: 430}, {Hour: 2600, Amount: -1},
			}},
			wantWarns: []string{WarnHourOutOfRange, WarnHourNotOnHour, WarnHoursUnordered, WarnAmountNegative},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidatePrecipLine(tt.pl)
			sort.Strings(got)
			want := append([]string(nil), tt.wantWarns...)
			sort.Strings(want)
			assert.Equal(t, want, got)
		})
	}
}

func stationLine(fields map[int]string) string {
	buf := []byte(strings.Repeat(" ", 1805))
	for off, v := range fields {
		copy(buf[off:], v)
	}
	return string(buf)
}

func TestParseStationLine(t *testing.T) {
	line := stationLine(map[int]string{
		0:    "10000001",
		21:   "COOP",
		32:   "19480701",
		41:   "99991231",
		197:  "010008",
		361:  "ABBEVILLE",
		778:  "AL",
		840:  "01",
		1299: "31.5706",
		1320: "-85.2482",
		1415: "-6",
	})

	h, err := ParseStationLine(line)
	require.NoError(t, err)

	assert.Equal(t, sql.NullString{String: "010008", Valid: true}, h.CoopID)
	assert.Equal(t, sql.NullString{String: "ABBEVILLE", Valid: true}, h.NamePrincipal)
	assert.Equal(t, models.Ordinal(time.Date(1948, 7, 1, 0, 0, 0, 0, time.UTC)), h.BeginDate)
	assert.Equal(t, models.Ordinal(time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)), h.EndDate)
	assert.InDelta(t, 31.5706, h.Lat.Float64, 1e-9)
	assert.Equal(t, -6.0, h.UTCOffset.Float64)
	assert.False(t, h.ElevGround.Valid, "blank float is NULL")
	assert.False(t, h.GHCNDID.Valid, "blank string is NULL")
	assert.False(t, h.HPDID.Valid)
}

func TestParseStationLine_ShortLineAndBadDate(t *testing.T) {
	h, err := ParseStationLine(stationLine(map[int]string{32: "19480701", 41: "19500101", 197: "010008"})[:230])
	require.NoError(t, err)
	assert.Equal(t, "010008", h.CoopID.String)
	assert.False(t, h.HPDID.Valid)

	_, err = ParseStationLine(stationLine(map[int]string{32: "1948XX01", 41: "19500101"}))
	assert.Error(t, err)
}

func TestCountRecords(t *testing.T) {
	input := strings.Join([]string{
		precipLine("010008", "HI", "20070101", block(100, 1, " ", " "), block(200, 1, " ", " "), block(2500, 2, " ", " ")),
		"",
		precipLine("010008", "HI", "20070102", block(2500, 0, " ", " ")),
	}, "\n")

	days, hours, err := CountRecords(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, days)
	assert.Equal(t, 2, hours)

	_, _, err = CountRecords(strings.NewReader("short\n"))
	assert.ErrorIs(t, err, ErrShortLine)
}

func TestCountYear(t *testing.T) {
	dir := t.TempDir()
	line := precipLine("010008", "HI", "20110101", block(100, 1, " ", " "), block(2500, 1, " ", " "))

	write := func(name string, n int) {
		t.Helper()
		content := strings.Repeat(line+"\n", n)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("2011.txt", 3)
	write("3240_201107_2011.dat", 2)
	write("3240_201108_2011.dat", 1)
	write("2010.txt", 5)

	days, hours, err := CountYear(dir, "2011")
	require.NoError(t, err)
	assert.Equal(t, 6, days)
	assert.Equal(t, 6, hours)
}

func TestLoader_ImportPrecipFile(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	lines := []string{
		precipLine("010008", "HI", "20070101", block(100, 3, " ", " "), block(2500, 3, " ", " ")),
		"garbage",
		precipLine("010008", "HI", "20070102", block(300, 0, "[", " "), block(500, 0, "]", " "), block(2500, 0, "I", " ")),
		precipLine("010008", "HI", "20070103", block(2500, 0, " ", " ")),
	}
	path := filepath.Join(t.TempDir(), "2007.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	loader := NewLoader(st)
	loader.PrecipBatch = 1 // force several flushes

	res, err := loader.ImportPrecipFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Daily)
	assert.Equal(t, 3, res.Hourly)
	assert.Equal(t, 1, res.ParseErrors)

	d, err := st.GetDailyRecord(ctx, "010008", 732678)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "I", d.Flag1)

	counts, err := st.CountByYear(ctx, "hourly_raw")
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts["2007"])

	health, err := st.GetLoadHealth(ctx)
	require.NoError(t, err)
	require.Len(t, health, 1)
	assert.Equal(t, 1, health[0].SuccessRuns)
	assert.Equal(t, int64(1), health[0].TotalParseErrors)
}

func TestLoader_ImportStationFile(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	lines := []string{
		stationLine(map[int]string{32: "19480701", 41: "19991231", 197: "010008", 1299: "31.0"}),
		stationLine(map[int]string{32: "20000101", 41: "99991231", 197: "010008", 1299: "31.5"}),
		stationLine(map[int]string{32: "bad", 41: "99991231", 197: "010009"}),
	}
	path := filepath.Join(t.TempDir(), "mshr.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644))

	res, err := NewLoader(st).ImportStationFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stations)
	assert.Equal(t, 1, res.ParseErrors)

	require.NoError(t, st.InsertPrecipBatch(ctx, nil, []models.DailyRecord{{Station: "010008", Period: "2007-01", ReadDate: 732677}}))
	_, err = st.RefreshStationMaster(ctx)
	require.NoError(t, err)

	s, err := st.GetStation(ctx, "010008")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 31.5, s.Lat.Float64)
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := NewLoader(setupTestStore(t)).ImportPrecipFile(context.Background(), "/nonexistent/2007.txt")
	assert.Error(t, err)
}

type fakeArchive struct {
	dirs  map[string]bool
	files map[string]string // dir/name -> content
	cwd   string
	quit  bool
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }
func (failingReader) Close() error             { return nil }

func (f *fakeArchive) ChangeDir(dir string) error {
	if !f.dirs[dir] {
		return errors.New("550 no such directory")
	}
	f.cwd = dir
	return nil
}

func (f *fakeArchive) Retr(name string) (io.ReadCloser, error) {
	content, ok := f.files[f.cwd+"/"+name]
	if !ok {
		return nil, errors.New("550 no such file")
	}
	if content == "FAIL" {
		return failingReader{}, nil
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func (f *fakeArchive) Quit() error {
	f.quit = true
	return nil
}

func TestDownloader_DownloadYears(t *testing.T) {
	dir := t.TempDir()
	fake := &fakeArchive{
		dirs: map[string]bool{
			ArchiveRoot + "/01": true,
			ArchiveRoot + "/04": true,
			ArchiveRoot + "/05": true,
		},
		files: map[string]string{
			ArchiveRoot + "/01/" + ArchiveName("01", 2005): "al2005",
			ArchiveRoot + "/01/" + ArchiveName("01", 2006): "al2006",
			ArchiveRoot + "/04/" + ArchiveName("04", 2006): "FAIL",
		},
	}

	d := NewDownloader("", dir)
	d.dial = func(context.Context) (archiveServer, error) { return fake, nil }

	sum, err := d.DownloadYears(context.Background(), 2005, 2006)
	require.NoError(t, err)

	assert.Equal(t, []string{"01"}, sum.StatesPulled)
	assert.Len(t, sum.StatesSkipped, 97)
	assert.Equal(t, 2, sum.Files)
	assert.Equal(t, 4, sum.Failed, "04 has one missing and one broken file, 05 has none")
	assert.True(t, fake.quit)

	got, err := os.ReadFile(filepath.Join(dir, "3240_01_2006-2006.tar.Z"))
	require.NoError(t, err)
	assert.Equal(t, "al2006", string(got))

	_, err = os.Stat(filepath.Join(dir, ArchiveName("04", 2006)))
	assert.True(t, os.IsNotExist(err), "failed transfer should be removed")
}

func TestDownloader_Cancelled(t *testing.T) {
	fake := &fakeArchive{dirs: map[string]bool{}}
	d := NewDownloader("", t.TempDir())
	d.dial = func(context.Context) (archiveServer, error) { return fake, nil }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.DownloadYears(ctx, 2005, 2005)
	assert.ErrorIs(t, err, context.Canceled)
}
