package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/lox/precipqc/internal/api"
	"github.com/lox/precipqc/internal/ingest"
	"github.com/lox/precipqc/internal/jobs"
	"github.com/lox/precipqc/internal/store"
)

type Globals struct {
	DB string `help:"Path to SQLite database." env:"PRECIPQC_DB" default:"data/precip.sqlite" type:"path"`
}

// open opens and migrates the database. The caller closes the returned func.
func (g *Globals) open() (*store.Store, func(), error) {
	db, err := store.Open(g.DB)
	if err != nil {
		return nil, nil, err
	}
	st := store.New(db, nil)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return st, func() { db.Close() }, nil
}

type CLI struct {
	Globals

	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name=env-file,default='.env',help='Path to .env file.'"`

	Migrate  MigrateCmd  `cmd:"" help:"Create or upgrade the database schema."`
	Download DownloadCmd `cmd:"" help:"Download yearly DSI-3240 archives from the NCDC FTP server."`
	Load     LoadCmd     `cmd:"" help:"Load DSI-3240 text files into hourly_raw and daily_raw."`
	Stations StationsCmd `cmd:"" help:"Load the MSHR enhanced station history file."`
	Dates    DatesCmd    `cmd:"" help:"Fill the date dimension."`
	States   StatesCmd   `cmd:"" help:"Fill the DSI-3240 state codes."`
	Count    CountCmd    `cmd:"" help:"Compare raw file record counts with loaded rows."`
	FixFlags FixFlagsCmd `cmd:"" name:"fix-flags" help:"Force daily error flags where hourly data has errors."`
	Coverage CoverageCmd `cmd:"" help:"Compute missing hours and coverage per station-period."`
	Derive   DeriveCmd   `cmd:"" help:"Rebuild the station master and complete-period tables."`
	Serve    ServeCmd    `cmd:"" help:"Serve QC results over HTTP."`
	Steps    StepsCmd    `cmd:"" help:"Run the whole load and QC sequence."`
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx context.Context, g *Globals) error {
	st, done, err := g.open()
	if err != nil {
		return err
	}
	defer done()

	version, err := st.MigrationVersion()
	if err != nil {
		return err
	}
	log.Printf("database at migration version %d", version)
	return nil
}

type DownloadCmd struct {
	Dir  string `help:"Directory for downloaded archives." env:"PRECIPQC_ARCHIVE_DIR" default:"data/hourlydata/orig" type:"path"`
	Host string `help:"FTP host:port." env:"PRECIPQC_FTP_HOST" default:"${ftp_host}"`
	From int    `help:"First year." default:"1999"`
	To   int    `help:"Last year." default:"2011"`
}

func (c *DownloadCmd) Run(ctx context.Context, g *Globals) error {
	sum, err := ingest.NewDownloader(c.Host, c.Dir).DownloadYears(ctx, c.From, c.To)
	if err != nil {
		return err
	}
	log.Printf("download: %d files from %d states, %d failed", sum.Files, len(sum.StatesPulled), sum.Failed)
	return nil
}

type LoadCmd struct {
	Files []string `arg:"" help:"DSI-3240 text files."`
	Batch int      `help:"Hourly rows per insert transaction." default:"10000"`
}

func (c *LoadCmd) Run(ctx context.Context, g *Globals) error {
	st, done, err := g.open()
	if err != nil {
		return err
	}
	defer done()

	loader := ingest.NewLoader(st)
	loader.PrecipBatch = c.Batch

	start := time.Now()
	for _, f := range c.Files {
		if _, err := loader.ImportPrecipFile(ctx, f); err != nil {
			return err
		}
	}
	log.Printf("load: %d files took %s", len(c.Files), time.Since(start).Round(time.Second))
	return nil
}

type StationsCmd struct {
	File string `arg:"" help:"MSHR enhanced station history text file." type:"existingfile"`
}

func (c *StationsCmd) Run(ctx context.Context, g *Globals) error {
	st, done, err := g.open()
	if err != nil {
		return err
	}
	defer done()

	if _, err := ingest.NewLoader(st).ImportStationFile(ctx, c.File); err != nil {
		return err
	}
	n, err := st.RefreshStationMaster(ctx)
	if err != nil {
		return err
	}
	log.Printf("stations: %d stations in master table", n)
	return nil
}

type DatesCmd struct {
	From time.Time `help:"First date." default:"1960-01-01" format:"2006-01-02"`
	To   time.Time `help:"Last date." default:"2013-12-31" format:"2006-01-02"`
}

func (c *DatesCmd) Run(ctx context.Context, g *Globals) error {
	st, done, err := g.open()
	if err != nil {
		return err
	}
	defer done()

	n, err := st.LoadDates(ctx, c.From, c.To)
	if err != nil {
		return err
	}
	log.Printf("dates: loaded %d days", n)
	return nil
}

type StatesCmd struct{}

func (c *StatesCmd) Run(ctx context.Context, g *Globals) error {
	st, done, err := g.open()
	if err != nil {
		return err
	}
	defer done()
	return st.FillStates(ctx)
}

type CountCmd struct {
	Dir  string `help:"Directory holding the raw text files." env:"PRECIPQC_RAW_DIR" default:"data/hourlydata" type:"path"`
	From int    `help:"First year." default:"1999"`
	To   int    `help:"Last year." default:"2013"`
}

func (c *CountCmd) Run(ctx context.Context, g *Globals) error {
	st, done, err := g.open()
	if err != nil {
		return err
	}
	defer done()

	counts, err := jobs.Reconcile(ctx, st, c.Dir, c.From, c.To)
	if err != nil {
		return err
	}

	fmt.Printf("%-6s %10s %10s %10s %10s\n", "year", "file_days", "file_hours", "db_days", "db_hours")
	var mismatched int
	for _, yc := range counts {
		mark := ""
		if !yc.Match() {
			mark = " *"
			mismatched++
		}
		fmt.Printf("%-6d %10d %10d %10d %10d%s\n", yc.Year, yc.FileDays, yc.FileHours, yc.DBDays, yc.DBHours, mark)
	}
	if mismatched > 0 {
		return fmt.Errorf("%d years do not match", mismatched)
	}
	return nil
}

type FixFlagsCmd struct {
	DryRun bool `help:"Report mismatches without updating daily records."`
}

func (c *FixFlagsCmd) Run(ctx context.Context, g *Globals) error {
	st, done, err := g.open()
	if err != nil {
		return err
	}
	defer done()

	job := jobs.NewFlagFixJob(st, nil)
	job.DryRun = c.DryRun
	_, err = job.Run(ctx)
	return err
}

type CoverageCmd struct {
	StartStation string `help:"First station (6 digits)." default:"000000"`
	EndStation   string `help:"Last station; defaults to start station."`
	StartPeriod  string `help:"First period (YYYY-MM)."`
	EndPeriod    string `help:"Last period; defaults to start period."`
	FromYear     int    `help:"Run whole years for all stations instead of a range." default:"0"`
	ToYear       int    `help:"Last year for --from-year."`
}

func (c *CoverageCmd) Validate() error {
	if c.FromYear == 0 && c.StartPeriod == "" {
		return fmt.Errorf("either --start-period or --from-year is required")
	}
	return nil
}

func (c *CoverageCmd) Run(ctx context.Context, g *Globals) error {
	st, done, err := g.open()
	if err != nil {
		return err
	}
	defer done()

	job := jobs.NewCoverageJob(st, nil)

	var sum *jobs.CoverageSummary
	if c.FromYear != 0 {
		to := c.ToYear
		if to == 0 {
			to = c.FromYear
		}
		sum, err = job.RunYears(ctx, c.FromYear, to)
	} else {
		sum, err = job.Run(ctx, store.Range{
			StartStation: c.StartStation,
			EndStation:   c.EndStation,
			StartPeriod:  c.StartPeriod,
			EndPeriod:    c.EndPeriod,
		})
	}
	if err != nil {
		return err
	}
	log.Printf("coverage: %d records (%d full, %d partial, %d missing)",
		sum.Records, sum.Flags["F"], sum.Flags["P"], sum.Flags["M"])
	return nil
}

type DeriveCmd struct{}

func (c *DeriveCmd) Run(ctx context.Context, g *Globals) error {
	st, done, err := g.open()
	if err != nil {
		return err
	}
	defer done()

	_, err = jobs.NewDeriveJob(st, nil).Run(ctx)
	return err
}

type ServeCmd struct {
	Port string `help:"HTTP server port." env:"PRECIPQC_PORT" default:"8080"`
}

func (c *ServeCmd) Run(ctx context.Context, g *Globals) error {
	st, done, err := g.open()
	if err != nil {
		return err
	}
	defer done()

	log.Printf("starting server on :%s", c.Port)
	return api.NewServer(st, c.Port).Run(ctx)
}

type StepsCmd struct {
	RawDir       string    `help:"Directory holding the raw text files." env:"PRECIPQC_RAW_DIR" default:"data/hourlydata" type:"path"`
	StationFile  string    `help:"MSHR enhanced station history file." env:"PRECIPQC_STATION_FILE" type:"path"`
	DatesFrom    time.Time `help:"First date of the date dimension." default:"1960-01-01" format:"2006-01-02"`
	DatesTo      time.Time `help:"Last date of the date dimension." default:"2013-12-31" format:"2006-01-02"`
	From         int       `help:"First data year." default:"1999"`
	To           int       `help:"Last data year." default:"2013"`
	SkipLoad     bool      `help:"Skip raw and station file loads."`
	SkipCoverage bool      `help:"Skip the coverage pass."`
}

func (c *StepsCmd) Run(ctx context.Context, g *Globals) error {
	st, done, err := g.open()
	if err != nil {
		return err
	}
	defer done()

	return jobs.NewSteps(st, nil).Run(ctx, jobs.StepsConfig{
		RawDir:       c.RawDir,
		StationFile:  c.StationFile,
		DatesFrom:    c.DatesFrom,
		DatesTo:      c.DatesTo,
		FromYear:     c.From,
		ToYear:       c.To,
		SkipLoad:     c.SkipLoad,
		SkipCoverage: c.SkipCoverage,
	})
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("precipqc"),
		kong.Description("Hourly precipitation (DSI-3240) loading and quality control."),
		kong.UsageOnError(),
		kong.Vars{"ftp_host": ingest.DefaultFTPHost},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	kctx.BindTo(ctx, (*context.Context)(nil))

	if err := kctx.Run(&cli.Globals); err != nil {
		log.Printf("%s: %v", kctx.Command(), err)
		os.Exit(1)
	}
}
