package ingest

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jlaffaye/ftp"

	"github.com/lox/precipqc/internal/metrics"
)

const (
	DefaultFTPHost = "ftp.ncdc.noaa.gov:21"
	ArchiveRoot    = "/pub/data/hourly_precip-3240"

	firstStateCode = 1
	lastStateCode  = 98
)

// archiveServer is the part of an FTP connection the downloader uses.
type archiveServer interface {
	ChangeDir(dir string) error
	Retr(name string) (io.ReadCloser, error)
	Quit() error
}

type ftpServer struct {
	conn *ftp.ServerConn
}

func (s ftpServer) ChangeDir(dir string) error { return s.conn.ChangeDir(dir) }
func (s ftpServer) Quit() error                { return s.conn.Quit() }

func (s ftpServer) Retr(name string) (io.ReadCloser, error) {
	resp, err := s.conn.Retr(name)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Downloader fetches the per-state yearly DSI-3240 archives. Archives are
// stored as-is; extracting the .tar.Z files is left to external tools.
type Downloader struct {
	Host    string
	Dir     string
	Timeout time.Duration

	dial func(ctx context.Context) (archiveServer, error)
}

func NewDownloader(host, dir string) *Downloader {
	if host == "" {
		host = DefaultFTPHost
	}
	d := &Downloader{Host: host, Dir: dir, Timeout: 30 * time.Second}
	d.dial = d.dialFTP
	return d
}

func (d *Downloader) dialFTP(ctx context.Context) (archiveServer, error) {
	var conn *ftp.ServerConn
	operation := func() error {
		c, err := ftp.Dial(d.Host, ftp.DialWithContext(ctx), ftp.DialWithTimeout(d.Timeout))
		if err != nil {
			return fmt.Errorf("ftp dial: %w", err)
		}
		if err := c.Login("anonymous", "anonymous"); err != nil {
			c.Quit()
			return backoff.Permanent(fmt.Errorf("ftp login: %w", err))
		}
		conn = c
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return ftpServer{conn: conn}, nil
}

// ArchiveName is the server-side name of one state's archive for a year.
func ArchiveName(state string, year int) string {
	return fmt.Sprintf("3240_%s_%d-%d.tar.Z", state, year, year)
}

// DownloadSummary reports what a download pass fetched.
type DownloadSummary struct {
	StatesPulled  []string
	StatesSkipped []string
	Files         int
	Failed        int
}

// DownloadYears fetches every state's archives for fromYear..toYear into Dir.
// States without a directory on the server are skipped, and a file that fails
// to transfer is removed locally.
func (d *Downloader) DownloadYears(ctx context.Context, fromYear, toYear int) (*DownloadSummary, error) {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	srv, err := d.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer srv.Quit()

	sum := &DownloadSummary{}
	for code := firstStateCode; code <= lastStateCode; code++ {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		state := fmt.Sprintf("%02d", code)
		if err := srv.ChangeDir(path.Join(ArchiveRoot, state)); err != nil {
			sum.StatesSkipped = append(sum.StatesSkipped, state)
			log.Printf("download: skipped %s", state)
			continue
		}

		pulled := 0
		for year := fromYear; year <= toYear; year++ {
			name := ArchiveName(state, year)
			if err := d.fetch(srv, name); err != nil {
				sum.Failed++
				metrics.FTPDownloadsTotal.WithLabelValues("failed").Inc()
				continue
			}
			pulled++
			sum.Files++
			metrics.FTPDownloadsTotal.WithLabelValues("ok").Inc()
		}

		if pulled > 0 {
			sum.StatesPulled = append(sum.StatesPulled, state)
			log.Printf("download: pulled %s (%d files)", state, pulled)
		} else {
			sum.StatesSkipped = append(sum.StatesSkipped, state)
			log.Printf("download: skipped %s", state)
		}
	}

	return sum, nil
}

func (d *Downloader) fetch(srv archiveServer, name string) (err error) {
	dst := filepath.Join(d.Dir, name)
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dst)
		}
	}()

	resp, err := srv.Retr(name)
	if err != nil {
		return err
	}
	if _, err = io.Copy(f, resp); err != nil {
		resp.Close()
		return err
	}
	// The transfer status arrives on close.
	return resp.Close()
}
