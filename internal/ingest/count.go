package ingest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// CountRecords counts station-days and hourly values in a DSI-3240 stream
// without parsing the blocks.
func CountRecords(r io.Reader) (days, hours int, err error) {
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(line) < headerLen {
			return 0, 0, fmt.Errorf("line %d: %w", lineNo, ErrShortLine)
		}
		n, err := strconv.Atoi(strings.TrimSpace(line[27:30]))
		if err != nil {
			return 0, 0, fmt.Errorf("line %d: value count: %w", lineNo, err)
		}
		days++
		hours += n - 1
	}
	return days, hours, sc.Err()
}

// YearFiles lists the raw files holding a year: the yearly YYYY.txt file and
// the monthly 3240*YYYY.dat files that replaced it during 2011.
func YearFiles(dir, year string) ([]string, error) {
	yearly, err := filepath.Glob(filepath.Join(dir, year+".txt"))
	if err != nil {
		return nil, err
	}
	monthly, err := filepath.Glob(filepath.Join(dir, "3240*"+year+".dat"))
	if err != nil {
		return nil, err
	}
	return append(yearly, monthly...), nil
}

// CountYear totals CountRecords over every file of a year.
func CountYear(dir, year string) (days, hours int, err error) {
	files, err := YearFiles(dir, year)
	if err != nil {
		return 0, 0, err
	}
	for _, path := range files {
		d, h, err := countFile(path)
		if err != nil {
			return 0, 0, fmt.Errorf("%s: %w", path, err)
		}
		days += d
		hours += h
	}
	return days, hours, nil
}

func countFile(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	return CountRecords(f)
}
