package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lox/precipqc/internal/models"
)

// ErrShortLine is returned when a line ends before the blocks its count
// field promises.
var ErrShortLine = errors.New("line shorter than its value count")

const (
	headerLen = 30
	blockLen  = 12
)

// HourBlock is one hourly value of a DSI-3240 record.
type HourBlock struct {
	Hour   int // HHmm
	Amount int
	Flag1  string
	Flag2  string
}

// PrecipLine is one station-day of the DSI-3240 hourly precipitation file.
type PrecipLine struct {
	Station    string
	StateCode  string
	Units      string
	Date       time.Time
	Hours      []HourBlock
	DailyTotal int
	DailyFlag1 string
	DailyFlag2 string
}

// ParsePrecipLine decodes a fixed-width DSI-3240 line. The value count at
// [27:30] includes the trailing daily-total block.
func ParsePrecipLine(line string) (PrecipLine, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) < headerLen {
		return PrecipLine{}, ErrShortLine
	}

	count, err := strconv.Atoi(strings.TrimSpace(line[27:30]))
	if err != nil {
		return PrecipLine{}, fmt.Errorf("value count %q: %w", line[27:30], err)
	}
	if count < 1 {
		return PrecipLine{}, fmt.Errorf("value count %d: must include the daily total", count)
	}

	// Trailing blank flags are often trimmed.
	need := headerLen + count*blockLen
	if len(line) < need-2 {
		return PrecipLine{}, ErrShortLine
	}
	if len(line) < need {
		line += strings.Repeat(" ", need-len(line))
	}

	d := line[17:27]
	date, err := time.Parse("2006-01-02", d[0:4]+"-"+d[4:6]+"-"+d[8:10])
	if err != nil {
		return PrecipLine{}, fmt.Errorf("date %q: %w", d, err)
	}

	pl := PrecipLine{
		Station:   line[3:9],
		StateCode: line[3:5],
		Units:     line[15:17],
		Date:      date,
		Hours:     make([]HourBlock, 0, count-1),
	}

	for i := 0; i < count; i++ {
		start := headerLen + i*blockLen
		block, err := parseBlock(line[start : start+blockLen])
		if err != nil {
			return PrecipLine{}, fmt.Errorf("block %d: %w", i, err)
		}
		if i == count-1 {
			pl.DailyTotal = block.Amount
			pl.DailyFlag1 = block.Flag1
			pl.DailyFlag2 = block.Flag2
			break
		}
		pl.Hours = append(pl.Hours, block)
	}

	return pl, nil
}

func parseBlock(b string) (HourBlock, error) {
	amount, err := strconv.Atoi(strings.TrimSpace(b[4:10]))
	if err != nil {
		return HourBlock{}, fmt.Errorf("amount %q: %w", b[4:10], err)
	}
	// The daily-total block carries "2500" or blanks rather than an hour.
	var hour int
	if h := strings.TrimSpace(b[0:4]); h != "" {
		if hour, err = strconv.Atoi(h); err != nil {
			return HourBlock{}, fmt.Errorf("hour %q: %w", b[0:4], err)
		}
	}
	return HourBlock{Hour: hour, Amount: amount, Flag1: b[10:11], Flag2: b[11:12]}, nil
}

// Records converts the line into the raw table rows, keyed by day ordinal and
// "YYYY-MM" period.
func (pl PrecipLine) Records() ([]models.HourlyRecord, models.DailyRecord) {
	day := models.Ordinal(pl.Date)
	period := models.PeriodOf(pl.Date)

	hourly := make([]models.HourlyRecord, 0, len(pl.Hours))
	for _, h := range pl.Hours {
		hourly = append(hourly, models.HourlyRecord{
			Station:   pl.Station,
			StateCode: pl.StateCode,
			Units:     pl.Units,
			Period:    period,
			ReadDate:  day,
			ReadHour:  h.Hour,
			Amount:    float64(h.Amount),
			Flag1:     h.Flag1,
			Flag2:     h.Flag2,
		})
	}

	daily := models.DailyRecord{
		Station:   pl.Station,
		StateCode: pl.StateCode,
		Units:     pl.Units,
		Period:    period,
		ReadDate:  day,
		Amount:    float64(pl.DailyTotal),
		Flag1:     pl.DailyFlag1,
		Flag2:     pl.DailyFlag2,
	}
	return hourly, daily
}
