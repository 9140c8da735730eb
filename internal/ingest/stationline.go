package ingest

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lox/precipqc/internal/models"
)

// field returns line[a:b] clipped to the line length.
func field(line string, a, b int) string {
	if a >= len(line) {
		return ""
	}
	if b > len(line) {
		b = len(line)
	}
	return line[a:b]
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(s string) sql.NullFloat64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

func dateOrdinal(s string) (int, error) {
	t, err := time.Parse("20060102", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return models.Ordinal(t), nil
}

// ParseStationLine decodes one line of the MSHR enhanced station history
// file. Blank fields become NULL; begin and end dates are required.
func ParseStationLine(line string) (models.StationHistory, error) {
	begin, err := dateOrdinal(field(line, 32, 40))
	if err != nil {
		return models.StationHistory{}, fmt.Errorf("begin date: %w", err)
	}
	end, err := dateOrdinal(field(line, 41, 49))
	if err != nil {
		return models.StationHistory{}, fmt.Errorf("end date: %w", err)
	}

	return models.StationHistory{
		SourceID:        nullString(field(line, 0, 20)),
		Source:          nullString(field(line, 21, 31)),
		BeginDate:       begin,
		EndDate:         end,
		StationStatus:   nullString(field(line, 50, 70)),
		NCDCStnID:       nullString(field(line, 71, 91)),
		CoopID:          nullString(field(line, 197, 217)),
		GHCNDID:         nullString(field(line, 239, 259)),
		NamePrincipal:   nullString(field(line, 361, 391)),
		NameCoop:        nullString(field(line, 493, 523)),
		NWSClimateDiv:   nullString(field(line, 726, 736)),
		State:           nullString(field(line, 778, 788)),
		County:          nullString(field(line, 789, 839)),
		NWSStateCode:    nullString(field(line, 840, 842)),
		FIPSCountryCode: nullString(field(line, 843, 845)),
		NWSRegion:       nullString(field(line, 947, 977)),
		ElevGround:      nullFloat(field(line, 989, 1029)),
		ElevBarom:       nullFloat(field(line, 1051, 1091)),
		Lat:             nullFloat(field(line, 1299, 1319)),
		Lon:             nullFloat(field(line, 1320, 1340)),
		Relocation:      nullString(field(line, 1352, 1414)),
		UTCOffset:       nullFloat(field(line, 1415, 1431)),
		GHCNMLTID:       nullString(field(line, 1574, 1594)),
		CountyFIPSCode:  nullString(field(line, 1595, 1600)),
		IGRAID:          nullString(field(line, 1754, 1784)),
		HPDID:           nullString(field(line, 1785, 1805)),
	}, nil
}
