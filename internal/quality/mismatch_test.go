package quality

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lox/precipqc/internal/models"
)

func hourly(station string, day, hour int, flag1, flag2 string) models.HourlyRecord {
	return models.HourlyRecord{Station: station, ReadDate: day, ReadHour: hour, Flag1: flag1, Flag2: flag2}
}

func daily(station string, day int, flag1 string) models.DailyRecord {
	return models.DailyRecord{Station: station, ReadDate: day, Flag1: flag1}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name   string
		daily  []models.DailyRecord
		hourly []models.HourlyRecord
		want   []Mismatch
	}{
		{
			name:   "simple flag without daily error",
			daily:  []models.DailyRecord{daily("A1", 10, " ")},
			hourly: []models.HourlyRecord{hourly("A1", 10, 300, "[", " "), hourly("A1", 10, 500, "]", " ")},
			want:   []Mismatch{{"A1", 10, ReasonSimple}},
		},
		{
			name:   "Q flag without daily error",
			hourly: []models.HourlyRecord{hourly("A1", 10, 300, " ", "q")},
			want:   []Mismatch{{"A1", 10, ReasonSimple}},
		},
		{
			name:   "simple flag already covered by daily error",
			daily:  []models.DailyRecord{daily("A1", 10, "I")},
			hourly: []models.HourlyRecord{hourly("A1", 10, 300, "{", " ")},
			want:   nil,
		},
		{
			name:   "single end marker is odd",
			hourly: []models.HourlyRecord{hourly("A1", 11, 400, "A", " ")},
			want:   []Mismatch{{"A1", 11, ReasonOdd}},
		},
		{
			name:   "balanced day starting with a start marker",
			hourly: []models.HourlyRecord{hourly("A1", 12, 100, "a", " "), hourly("A1", 12, 500, "A", " ")},
			want:   nil,
		},
		{
			name: "balanced day opening inside an accumulation",
			hourly: []models.HourlyRecord{
				hourly("A1", 13, 200, "A", " "),
				hourly("A1", 13, 2200, "a", " "),
			},
			want: []Mismatch{{"A1", 13, ReasonEven}},
		},
		{
			name: "order of input does not matter for first marker",
			hourly: []models.HourlyRecord{
				hourly("A1", 13, 2200, "a", " "),
				hourly("A1", 13, 200, "A", " "),
			},
			want: []Mismatch{{"A1", 13, ReasonEven}},
		},
		{
			name:  "accumulation days covered by daily error",
			daily: []models.DailyRecord{daily("A1", 11, "P"), daily("A1", 13, "I")},
			hourly: []models.HourlyRecord{
				hourly("A1", 11, 400, "A", " "),
				hourly("A1", 13, 200, "A", " "),
				hourly("A1", 13, 2200, "a", " "),
			},
			want: nil,
		},
		{
			name: "day qualifying under two rules appears twice",
			hourly: []models.HourlyRecord{
				hourly("B2", 20, 100, "A", " "),
				hourly("B2", 20, 900, " ", "Q"),
			},
			want: []Mismatch{{"B2", 20, ReasonSimple}, {"B2", 20, ReasonOdd}},
		},
		{
			name: "results ordered by station then day",
			hourly: []models.HourlyRecord{
				hourly("B2", 5, 100, " ", "Q"),
				hourly("A1", 9, 100, "A", " "),
				hourly("A1", 3, 100, "}", " "),
			},
			want: []Mismatch{{"A1", 3, ReasonSimple}, {"A1", 9, ReasonOdd}, {"B2", 5, ReasonSimple}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(BuildErrorDaySets(tt.daily, tt.hourly))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Detect() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDetect_IdempotentAfterForcing(t *testing.T) {
	dailyRecs := []models.DailyRecord{
		daily("A1", 10, " "),
		daily("A1", 11, " "),
		daily("A1", 12, "I"),
	}
	hourlyRecs := []models.HourlyRecord{
		hourly("A1", 10, 100, " ", "Q"),
		hourly("A1", 11, 100, "A", " "),
		hourly("A1", 12, 100, "[", " "),
	}

	first := Detect(BuildErrorDaySets(dailyRecs, hourlyRecs))
	if len(first) != 2 {
		t.Fatalf("first run found %d mismatches, want 2", len(first))
	}

	forced := make(map[DayKey]bool)
	for _, k := range MismatchDays(first) {
		forced[k] = true
	}
	for i := range dailyRecs {
		if forced[DayKey{dailyRecs[i].Station, dailyRecs[i].ReadDate}] {
			dailyRecs[i].Flag1 = FlagDailyPartial
		}
	}

	if second := Detect(BuildErrorDaySets(dailyRecs, hourlyRecs)); len(second) != 0 {
		t.Errorf("second run found %v, want none", second)
	}
}

func TestMismatchDays(t *testing.T) {
	ms := []Mismatch{
		{"B2", 20, ReasonSimple},
		{"A1", 3, ReasonOdd},
		{"B2", 20, ReasonOdd},
	}
	want := []DayKey{{"A1", 3}, {"B2", 20}}
	if diff := cmp.Diff(want, MismatchDays(ms)); diff != "" {
		t.Errorf("MismatchDays() mismatch (-want +got):\n%s", diff)
	}
}

func TestAccumDay_OpensWithEnd(t *testing.T) {
	s := NewErrorDaySets()
	s.AddHourly("A1", 1, 500, "a", " ")
	s.AddHourly("A1", 1, 300, "A", " ")
	s.AddHourly("A1", 1, 900, "A", " ")

	d := s.Accum[DayKey{"A1", 1}]
	if d.Count != 3 {
		t.Errorf("Count = %d, want 3", d.Count)
	}
	if !d.OpensWithEnd() {
		t.Errorf("OpensWithEnd() = false, want true (first=%q at %d)", d.FirstFlag, d.FirstHour)
	}
}
