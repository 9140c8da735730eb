package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FTPDownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "precipqc_ftp_downloads_total",
			Help: "Total archive downloads from the NCDC FTP server",
		},
		[]string{"status"},
	)

	RecordsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "precipqc_records_loaded_total",
			Help: "Total raw records inserted",
		},
		[]string{"table"},
	)

	ParseErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "precipqc_parse_errors_total",
			Help: "Total input lines skipped because they could not be parsed",
		},
		[]string{"source"},
	)

	GroupsAnalyzed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "precipqc_groups_analyzed_total",
			Help: "Total station-periods run through the missing-hours analyzer",
		},
	)

	Diagnostics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "precipqc_diagnostics_total",
			Help: "Total malformed interval sequences seen by the analyzer",
		},
		[]string{"kind"},
	)

	CoverageRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "precipqc_coverage_records_total",
			Help: "Total coverage rows written",
		},
		[]string{"cov_flag"},
	)

	Mismatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "precipqc_flag_mismatches_total",
			Help: "Total hourly/daily error flag mismatches detected",
		},
		[]string{"reason"},
	)

	DailyFlagsForced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "precipqc_daily_flags_forced_total",
			Help: "Total daily records whose flag1 was forced to P",
		},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "precipqc_job_duration_seconds",
			Help:    "Job run duration in seconds",
			Buckets: []float64{0.1, 1, 10, 60, 300, 1800, 3600},
		},
		[]string{"job"},
	)
)
