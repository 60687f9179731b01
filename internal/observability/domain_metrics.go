package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askcsv_queries_total",
			Help: "Total number of executed query requests by outcome kind.",
		},
		[]string{"kind"},
	)
	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askcsv_query_duration_seconds",
			Help:    "Statement execution latency against the tabular store.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)
	queryRowsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askcsv_query_rows_returned",
			Help:    "Row counts returned by successful queries.",
			Buckets: []float64{0, 1, 10, 50, 100, 200, 500, 1000},
		},
	)
	ingestFilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askcsv_ingest_files_total",
			Help: "Total number of CSV files seen at ingestion by result.",
		},
		[]string{"result"},
	)
	ingestRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askcsv_ingest_rows_total",
			Help: "Total number of rows inserted into the tabular store.",
		},
	)
	translateRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askcsv_translate_requests_total",
			Help: "Total number of natural language translation requests by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		queriesTotal,
		queryDurationSeconds,
		queryRowsReturned,
		ingestFilesTotal,
		ingestRowsTotal,
		translateRequestsTotal,
	)
}

func ObserveQuery(kind string, rows int, elapsed time.Duration) {
	queriesTotal.WithLabelValues(kind).Inc()
	queryDurationSeconds.Observe(elapsed.Seconds())
	if kind == "ok" {
		queryRowsReturned.Observe(float64(rows))
	}
}

func ObserveIngestFile(result string, rows int) {
	ingestFilesTotal.WithLabelValues(result).Inc()
	if rows > 0 {
		ingestRowsTotal.Add(float64(rows))
	}
}

func ObserveTranslate(result string) {
	translateRequestsTotal.WithLabelValues(result).Inc()
}
