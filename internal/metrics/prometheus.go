package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the scraping and analysis jobs

var (
	// Scrape request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rasviz_http_requests_total",
			Help: "Total number of page fetches by source host",
		},
		[]string{"source", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rasviz_http_request_duration_seconds",
			Help:    "Duration of page fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// Database metrics
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rasviz_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "table", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rasviz_db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	// Page cache metrics
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rasviz_page_cache_hits_total",
			Help: "Total number of page cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rasviz_page_cache_misses_total",
			Help: "Total number of page cache misses",
		},
	)

	// Stage metrics
	StageRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rasviz_stage_runs_total",
			Help: "Total number of pipeline stage runs by outcome",
		},
		[]string{"job", "stage", "status"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rasviz_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{.01, .1, 1, 5, 30, 60, 300, 1800, 3600},
		},
		[]string{"job", "stage"},
	)

	ArtifactRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rasviz_artifact_rows",
			Help: "Rows written to each artifact on its last write",
		},
		[]string{"artifact"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rasviz_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rasviz_system_uptime_seconds",
			Help: "Worker uptime in seconds",
		},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rasviz_runs_total",
			Help: "Total number of job runs by result",
		},
		[]string{"result"},
	)

	LastSuccessfulRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rasviz_last_successful_run_timestamp",
			Help: "Timestamp of the last job run without fatal stages",
		},
	)
)

// RecordHTTPRequest records a page fetch
func RecordHTTPRequest(source, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(source, status).Inc()
	HTTPRequestDuration.WithLabelValues(source).Observe(duration)
}

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table, status string, duration float64) {
	DBQueriesTotal.WithLabelValues(operation, table, status).Inc()
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration)
}

// RecordCacheHit records a page cache hit
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss records a page cache miss
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordStage records one stage outcome
func RecordStage(job, stage, status string, duration float64) {
	StageRunsTotal.WithLabelValues(job, stage, status).Inc()
	StageDuration.WithLabelValues(job, stage).Observe(duration)
}

// RecordArtifact records the row count of a written artifact
func RecordArtifact(artifact string, rows int) {
	ArtifactRows.WithLabelValues(artifact).Set(float64(rows))
}

// RecordRun marks a finished job run
func RecordRun(fatal bool) {
	if fatal {
		RunsTotal.WithLabelValues("fatal").Inc()
		return
	}
	RunsTotal.WithLabelValues("ok").Inc()
	LastSuccessfulRun.SetToCurrentTime()
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
