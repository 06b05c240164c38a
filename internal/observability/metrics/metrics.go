package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "livecharge_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	mergeTotal       *prometheus.CounterVec
	mergeLatency     *prometheus.HistogramVec
	resolutionsTotal *prometheus.CounterVec
	insertedTotal    *prometheus.CounterVec

	areaQueryTotal   *prometheus.CounterVec
	areaQueryLatency *prometheus.HistogramVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	authFailures *prometheus.CounterVec

	maintenanceDeleted prometheus.Counter
)

// Init registers service metrics and DB-backed gauges.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total ingest batches by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Ingest batch latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		mergeTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "station_merge_total",
				Help: "Total merged observations by result",
			},
			[]string{"result"},
		)
		mergeLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "station_merge_latency_seconds",
				Help:    "Per-observation merge latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		resolutionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "station_resolutions_total",
				Help: "Station identity resolutions by path",
			},
			[]string{"resolution"},
		)
		insertedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sub_entities_inserted_total",
				Help: "Inserted sub-entity rows by kind",
			},
			[]string{"kind"},
		)

		areaQueryTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "area_query_total",
				Help: "Total area queries by result",
			},
			[]string{"result"},
		)
		areaQueryLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "area_query_latency_seconds",
				Help:    "Area query latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "station_export_total",
				Help: "Total station exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "station_export_latency_seconds",
				Help:    "Station export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		authFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "auth_failures_total",
				Help: "Rejected requests by reason",
			},
			[]string{"reason"},
		)

		maintenanceDeleted = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "duplicate_chargers_deleted_total",
				Help: "Duplicate charger rows removed by maintenance",
			},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			mergeTotal,
			mergeLatency,
			resolutionsTotal,
			insertedTotal,
			areaQueryTotal,
			areaQueryLatency,
			exportTotal,
			exportLatency,
			authFailures,
			maintenanceDeleted,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveIngest records ingest batch duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestError increments ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// ObserveMerge records a single observation merge.
func ObserveMerge(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if mergeTotal != nil {
		mergeTotal.WithLabelValues(result).Inc()
	}
	if mergeLatency != nil {
		mergeLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncResolution counts how a station identity was resolved.
func IncResolution(resolution string) {
	if resolution == "" {
		resolution = "unknown"
	}
	if resolutionsTotal != nil {
		resolutionsTotal.WithLabelValues(resolution).Inc()
	}
}

// AddInserted adds inserted sub-entity rows of one kind.
func AddInserted(kind string, count int) {
	if count <= 0 {
		return
	}
	if insertedTotal != nil {
		insertedTotal.WithLabelValues(kind).Add(float64(count))
	}
}

// ObserveAreaQuery records area query latency and result.
func ObserveAreaQuery(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if areaQueryTotal != nil {
		areaQueryTotal.WithLabelValues(result).Inc()
	}
	if areaQueryLatency != nil {
		areaQueryLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncAuthFailure increments rejected request counter.
func IncAuthFailure(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if authFailures != nil {
		authFailures.WithLabelValues(reason).Inc()
	}
}

// AddDuplicateChargersDeleted counts charger rows removed by maintenance.
func AddDuplicateChargersDeleted(count int64) {
	if count <= 0 {
		return
	}
	if maintenanceDeleted != nil {
		maintenanceDeleted.Add(float64(count))
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
