package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Picture-API Metrics
var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "picture_api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "picture_api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jan",
			Subsystem: "picture_api",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served",
		},
	)

	// Picture mutations by operation (create, update, unrank, delete, bulk_delete)
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "picture_api",
			Name:      "mutations_total",
			Help:      "Total picture mutations",
		},
		[]string{"operation", "status"},
	)

	// Rows moved by ledger shifts
	LedgerShiftedRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "picture_api",
			Name:      "ledger_shifted_rows_total",
			Help:      "Total rows whose position was shifted",
		},
		[]string{"slot", "direction"},
	)

	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "picture_api",
			Name:      "storage_operations_total",
			Help:      "Total blob storage operations",
		},
		[]string{"backend", "operation", "status"},
	)

	StorageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "picture_api",
			Name:      "storage_duration_seconds",
			Help:      "Blob storage operation duration in seconds",
			Buckets:   []float64{0.005, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"backend", "operation"},
	)

	UploadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "picture_api",
			Name:      "upload_bytes_total",
			Help:      "Total bytes uploaded",
		},
		[]string{"content_type"},
	)

	ListCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "picture_api",
			Name:      "list_cache_total",
			Help:      "Listing cache lookups by result",
		},
		[]string{"result"},
	)

	// Rank reassignments a ledger audit planned, per slot, at the last run
	LedgerDrift = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "jan",
			Subsystem: "picture_api",
			Name:      "ledger_drift",
			Help:      "Pictures out of place in the last ledger audit",
		},
		[]string{"slot"},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordMutation records the outcome of a picture mutation
func RecordMutation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	MutationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordLedgerShift records how many rows a single shift statement moved
func RecordLedgerShift(slot, direction string, rows int64) {
	if rows <= 0 {
		return
	}
	LedgerShiftedRowsTotal.WithLabelValues(slot, direction).Add(float64(rows))
}

// RecordStorageOperation records a blob storage call
func RecordStorageOperation(backend, operation string, err error, durationSec float64) {
	status := "success"
	if err != nil {
		status = "error"
	}
	StorageOperationsTotal.WithLabelValues(backend, operation, status).Inc()
	StorageDuration.WithLabelValues(backend, operation).Observe(durationSec)
}

// RecordUpload records the size of a stored file
func RecordUpload(contentType string, bytes int64) {
	UploadBytesTotal.WithLabelValues(contentType).Add(float64(bytes))
}

// RecordListCache records a listing cache lookup: hit, miss or error
func RecordListCache(result string) {
	ListCacheTotal.WithLabelValues(result).Inc()
}

// RecordLedgerAudit stores how many pictures an audit found out of place in a slot
func RecordLedgerAudit(slot string, misplaced int) {
	LedgerDrift.WithLabelValues(slot).Set(float64(misplaced))
}
