package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BrowserMetrics provides observability for zone browser operations.
//
// Pass nil (or leave the registry uninitialized) to run without metrics
// collection.
type BrowserMetrics interface {
	// RecordOperation records a completed browser operation with its zone
	// name, duration, and outcome.
	RecordOperation(operation, zone string, duration time.Duration, err error)

	// RecordQuotaDenial records an operation refused by a quota check.
	RecordQuotaDenial(zone, dimension string)

	// RecordPermissionDenial records an operation refused by a permission
	// rule.
	RecordPermissionDenial(operation, zone string)

	// RecordPasteSkipped records entries skipped during a subtree paste.
	RecordPasteSkipped(zone string, n int)

	// RecordBytesUploaded records the size of one accepted upload.
	RecordBytesUploaded(zone string, n int64)

	// RecordCleanup records one cleanup pass over expired bookkeeping rows.
	RecordCleanup(kind string, removed int)
}

type browserMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	quotaDenials      *prometheus.CounterVec
	permissionDenials *prometheus.CounterVec
	pasteSkipped      *prometheus.CounterVec
	bytesUploaded     *prometheus.CounterVec
	cleanupRemoved    *prometheus.CounterVec
}

// NewBrowserMetrics creates a Prometheus-backed BrowserMetrics instance, or
// a no-op one when the registry is not initialized.
func NewBrowserMetrics() BrowserMetrics {
	if !IsEnabled() {
		return noopBrowserMetrics{}
	}

	reg := GetRegistry()

	return &browserMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonefs_browser_operations_total",
				Help: "Total number of browser operations by operation, zone, and status",
			},
			[]string{"operation", "zone", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "zonefs_browser_operation_duration_seconds",
				Help: "Duration of browser operations in seconds",
				Buckets: []float64{
					0.001, // 1ms
					0.005, // 5ms
					0.01,  // 10ms
					0.025, // 25ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.25,  // 250ms
					0.5,   // 500ms
					1.0,   // 1s
					2.5,   // 2.5s
				},
			},
			[]string{"operation", "zone"},
		),
		quotaDenials: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonefs_browser_quota_denials_total",
				Help: "Total number of operations refused by quota, by zone and dimension",
			},
			[]string{"zone", "dimension"},
		),
		permissionDenials: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonefs_browser_permission_denials_total",
				Help: "Total number of operations refused by permission rules",
			},
			[]string{"operation", "zone"},
		),
		pasteSkipped: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonefs_browser_paste_skipped_entries_total",
				Help: "Total number of entries skipped during subtree pastes",
			},
			[]string{"zone"},
		),
		bytesUploaded: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonefs_browser_uploaded_bytes_total",
				Help: "Total bytes accepted through uploads, by zone",
			},
			[]string{"zone"},
		),
		cleanupRemoved: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonefs_cleanup_removed_total",
				Help: "Total expired rows removed by cleanup passes, by row kind",
			},
			[]string{"kind"},
		),
	}
}

func (m *browserMetrics) RecordOperation(operation, zone string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.operationsTotal.WithLabelValues(operation, zone, status).Inc()
	m.operationDuration.WithLabelValues(operation, zone).Observe(duration.Seconds())
}

func (m *browserMetrics) RecordQuotaDenial(zone, dimension string) {
	m.quotaDenials.WithLabelValues(zone, dimension).Inc()
}

func (m *browserMetrics) RecordPermissionDenial(operation, zone string) {
	m.permissionDenials.WithLabelValues(operation, zone).Inc()
}

func (m *browserMetrics) RecordPasteSkipped(zone string, n int) {
	m.pasteSkipped.WithLabelValues(zone).Add(float64(n))
}

func (m *browserMetrics) RecordBytesUploaded(zone string, n int64) {
	m.bytesUploaded.WithLabelValues(zone).Add(float64(n))
}

func (m *browserMetrics) RecordCleanup(kind string, removed int) {
	m.cleanupRemoved.WithLabelValues(kind).Add(float64(removed))
}

// noopBrowserMetrics is a no-op implementation with zero overhead.
type noopBrowserMetrics struct{}

func (noopBrowserMetrics) RecordOperation(operation, zone string, duration time.Duration, err error) {
}
func (noopBrowserMetrics) RecordQuotaDenial(zone, dimension string)      {}
func (noopBrowserMetrics) RecordPermissionDenial(operation, zone string) {}
func (noopBrowserMetrics) RecordPasteSkipped(zone string, n int)         {}
func (noopBrowserMetrics) RecordBytesUploaded(zone string, n int64)      {}
func (noopBrowserMetrics) RecordCleanup(kind string, removed int)        {}
