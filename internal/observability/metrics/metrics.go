package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cadvault_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cadvault_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	reconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cadvault_reconcile_runs_total",
		Help: "Count of reconciliation passes by trigger and result",
	}, []string{"trigger", "result"})

	reconcileDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cadvault_reconcile_duration_seconds",
		Help:    "Duration of reconciliation passes",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	folderOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cadvault_folder_operations_total",
		Help: "Count of folder lifecycle operations by kind and result",
	}, []string{"operation", "result"})

	managedFolders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cadvault_managed_folders",
		Help: "Number of folder records after the last reconciliation",
	})

	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cadvault_uploads_total",
		Help: "Count of file uploads by result",
	}, []string{"result"})

	decodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cadvault_dxf_decode_failures_total",
		Help: "Count of DXF documents that failed to decode",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveReconcile records a reconciliation pass with its trigger ("worker"
// or "request") and result.
func ObserveReconcile(trigger, result string, duration time.Duration) {
	reconcileRuns.WithLabelValues(trigger, result).Inc()
	reconcileDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveFolderOperation increments the folder operation counter.
func ObserveFolderOperation(operation, result string) {
	folderOperations.WithLabelValues(operation, result).Inc()
}

// SetManagedFolders sets the managed folder gauge.
func SetManagedFolders(count int) {
	if count < 0 {
		count = 0
	}
	managedFolders.Set(float64(count))
}

// ObserveUpload records an upload attempt result.
func ObserveUpload(result string) {
	uploadsTotal.WithLabelValues(result).Inc()
}

// ObserveDecodeFailure counts a failed DXF decode.
func ObserveDecodeFailure() {
	decodeFailures.Inc()
}
