package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mbadmin_http_requests_total",
			Help: "Total number of HTTP requests served by the console",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mbadmin_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Backend Metrics
	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mbadmin_backend_requests_total",
			Help: "Total number of calls to the REST backend",
		},
		[]string{"method", "resource", "status"},
	)

	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mbadmin_backend_request_duration_seconds",
			Help:    "REST backend call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "resource"},
	)

	LegacyListShapeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mbadmin_backend_legacy_list_shape_total",
			Help: "Responses that used the bare-array list shape instead of the envelope",
		},
		[]string{"resource"},
	)

	// Screen Metrics
	ScreenMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mbadmin_screen_mutations_total",
			Help: "Mutations submitted from management screens",
		},
		[]string{"screen", "action", "status"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mbadmin_notifications_total",
			Help: "Toast notifications shown to staff",
		},
		[]string{"kind"},
	)

	// Upload Metrics
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mbadmin_uploads_total",
			Help: "Total number of file uploads",
		},
		[]string{"kind", "status"},
	)

	UploadSizeBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mbadmin_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 12), // 16KB to 32MB
		},
		[]string{"kind"},
	)

	// Storage Metrics
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mbadmin_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mbadmin_storage_operation_duration_seconds",
			Help:    "Storage operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"operation"},
	)

	// Viewer Metrics
	ViewerSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mbadmin_viewer_sessions_active",
			Help: "Number of open PDF viewer sessions",
		},
	)

	PageRendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mbadmin_page_renders_total",
			Help: "PDF page renders by outcome",
		},
		[]string{"outcome"},
	)

	PageRenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mbadmin_page_render_duration_seconds",
			Help:    "PDF page rasterization time in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)

	// Cache Metrics
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mbadmin_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mbadmin_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Error Metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mbadmin_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordBackendRequest records a call to the REST backend
func RecordBackendRequest(method, resource, status string, duration float64) {
	BackendRequestsTotal.WithLabelValues(method, resource, status).Inc()
	BackendRequestDuration.WithLabelValues(method, resource).Observe(duration)
}

// RecordLegacyListShape records a bare-array list response
func RecordLegacyListShape(resource string) {
	LegacyListShapeTotal.WithLabelValues(resource).Inc()
}

// RecordMutation records a create/update/delete submitted from a screen
func RecordMutation(screen, action string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	ScreenMutationsTotal.WithLabelValues(screen, action, status).Inc()
}

// RecordNotification records a toast shown to staff
func RecordNotification(kind string) {
	NotificationsTotal.WithLabelValues(kind).Inc()
}

// RecordUpload records a file upload
func RecordUpload(kind, status string, size int64) {
	UploadsTotal.WithLabelValues(kind, status).Inc()
	if size > 0 {
		UploadSizeBytes.WithLabelValues(kind).Observe(float64(size))
	}
}

// RecordStorageOperation records a storage operation
func RecordStorageOperation(operation, status string, duration float64) {
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	StorageOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordPageRender records a PDF page render outcome: applied, discarded or failed
func RecordPageRender(outcome string, duration float64) {
	PageRendersTotal.WithLabelValues(outcome).Inc()
	PageRenderDuration.Observe(duration)
}

// SetViewerSessions updates the open viewer session gauge
func SetViewerSessions(n int) {
	ViewerSessionsActive.Set(float64(n))
}

// RecordCacheAccess records cache hit or miss
func RecordCacheAccess(cacheType string, hit bool) {
	if hit {
		CacheHitsTotal.WithLabelValues(cacheType).Inc()
	} else {
		CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
