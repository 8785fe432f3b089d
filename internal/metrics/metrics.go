// Package metrics provides Prometheus metrics for the report ingestion and
// summary refresh pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReportsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botwatch_reports_ingested_total",
			Help: "Total number of raw report entries processed, by result",
		},
		[]string{"result"},
	)
	RefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botwatch_summary_refreshes_total",
			Help: "Total number of summary refresh attempts, by outcome",
		},
		[]string{"outcome"},
	)
	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "botwatch_summary_refresh_duration_seconds",
			Help:    "Summary refresh duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
	AlertsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botwatch_alerts_dispatched_total",
			Help: "Total number of alerts delivered, by audience",
		},
		[]string{"audience"},
	)
	AlertsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botwatch_alerts_failed_total",
			Help: "Total number of alert deliveries that failed, by audience",
		},
		[]string{"audience"},
	)
	RefreshQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "botwatch_refresh_queue_depth",
			Help: "Current number of pending refresh jobs",
		},
	)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botwatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "botwatch_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func RecordReportCreated() {
	ReportsIngested.WithLabelValues("created").Inc()
}

func RecordReportSkipped() {
	ReportsIngested.WithLabelValues("skipped").Inc()
}

func RecordReportRejected() {
	ReportsIngested.WithLabelValues("rejected").Inc()
}

func RecordRefresh(outcome string, duration time.Duration) {
	RefreshesTotal.WithLabelValues(outcome).Inc()
	RefreshDuration.Observe(duration.Seconds())
}

func RecordRefreshFailed() {
	RefreshesTotal.WithLabelValues("failed").Inc()
}

func RecordAlertDispatched(audience string) {
	AlertsDispatched.WithLabelValues(audience).Inc()
}

func RecordAlertFailed(audience string) {
	AlertsFailed.WithLabelValues(audience).Inc()
}

func UpdateRefreshQueueDepth(depth int) {
	RefreshQueueDepth.Set(float64(depth))
}

func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
