package observability

import (
	"strconv"
	"time"

	"github.com/Rrens/text-to-dashboard/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "texttodashboard_http_requests_total",
			Help: "Total number of HTTP requests by method and status.",
		},
		[]string{"method", "status"},
	)
	dashboardsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "texttodashboard_dashboards_total",
			Help: "Dashboard generation attempts by outcome.",
		},
		[]string{"outcome"},
	)
	chartFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "texttodashboard_chart_fallbacks_total",
			Help: "Charts retried as table after the requested type was rejected.",
		},
		[]string{"requested_type"},
	)
	dashboardReducedPayloadTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "texttodashboard_dashboard_reduced_payload_total",
			Help: "Dashboards retried without layout after the full payload was rejected.",
		},
	)
	pipelineDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "texttodashboard_pipeline_duration_seconds",
			Help:    "Duration of dashboard pipeline stages in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"stage"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		dashboardsTotal,
		chartFallbacksTotal,
		dashboardReducedPayloadTotal,
		pipelineDurationSeconds,
	)
}

// ObserveHTTPRequest counts one served request
func ObserveHTTPRequest(method string, status int) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// ObserveDashboard counts a finished generation; outcome is "success" or "failure"
func ObserveDashboard(outcome string) {
	dashboardsTotal.WithLabelValues(outcome).Inc()
}

// IncrementChartFallback counts a chart retried as table. Types outside the known
// set share the "unknown" label.
func IncrementChartFallback(requested domain.ChartType) {
	label := string(requested)
	if requested.Kind() == domain.KindUnknown {
		label = "unknown"
	}
	chartFallbacksTotal.WithLabelValues(label).Inc()
}

// IncrementDashboardReducedPayload counts a dashboard retried without its layout
func IncrementDashboardReducedPayload() {
	dashboardReducedPayloadTotal.Inc()
}

// ObserveStage records how long a pipeline stage took
func ObserveStage(stage string, elapsed time.Duration) {
	pipelineDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}
