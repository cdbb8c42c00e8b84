// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks proxy HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatassist_proxy_request_duration_seconds",
			Help:    "Proxy HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total proxy HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatassist_proxy_requests_total",
			Help: "Total proxy HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// DispatchTotal counts router dispatches by route and outcome kind.
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatassist_dispatch_total",
			Help: "Total prompt dispatches by route and outcome",
		},
		[]string{"route", "kind"},
	)

	// DispatchDuration tracks the latency of a single dispatch.
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatassist_dispatch_duration_seconds",
			Help:    "Prompt dispatch duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"route"},
	)

	// ProviderCallsTotal counts proxy calls to the provider by endpoint and status.
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatassist_provider_calls_total",
			Help: "Provider calls made by the backend proxy",
		},
		[]string{"endpoint", "kind"},
	)
)

// RecordRequest records metrics for a proxy HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordDispatch records the outcome of a router dispatch. kind is "ok"
// for successes.
func RecordDispatch(route, kind string, duration float64) {
	DispatchTotal.WithLabelValues(route, kind).Inc()
	DispatchDuration.WithLabelValues(route).Observe(duration)
}

// RecordProviderCall records a provider call made by the proxy.
func RecordProviderCall(endpoint, kind string) {
	ProviderCallsTotal.WithLabelValues(endpoint, kind).Inc()
}
