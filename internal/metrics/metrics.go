package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "member_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "path", "status"},
	)

	HTTPResponseTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "member_http_response_time_seconds",
			Help:    "Histogram of HTTP response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// BackendCallsTotal counts calls to the Solifin API by endpoint and outcome
	// (ok, network, rejected).
	BackendCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "member_backend_calls_total",
			Help: "Total number of calls to the Solifin backend API",
		},
		[]string{"endpoint", "outcome"},
	)

	BackendCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "member_backend_call_duration_seconds",
			Help:    "Latency of calls to the Solifin backend API",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	RenewalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "member_renewals_total",
			Help: "Renewal submissions by payment method and outcome",
		},
		[]string{"payment_method", "outcome"},
	)
)
