package polymarket

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Request outcome labels.
const (
	ResultSuccess     = "success"
	ResultNotFound    = "not_found"
	ResultRateLimited = "rate_limited"
	ResultServerError = "server_error"
	ResultClientError = "client_error"
	ResultError       = "error"
)

// Metrics holds the upstream-client instrumentation.
type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlight        *prometheus.GaugeVec
	RetryAttempts   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polymarket_requests_total",
			Help: "Upstream requests by endpoint class and outcome.",
		}, []string{"class", "result"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "polymarket_request_duration_seconds",
			Help:    "Upstream request latency by endpoint class.",
			Buckets: prometheus.DefBuckets,
		}, []string{"class"}),
		InFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "polymarket_requests_in_flight",
			Help: "Upstream requests currently in flight.",
		}, []string{"class"}),
		RetryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polymarket_retry_attempts_total",
			Help: "Retry attempts against the upstream API.",
		}, []string{"class"}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.RequestDuration, m.InFlight, m.RetryAttempts)
	}
	return m
}
