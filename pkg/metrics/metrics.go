package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionTests counts connectivity test executions by connection type
	// and result (pass|fail).
	ConnectionTests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connecthub_connection_tests_total",
			Help: "Total number of connection connectivity tests",
		},
		[]string{"connection_type", "result"},
	)

	// TokenRefreshes counts OAuth token refresh attempts by result.
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connecthub_token_refreshes_total",
			Help: "Total number of OAuth token refresh attempts",
		},
		[]string{"result"},
	)

	// HealthSweepDuration measures the duration of a full health sweep pass.
	HealthSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "connecthub_health_sweep_duration_seconds",
			Help:    "Duration of periodic connection health sweeps",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RealtimeClients tracks active realtime stream subscribers.
	RealtimeClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "connecthub_realtime_clients",
			Help: "Number of connected realtime stream clients",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "connecthub_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
