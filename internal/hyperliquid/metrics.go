package hyperliquid

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики клиента. Латентность считается по классам endpoint'ов:
// private (локальная нода) и public (api.hyperliquid.xyz) живут
// в разных порядках величин.
var (
	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "liqmon_api_request_duration_seconds",
		Help:    "Hyperliquid info API request latency by endpoint class",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"endpoint", "result"})
)

func observeRequest(endpoint string, seconds float64, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	apiRequestDuration.WithLabelValues(endpoint, result).Observe(seconds)
}
