package metrics

import "github.com/prometheus/client_golang/prometheus"

// Provider gateway Prometheus metrics.
var (
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "provider_requests_total",
			Help:      "Total number of provider requests",
		},
		[]string{"vendor", "capability", "status"}, // capability: "chat" / "embed"
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragdex",
			Name:      "provider_request_duration_seconds",
			Help:      "Provider request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"vendor", "capability"},
	)

	ProviderRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "provider_retries_total",
			Help:      "Total number of provider call retries",
		},
		[]string{"vendor"},
	)

	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "provider_tokens_total",
			Help:      "Total tokens consumed across providers",
		},
		[]string{"vendor", "type"}, // type: "prompt" / "completion" / "total"
	)
)

var providerMetricsRegistered bool

// RegisterProviderMetrics registers provider gateway metrics. Must be called once from main.
func RegisterProviderMetrics() {
	if providerMetricsRegistered {
		return
	}
	prometheus.MustRegister(ProviderRequestsTotal)
	prometheus.MustRegister(ProviderRequestDuration)
	prometheus.MustRegister(ProviderRetriesTotal)
	prometheus.MustRegister(ProviderTokensTotal)
	providerMetricsRegistered = true
}
