package metrics

import "github.com/prometheus/client_golang/prometheus"

// RAG pipeline Prometheus metrics.
var (
	PipelineStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragdex",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "RAG pipeline stage duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	PipelineRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "pipeline_requests_total",
			Help:      "Total RAG pipeline requests",
		},
		[]string{"mode", "status"}, // mode: "full" / "fast"
	)

	PipelinePassages = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragdex",
			Name:      "pipeline_passages",
			Help:      "Passage counts at pipeline checkpoints",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 10, 15, 20, 30},
		},
		[]string{"checkpoint"}, // "fused" / "pruned"
	)

	PipelineStageFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "pipeline_stage_fallbacks_total",
			Help:      "Stage failures that degraded to their input instead of erroring",
		},
		[]string{"stage"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers RAG pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(PipelineStageDuration)
	prometheus.MustRegister(PipelineRequestsTotal)
	prometheus.MustRegister(PipelinePassages)
	prometheus.MustRegister(PipelineStageFallbacksTotal)
	pipelineMetricsRegistered = true
}
