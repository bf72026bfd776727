package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "evidex",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	EngineRetrievalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evidex",
			Name:      "engine_retrievals_total",
			Help:      "Total engine retrieval attempts",
		},
		[]string{"engine", "outcome"}, // "ok" / "empty" / "error"
	)

	EngineRetrievalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "evidex",
			Name:      "engine_retrieval_duration_seconds",
			Help:      "Engine retrieval attempt duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"engine"},
	)

	FusionDuplicatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "evidex",
			Name:      "fusion_duplicates_total",
			Help:      "Documents collapsed into a canonical duplicate group",
		},
	)

	FusionDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "evidex",
			Name:      "fusion_dropped_total",
			Help:      "Evidence items dropped below the confidence floor",
		},
	)

	RerankFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "evidex",
			Name:      "rerank_fallbacks_total",
			Help:      "Fusions that fell back to score-order ranking",
		},
	)

	AnswerCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evidex",
			Name:      "answer_cache_total",
			Help:      "Answer cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evidex",
			Name:      "llm_requests_total",
			Help:      "Total LLM API requests",
		},
		[]string{"model", "operation", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "evidex",
			Name:      "llm_request_duration_seconds",
			Help:      "LLM API request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"model", "operation"},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evidex",
			Name:      "llm_tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"model", "operation", "type"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(EngineRetrievalsTotal)
	prometheus.MustRegister(EngineRetrievalDuration)
	prometheus.MustRegister(FusionDuplicatesTotal)
	prometheus.MustRegister(FusionDroppedTotal)
	prometheus.MustRegister(RerankFallbacksTotal)
	prometheus.MustRegister(AnswerCacheTotal)
	prometheus.MustRegister(LLMRequestsTotal)
	prometheus.MustRegister(LLMRequestDuration)
	prometheus.MustRegister(LLMTokensTotal)
	pipelineMetricsRegistered = true
}
