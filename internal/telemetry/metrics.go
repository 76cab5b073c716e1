package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds every service metric; it is served on /metrics.
	Registry = prometheus.NewRegistry()

	completionRequests = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "groqtales_completion_requests_total",
			Help: "Completion API calls, partitioned by model, mode and outcome.",
		},
		[]string{"model", "mode", "outcome"},
	)
	completionDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "groqtales_completion_duration_seconds",
			Help:    "Completion API latency until the last byte.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"model", "mode"},
	)
	tokensUsed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "groqtales_completion_tokens_total",
			Help: "Tokens consumed, partitioned by model, kind (prompt/completion) and whether the count is estimated.",
		},
		[]string{"model", "kind", "estimated"},
	)
	mintsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "groqtales_mints_total",
			Help: "Mint attempts, partitioned by outcome (minted, unresolved, reverted, rpc_error).",
		},
		[]string{"outcome"},
	)
	stageFailures = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "groqtales_pipeline_stage_failures_total",
			Help: "Pipeline failures, partitioned by the stage that failed.",
		},
		[]string{"stage"},
	)
	pipelineRuns = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "groqtales_pipeline_runs_total",
			Help: "Generate-and-mint runs, partitioned by final status.",
		},
		[]string{"status"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveCompletion records one completion call.
func ObserveCompletion(model, mode, outcome string, seconds float64) {
	completionRequests.WithLabelValues(model, mode, outcome).Inc()
	completionDuration.WithLabelValues(model, mode).Observe(seconds)
}

// AddTokens records token usage for a model.
func AddTokens(model string, prompt, completion int, estimated bool) {
	est := "false"
	if estimated {
		est = "true"
	}
	tokensUsed.WithLabelValues(model, "prompt", est).Add(float64(prompt))
	tokensUsed.WithLabelValues(model, "completion", est).Add(float64(completion))
}

// IncMint records a mint attempt outcome.
func IncMint(outcome string) {
	mintsTotal.WithLabelValues(outcome).Inc()
}

// IncStageFailure records a pipeline failure at stage.
func IncStageFailure(stage string) {
	stageFailures.WithLabelValues(stage).Inc()
}

// IncPipelineRun records the final status of a pipeline run.
func IncPipelineRun(status string) {
	pipelineRuns.WithLabelValues(status).Inc()
}
