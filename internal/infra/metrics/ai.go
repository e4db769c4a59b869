package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiAttemptsTotal,
		aiTokensIn,
		aiTokensOut,
		aiCallsLatencyMs,
		aiPoolExhausted,
	)
}

var (
	aiAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_call_attempts_total",
			Help: "Generation call attempts per model, labeled by outcome.",
		},
		[]string{"model", "outcome"}, // 'success', 'retryable', 'fatal'
	)

	aiTokensIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_in",
			Help: "Sum of prompt (input) tokens per model.",
		},
		[]string{"model"},
	)

	aiTokensOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_out",
			Help: "Sum of completion (output) tokens per model.",
		},
		[]string{"model"},
	)

	aiCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_calls_latency_ms",
			Help:    "Generation call latency distribution in milliseconds.",
			Buckets: []float64{50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 30000},
		},
		[]string{"model", "success"},
	)

	aiPoolExhausted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ai_credential_pool_exhausted_total",
			Help: "Count of jobs failed because every credential was cooling down.",
		},
	)
)

func IncCallAttempt(model, outcome string) {
	aiAttemptsTotal.WithLabelValues(norm(model), norm(outcome)).Inc()
}

func IncPoolExhausted() { aiPoolExhausted.Inc() }

func ObserveCall(model string, tokensIn, tokensOut, latencyMs int, success bool) {
	aiTokensIn.WithLabelValues(norm(model)).Add(float64(tokensIn))
	aiTokensOut.WithLabelValues(norm(model)).Add(float64(tokensOut))
	aiCallsLatencyMs.WithLabelValues(norm(model), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}
