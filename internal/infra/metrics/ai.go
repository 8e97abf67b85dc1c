package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(aiCallsLatencyMs, aiTokensIn, aiTokensOut) }

var aiCallsLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ai_calls_latency_ms",
		Help:    "AI call latency distribution in milliseconds.",
		Buckets: []float64{50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 30000},
	},
	[]string{"op", "model", "success"},
)

var aiTokensIn = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ai_tokens_in",
		Help: "Sum of prompt (input) tokens per op/model.",
	},
	[]string{"op", "model"},
)

var aiTokensOut = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ai_tokens_out",
		Help: "Sum of completion (output) tokens per op/model.",
	},
	[]string{"op", "model"},
)

// ObserveAICall records one model call. op is 'extract' or 'chat'.
func ObserveAICall(op, model string, latency time.Duration, success bool) {
	aiCallsLatencyMs.WithLabelValues(norm(op), norm(model), strconv.FormatBool(success)).
		Observe(float64(latency / time.Millisecond))
}

func AddAITokens(op, model string, in, out int) {
	aiTokensIn.WithLabelValues(norm(op), norm(model)).Add(float64(in))
	aiTokensOut.WithLabelValues(norm(op), norm(model)).Add(float64(out))
}
