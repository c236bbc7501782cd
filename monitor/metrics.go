// Package monitor holds the Prometheus instrumentation for the relay path.
// Collectors are registered at init via promauto; the /metrics endpoint is
// wired in the router behind admin auth.
package monitor

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	completionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_completions_total",
		Help: "Chat completion requests by provider and outcome code.",
	}, []string{"provider", "code"})

	billedMicrosTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_billed_micros_total",
		Help: "Total microdollars debited for LLM usage, by provider and model.",
	}, []string{"provider", "model"})

	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_upstream_duration_seconds",
		Help:    "Wall time of upstream LLM calls.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"provider"})
)

// RecordCompletion counts one finished relay attempt. code is the HTTP status
// returned to the client, or a symbolic value like "network" for transport
// failures.
func RecordCompletion(provider string, statusCode int) {
	completionsTotal.WithLabelValues(provider, strconv.Itoa(statusCode)).Inc()
}

func RecordCompletionFailure(provider string, code string) {
	completionsTotal.WithLabelValues(provider, code).Inc()
}

// RecordBilled accumulates a committed debit.
func RecordBilled(provider string, model string, costMicros int64) {
	billedMicrosTotal.WithLabelValues(provider, model).Add(float64(costMicros))
}

// ObserveUpstream records the duration of one upstream call.
func ObserveUpstream(provider string, elapsed time.Duration) {
	upstreamDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}
