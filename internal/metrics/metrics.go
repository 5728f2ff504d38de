// Package metrics registers the gateway's Prometheus metrics. The server
// entry point imports it so registration happens before /metrics is
// mounted.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchTotal counts dispatch outcomes labelled by provider, model,
	// and status ("success", "all_failed", "no_providers").
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aicarousel_dispatch_total",
			Help: "Total dispatch attempts by outcome.",
		},
		[]string{"provider", "model", "status"},
	)

	// DispatchDuration observes time from dispatch start to first valid
	// chunk in seconds.
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aicarousel_dispatch_duration_seconds",
			Help:    "Time to first valid upstream chunk in seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "model"},
	)

	// FallbackAttempts counts (provider, model) attempts that failed and
	// triggered a fallback to the next candidate.
	FallbackAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aicarousel_fallback_attempts_total",
			Help: "Failed upstream attempts that moved dispatch to the next model or provider.",
		},
		[]string{"provider", "model"},
	)

	// TokensOutput counts estimated completion tokens streamed to clients.
	// The estimate is 4 characters per token, matching response usage blocks.
	TokensOutput = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aicarousel_tokens_output_total",
			Help: "Estimated completion tokens streamed to clients.",
		},
		[]string{"provider", "model"},
	)
)
