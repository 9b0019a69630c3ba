// Package observability provides metrics and tracing helpers.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LLM call outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeCanceled = "canceled"
)

var (
	// LLMRequests counts upstream model calls by endpoint and outcome.
	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "project0_llm_requests_total",
		Help: "Total number of LLM requests by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	// LLMStreamChunks counts content chunks relayed from the model.
	LLMStreamChunks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "project0_llm_stream_chunks_total",
		Help: "Total number of streamed content chunks received from the LLM",
	}, []string{"endpoint"})

	// LLMStreamDuration records how long a full upstream stream took.
	LLMStreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "project0_llm_stream_duration_seconds",
		Help:    "Duration of LLM streams in seconds",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160, 300},
	}, []string{"endpoint"})

	// DocumentsParsed counts uploaded documents by kind and outcome.
	DocumentsParsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "project0_documents_parsed_total",
		Help: "Total number of uploaded documents parsed, by kind and outcome",
	}, []string{"kind", "outcome"})

	// GenerationsTotal counts persisted results by kind (mvp, analysis) and engine.
	GenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "project0_generations_total",
		Help: "Total number of persisted generation results",
	}, []string{"kind", "engine"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "project0_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackLLMStream returns a function that records the stream duration and outcome when called.
func TrackLLMStream(endpoint string) func(outcome string) {
	start := time.Now()
	return func(outcome string) {
		LLMStreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		LLMRequests.WithLabelValues(endpoint, outcome).Inc()
	}
}
