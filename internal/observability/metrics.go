package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting agent loop metrics.
//
// Usage:
//
//	metrics := observability.NewMetrics(nil)
//	metrics.LoopIteration("planner")
//	defer metrics.ToolDuration("read_file").Observe(time.Since(start).Seconds())
type Metrics struct {
	// LoopIterations counts agent loop iterations by the phase that completed.
	// Labels: phase (planner|tool_runner|responder)
	LoopIterations *prometheus.CounterVec

	// LoopDuration measures one full Planner->ToolRunner->Responder iteration.
	LoopDuration prometheus.Histogram

	// ToolCalls counts tool invocations by tool name and outcome.
	// Labels: tool_name, status (success|error)
	ToolCalls *prometheus.CounterVec

	// ToolDurationSeconds measures tool execution time.
	// Labels: tool_name
	ToolDurationSeconds *prometheus.HistogramVec

	// ModelRequests counts Model Client calls by outcome.
	// Labels: status (success|error)
	ModelRequests *prometheus.CounterVec

	// ModelRequestDuration measures Model Client round-trip latency.
	ModelRequestDuration prometheus.Histogram

	// RunsCompleted counts top-level Agent.Run calls by how they ended.
	// Labels: outcome (final_answer|max_loops|error)
	RunsCompleted *prometheus.CounterVec
}

// NewMetrics registers a fresh metric set against reg and returns it.
// If reg is nil, a private prometheus.NewRegistry() is used instead of the
// global default registerer, so multiple Agent instances (or repeated test
// calls) never collide on duplicate metric names.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		LoopIterations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_loop_iterations_total",
			Help: "Agent loop iterations, labeled by the phase that completed.",
		}, []string{"phase"}),
		LoopDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "agent_loop_duration_seconds",
			Help:    "Duration of one Planner->ToolRunner->Responder iteration.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		ToolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_tool_calls_total",
			Help: "Tool invocations, labeled by tool name and outcome.",
		}, []string{"tool_name", "status"}),
		ToolDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agent_tool_duration_seconds",
			Help:    "Tool execution latency.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"tool_name"}),
		ModelRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_model_requests_total",
			Help: "Model Client chat-completion calls, labeled by outcome.",
		}, []string{"status"}),
		ModelRequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "agent_model_request_duration_seconds",
			Help:    "Model Client chat-completion latency.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		RunsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_runs_total",
			Help: "Agent.Run completions, labeled by how the run ended.",
		}, []string{"outcome"}),
	}
}

// LoopIteration records one completed loop phase.
func (m *Metrics) LoopIteration(phase string) {
	m.LoopIterations.WithLabelValues(phase).Inc()
}

// ToolDuration returns the observer for a tool's duration histogram.
func (m *Metrics) ToolDuration(toolName string) prometheus.Observer {
	return m.ToolDurationSeconds.WithLabelValues(toolName)
}

// RecordToolCall records a finished tool invocation.
func (m *Metrics) RecordToolCall(toolName, status string, durationSeconds float64) {
	m.ToolCalls.WithLabelValues(toolName, status).Inc()
	m.ToolDurationSeconds.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordModelRequest records a finished Model Client call.
func (m *Metrics) RecordModelRequest(status string, durationSeconds float64) {
	m.ModelRequests.WithLabelValues(status).Inc()
	m.ModelRequestDuration.Observe(durationSeconds)
}

// RecordRun records how a top-level Agent.Run call ended.
func (m *Metrics) RecordRun(outcome string) {
	m.RunsCompleted.WithLabelValues(outcome).Inc()
}
