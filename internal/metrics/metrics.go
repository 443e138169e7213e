// Package metrics holds the Prometheus collectors of the agent.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestsTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
	prometheus.CounterOpts{
		Name: "kube_rca_agent_requests_total",
		Help: "Total number of analysis operations by outcome (ok, fallback, error).",
	},
	[]string{"operation", "outcome"},
)

var engineDurationSeconds = promauto.With(prometheus.DefaultRegisterer).NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "kube_rca_agent_engine_duration_seconds",
		Help:    "Duration of analysis engine invocations.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	},
	[]string{"operation"},
)

var promptBudgetStepTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
	prometheus.CounterOpts{
		Name: "kube_rca_agent_prompt_budget_step_total",
		Help: "Number of alert prompts by the reduction step that made them fit the token budget.",
	},
	[]string{"step"},
)

var agentCacheEventsTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
	prometheus.CounterOpts{
		Name: "kube_rca_agent_agent_cache_events_total",
		Help: "Agent cache lookups and evictions by event.",
	},
	[]string{"event"},
)

var toolCallsTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
	prometheus.CounterOpts{
		Name: "kube_rca_agent_tool_calls_total",
		Help: "Tool calls issued by the analysis engine.",
	},
	[]string{"tool", "outcome"},
)

var notificationsTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
	prometheus.CounterOpts{
		Name: "kube_rca_agent_notifications_total",
		Help: "Messaging notifications by kind and outcome.",
	},
	[]string{"kind", "outcome"},
)

// RecordRequest counts one finished operation.
func RecordRequest(operation, outcome string) {
	requestsTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveEngineDuration records how long one engine invocation took.
func ObserveEngineDuration(operation string, d time.Duration) {
	engineDurationSeconds.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordPromptBudgetStep counts which reduction step produced an alert prompt.
func RecordPromptBudgetStep(step string) {
	promptBudgetStepTotal.WithLabelValues(step).Inc()
}

// RecordAgentCacheEvent counts hit, miss, bypass, evict_capacity and evict_ttl.
func RecordAgentCacheEvent(event string) {
	agentCacheEventsTotal.WithLabelValues(event).Inc()
}

// RecordToolCall counts one tool call with outcome ok, warning or unknown.
func RecordToolCall(tool, outcome string) {
	toolCallsTotal.WithLabelValues(tool, outcome).Inc()
}

// RecordNotification counts one notification attempt.
func RecordNotification(kind, outcome string) {
	notificationsTotal.WithLabelValues(kind, outcome).Inc()
}
