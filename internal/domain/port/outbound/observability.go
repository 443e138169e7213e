package outbound

import "context"

// MetricsBackend answers PromQL queries. Results are JSON-shaped descriptors;
// failures are reported inside the descriptor rather than as errors.
type MetricsBackend interface {
	Enabled() bool
	DescribeEndpoint() map[string]any
	ListMetrics(ctx context.Context, match string) map[string]any
	Query(ctx context.Context, query, at string) map[string]any
}

// TraceSearch narrows a trace search.
type TraceSearch struct {
	Query string
	Start string
	End   string
	Limit int
}

// TraceBackend searches distributed traces.
type TraceBackend interface {
	Enabled() bool
	DescribeEndpoint() map[string]any
	SearchTraces(ctx context.Context, search TraceSearch) map[string]any
	GetTrace(ctx context.Context, traceID string) map[string]any
}
