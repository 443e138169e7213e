package tools

import (
	"context"

	"github.com/kube-rca/agent/internal/adapter/outbound/tempo"
	"github.com/kube-rca/agent/internal/domain/port/outbound"
)

// PrometheusTools wraps a MetricsBackend.
func PrometheusTools(backend outbound.MetricsBackend) []Tool {
	return []Tool{
		{Name: "discover_prometheus", Handler: func(context.Context, Args) (any, error) {
			return backend.DescribeEndpoint(), nil
		}},
		{
			Name:   "list_prometheus_metrics",
			Params: []Param{{Name: "match", Type: "string", Description: "regular expression such as kube_pod.* or container_.*"}},
			Handler: func(ctx context.Context, a Args) (any, error) {
				return backend.ListMetrics(ctx, a.String("match")), nil
			},
		},
		{
			Name: "query_prometheus",
			Params: []Param{
				{Name: "query", Type: "string", Description: "PromQL expression", Required: true},
				{Name: "time", Type: "string", Description: "evaluation time as RFC3339 or unix seconds; now when empty"},
			},
			Handler: func(ctx context.Context, a Args) (any, error) {
				return backend.Query(ctx, a.String("query"), a.String("time")), nil
			},
		},
	}
}

// TempoTools wraps a TraceBackend.
func TempoTools(backend outbound.TraceBackend) []Tool {
	return []Tool{
		{
			Name: "build_traceql_query",
			Params: []Param{
				{Name: "service_name", Type: "string", Description: "resource.service.name"},
				{Name: "namespace", Type: "string", Description: "resource.k8s.namespace.name"},
				{Name: "span_name", Type: "string", Description: "span name"},
				{Name: "status", Type: "string", Description: "error, ok or unset"},
			},
			Handler: func(_ context.Context, a Args) (any, error) {
				q, err := tempo.BuildTraceQL(tempo.TraceFilter{
					ServiceName: a.String("service_name"),
					Namespace:   a.String("namespace"),
					SpanName:    a.String("span_name"),
					Status:      a.String("status"),
				})
				if err != nil {
					return nil, err
				}
				return map[string]any{"query": q}, nil
			},
		},
		{
			Name: "search_tempo_traces",
			Params: []Param{
				{Name: "query", Type: "string", Description: "TraceQL query", Required: true},
				{Name: "start", Type: "string", Description: "window start as RFC3339 or unix seconds", Required: true},
				{Name: "end", Type: "string", Description: "window end as RFC3339 or unix seconds", Required: true},
				{Name: "limit", Type: "integer", Description: "maximum traces, default 5"},
			},
			Handler: func(ctx context.Context, a Args) (any, error) {
				return backend.SearchTraces(ctx, outbound.TraceSearch{
					Query: a.String("query"),
					Start: a.String("start"),
					End:   a.String("end"),
					Limit: int(a.Int("limit")),
				}), nil
			},
		},
		{
			Name:   "get_tempo_trace",
			Params: []Param{{Name: "trace_id", Type: "string", Description: "trace id", Required: true}},
			Handler: func(ctx context.Context, a Args) (any, error) {
				return backend.GetTrace(ctx, a.String("trace_id")), nil
			},
		},
	}
}

// Build assembles the tool set for the enabled backends. Kubernetes tools
// are always present; a nil or disabled backend contributes nothing.
func Build(reader outbound.ClusterReader, prom outbound.MetricsBackend, traces outbound.TraceBackend) []Tool {
	out := KubernetesTools(reader)
	if prom != nil && prom.Enabled() {
		out = append(out, PrometheusTools(prom)...)
	}
	if traces != nil && traces.Enabled() {
		out = append(out, TempoTools(traces)...)
	}
	return out
}
