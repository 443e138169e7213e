package tools

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kube-rca/agent/internal/adapter/outbound/kubernetes"
	"github.com/kube-rca/agent/internal/domain/model"
	"github.com/kube-rca/agent/internal/domain/port/outbound"
	"github.com/kube-rca/agent/internal/domain/prompt"
	"github.com/kube-rca/agent/internal/masking"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeReader overrides a few ClusterReader calls; the rest report unavailable.
type fakeReader struct {
	kubernetes.UnavailableReader
	lastRef  outbound.ManifestRef
	lastLogs model.LogOptions
}

func (f *fakeReader) PodSpecSummary(_ context.Context, ns, pod string) (map[string]any, error) {
	return map[string]any{"namespace": ns, "pod_name": pod, "env": "DB_PASSWORD=token-123"}, nil
}

func (f *fakeReader) Manifest(_ context.Context, ref outbound.ManifestRef) (map[string]any, error) {
	f.lastRef = ref
	return map[string]any{"kind": "VirtualService"}, nil
}

func (f *fakeReader) PodLogs(_ context.Context, _, _ string, opts model.LogOptions) ([]model.LogSnippet, error) {
	f.lastLogs = opts
	return []model.LogSnippet{{Container: "api", Lines: []string{"ok"}}}, nil
}

type fakeBackend struct{ enabled bool }

func (f fakeBackend) Enabled() bool                    { return f.enabled }
func (f fakeBackend) DescribeEndpoint() map[string]any { return map[string]any{"endpoint": "x"} }
func (f fakeBackend) ListMetrics(context.Context, string) map[string]any {
	return map[string]any{"metrics": []string{}}
}
func (f fakeBackend) Query(context.Context, string, string) map[string]any {
	return map[string]any{"error": "failed to query Prometheus"}
}
func (f fakeBackend) SearchTraces(context.Context, outbound.TraceSearch) map[string]any {
	return map[string]any{"traces": []any{}}
}
func (f fakeBackend) GetTrace(context.Context, string) map[string]any {
	return map[string]any{"trace_id": "abc"}
}

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func catalogNames(infos []prompt.ToolInfo) []string {
	names := make([]string, 0, len(infos))
	for _, i := range infos {
		names = append(names, i.Name)
	}
	return names
}

func TestBuild_MatchesPromptCatalog(t *testing.T) {
	all := NewRegistry(nil, testLogger(), Build(&fakeReader{}, fakeBackend{enabled: true}, fakeBackend{enabled: true})...)
	assert.Equal(t, catalogNames(prompt.Catalog), all.Names())

	k8sOnly := NewRegistry(nil, testLogger(), Build(&fakeReader{}, fakeBackend{}, nil)...)
	assert.Equal(t, catalogNames(prompt.Tools(false, false)), k8sOnly.Names())

	withTempo := NewRegistry(nil, testLogger(), Build(&fakeReader{}, nil, fakeBackend{enabled: true})...)
	assert.Equal(t, catalogNames(prompt.Tools(false, true)), withTempo.Names())
}

func TestDefinitions(t *testing.T) {
	r := NewRegistry(nil, testLogger(), KubernetesTools(&fakeReader{})...)

	var logs Definition
	for _, d := range r.Definitions() {
		if d.Name == "get_pod_logs" {
			logs = d
		}
	}
	require.Equal(t, "get_pod_logs", logs.Name)
	assert.NotEmpty(t, logs.Description)
	assert.Equal(t, []string{"namespace", "pod_name"}, logs.Parameters["required"])
	props := logs.Parameters["properties"].(map[string]any)
	assert.Contains(t, props, "tail_lines")
}

func TestCall_MasksResult(t *testing.T) {
	m, err := masking.New([]string{`token-\d+`})
	require.NoError(t, err)
	r := NewRegistry(m, testLogger(), KubernetesTools(&fakeReader{})...)

	out := r.Call(context.Background(), "get_pod_spec", map[string]any{"namespace": "shop", "pod_name": "api"})

	assert.NotContains(t, out, "token-123")
	assert.Equal(t, "DB_PASSWORD=[MASKED]", decode(t, out)["env"])
}

func TestCall_UnknownTool(t *testing.T) {
	r := NewRegistry(nil, testLogger())

	out := decode(t, r.Call(context.Background(), "kubectl_delete", nil))
	assert.Contains(t, out["warning"], "unknown tool")
	assert.NotContains(t, out, "error")
}

func TestCall_MissingRequiredArgument(t *testing.T) {
	r := NewRegistry(nil, testLogger(), KubernetesTools(&fakeReader{})...)

	out := decode(t, r.Call(context.Background(), "get_pod_status", map[string]any{"namespace": "shop"}))
	assert.Equal(t, "missing required argument: pod_name", out["warning"])
}

func TestCall_HandlerErrorBecomesDescriptor(t *testing.T) {
	r := NewRegistry(nil, testLogger(), KubernetesTools(&fakeReader{})...)

	out := decode(t, r.Call(context.Background(), "get_pod_status", map[string]any{"namespace": "shop", "pod_name": "api"}))
	assert.Equal(t, "kubernetes client is not configured", out["warning"])
}

func TestCall_ManifestParsesAPIVersion(t *testing.T) {
	reader := &fakeReader{}
	r := NewRegistry(nil, testLogger(), KubernetesTools(reader)...)

	r.Call(context.Background(), "get_manifest", map[string]any{
		"api_version": "networking.istio.io/v1",
		"resource":    "virtualservices",
		"name":        "reviews-route",
		"namespace":   "bookinfo",
	})

	assert.Equal(t, outbound.ManifestRef{
		Group: "networking.istio.io", Version: "v1", Resource: "virtualservices",
		Namespace: "bookinfo", Name: "reviews-route",
	}, reader.lastRef)
}

func TestCall_PodLogsNumericArguments(t *testing.T) {
	reader := &fakeReader{}
	r := NewRegistry(nil, testLogger(), KubernetesTools(reader)...)

	r.Call(context.Background(), "get_pod_logs", map[string]any{
		"namespace": "shop", "pod_name": "api", "tail_lines": float64(50), "since_seconds": "300",
	})

	assert.Equal(t, int64(50), reader.lastLogs.TailLines)
	assert.Equal(t, int64(300), reader.lastLogs.SinceSecs)
}

func TestCall_TraceQLBuilder(t *testing.T) {
	r := NewRegistry(nil, testLogger(), TempoTools(fakeBackend{enabled: true})...)

	out := decode(t, r.Call(context.Background(), "build_traceql_query", map[string]any{"service_name": "ratings"}))
	assert.Equal(t, `{ resource.service.name = "ratings" }`, out["query"])
}
