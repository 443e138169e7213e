package tools

import (
	"context"

	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/kube-rca/agent/internal/domain/model"
	"github.com/kube-rca/agent/internal/domain/port/outbound"
)

var (
	paramNamespace = Param{Name: "namespace", Type: "string", Description: "Kubernetes namespace", Required: true}
	paramPodName   = Param{Name: "pod_name", Type: "string", Description: "pod name", Required: true}
	paramNodeName  = Param{Name: "node_name", Type: "string", Description: "node name", Required: true}
)

// KubernetesTools wraps a ClusterReader.
func KubernetesTools(reader outbound.ClusterReader) []Tool {
	podParams := []Param{paramNamespace, paramPodName}

	return []Tool{
		{Name: "get_pod_status", Params: podParams, Handler: func(ctx context.Context, a Args) (any, error) {
			return reader.PodStatus(ctx, a.String("namespace"), a.String("pod_name"))
		}},
		{Name: "get_pod_spec", Params: podParams, Handler: func(ctx context.Context, a Args) (any, error) {
			return reader.PodSpecSummary(ctx, a.String("namespace"), a.String("pod_name"))
		}},
		{Name: "list_pod_events", Params: podParams, Handler: func(ctx context.Context, a Args) (any, error) {
			return reader.PodEvents(ctx, a.String("namespace"), a.String("pod_name"))
		}},
		{Name: "list_namespace_events", Params: []Param{paramNamespace}, Handler: func(ctx context.Context, a Args) (any, error) {
			return reader.NamespaceEvents(ctx, a.String("namespace"))
		}},
		{Name: "list_cluster_events", Handler: func(ctx context.Context, _ Args) (any, error) {
			return reader.ClusterEvents(ctx)
		}},
		{Name: "get_previous_pod_logs", Params: podParams, Handler: func(ctx context.Context, a Args) (any, error) {
			return reader.PreviousLogs(ctx, a.String("namespace"), a.String("pod_name"))
		}},
		{
			Name: "get_pod_logs",
			Params: []Param{
				paramNamespace, paramPodName,
				{Name: "container", Type: "string", Description: "container name; all containers when empty"},
				{Name: "tail_lines", Type: "integer", Description: "number of trailing lines"},
				{Name: "since_seconds", Type: "integer", Description: "only logs newer than this many seconds"},
			},
			Handler: func(ctx context.Context, a Args) (any, error) {
				return reader.PodLogs(ctx, a.String("namespace"), a.String("pod_name"), model.LogOptions{
					Container: a.String("container"),
					TailLines: a.Int("tail_lines"),
					SinceSecs: a.Int("since_seconds"),
				})
			},
		},
		{Name: "get_workload_status", Params: podParams, Handler: func(ctx context.Context, a Args) (any, error) {
			return reader.WorkloadStatus(ctx, a.String("namespace"), a.String("pod_name"))
		}},
		{Name: "get_node_status", Params: []Param{paramNodeName}, Handler: func(ctx context.Context, a Args) (any, error) {
			return reader.NodeStatus(ctx, a.String("node_name"))
		}},
		{Name: "get_pod_metrics", Params: podParams, Handler: func(ctx context.Context, a Args) (any, error) {
			return reader.PodMetrics(ctx, a.String("namespace"), a.String("pod_name"))
		}},
		{Name: "get_node_metrics", Params: []Param{paramNodeName}, Handler: func(ctx context.Context, a Args) (any, error) {
			return reader.NodeMetrics(ctx, a.String("node_name"))
		}},
		{
			Name: "get_manifest",
			Params: []Param{
				{Name: "api_version", Type: "string", Description: "apiVersion such as v1, apps/v1 or networking.istio.io/v1", Required: true},
				{Name: "resource", Type: "string", Description: "plural resource such as pods, services or virtualservices", Required: true},
				{Name: "name", Type: "string", Description: "object name", Required: true},
				{Name: "namespace", Type: "string", Description: "namespace; empty for cluster-scoped resources"},
			},
			Handler: func(ctx context.Context, a Args) (any, error) {
				gv, err := schema.ParseGroupVersion(a.String("api_version"))
				if err != nil {
					return nil, err
				}
				return reader.Manifest(ctx, outbound.ManifestRef{
					Group:     gv.Group,
					Version:   gv.Version,
					Resource:  a.String("resource"),
					Namespace: a.String("namespace"),
					Name:      a.String("name"),
				})
			},
		},
		{
			Name: "list_manifests",
			Params: []Param{
				{Name: "api_version", Type: "string", Description: "apiVersion such as v1 or apps/v1", Required: true},
				{Name: "resource", Type: "string", Description: "plural resource name", Required: true},
				{Name: "namespace", Type: "string", Description: "namespace; empty for all namespaces"},
				{Name: "label_selector", Type: "string", Description: "label selector such as app=reviews"},
				{Name: "limit", Type: "integer", Description: "maximum number of objects"},
			},
			Handler: func(ctx context.Context, a Args) (any, error) {
				gv, err := schema.ParseGroupVersion(a.String("api_version"))
				if err != nil {
					return nil, err
				}
				return reader.ListManifests(ctx, outbound.ManifestQuery{
					Group:         gv.Group,
					Version:       gv.Version,
					Resource:      a.String("resource"),
					Namespace:     a.String("namespace"),
					LabelSelector: a.String("label_selector"),
					Limit:         a.Int("limit"),
				})
			},
		},
	}
}
