package outbound

import (
	"context"

	"github.com/kube-rca/agent/internal/domain/model"
)

// ContextCollector gathers the Kubernetes state of an alert target.
// Failures are reported as warnings inside the returned context.
type ContextCollector interface {
	CollectContext(ctx context.Context, namespace, podName, workload string) model.KubernetesContext
}

// ClusterReader exposes the read-only cluster queries offered to the agent.
type ClusterReader interface {
	PodStatus(ctx context.Context, namespace, podName string) (*model.PodStatus, error)
	PodSpecSummary(ctx context.Context, namespace, podName string) (map[string]any, error)
	PodEvents(ctx context.Context, namespace, podName string) ([]model.PodEvent, error)
	NamespaceEvents(ctx context.Context, namespace string) ([]model.PodEvent, error)
	ClusterEvents(ctx context.Context) ([]model.PodEvent, error)
	PreviousLogs(ctx context.Context, namespace, podName string) ([]model.LogSnippet, error)
	PodLogs(ctx context.Context, namespace, podName string, opts model.LogOptions) ([]model.LogSnippet, error)
	WorkloadStatus(ctx context.Context, namespace, podName string) (map[string]any, error)
	NodeStatus(ctx context.Context, nodeName string) (map[string]any, error)
	PodMetrics(ctx context.Context, namespace, podName string) (map[string]any, error)
	NodeMetrics(ctx context.Context, nodeName string) (map[string]any, error)
	Manifest(ctx context.Context, ref ManifestRef) (map[string]any, error)
	ListManifests(ctx context.Context, query ManifestQuery) ([]map[string]any, error)
}

// ManifestRef identifies a single object by group/version/resource.
type ManifestRef struct {
	Group     string
	Version   string
	Resource  string
	Namespace string
	Name      string
}

// ManifestQuery lists objects of one resource type.
type ManifestQuery struct {
	Group         string
	Version       string
	Resource      string
	Namespace     string
	LabelSelector string
	Limit         int64
}
