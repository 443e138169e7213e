package prompt

// Capability gates a tool on an optional backend.
type Capability string

const (
	CapabilityKubernetes Capability = "kubernetes"
	CapabilityPrometheus Capability = "prometheus"
	CapabilityTempo      Capability = "tempo"
)

// ToolInfo is the one-line description of a tool shown in prompts.
type ToolInfo struct {
	Name        string
	Description string
	Capability  Capability
}

// Catalog lists every tool the agent may be given, in prompt order.
var Catalog = []ToolInfo{
	{"get_pod_status", "phase, conditions and container states of a pod", CapabilityKubernetes},
	{"get_pod_spec", "containers, images, resources and probes of a pod", CapabilityKubernetes},
	{"list_pod_events", "recent events of a pod", CapabilityKubernetes},
	{"list_namespace_events", "recent events in a namespace", CapabilityKubernetes},
	{"list_cluster_events", "recent warning events across the cluster", CapabilityKubernetes},
	{"get_previous_pod_logs", "logs of the previous container instance", CapabilityKubernetes},
	{"get_pod_logs", "current container logs with optional tail and since window", CapabilityKubernetes},
	{"get_workload_status", "status of the Deployment, StatefulSet, DaemonSet or Job owning a pod", CapabilityKubernetes},
	{"get_node_status", "conditions, capacity and allocatable resources of a node", CapabilityKubernetes},
	{"get_pod_metrics", "current CPU and memory usage of a pod from metrics-server", CapabilityKubernetes},
	{"get_node_metrics", "current CPU and memory usage of a node from metrics-server", CapabilityKubernetes},
	{"get_manifest", "manifest of any resource with status and managed fields removed", CapabilityKubernetes},
	{"list_manifests", "manifests of a resource type filtered by label selector", CapabilityKubernetes},
	{"discover_prometheus", "Prometheus endpoint in use", CapabilityPrometheus},
	{"list_prometheus_metrics", "metric names, optionally filtered by a regular expression", CapabilityPrometheus},
	{"query_prometheus", "instant PromQL query", CapabilityPrometheus},
	{"build_traceql_query", "compose a TraceQL query from service, span and status filters", CapabilityTempo},
	{"search_tempo_traces", "search traces with TraceQL in a time window", CapabilityTempo},
	{"get_tempo_trace", "fetch a trace by id", CapabilityTempo},
}

// Tools returns the catalog entries whose capability is enabled.
// Kubernetes tools are always listed.
func Tools(prometheusEnabled, tempoEnabled bool) []ToolInfo {
	out := make([]ToolInfo, 0, len(Catalog))
	for _, t := range Catalog {
		switch t.Capability {
		case CapabilityPrometheus:
			if !prometheusEnabled {
				continue
			}
		case CapabilityTempo:
			if !tempoEnabled {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}
