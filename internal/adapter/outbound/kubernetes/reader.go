package kubernetes

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/kube-rca/agent/internal/domain/model"
	"github.com/kube-rca/agent/internal/domain/port/outbound"
)

// ErrUnavailable is returned when the backing API client is not configured.
var ErrUnavailable = errors.New("kubernetes client is not configured")

var errMetricsUnavailable = errors.New("metrics-server client is not configured")

// ReaderConfig bounds every API call made by the Reader.
type ReaderConfig struct {
	Timeout      time.Duration
	EventLimit   int64
	LogTailLines int64
}

// Reader provides read-only access to Kubernetes resources.
type Reader struct {
	clientset kubernetes.Interface
	metrics   metricsv.Interface
	dynamic   dynamic.Interface
	cfg       ReaderConfig
}

var _ outbound.ClusterReader = (*Reader)(nil)

// NewReader creates a Reader. Metrics and Dynamic may be nil; the calls that
// need them then fail with an error instead of panicking.
func NewReader(clients Clients, cfg ReaderConfig) *Reader {
	return &Reader{
		clientset: clients.Core,
		metrics:   clients.Metrics,
		dynamic:   clients.Dynamic,
		cfg:       cfg,
	}
}

func (r *Reader) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.cfg.Timeout)
}

// Ping checks that the API server answers.
func (r *Reader) Ping(_ context.Context) error {
	if r.clientset == nil {
		return ErrUnavailable
	}
	if _, err := r.clientset.Discovery().ServerVersion(); err != nil {
		return fmt.Errorf("reaching kubernetes api: %w", err)
	}
	return nil
}

func (r *Reader) getPod(ctx context.Context, namespace, podName string) (*corev1.Pod, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	pod, err := r.clientset.CoreV1().Pods(namespace).Get(ctx, podName, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting pod %s/%s: %w", namespace, podName, err)
	}
	return pod, nil
}

// PodStatus returns phase, conditions and container states of a pod.
func (r *Reader) PodStatus(ctx context.Context, namespace, podName string) (*model.PodStatus, error) {
	pod, err := r.getPod(ctx, namespace, podName)
	if err != nil {
		return nil, err
	}
	return toPodStatus(pod), nil
}

// PodSpecSummary returns containers, images, resources and probes of a pod.
func (r *Reader) PodSpecSummary(ctx context.Context, namespace, podName string) (map[string]any, error) {
	pod, err := r.getPod(ctx, namespace, podName)
	if err != nil {
		return nil, err
	}

	containers := make([]any, 0, len(pod.Spec.Containers))
	for i := range pod.Spec.Containers {
		containers = append(containers, summarizeContainer(&pod.Spec.Containers[i]))
	}
	initContainers := make([]any, 0, len(pod.Spec.InitContainers))
	for i := range pod.Spec.InitContainers {
		initContainers = append(initContainers, summarizeContainer(&pod.Spec.InitContainers[i]))
	}

	return map[string]any{
		"namespace":       pod.Namespace,
		"pod_name":        pod.Name,
		"node_name":       pod.Spec.NodeName,
		"service_account": pod.Spec.ServiceAccountName,
		"restart_policy":  string(pod.Spec.RestartPolicy),
		"containers":      containers,
		"init_containers": initContainers,
	}, nil
}

// PodEvents lists recent events whose involved object is the pod.
func (r *Reader) PodEvents(ctx context.Context, namespace, podName string) ([]model.PodEvent, error) {
	selector := fmt.Sprintf("involvedObject.kind=Pod,involvedObject.name=%s", podName)
	return r.listEvents(ctx, namespace, selector)
}

// NamespaceEvents lists recent events in a namespace.
func (r *Reader) NamespaceEvents(ctx context.Context, namespace string) ([]model.PodEvent, error) {
	return r.listEvents(ctx, namespace, "")
}

// ClusterEvents lists recent warning events across all namespaces.
func (r *Reader) ClusterEvents(ctx context.Context) ([]model.PodEvent, error) {
	return r.listEvents(ctx, metav1.NamespaceAll, "type=Warning")
}

func (r *Reader) listEvents(ctx context.Context, namespace, fieldSelector string) ([]model.PodEvent, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	opts := metav1.ListOptions{FieldSelector: fieldSelector}
	if r.cfg.EventLimit > 0 {
		opts.Limit = r.cfg.EventLimit
	}
	list, err := r.clientset.CoreV1().Events(namespace).List(ctx, opts)
	if err != nil {
		if namespace == "" {
			return nil, fmt.Errorf("listing cluster events: %w", err)
		}
		return nil, fmt.Errorf("listing events in %s: %w", namespace, err)
	}

	events := make([]model.PodEvent, 0, len(list.Items))
	for i := range list.Items {
		events = append(events, toPodEvent(&list.Items[i]))
	}
	return events, nil
}

// PreviousLogs returns the tail of the previous instance of every container.
// A container whose logs cannot be read yields a snippet carrying an error.
func (r *Reader) PreviousLogs(ctx context.Context, namespace, podName string) ([]model.LogSnippet, error) {
	pod, err := r.getPod(ctx, namespace, podName)
	if err != nil {
		return nil, err
	}
	snippets, _ := r.previousLogs(ctx, pod)
	return snippets, nil
}

// previousLogs also returns the names of containers whose logs failed.
func (r *Reader) previousLogs(ctx context.Context, pod *corev1.Pod) ([]model.LogSnippet, []string) {
	snippets := make([]model.LogSnippet, 0, len(pod.Spec.Containers))
	var failed []string
	for _, c := range pod.Spec.Containers {
		lines, err := r.readLogs(ctx, pod.Namespace, pod.Name, &corev1.PodLogOptions{
			Container:  c.Name,
			Previous:   true,
			Timestamps: true,
			TailLines:  positive(r.cfg.LogTailLines),
		})
		if err != nil {
			failed = append(failed, c.Name)
			snippets = append(snippets, model.LogSnippet{
				Container: c.Name,
				Previous:  true,
				Lines:     []string{},
				Error:     "failed to read previous logs",
			})
			continue
		}
		snippets = append(snippets, model.LogSnippet{Container: c.Name, Previous: true, Lines: lines})
	}
	return snippets, failed
}

// PodLogs returns container logs. An empty container selects every container
// of the pod; a zero tail uses the configured default.
func (r *Reader) PodLogs(ctx context.Context, namespace, podName string, opts model.LogOptions) ([]model.LogSnippet, error) {
	containers := []string{opts.Container}
	if opts.Container == "" {
		pod, err := r.getPod(ctx, namespace, podName)
		if err != nil {
			return nil, err
		}
		containers = containers[:0]
		for _, c := range pod.Spec.Containers {
			containers = append(containers, c.Name)
		}
	}

	tail := opts.TailLines
	if tail <= 0 {
		tail = r.cfg.LogTailLines
	}

	snippets := make([]model.LogSnippet, 0, len(containers))
	for _, name := range containers {
		logOpts := &corev1.PodLogOptions{
			Container:  name,
			Previous:   opts.Previous,
			Timestamps: true,
			TailLines:  positive(tail),
		}
		if opts.SinceSecs > 0 {
			since := opts.SinceSecs
			logOpts.SinceSeconds = &since
		}
		lines, err := r.readLogs(ctx, namespace, podName, logOpts)
		snippet := model.LogSnippet{Container: name, Previous: opts.Previous, Lines: lines}
		if err != nil {
			snippet.Lines = []string{}
			snippet.Error = err.Error()
		}
		snippets = append(snippets, snippet)
	}
	return snippets, nil
}

func (r *Reader) readLogs(ctx context.Context, namespace, podName string, opts *corev1.PodLogOptions) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	stream, err := r.clientset.CoreV1().Pods(namespace).GetLogs(podName, opts).Stream(ctx)
	if err != nil {
		return nil, fmt.Errorf("streaming logs for pod %s/%s (%s): %w", namespace, podName, opts.Container, err)
	}
	defer stream.Close()

	return splitLines(stream)
}

// WorkloadStatus resolves the controller that owns a pod and reports its
// rollout status. Pods owned by a ReplicaSet are followed up to their
// Deployment.
func (r *Reader) WorkloadStatus(ctx context.Context, namespace, podName string) (map[string]any, error) {
	pod, err := r.getPod(ctx, namespace, podName)
	if err != nil {
		return nil, err
	}

	owner := metav1.GetControllerOf(pod)
	if owner == nil {
		return map[string]any{
			"kind":      "Pod",
			"name":      pod.Name,
			"namespace": pod.Namespace,
			"warning":   "pod has no controller",
		}, nil
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	apps := r.clientset.AppsV1()

	switch owner.Kind {
	case "ReplicaSet":
		rs, err := apps.ReplicaSets(namespace).Get(ctx, owner.Name, metav1.GetOptions{})
		if err != nil {
			return nil, fmt.Errorf("getting replicaset %s/%s: %w", namespace, owner.Name, err)
		}
		if dep := metav1.GetControllerOf(rs); dep != nil && dep.Kind == "Deployment" {
			d, err := apps.Deployments(namespace).Get(ctx, dep.Name, metav1.GetOptions{})
			if err != nil {
				return nil, fmt.Errorf("getting deployment %s/%s: %w", namespace, dep.Name, err)
			}
			out := workloadBase("Deployment", d.Name, d.Namespace, d.Generation, d.Status.ObservedGeneration)
			out["replicas"] = derefInt32(d.Spec.Replicas)
			out["ready_replicas"] = d.Status.ReadyReplicas
			out["available_replicas"] = d.Status.AvailableReplicas
			out["updated_replicas"] = d.Status.UpdatedReplicas
			out["unavailable_replicas"] = d.Status.UnavailableReplicas
			conds := make([]any, 0, len(d.Status.Conditions))
			for _, c := range d.Status.Conditions {
				conds = append(conds, conditionMap(string(c.Type), string(c.Status), c.Reason, c.Message))
			}
			out["conditions"] = conds
			return out, nil
		}
		out := workloadBase("ReplicaSet", rs.Name, rs.Namespace, rs.Generation, rs.Status.ObservedGeneration)
		out["replicas"] = derefInt32(rs.Spec.Replicas)
		out["ready_replicas"] = rs.Status.ReadyReplicas
		out["available_replicas"] = rs.Status.AvailableReplicas
		return out, nil

	case "StatefulSet":
		s, err := apps.StatefulSets(namespace).Get(ctx, owner.Name, metav1.GetOptions{})
		if err != nil {
			return nil, fmt.Errorf("getting statefulset %s/%s: %w", namespace, owner.Name, err)
		}
		out := workloadBase("StatefulSet", s.Name, s.Namespace, s.Generation, s.Status.ObservedGeneration)
		out["replicas"] = derefInt32(s.Spec.Replicas)
		out["ready_replicas"] = s.Status.ReadyReplicas
		out["current_replicas"] = s.Status.CurrentReplicas
		out["updated_replicas"] = s.Status.UpdatedReplicas
		return out, nil

	case "DaemonSet":
		ds, err := apps.DaemonSets(namespace).Get(ctx, owner.Name, metav1.GetOptions{})
		if err != nil {
			return nil, fmt.Errorf("getting daemonset %s/%s: %w", namespace, owner.Name, err)
		}
		out := workloadBase("DaemonSet", ds.Name, ds.Namespace, ds.Generation, ds.Status.ObservedGeneration)
		out["desired_scheduled"] = ds.Status.DesiredNumberScheduled
		out["current_scheduled"] = ds.Status.CurrentNumberScheduled
		out["ready"] = ds.Status.NumberReady
		out["available"] = ds.Status.NumberAvailable
		out["misscheduled"] = ds.Status.NumberMisscheduled
		return out, nil

	case "Job":
		j, err := r.clientset.BatchV1().Jobs(namespace).Get(ctx, owner.Name, metav1.GetOptions{})
		if err != nil {
			return nil, fmt.Errorf("getting job %s/%s: %w", namespace, owner.Name, err)
		}
		out := workloadBase("Job", j.Name, j.Namespace, j.Generation, 0)
		delete(out, "observed_generation")
		out["active"] = j.Status.Active
		out["succeeded"] = j.Status.Succeeded
		out["failed"] = j.Status.Failed
		conds := make([]any, 0, len(j.Status.Conditions))
		for _, c := range j.Status.Conditions {
			conds = append(conds, conditionMap(string(c.Type), string(c.Status), c.Reason, c.Message))
		}
		out["conditions"] = conds
		return out, nil
	}

	return map[string]any{
		"kind":      owner.Kind,
		"name":      owner.Name,
		"namespace": namespace,
		"warning":   "unsupported controller kind",
	}, nil
}

// NodeStatus returns conditions, capacity and allocatable resources of a node.
func (r *Reader) NodeStatus(ctx context.Context, nodeName string) (map[string]any, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	node, err := r.clientset.CoreV1().Nodes().Get(ctx, nodeName, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting node %s: %w", nodeName, err)
	}

	conds := make([]any, 0, len(node.Status.Conditions))
	for _, c := range node.Status.Conditions {
		conds = append(conds, conditionMap(string(c.Type), string(c.Status), c.Reason, c.Message))
	}
	return map[string]any{
		"name":            node.Name,
		"ready":           isNodeReady(node),
		"unschedulable":   node.Spec.Unschedulable,
		"conditions":      conds,
		"capacity":        quantities(node.Status.Capacity),
		"allocatable":     quantities(node.Status.Allocatable),
		"kubelet_version": node.Status.NodeInfo.KubeletVersion,
		"os_image":        node.Status.NodeInfo.OSImage,
	}, nil
}

// PodMetrics returns per-container CPU and memory usage from metrics-server.
func (r *Reader) PodMetrics(ctx context.Context, namespace, podName string) (map[string]any, error) {
	if r.metrics == nil {
		return nil, errMetricsUnavailable
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	pm, err := r.metrics.MetricsV1beta1().PodMetricses(namespace).Get(ctx, podName, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting pod metrics %s/%s: %w", namespace, podName, err)
	}

	var totalCPU, totalMem float64
	containers := make([]any, 0, len(pm.Containers))
	for _, c := range pm.Containers {
		cpu, mem := usage(c.Usage)
		totalCPU += cpu
		totalMem += mem
		containers = append(containers, map[string]any{
			"name":           c.Name,
			"cpu_millicores": cpu,
			"memory_mib":     mem,
		})
	}
	return map[string]any{
		"namespace":  pm.Namespace,
		"pod_name":   pm.Name,
		"timestamp":  isoTime(&pm.Timestamp),
		"window":     pm.Window.Duration.String(),
		"containers": containers,
		"total": map[string]any{
			"cpu_millicores": totalCPU,
			"memory_mib":     totalMem,
		},
	}, nil
}

// NodeMetrics returns CPU and memory usage of a node from metrics-server.
func (r *Reader) NodeMetrics(ctx context.Context, nodeName string) (map[string]any, error) {
	if r.metrics == nil {
		return nil, errMetricsUnavailable
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	nm, err := r.metrics.MetricsV1beta1().NodeMetricses().Get(ctx, nodeName, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting node metrics %s: %w", nodeName, err)
	}
	cpu, mem := usage(nm.Usage)
	return map[string]any{
		"name":           nm.Name,
		"timestamp":      isoTime(&nm.Timestamp),
		"window":         nm.Window.Duration.String(),
		"cpu_millicores": cpu,
		"memory_mib":     mem,
	}, nil
}

// --- formatting helpers ---

func summarizeContainer(c *corev1.Container) map[string]any {
	out := map[string]any{
		"name":  c.Name,
		"image": c.Image,
		"resources": map[string]any{
			"requests": quantities(c.Resources.Requests),
			"limits":   quantities(c.Resources.Limits),
		},
	}
	if p := summarizeProbe(c.LivenessProbe); p != nil {
		out["liveness_probe"] = p
	}
	if p := summarizeProbe(c.ReadinessProbe); p != nil {
		out["readiness_probe"] = p
	}
	if p := summarizeProbe(c.StartupProbe); p != nil {
		out["startup_probe"] = p
	}
	return out
}

func summarizeProbe(p *corev1.Probe) map[string]any {
	if p == nil {
		return nil
	}
	out := map[string]any{
		"initial_delay_seconds": p.InitialDelaySeconds,
		"period_seconds":        p.PeriodSeconds,
		"timeout_seconds":       p.TimeoutSeconds,
		"failure_threshold":     p.FailureThreshold,
	}
	switch {
	case p.HTTPGet != nil:
		out["http_get"] = fmt.Sprintf("%s:%s", p.HTTPGet.Path, p.HTTPGet.Port.String())
	case p.TCPSocket != nil:
		out["tcp_socket"] = p.TCPSocket.Port.String()
	case p.Exec != nil:
		out["exec"] = strings.Join(p.Exec.Command, " ")
	case p.GRPC != nil:
		out["grpc_port"] = p.GRPC.Port
	}
	return out
}

func quantities(list corev1.ResourceList) map[string]any {
	out := make(map[string]any, len(list))
	for name, q := range list {
		out[string(name)] = q.String()
	}
	return out
}

// usage converts a resource list into millicores and MiB.
func usage(list corev1.ResourceList) (cpuMillicores, memoryMiB float64) {
	cpu := list.Cpu()
	mem := list.Memory()
	return cpu.AsApproximateFloat64() * 1000, float64(mem.Value()) / (1024 * 1024)
}

func workloadBase(kind, name, namespace string, generation, observed int64) map[string]any {
	return map[string]any{
		"kind":                kind,
		"name":                name,
		"namespace":           namespace,
		"generation":          generation,
		"observed_generation": observed,
	}
}

func conditionMap(condType, status, reason, message string) map[string]any {
	return map[string]any{
		"type":    condType,
		"status":  status,
		"reason":  reason,
		"message": message,
	}
}

func isNodeReady(node *corev1.Node) bool {
	for _, c := range node.Status.Conditions {
		if c.Type == corev1.NodeReady {
			return c.Status == corev1.ConditionTrue
		}
	}
	return false
}

func splitLines(r io.Reader) ([]string, error) {
	lines := []string{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading log stream: %w", err)
	}
	return lines, nil
}

func positive(n int64) *int64 {
	if n <= 0 {
		return nil
	}
	return &n
}

func derefInt32(p *int32) int32 {
	if p == nil {
		return 0
	}
	return *p
}
