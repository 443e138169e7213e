package kubernetes

import (
	"context"
	"log/slog"
	"sync"

	corev1 "k8s.io/api/core/v1"

	"github.com/kube-rca/agent/internal/domain/model"
	"github.com/kube-rca/agent/internal/domain/port/outbound"
)

// Collector assembles the Kubernetes context of an alert target. It never
// fails: every problem becomes a warning in the returned context.
type Collector struct {
	reader *Reader
	logger *slog.Logger
}

var _ outbound.ContextCollector = (*Collector)(nil)

// NewCollector creates a Collector. A nil reader means the cluster is not
// reachable and every collection reports so.
func NewCollector(reader *Reader, logger *slog.Logger) *Collector {
	return &Collector{reader: reader, logger: logger}
}

func (c *Collector) CollectContext(ctx context.Context, namespace, podName, workload string) model.KubernetesContext {
	out := model.KubernetesContext{
		Namespace:    namespace,
		PodName:      podName,
		Workload:     workload,
		Events:       []model.PodEvent{},
		PreviousLogs: []model.LogSnippet{},
		Warnings:     []string{},
	}

	if namespace == "" || podName == "" {
		return out.WithWarning("namespace/pod_name missing from alert labels")
	}
	if c.reader == nil {
		return out.WithWarning("kubernetes client is not configured")
	}

	var (
		pod       *corev1.Pod
		podErr    error
		events    []model.PodEvent
		eventsErr error
	)

	// The two reads fail independently; one failing must not cancel the other.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pod, podErr = c.reader.getPod(ctx, namespace, podName)
	}()
	go func() {
		defer wg.Done()
		events, eventsErr = c.reader.PodEvents(ctx, namespace, podName)
	}()
	wg.Wait()

	if podErr != nil {
		c.logger.Warn("failed to read pod", "namespace", namespace, "pod", podName, "error", podErr)
		out = out.WithWarning("failed to read pod status")
	} else {
		out.PodStatus = toPodStatus(pod)
	}

	if eventsErr != nil {
		c.logger.Warn("failed to list events", "namespace", namespace, "pod", podName, "error", eventsErr)
		out = out.WithWarning("failed to list events")
	} else {
		out.Events = events
	}

	if pod != nil {
		snippets, failed := c.reader.previousLogs(ctx, pod)
		out.PreviousLogs = snippets
		for _, name := range failed {
			c.logger.Warn("failed to read previous logs", "namespace", namespace, "pod", podName, "container", name)
			out = out.WithWarning("failed to read previous logs for container " + name)
		}
	}

	return out
}
