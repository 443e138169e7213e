package kubernetes

import (
	"strconv"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kube-rca/agent/internal/domain/model"
)

func toPodStatus(pod *corev1.Pod) *model.PodStatus {
	status := &model.PodStatus{
		Phase:             string(pod.Status.Phase),
		NodeName:          pod.Spec.NodeName,
		StartTime:         isoTime(pod.Status.StartTime),
		Reason:            pod.Status.Reason,
		Message:           pod.Status.Message,
		Conditions:        make([]model.PodCondition, 0, len(pod.Status.Conditions)),
		ContainerStatuses: make([]model.ContainerStatus, 0, len(pod.Status.ContainerStatuses)),
	}
	for _, c := range pod.Status.Conditions {
		status.Conditions = append(status.Conditions, model.PodCondition{
			Type:               string(c.Type),
			Status:             string(c.Status),
			Reason:             c.Reason,
			Message:            c.Message,
			LastTransitionTime: isoTime(&c.LastTransitionTime),
		})
	}
	for _, cs := range pod.Status.ContainerStatuses {
		status.ContainerStatuses = append(status.ContainerStatuses, model.ContainerStatus{
			Name:         cs.Name,
			Ready:        cs.Ready,
			RestartCount: cs.RestartCount,
			State:        toContainerState(cs.State),
			LastState:    toContainerState(cs.LastTerminationState),
		})
	}
	return status
}

func toContainerState(state corev1.ContainerState) *model.ContainerState {
	switch {
	case state.Waiting != nil:
		return &model.ContainerState{
			Type:    "waiting",
			Reason:  state.Waiting.Reason,
			Message: state.Waiting.Message,
		}
	case state.Terminated != nil:
		return &model.ContainerState{
			Type:     "terminated",
			Reason:   state.Terminated.Reason,
			Message:  state.Terminated.Message,
			ExitCode: strconv.Itoa(int(state.Terminated.ExitCode)),
		}
	case state.Running != nil:
		return &model.ContainerState{
			Type:      "running",
			StartedAt: isoTime(&state.Running.StartedAt),
		}
	}
	return nil
}

func toPodEvent(e *corev1.Event) model.PodEvent {
	last := isoTime(&e.LastTimestamp)
	if last == "" && !e.EventTime.IsZero() {
		last = e.EventTime.UTC().Format(time.RFC3339)
	}
	return model.PodEvent{
		Type:           e.Type,
		Reason:         e.Reason,
		Message:        e.Message,
		Count:          e.Count,
		FirstTimestamp: isoTime(&e.FirstTimestamp),
		LastTimestamp:  last,
		InvolvedObject: e.InvolvedObject.Kind + "/" + e.InvolvedObject.Name,
	}
}

func isoTime(t *metav1.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
