package model

import (
	"strings"
	"time"
)

// Alert is a single Alertmanager-style alert as delivered to the agent.
type Alert struct {
	Status       string            `json:"status"`
	Labels       map[string]string `json:"labels"`
	Annotations  map[string]string `json:"annotations"`
	StartsAt     *time.Time        `json:"startsAt,omitempty"`
	EndsAt       *time.Time        `json:"endsAt,omitempty"`
	GeneratorURL string            `json:"generatorURL,omitempty"`
	Fingerprint  string            `json:"fingerprint,omitempty"`
}

// workloadLabelKeys are checked in order for a workload hint.
var workloadLabelKeys = []string{"workload", "deployment", "statefulset", "daemonset", "destination_workload"}

// Label returns the trimmed value of a label, or "".
func (a Alert) Label(key string) string {
	return strings.TrimSpace(a.Labels[key])
}

// Annotation returns the trimmed value of an annotation, or "".
func (a Alert) Annotation(key string) string {
	return strings.TrimSpace(a.Annotations[key])
}

// Namespace returns the namespace label.
func (a Alert) Namespace() string { return a.Label("namespace") }

// PodName returns the pod label.
func (a Alert) PodName() string { return a.Label("pod") }

// Name returns the alertname label.
func (a Alert) Name() string { return a.Label("alertname") }

// Severity returns the severity label.
func (a Alert) Severity() string { return a.Label("severity") }

// WorkloadHint returns the first non-empty workload-like label.
func (a Alert) WorkloadHint() string {
	for _, key := range workloadLabelKeys {
		if v := a.Label(key); v != "" {
			return v
		}
	}
	return ""
}

// ToMap renders the alert as a JSON-shaped map.
func (a Alert) ToMap() map[string]any {
	return toMap(a)
}

// AlertAnalysisRequest asks for a root-cause analysis of one alert.
type AlertAnalysisRequest struct {
	Alert       *Alert `json:"alert"`
	ThreadTS    string `json:"thread_ts"`
	CallbackURL string `json:"callback_url,omitempty"`
	IncidentID  string `json:"incident_id,omitempty"`
}

// ToMap renders the request payload embedded in prompts.
func (r AlertAnalysisRequest) ToMap() map[string]any {
	return toMap(r)
}
