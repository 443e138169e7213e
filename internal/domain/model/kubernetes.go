package model

// KubernetesContext is the cluster state gathered for one alert target.
// Missing data is represented by nil or empty fields plus a warning.
type KubernetesContext struct {
	Namespace    string       `json:"namespace,omitempty"`
	PodName      string       `json:"pod_name,omitempty"`
	Workload     string       `json:"workload,omitempty"`
	PodStatus    *PodStatus   `json:"pod_status"`
	Events       []PodEvent   `json:"events"`
	PreviousLogs []LogSnippet `json:"previous_logs"`
	Warnings     []string     `json:"warnings"`
}

type PodStatus struct {
	Phase             string            `json:"phase"`
	NodeName          string            `json:"node_name,omitempty"`
	StartTime         string            `json:"start_time,omitempty"`
	Reason            string            `json:"reason,omitempty"`
	Message           string            `json:"message,omitempty"`
	Conditions        []PodCondition    `json:"conditions"`
	ContainerStatuses []ContainerStatus `json:"container_statuses"`
}

type PodCondition struct {
	Type               string `json:"type"`
	Status             string `json:"status"`
	Reason             string `json:"reason,omitempty"`
	Message            string `json:"message,omitempty"`
	LastTransitionTime string `json:"last_transition_time,omitempty"`
}

type ContainerStatus struct {
	Name         string          `json:"name"`
	Ready        bool            `json:"ready"`
	RestartCount int32           `json:"restart_count"`
	State        *ContainerState `json:"state,omitempty"`
	LastState    *ContainerState `json:"last_state,omitempty"`
}

// ContainerState is one of waiting, terminated or running.
type ContainerState struct {
	Type      string `json:"type"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message,omitempty"`
	ExitCode  string `json:"exit_code,omitempty"`
	StartedAt string `json:"started_at,omitempty"`
}

type PodEvent struct {
	Type           string `json:"type,omitempty"`
	Reason         string `json:"reason,omitempty"`
	Message        string `json:"message,omitempty"`
	Count          int32  `json:"count,omitempty"`
	FirstTimestamp string `json:"first_timestamp,omitempty"`
	LastTimestamp  string `json:"last_timestamp,omitempty"`
	InvolvedObject string `json:"involved_object,omitempty"`
}

type LogSnippet struct {
	Container string   `json:"container"`
	Previous  bool     `json:"previous"`
	Lines     []string `json:"logs"`
	Error     string   `json:"error,omitempty"`
}

// LogOptions selects which container logs to read.
type LogOptions struct {
	Container string
	TailLines int64
	Previous  bool
	SinceSecs int64
}

// Clone returns a deep copy.
func (c KubernetesContext) Clone() KubernetesContext {
	out := c
	if c.PodStatus != nil {
		ps := *c.PodStatus
		ps.Conditions = append([]PodCondition(nil), c.PodStatus.Conditions...)
		ps.ContainerStatuses = make([]ContainerStatus, len(c.PodStatus.ContainerStatuses))
		for i, cs := range c.PodStatus.ContainerStatuses {
			if cs.State != nil {
				st := *cs.State
				cs.State = &st
			}
			if cs.LastState != nil {
				st := *cs.LastState
				cs.LastState = &st
			}
			ps.ContainerStatuses[i] = cs
		}
		out.PodStatus = &ps
	}
	if c.Events != nil {
		out.Events = append([]PodEvent{}, c.Events...)
	}
	if c.PreviousLogs != nil {
		out.PreviousLogs = make([]LogSnippet, len(c.PreviousLogs))
		for i, s := range c.PreviousLogs {
			s.Lines = append([]string(nil), s.Lines...)
			out.PreviousLogs[i] = s
		}
	}
	if c.Warnings != nil {
		out.Warnings = append([]string{}, c.Warnings...)
	}
	return out
}

// WithWarning returns a copy with an extra warning appended.
func (c KubernetesContext) WithWarning(w string) KubernetesContext {
	warnings := make([]string, len(c.Warnings), len(c.Warnings)+1)
	copy(warnings, c.Warnings)
	c.Warnings = append(warnings, w)
	return c
}

// ToMap renders the context as a JSON-shaped map.
func (c KubernetesContext) ToMap() map[string]any {
	return toMap(c)
}

// CompactMap is the minimal projection used when the full context does not
// fit a prompt budget.
func (c KubernetesContext) CompactMap() map[string]any {
	out := map[string]any{
		"namespace": c.Namespace,
		"pod_name":  c.PodName,
		"warnings":  append([]string{}, c.Warnings...),
	}
	if c.Workload != "" {
		out["workload"] = c.Workload
	}
	if c.PodStatus != nil {
		out["pod_phase"] = c.PodStatus.Phase
		if c.PodStatus.Reason != "" {
			out["pod_reason"] = c.PodStatus.Reason
		}
		if c.PodStatus.Message != "" {
			out["pod_message"] = c.PodStatus.Message
		}
	}
	return out
}

// ToMap renders the event as a JSON-shaped map.
func (e PodEvent) ToMap() map[string]any {
	return toMap(e)
}

// ToMap renders the snippet as a JSON-shaped map.
func (s LogSnippet) ToMap() map[string]any {
	return toMap(s)
}
