package model

// IncidentSummaryRequest asks for the final RCA of a resolved incident.
type IncidentSummaryRequest struct {
	IncidentID      string          `json:"incident_id"`
	Title           string          `json:"title"`
	Severity        string          `json:"severity,omitempty"`
	Status          string          `json:"status,omitempty"`
	FiredAt         string          `json:"fired_at,omitempty"`
	ResolvedAt      string          `json:"resolved_at,omitempty"`
	AnalysisSummary string          `json:"analysis_summary,omitempty"`
	AnalysisDetail  string          `json:"analysis_detail,omitempty"`
	ThreadTS        string          `json:"thread_ts,omitempty"`
	Alerts          []IncidentAlert `json:"alerts"`
}

// IncidentAlert is one alert that belonged to an incident.
type IncidentAlert struct {
	AlertID         string     `json:"alert_id,omitempty"`
	AlertName       string     `json:"alert_name"`
	Severity        string     `json:"severity,omitempty"`
	Status          string     `json:"status,omitempty"`
	Namespace       string     `json:"namespace,omitempty"`
	AnalysisSummary string     `json:"analysis_summary,omitempty"`
	AnalysisDetail  string     `json:"analysis_detail,omitempty"`
	Artifacts       []Artifact `json:"artifacts,omitempty"`
}

// ToMap renders the request payload embedded in prompts.
func (r IncidentSummaryRequest) ToMap() map[string]any {
	return toMap(r)
}

// IncidentSummary is the outcome of summarize-incident.
type IncidentSummary struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Detail  string `json:"detail"`
	// Fallback is true when the text was produced without the engine.
	Fallback bool `json:"-"`
}
