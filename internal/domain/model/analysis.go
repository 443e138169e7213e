package model

// Analysis quality grades reported with every alert analysis.
const (
	QualityHigh   = "high"
	QualityMedium = "medium"
	QualityLow    = "low"
)

// Artifact types.
const (
	ArtifactK8sEvent = "k8s_event"
	ArtifactK8sLog   = "k8s_log"
)

// Artifact is a piece of evidence attached to an analysis.
type Artifact struct {
	Type    string `json:"type"`
	Summary string `json:"summary"`
	Query   string `json:"query,omitempty"`
	Result  any    `json:"result,omitempty"`
}

// AnalysisResult is the outcome of analyze-alert.
type AnalysisResult struct {
	Analysis     string            `json:"analysis"`
	Summary      string            `json:"analysis_summary"`
	Detail       string            `json:"analysis_detail"`
	Quality      string            `json:"analysis_quality"`
	MissingData  []string          `json:"missing_data"`
	Warnings     []string          `json:"warnings"`
	Capabilities map[string]string `json:"capabilities"`
	Context      map[string]any    `json:"context"`
	Artifacts    []Artifact        `json:"artifacts"`
	// Fallback is true when the text was produced without the engine.
	Fallback bool `json:"-"`
}
