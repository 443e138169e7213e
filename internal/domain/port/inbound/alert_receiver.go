package inbound

import (
	"context"
	"net/http"

	"github.com/kube-rca/agent/internal/domain/model"
)

// WebhookParser parses source-specific webhook payloads into alerts.
type WebhookParser interface {
	Source() string
	Parse(ctx context.Context, r *http.Request) ([]model.Alert, error)
	ValidateSignature(r *http.Request, secret string) error
}

// AnalysisPort is the entry point for every inbound adapter.
type AnalysisPort interface {
	AnalyzeAlert(ctx context.Context, req model.AlertAnalysisRequest) (model.AnalysisResult, error)
	SummarizeIncident(ctx context.Context, req model.IncidentSummaryRequest) (model.IncidentSummary, error)
	Chat(ctx context.Context, req model.ChatRequest) (model.ChatReply, error)
}
