package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kube-rca/agent/internal/domain/model"
	"github.com/kube-rca/agent/internal/domain/port/outbound"
	"github.com/kube-rca/agent/internal/domain/prompt"
	"github.com/kube-rca/agent/internal/domain/response"
	"github.com/kube-rca/agent/internal/metrics"
)

// SummarizeIncident produces the final title, summary and detail of a
// resolved incident from the analyses of its alerts.
func (s *AnalysisService) SummarizeIncident(ctx context.Context, req model.IncidentSummaryRequest) (model.IncidentSummary, error) {
	const op = "summarize"
	key := IncidentSessionKey(req.IncidentID)

	if !s.EngineEnabled() {
		metrics.RecordRequest(op, outcomeFallback)
		return s.fallbackIncident(req, reasonNotConfigured), nil
	}

	text, err := s.prompts.IncidentPrompt(prompt.IncidentInput{
		Request:   req,
		Summaries: s.summaries.Recent(ctx, key),
	})
	if err != nil {
		s.logger.Error("building incident prompt failed", "session", key, "error", err)
		metrics.RecordRequest(op, outcomeFallback)
		return s.fallbackIncident(req, "analysis failed: "+err.Error()), nil
	}

	reply, err := s.invoke(ctx, op, key, text)
	if err != nil {
		s.logger.Error("incident summary failed", "session", key, "incident_id", req.IncidentID, "error", err)
		metrics.RecordRequest(op, outcomeFallback)
		return s.fallbackIncident(req, "analysis failed: "+err.Error()), nil
	}

	parsed := response.ParseIncidentSummary(reply, s.incidentTitle(req))
	out := model.IncidentSummary{
		Title:   s.deps.Masker.MaskText(parsed.Title),
		Summary: s.deps.Masker.MaskText(parsed.Summary),
		Detail:  s.deps.Masker.MaskText(parsed.Detail),
	}
	s.summaries.Record(ctx, key, out.Summary)
	s.notifyIncident(ctx, req, out)

	metrics.RecordRequest(op, outcomeOK)
	return out, nil
}

func (s *AnalysisService) incidentTitle(req model.IncidentSummaryRequest) string {
	if title := strings.TrimSpace(req.Title); title != "" {
		return title
	}
	if id := strings.TrimSpace(req.IncidentID); id != "" {
		return "Incident " + id
	}
	return "Incident"
}

// fallbackIncident lists what is already known about the incident when the
// engine cannot summarize it.
func (s *AnalysisService) fallbackIncident(req model.IncidentSummaryRequest, reason string) model.IncidentSummary {
	var lines []string
	if sum := strings.TrimSpace(req.AnalysisSummary); sum != "" {
		lines = append(lines, sum, "")
	}
	for _, a := range req.Alerts {
		name := strings.TrimSpace(a.AlertName)
		if name == "" {
			name = "alert"
		}
		summary := strings.TrimSpace(a.AnalysisSummary)
		if summary == "" {
			summary = "no analysis available"
		}
		line := fmt.Sprintf("- %s", name)
		if a.Namespace != "" {
			line += fmt.Sprintf(" (%s)", a.Namespace)
		}
		lines = append(lines, line+": "+summary)
	}
	if len(lines) == 0 {
		lines = append(lines, "no alert analyses available")
	}

	out := model.IncidentSummary{
		Title:    s.deps.Masker.MaskText(s.incidentTitle(req)),
		Summary:  s.deps.Masker.MaskText("analysis engine unavailable: " + reason),
		Detail:   s.deps.Masker.MaskText(strings.TrimSpace(strings.Join(lines, "\n"))),
		Fallback: true,
	}
	return out
}

func (s *AnalysisService) notifyIncident(ctx context.Context, req model.IncidentSummaryRequest, out model.IncidentSummary) {
	if s.deps.Notifier == nil || strings.TrimSpace(req.ThreadTS) == "" {
		return
	}
	err := s.deps.Notifier.NotifyIncidentSummary(ctx, outbound.IncidentNotification{
		IncidentID: req.IncidentID,
		ThreadTS:   req.ThreadTS,
		Channel:    s.cfg.NotifyChannel,
		Title:      out.Title,
		Summary:    out.Summary,
		Fallback:   out.Fallback,
	})
	s.recordNotification("incident", err)
}
