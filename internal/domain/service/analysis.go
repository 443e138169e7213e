package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kube-rca/agent/internal/agentcache"
	"github.com/kube-rca/agent/internal/domain/model"
	"github.com/kube-rca/agent/internal/domain/port/inbound"
	"github.com/kube-rca/agent/internal/domain/port/outbound"
	"github.com/kube-rca/agent/internal/domain/prompt"
	"github.com/kube-rca/agent/internal/domain/response"
	"github.com/kube-rca/agent/internal/masking"
	"github.com/kube-rca/agent/internal/metrics"
)

// ErrInvalidRequest marks requests rejected before any work is done.
var ErrInvalidRequest = errors.New("invalid request")

var errEmptyResponse = errors.New(reasonEmptyResponse)

const (
	reasonNotConfigured = "analysis engine not configured"
	reasonEmptyResponse = "empty response from analysis engine"

	outcomeOK       = "ok"
	outcomeFallback = "fallback"
	outcomeError    = "error"
)

// Dependencies groups the collaborators of the analysis service. Agents nil
// runs the service in fallback mode; Collector, Summaries and Notifier are
// optional.
type Dependencies struct {
	Collector outbound.ContextCollector
	Agents    *agentcache.Cache
	Summaries outbound.SummaryStore
	Notifier  outbound.Notifier
	Masker    *masking.Masker
}

// Config tunes prompt size and advertised capabilities.
type Config struct {
	TokenBudget       int
	MaxEvents         int
	MaxLogLines       int
	SummaryMaxItems   int
	KubernetesEnabled bool
	PrometheusEnabled bool
	TempoEnabled      bool
	// NotifyChannel is the Slack channel that owns alert threads.
	NotifyChannel string
}

// AnalysisService implements the analyze, summarize and chat operations.
type AnalysisService struct {
	deps      Dependencies
	cfg       Config
	prompts   *prompt.Builder
	summaries *SummaryHistory
	logger    *slog.Logger
}

var _ inbound.AnalysisPort = (*AnalysisService)(nil)

// NewAnalysisService creates an AnalysisService.
func NewAnalysisService(deps Dependencies, cfg Config, logger *slog.Logger) (*AnalysisService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	builder, err := prompt.NewBuilder(prompt.Config{
		TokenBudget:       cfg.TokenBudget,
		PrometheusEnabled: cfg.PrometheusEnabled,
		TempoEnabled:      cfg.TempoEnabled,
	}, deps.Masker)
	if err != nil {
		return nil, fmt.Errorf("creating prompt builder: %w", err)
	}
	return &AnalysisService{
		deps:      deps,
		cfg:       cfg,
		prompts:   builder,
		summaries: NewSummaryHistory(deps.Summaries, deps.Masker, cfg.SummaryMaxItems, logger),
		logger:    logger,
	}, nil
}

// EngineEnabled reports whether an analysis engine is wired in.
func (s *AnalysisService) EngineEnabled() bool {
	return s.deps.Agents != nil
}

// AnalyzeAlert collects cluster context for the alert target and asks the
// engine for a root-cause analysis. Engine problems produce fallback text;
// only a missing alert is an error.
func (s *AnalysisService) AnalyzeAlert(ctx context.Context, req model.AlertAnalysisRequest) (model.AnalysisResult, error) {
	const op = "analyze"
	if req.Alert == nil {
		metrics.RecordRequest(op, outcomeError)
		return model.AnalysisResult{}, fmt.Errorf("%w: alert is required", ErrInvalidRequest)
	}
	alert := *req.Alert

	kctx := s.collect(ctx, alert)
	trimmed := TrimContext(kctx, s.cfg.MaxEvents, s.cfg.MaxLogLines)

	analysis, fallback := s.runAlertAnalysis(ctx, req, trimmed)

	summary, detail := response.SplitAlertAnalysis(analysis)
	if !fallback {
		s.summaries.Record(ctx, AlertSessionKey(req.IncidentID, alert.Fingerprint, alert.Labels), summary)
	}

	missing := missingData(trimmed)
	result := model.AnalysisResult{
		Analysis:     analysis,
		Summary:      summary,
		Detail:       detail,
		Quality:      quality(fallback, missing),
		MissingData:  missing,
		Warnings:     s.deps.Masker.MaskStrings(trimmed.Warnings),
		Capabilities: s.capabilities(),
		Context:      s.deps.Masker.MaskMap(trimmed.ToMap()),
		Artifacts:    s.artifacts(trimmed),
		Fallback:     fallback,
	}

	s.notifyAnalysis(ctx, req, trimmed, result)

	outcome := outcomeOK
	if fallback {
		outcome = outcomeFallback
	}
	metrics.RecordRequest(op, outcome)
	return result, nil
}

// runAlertAnalysis returns the masked analysis text and whether it is a
// fallback.
func (s *AnalysisService) runAlertAnalysis(ctx context.Context, req model.AlertAnalysisRequest, kctx model.KubernetesContext) (string, bool) {
	alert := *req.Alert
	if !s.EngineEnabled() {
		return s.fallbackAnalysis(alert, kctx, reasonNotConfigured), true
	}

	key := AlertSessionKey(req.IncidentID, alert.Fingerprint, alert.Labels)
	text, step, err := s.prompts.AlertPrompt(prompt.AlertInput{
		Request:   req,
		Context:   kctx,
		Summaries: s.summaries.Recent(ctx, key),
	})
	if err != nil {
		s.logger.Error("building alert prompt failed", "session", key, "error", err)
		return s.fallbackAnalysis(alert, kctx, "analysis failed: "+err.Error()), true
	}
	metrics.RecordPromptBudgetStep(string(step))
	if step != prompt.StepFull {
		s.logger.Info("alert prompt reduced to fit budget", "session", key, "step", step)
	}

	reply, err := s.invoke(ctx, "analyze", key, text)
	if err != nil {
		s.logger.Error("alert analysis failed", "session", key, "alertname", alert.Name(), "error", err)
		return s.fallbackAnalysis(alert, kctx, "analysis failed: "+err.Error()), true
	}
	return reply, false
}

// invoke runs prompt on the cached agent for durableKey and returns the
// masked, trimmed reply. A blank reply is an error.
func (s *AnalysisService) invoke(ctx context.Context, op, durableKey, text string) (string, error) {
	entry, err := s.deps.Agents.GetOrCreate(ctx, durableKey)
	if err != nil {
		return "", err
	}

	start := time.Now()
	reply, err := entry.Invoke(ctx, text, RuntimeSessionID(durableKey))
	metrics.ObserveEngineDuration(op, time.Since(start))
	if err != nil {
		return "", err
	}

	reply = strings.TrimSpace(s.deps.Masker.MaskText(reply))
	if reply == "" {
		return "", errEmptyResponse
	}
	return reply, nil
}

func (s *AnalysisService) collect(ctx context.Context, alert model.Alert) model.KubernetesContext {
	if s.deps.Collector == nil {
		kctx := model.KubernetesContext{
			Namespace: alert.Namespace(),
			PodName:   alert.PodName(),
			Workload:  alert.WorkloadHint(),
		}
		return kctx.WithWarning("kubernetes client is not configured")
	}
	return s.deps.Collector.CollectContext(ctx, alert.Namespace(), alert.PodName(), alert.WorkloadHint())
}

// fallbackAnalysis renders the deterministic text returned when the engine
// cannot answer.
func (s *AnalysisService) fallbackAnalysis(alert model.Alert, kctx model.KubernetesContext, reason string) string {
	lines := []string{
		"analysis engine unavailable: " + reason,
		"alert_status=" + alert.Status,
	}
	if kctx.Namespace != "" || kctx.PodName != "" {
		lines = append(lines, fmt.Sprintf("target: namespace=%s, pod=%s", kctx.Namespace, kctx.PodName))
	}
	if len(kctx.Warnings) > 0 {
		lines = append(lines, "warnings: "+strings.Join(kctx.Warnings, ", "))
	}
	if kctx.PodStatus != nil {
		lines = append(lines, "pod_phase: "+kctx.PodStatus.Phase)
	}
	return s.deps.Masker.MaskText(strings.Join(lines, "\n"))
}

func (s *AnalysisService) artifacts(kctx model.KubernetesContext) []model.Artifact {
	out := make([]model.Artifact, 0, len(kctx.Events)+len(kctx.PreviousLogs))
	for _, ev := range kctx.Events {
		summary := strings.TrimSpace(fmt.Sprintf("%s %s: %s", ev.Type, ev.Reason, ev.Message))
		out = append(out, model.Artifact{
			Type:    model.ArtifactK8sEvent,
			Summary: s.deps.Masker.MaskText(summary),
			Result:  s.deps.Masker.MaskMap(ev.ToMap()),
		})
	}
	for _, snippet := range kctx.PreviousLogs {
		summary := fmt.Sprintf("previous logs of container %s (%d lines)", snippet.Container, len(snippet.Lines))
		if snippet.Error != "" {
			summary = fmt.Sprintf("previous logs of container %s unavailable: %s", snippet.Container, snippet.Error)
		}
		out = append(out, model.Artifact{
			Type:    model.ArtifactK8sLog,
			Summary: s.deps.Masker.MaskText(summary),
			Result:  s.deps.Masker.MaskMap(snippet.ToMap()),
		})
	}
	return out
}

func (s *AnalysisService) capabilities() map[string]string {
	return map[string]string{
		"kubernetes": capability(s.cfg.KubernetesEnabled && s.deps.Collector != nil),
		"prometheus": capability(s.cfg.PrometheusEnabled),
		"tempo":      capability(s.cfg.TempoEnabled),
		"engine":     capability(s.EngineEnabled()),
	}
}

func (s *AnalysisService) notifyAnalysis(ctx context.Context, req model.AlertAnalysisRequest, kctx model.KubernetesContext, result model.AnalysisResult) {
	if s.deps.Notifier == nil || strings.TrimSpace(req.ThreadTS) == "" {
		return
	}
	alert := *req.Alert
	err := s.deps.Notifier.NotifyAnalysis(ctx, outbound.AnalysisNotification{
		ThreadTS:   req.ThreadTS,
		Channel:    s.cfg.NotifyChannel,
		AlertName:  alert.Name(),
		Status:     alert.Status,
		Severity:   alert.Severity(),
		Namespace:  kctx.Namespace,
		PodName:    kctx.PodName,
		Summary:    result.Summary,
		Detail:     result.Detail,
		Quality:    result.Quality,
		RunbookURL: alert.Annotation("runbook_url"),
		Fallback:   result.Fallback,
	})
	s.recordNotification("analysis", err)
}

func (s *AnalysisService) recordNotification(kind string, err error) {
	if err != nil {
		s.logger.Warn("sending notification failed", "kind", kind, "error", err)
		metrics.RecordNotification(kind, outcomeError)
		return
	}
	metrics.RecordNotification(kind, outcomeOK)
}

// missingData lists the evidence kinds absent from the context.
func missingData(kctx model.KubernetesContext) []string {
	missing := []string{}
	if kctx.PodStatus == nil {
		missing = append(missing, "pod_status")
	}
	if len(kctx.Events) == 0 {
		missing = append(missing, "events")
	}
	hasLogs := false
	for _, snippet := range kctx.PreviousLogs {
		if len(snippet.Lines) > 0 {
			hasLogs = true
			break
		}
	}
	if !hasLogs {
		missing = append(missing, "previous_logs")
	}
	return missing
}

func quality(fallback bool, missing []string) string {
	switch {
	case fallback:
		return model.QualityLow
	case len(missing) == 0:
		return model.QualityHigh
	default:
		return model.QualityMedium
	}
}

func capability(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
