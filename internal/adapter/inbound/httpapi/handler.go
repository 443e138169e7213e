package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/kube-rca/agent/internal/domain/model"
	"github.com/kube-rca/agent/internal/domain/port/inbound"
	"github.com/kube-rca/agent/internal/domain/service"
	"github.com/kube-rca/agent/pkg/apierror"
)

const statusOK = "ok"

type analyzeResponse struct {
	Status   string `json:"status"`
	ThreadTS string `json:"thread_ts"`
	model.AnalysisResult
}

type summarizeResponse struct {
	Status  string `json:"status"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Detail  string `json:"detail"`
}

// chatResponse repeats the answer under every key existing clients read.
type chatResponse struct {
	Status         string `json:"status"`
	Answer         string `json:"answer"`
	Message        string `json:"message"`
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type webhookResponse struct {
	Status   string `json:"status"`
	Accepted int    `json:"accepted"`
}

// Handler serves the analysis endpoints.
type Handler struct {
	analysis inbound.AnalysisPort
	parser   inbound.WebhookParser
	webhook  WebhookConfig
	logger   *slog.Logger

	// background tracks webhook analyses that outlive their request.
	background sync.WaitGroup
}

// NewHandler creates a Handler. parser may be nil when the webhook is disabled.
func NewHandler(analysis inbound.AnalysisPort, parser inbound.WebhookParser, webhook WebhookConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		analysis: analysis,
		parser:   parser,
		webhook:  webhook,
		logger:   logger,
	}
}

// Analyze handles POST /analyze.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req model.AlertAnalysisRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.analysis.AnalyzeAlert(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "analyze", err)
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{
		Status:         statusOK,
		ThreadTS:       req.ThreadTS,
		AnalysisResult: result,
	})
}

// SummarizeIncident handles POST /summarize-incident.
func (h *Handler) SummarizeIncident(w http.ResponseWriter, r *http.Request) {
	var req model.IncidentSummaryRequest
	if !decode(w, r, &req) {
		return
	}

	out, err := h.analysis.SummarizeIncident(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "summarize", err)
		return
	}
	writeJSON(w, http.StatusOK, summarizeResponse{
		Status:  statusOK,
		Title:   out.Title,
		Summary: out.Summary,
		Detail:  out.Detail,
	})
}

// Chat handles POST /chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if !decode(w, r, &req) {
		return
	}

	reply, err := h.analysis.Chat(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "chat", err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Status:         statusOK,
		Answer:         reply.Answer,
		Message:        reply.Answer,
		Response:       reply.Answer,
		ConversationID: reply.ConversationID,
	})
}

// AlertmanagerWebhook handles the Alertmanager group payload. Each alert is
// analysed in the background; the thread_ts query parameter, when present,
// routes notifications into an existing Slack thread.
func (h *Handler) AlertmanagerWebhook(w http.ResponseWriter, r *http.Request) {
	if strings.EqualFold(h.webhook.AuthType, AuthHMAC) {
		if err := h.parser.ValidateSignature(r, h.webhook.Secret); err != nil {
			apierror.WithDetail(http.StatusUnauthorized, "signature validation failed", err.Error()).Write(w)
			return
		}
	}

	alerts, err := h.parser.Parse(r.Context(), r)
	if err != nil {
		apierror.WithDetail(http.StatusBadRequest, "failed to parse webhook payload", err.Error()).Write(w)
		return
	}
	if len(alerts) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	threadTS := r.URL.Query().Get("thread_ts")
	incidentID := r.URL.Query().Get("incident_id")
	ctx := context.WithoutCancel(r.Context())

	h.background.Add(1)
	go func() {
		defer h.background.Done()
		for i := range alerts {
			req := model.AlertAnalysisRequest{Alert: &alerts[i], ThreadTS: threadTS, IncidentID: incidentID}
			if _, err := h.analysis.AnalyzeAlert(ctx, req); err != nil {
				h.logger.Error("webhook alert analysis failed",
					"source", h.parser.Source(),
					"alertname", alerts[i].Name(),
					"fingerprint", alerts[i].Fingerprint,
					"error", err,
				)
			}
		}
	}()

	writeJSON(w, http.StatusAccepted, webhookResponse{Status: statusOK, Accepted: len(alerts)})
}

// Wait blocks until background webhook analyses finish.
func (h *Handler) Wait() {
	h.background.Wait()
}

func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, service.ErrInvalidRequest) {
		apierror.WithDetail(http.StatusBadRequest, "invalid request", err.Error()).Write(w)
		return
	}
	h.logger.Error("request failed", "operation", op, "error", err)
	apierror.Internal("internal error").Write(w)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		apierror.WithDetail(http.StatusBadRequest, "invalid payload", err.Error()).Write(w)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Ping handles GET /ping.
func Ping(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "pong"})
}

// Root handles GET /.
func Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": statusOK, "message": "kube-rca-agent is running"})
}
