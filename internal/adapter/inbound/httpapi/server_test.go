package httpapi_test

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kube-rca/agent/internal/adapter/inbound/httpapi"
	"github.com/kube-rca/agent/internal/adapter/inbound/httpapi/parser"
	"github.com/kube-rca/agent/internal/domain/model"
	"github.com/kube-rca/agent/internal/domain/port/inbound"
	"github.com/kube-rca/agent/internal/domain/service"
	"github.com/kube-rca/agent/pkg/health"
)

type fakeAnalysis struct {
	mu        sync.Mutex
	analyzed  []model.AlertAnalysisRequest
	summaries []model.IncidentSummaryRequest
	chats     []model.ChatRequest
	err       error
}

var _ inbound.AnalysisPort = (*fakeAnalysis)(nil)

func (f *fakeAnalysis) AnalyzeAlert(_ context.Context, req model.AlertAnalysisRequest) (model.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyzed = append(f.analyzed, req)
	if f.err != nil {
		return model.AnalysisResult{}, f.err
	}
	if req.Alert == nil {
		return model.AnalysisResult{}, fmt.Errorf("%w: alert is required", service.ErrInvalidRequest)
	}
	return model.AnalysisResult{
		Analysis:     "## Summary\nOOMKilled",
		Summary:      "OOMKilled",
		Detail:       "memory limit 256Mi",
		Quality:      model.QualityMedium,
		MissingData:  []string{"previous_logs"},
		Warnings:     []string{},
		Capabilities: map[string]string{"engine": "enabled"},
		Context:      map[string]any{"namespace": req.Alert.Namespace()},
		Artifacts:    []model.Artifact{},
	}, nil
}

func (f *fakeAnalysis) SummarizeIncident(_ context.Context, req model.IncidentSummaryRequest) (model.IncidentSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, req)
	return model.IncidentSummary{Title: "Checkout outage", Summary: "bad deploy", Detail: "rolled back"}, f.err
}

func (f *fakeAnalysis) Chat(_ context.Context, req model.ChatRequest) (model.ChatReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, req)
	return model.ChatReply{Answer: "It ran out of memory.", ConversationID: req.ConversationID}, f.err
}

func (f *fakeAnalysis) analyzedRequests() []model.AlertAnalysisRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.AlertAnalysisRequest(nil), f.analyzed...)
}

type testServer struct {
	handler  *httpapi.Handler
	routes   http.Handler
	analysis *fakeAnalysis
}

func newTestServer(t *testing.T, cfg httpapi.Config, checker *health.Checker) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	analysis := &fakeAnalysis{}
	h := httpapi.NewHandler(analysis, parser.NewAlertManagerParser(), cfg.Webhook, logger)
	srv := httpapi.NewServer(cfg, h, checker, logger)
	return &testServer{handler: h, routes: srv.Routes(), analysis: analysis}
}

func (s *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.routes.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

const analyzeBody = `{"alert":{"status":"firing","labels":{"alertname":"KubePodCrashLooping","namespace":"payments","pod":"api-1"}},"thread_ts":"1700000000.1"}`

func TestProbes(t *testing.T) {
	s := newTestServer(t, httpapi.Config{}, nil)

	rec := s.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"pong"}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/healthz", "", nil)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/", "", nil)
	assert.JSONEq(t, `{"status":"ok","message":"kube-rca-agent is running"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestReadyz_ReportsFailingCheck(t *testing.T) {
	checker := health.NewChecker()
	checker.Register("database", func(context.Context) error { return errors.New("down") })
	s := newTestServer(t, httpapi.Config{}, checker)

	rec := s.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAnalyze(t *testing.T) {
	s := newTestServer(t, httpapi.Config{}, nil)

	rec := s.do(http.MethodPost, "/analyze", analyzeBody, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1700000000.1", body["thread_ts"])
	assert.Equal(t, "## Summary\nOOMKilled", body["analysis"])
	assert.Equal(t, "OOMKilled", body["analysis_summary"])
	assert.Equal(t, "memory limit 256Mi", body["analysis_detail"])
	assert.Equal(t, "medium", body["analysis_quality"])
	assert.Equal(t, []any{"previous_logs"}, body["missing_data"])
	assert.Equal(t, map[string]any{"engine": "enabled"}, body["capabilities"])
	assert.Equal(t, map[string]any{"namespace": "payments"}, body["context"])
	assert.Contains(t, body, "artifacts")
	assert.Contains(t, body, "warnings")
}

func TestAnalyze_BadRequests(t *testing.T) {
	s := newTestServer(t, httpapi.Config{}, nil)

	rec := s.do(http.MethodPost, "/analyze", "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid payload", decodeBody(t, rec)["error"])

	rec = s.do(http.MethodPost, "/analyze", `{"thread_ts":"1.1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "invalid request", body["error"])
	assert.Contains(t, body["detail"], "alert is required")
}

func TestAnalyze_InternalError(t *testing.T) {
	s := newTestServer(t, httpapi.Config{}, nil)
	s.analysis.err = errors.New("boom")

	rec := s.do(http.MethodPost, "/analyze", analyzeBody, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestSummarizeIncident(t *testing.T) {
	s := newTestServer(t, httpapi.Config{}, nil)

	rec := s.do(http.MethodPost, "/summarize-incident", `{"incident_id":"INC-1","title":"t","alerts":[]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","title":"Checkout outage","summary":"bad deploy","detail":"rolled back"}`, rec.Body.String())
	require.Len(t, s.analysis.summaries, 1)
	assert.Equal(t, "INC-1", s.analysis.summaries[0].IncidentID)
}

func TestChat(t *testing.T) {
	s := newTestServer(t, httpapi.Config{}, nil)

	rec := s.do(http.MethodPost, "/chat", `{"message":"why?","conversation_id":"conv-9"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"status":"ok",
		"answer":"It ran out of memory.",
		"message":"It ran out of memory.",
		"response":"It ran out of memory.",
		"conversation_id":"conv-9"
	}`, rec.Body.String())
}

func TestAPIToken(t *testing.T) {
	s := newTestServer(t, httpapi.Config{APIToken: "tok"}, nil)

	rec := s.do(http.MethodPost, "/chat", `{"message":"hi"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/chat", `{"message":"hi"}`, map[string]string{"Authorization": "Bearer tok"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMaxBodyBytes(t *testing.T) {
	s := newTestServer(t, httpapi.Config{MaxBodyBytes: 16}, nil)

	rec := s.do(http.MethodPost, "/analyze", analyzeBody, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

const webhookBody = `{
	"status": "firing",
	"commonLabels": {"namespace": "payments"},
	"alerts": [
		{"status": "firing", "labels": {"alertname": "A", "pod": "p1"}, "fingerprint": "f1"},
		{"status": "firing", "labels": {"alertname": "B", "pod": "p2"}, "fingerprint": "f2"}
	]
}`

func TestAlertmanagerWebhook(t *testing.T) {
	cfg := httpapi.Config{Webhook: httpapi.WebhookConfig{Enabled: true, Path: "/webhooks/alertmanager", AuthType: httpapi.AuthNone}}
	s := newTestServer(t, cfg, nil)

	rec := s.do(http.MethodPost, "/webhooks/alertmanager?thread_ts=1.5&incident_id=INC-3", webhookBody, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"status":"ok","accepted":2}`, rec.Body.String())

	s.handler.Wait()
	reqs := s.analysis.analyzedRequests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "f1", reqs[0].Alert.Fingerprint)
	assert.Equal(t, "payments", reqs[1].Alert.Namespace())
	assert.Equal(t, "1.5", reqs[1].ThreadTS)
	assert.Equal(t, "INC-3", reqs[1].IncidentID)
}

func TestAlertmanagerWebhook_EmptyAndInvalid(t *testing.T) {
	cfg := httpapi.Config{Webhook: httpapi.WebhookConfig{Enabled: true, Path: "/webhooks/alertmanager"}}
	s := newTestServer(t, cfg, nil)

	rec := s.do(http.MethodPost, "/webhooks/alertmanager", `{"alerts":[]}`, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodPost, "/webhooks/alertmanager", `{`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlertmanagerWebhook_BearerAuth(t *testing.T) {
	cfg := httpapi.Config{Webhook: httpapi.WebhookConfig{Enabled: true, Path: "/webhooks/alertmanager", Secret: "hook", AuthType: httpapi.AuthBearer}}
	s := newTestServer(t, cfg, nil)

	rec := s.do(http.MethodPost, "/webhooks/alertmanager", webhookBody, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/webhooks/alertmanager", webhookBody, map[string]string{"Authorization": "Bearer hook"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	s.handler.Wait()
}

func TestAlertmanagerWebhook_HMAC(t *testing.T) {
	cfg := httpapi.Config{Webhook: httpapi.WebhookConfig{Enabled: true, Path: "/webhooks/alertmanager", Secret: "hook", AuthType: httpapi.AuthHMAC}}
	s := newTestServer(t, cfg, nil)

	rec := s.do(http.MethodPost, "/webhooks/alertmanager", webhookBody, map[string]string{parser.SignatureHeader: "sha256=00"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	sig := "sha256=" + hex.EncodeToString(parser.Sign([]byte(webhookBody), "hook"))
	rec = s.do(http.MethodPost, "/webhooks/alertmanager", webhookBody, map[string]string{parser.SignatureHeader: sig})
	assert.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	s.handler.Wait()
	assert.Len(t, s.analysis.analyzedRequests(), 2)
}

func TestAlertmanagerWebhook_DisabledIsNotRouted(t *testing.T) {
	s := newTestServer(t, httpapi.Config{}, nil)

	rec := s.do(http.MethodPost, "/webhooks/alertmanager", webhookBody, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
