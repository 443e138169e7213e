package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kube-rca/agent/internal/adapter/outbound/llm/tools"
	"github.com/kube-rca/agent/internal/domain/model"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return NewClient(Config{
		BaseURL:     baseURL,
		Model:       "qwen2.5:14b",
		Timeout:     5 * time.Second,
		MaxRetries:  1,
		Temperature: 0.1,
		ContextSize: 8192,
	})
}

func makeChatResponse(msg chatMessage) chatResponse {
	return chatResponse{Message: msg}
}

func TestChat_TextReply(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(makeChatResponse(chatMessage{Role: "assistant", Content: "### 요약\nOOMKilled"}))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	msgs := []model.AgentMessage{
		{Role: model.MessageRoleSystem, Content: "be brief"},
		{Role: model.MessageRoleUser, Content: "analyze"},
	}
	defs := []tools.Definition{{Name: "get_pod_status", Description: "pod status", Parameters: map[string]any{"type": "object"}}}

	reply, err := client.Chat(context.Background(), msgs, defs)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply.Role != model.MessageRoleAssistant || reply.Content != "### 요약\nOOMKilled" {
		t.Errorf("unexpected reply: %+v", reply)
	}
	if len(reply.ToolCalls) != 0 {
		t.Errorf("expected no tool calls, got %v", reply.ToolCalls)
	}

	if got.Model != "qwen2.5:14b" || got.Stream {
		t.Errorf("unexpected request model/stream: %q %v", got.Model, got.Stream)
	}
	if got.Options.NumCtx != 8192 {
		t.Errorf("expected num_ctx 8192, got %d", got.Options.NumCtx)
	}
	if len(got.Tools) != 1 || got.Tools[0].Type != "function" || got.Tools[0].Function.Name != "get_pod_status" {
		t.Errorf("unexpected tools: %+v", got.Tools)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("unexpected messages: %+v", got.Messages)
	}
}

func TestChat_ToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(makeChatResponse(chatMessage{
			Role: "assistant",
			ToolCalls: []chatToolCall{
				{Function: chatFunctionCall{Name: "get_pod_status", Arguments: map[string]any{"namespace": "shop", "pod_name": "api"}}},
				{Function: chatFunctionCall{Name: "list_pod_events", Arguments: map[string]any{"namespace": "shop", "pod_name": "api"}}},
			},
		}))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	reply, err := client.Chat(context.Background(), []model.AgentMessage{{Role: model.MessageRoleUser, Content: "go"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(reply.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(reply.ToolCalls))
	}
	if reply.ToolCalls[1].ID != "call_1" || reply.ToolCalls[1].Name != "list_pod_events" {
		t.Errorf("unexpected second call: %+v", reply.ToolCalls[1])
	}
	if reply.ToolCalls[0].Arguments["pod_name"] != "api" {
		t.Errorf("unexpected arguments: %v", reply.ToolCalls[0].Arguments)
	}
}

func TestChat_SendsToolResults(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(makeChatResponse(chatMessage{Role: "assistant", Content: "done"}))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	msgs := []model.AgentMessage{
		{Role: model.MessageRoleUser, Content: "go"},
		model.AgentMessage{Role: model.MessageRoleAssistant}.WithToolCalls([]model.ToolCallRecord{{ID: "call_0", Name: "get_pod_status"}}),
		model.AgentMessage{Role: model.MessageRoleTool, Content: `{"phase":"Running"}`}.WithToolResult("call_0", "get_pod_status"),
	}
	if _, err := client.Chat(context.Background(), msgs, nil); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if len(got.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got.Messages))
	}
	if got.Messages[1].ToolCalls[0].Function.Arguments == nil {
		t.Error("expected empty arguments object, got null")
	}
	if got.Messages[2].Role != "tool" || got.Messages[2].ToolName != "get_pod_status" {
		t.Errorf("unexpected tool message: %+v", got.Messages[2])
	}
	if got.Tools != nil {
		t.Errorf("expected tools omitted, got %v", got.Tools)
	}
}

func TestChat_RetryOnServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(makeChatResponse(chatMessage{Role: "assistant", Content: "retry worked"}))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Model: "llama3", Timeout: 5 * time.Second, MaxRetries: 2})

	reply, err := client.Chat(context.Background(), []model.AgentMessage{{Role: model.MessageRoleUser, Content: "go"}}, nil)
	if err != nil {
		t.Fatalf("Chat with retry: %v", err)
	}
	if reply.Content != "retry worked" {
		t.Errorf("Content = %q, want %q", reply.Content, "retry worked")
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestChat_NoRetryOnClientError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Model: "missing", Timeout: 5 * time.Second, MaxRetries: 3})

	if _, err := client.Chat(context.Background(), []model.AgentMessage{{Role: model.MessageRoleUser, Content: "go"}}, nil); err == nil {
		t.Fatal("expected error for 404")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestHealthCheck_Healthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck should succeed: %v", err)
	}
}

func TestHealthCheck_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck should fail when server returns 503")
	}
}
