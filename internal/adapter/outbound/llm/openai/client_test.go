package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kube-rca/agent/internal/adapter/outbound/llm/tools"
	"github.com/kube-rca/agent/internal/domain/model"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{APIKey: "sk-test", BaseURL: baseURL, Model: "gpt-4o-mini", MaxTokens: 512, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestChat_ToolCallRoundTrip(t *testing.T) {
	var got oaiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"finish_reason":"tool_calls","message":{"role":"assistant","content":"","tool_calls":[{"id":"call_abc","type":"function","function":{"name":"get_pod_status","arguments":"{\"namespace\":\"shop\",\"pod_name\":\"api\"}"}}]}}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/v1")
	msgs := []model.AgentMessage{
		{Role: model.MessageRoleUser, Content: "analyze"},
		model.AgentMessage{Role: model.MessageRoleAssistant}.WithToolCalls([]model.ToolCallRecord{{ID: "call_prev", Name: "list_pod_events", Arguments: map[string]any{"namespace": "shop"}}}),
		model.AgentMessage{Role: model.MessageRoleTool, Content: "[]"}.WithToolResult("call_prev", "list_pod_events"),
	}
	defs := []tools.Definition{{Name: "get_pod_status", Description: "pod status", Parameters: map[string]any{"type": "object"}}}

	reply, err := c.Chat(context.Background(), msgs, defs)
	require.NoError(t, err)

	require.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, "call_abc", reply.ToolCalls[0].ID)
	assert.Equal(t, "api", reply.ToolCalls[0].Arguments["pod_name"])

	require.Len(t, got.Messages, 3)
	assert.Equal(t, `{"namespace":"shop"}`, got.Messages[1].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "function", got.Messages[1].ToolCalls[0].Type)
	assert.Equal(t, "call_prev", got.Messages[2].ToolCallID)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, "get_pod_status", got.Tools[0].Function.Name)
	assert.Equal(t, 512, got.MaxTokens)
}

func TestChat_TextReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"finish_reason":"stop","message":{"role":"assistant","content":"TITLE: OOM"}}]}`)
	}))
	defer srv.Close()

	reply, err := newTestClient(t, srv.URL).Chat(context.Background(), []model.AgentMessage{{Role: model.MessageRoleUser, Content: "x"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "TITLE: OOM", reply.Content)
	assert.Empty(t, reply.ToolCalls)
}

func TestChat_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"invalid api key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Chat(context.Background(), []model.AgentMessage{{Role: model.MessageRoleUser, Content: "x"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestChat_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Chat(context.Background(), []model.AgentMessage{{Role: model.MessageRoleUser, Content: "x"}}, nil)
	assert.Error(t, err)
}
