package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kube-rca/agent/internal/adapter/outbound/llm/tools"
	"github.com/kube-rca/agent/internal/domain/model"
	"github.com/kube-rca/agent/internal/domain/port/outbound"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedModel replays canned replies and records what it was sent.
type scriptedModel struct {
	replies []model.AgentMessage
	err     error
	calls   [][]model.AgentMessage
	defs    [][]tools.Definition
}

func (m *scriptedModel) Chat(_ context.Context, msgs []model.AgentMessage, defs []tools.Definition) (model.AgentMessage, error) {
	m.calls = append(m.calls, append([]model.AgentMessage(nil), msgs...))
	m.defs = append(m.defs, defs)
	if m.err != nil {
		return model.AgentMessage{}, m.err
	}
	if len(m.replies) == 0 {
		return model.AgentMessage{Role: model.MessageRoleAssistant, Content: "done"}, nil
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	return r, nil
}

type memoryHistory struct {
	mu   sync.Mutex
	msgs map[string][]model.AgentMessage
}

var _ outbound.MessageStore = (*memoryHistory)(nil)

func (h *memoryHistory) AppendMessages(_ context.Context, id string, msgs []model.AgentMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.msgs == nil {
		h.msgs = map[string][]model.AgentMessage{}
	}
	h.msgs[id] = append(h.msgs[id], msgs...)
	return nil
}

func (h *memoryHistory) ListMessages(_ context.Context, id string) ([]model.AgentMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.AgentMessage(nil), h.msgs[id]...), nil
}

func echoRegistry() *tools.Registry {
	return tools.NewRegistry(nil, testLogger(), tools.Tool{
		Name:   "get_pod_status",
		Params: []tools.Param{{Name: "pod_name", Type: "string", Required: true}},
		Handler: func(_ context.Context, a tools.Args) (any, error) {
			return map[string]any{"phase": "CrashLoopBackOff", "pod": a.String("pod_name")}, nil
		},
	})
}

func newAgent(t *testing.T, m ChatModel, history outbound.MessageStore, maxTurns int) outbound.Agent {
	t.Helper()
	f, err := NewFactory(m, echoRegistry(), history, Config{SystemPrompt: "be brief", MaxToolTurns: maxTurns}, testLogger())
	require.NoError(t, err)
	a, err := f.NewAgent(context.Background(), "alert:fp1")
	require.NoError(t, err)
	return a
}

func toolCallReply(name string, args map[string]any) model.AgentMessage {
	return model.AgentMessage{Role: model.MessageRoleAssistant}.WithToolCalls([]model.ToolCallRecord{{ID: "call_1", Name: name, Arguments: args}})
}

func TestInvoke_NoTools(t *testing.T) {
	m := &scriptedModel{replies: []model.AgentMessage{{Role: model.MessageRoleAssistant, Content: "  root cause: OOM  "}}}
	a := newAgent(t, m, nil, 4)

	out, err := a.Invoke(context.Background(), "analyze", "alert:fp1:run:abc")
	require.NoError(t, err)
	assert.Equal(t, "root cause: OOM", out)

	require.Len(t, m.calls, 1)
	sent := m.calls[0]
	require.Len(t, sent, 2)
	assert.Equal(t, model.MessageRoleSystem, sent[0].Role)
	assert.Equal(t, "analyze", sent[1].Content)
	assert.Len(t, m.defs[0], 1)
}

func TestInvoke_ExecutesToolCalls(t *testing.T) {
	m := &scriptedModel{replies: []model.AgentMessage{
		toolCallReply("get_pod_status", map[string]any{"pod_name": "api"}),
		{Role: model.MessageRoleAssistant, Content: "pod is crash looping"},
	}}
	history := &memoryHistory{}
	a := newAgent(t, m, history, 4)

	out, err := a.Invoke(context.Background(), "analyze", "run-1")
	require.NoError(t, err)
	assert.Equal(t, "pod is crash looping", out)

	require.Len(t, m.calls, 2)
	second := m.calls[1]
	toolMsg := second[len(second)-1]
	assert.Equal(t, model.MessageRoleTool, toolMsg.Role)
	assert.Equal(t, "call_1", toolMsg.ToolCallID)
	assert.Equal(t, "get_pod_status", toolMsg.ToolName)
	assert.Contains(t, toolMsg.Content, "CrashLoopBackOff")

	stored, _ := history.ListMessages(context.Background(), "run-1")
	require.Len(t, stored, 4) // user, assistant tool call, tool result, answer
	assert.Equal(t, model.MessageRoleUser, stored[0].Role)
	assert.Equal(t, "pod is crash looping", stored[3].Content)
}

func TestInvoke_ReplaysHistory(t *testing.T) {
	history := &memoryHistory{}
	_ = history.AppendMessages(context.Background(), "run-1", []model.AgentMessage{
		model.NewAgentMessage("run-1", model.MessageRoleUser, "earlier question"),
		model.NewAgentMessage("run-1", model.MessageRoleAssistant, "earlier answer"),
	})
	m := &scriptedModel{}
	a := newAgent(t, m, history, 2)

	_, err := a.Invoke(context.Background(), "follow up", "run-1")
	require.NoError(t, err)

	sent := m.calls[0]
	require.Len(t, sent, 4)
	assert.Equal(t, "earlier question", sent[1].Content)
	assert.Equal(t, "follow up", sent[3].Content)
}

func TestInvoke_TurnLimitForcesFinalAnswer(t *testing.T) {
	loop := toolCallReply("get_pod_status", map[string]any{"pod_name": "api"})
	m := &scriptedModel{replies: []model.AgentMessage{loop, loop, {Role: model.MessageRoleAssistant, Content: "best effort"}}}
	a := newAgent(t, m, nil, 2)

	out, err := a.Invoke(context.Background(), "analyze", "run-1")
	require.NoError(t, err)
	assert.Equal(t, "best effort", out)
	require.Len(t, m.calls, 3)
	assert.Nil(t, m.defs[2], "final turn must not offer tools")
}

func TestInvoke_ModelError(t *testing.T) {
	m := &scriptedModel{err: errors.New("connection refused")}
	a := newAgent(t, m, nil, 2)

	_, err := a.Invoke(context.Background(), "analyze", "run-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestInvoke_EmptyResponse(t *testing.T) {
	m := &scriptedModel{replies: []model.AgentMessage{{Role: model.MessageRoleAssistant, Content: "   "}}}
	a := newAgent(t, m, nil, 2)

	out, err := a.Invoke(context.Background(), "analyze", "run-1")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestNewFactory_RequiresCollaborators(t *testing.T) {
	_, err := NewFactory(nil, echoRegistry(), nil, Config{}, testLogger())
	assert.Error(t, err)

	_, err = NewFactory(&scriptedModel{}, nil, nil, Config{}, testLogger())
	assert.Error(t, err)
}
