package model

import (
	"time"

	"github.com/google/uuid"
)

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
	MessageRoleTool      MessageRole = "tool"
)

// AgentMessage is one persisted turn of an agent run.
type AgentMessage struct {
	ID         string           `json:"id"`
	SessionID  string           `json:"session_id"`
	Role       MessageRole      `json:"role"`
	Content    string           `json:"content"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	ToolName   string           `json:"tool_name,omitempty"`
	ToolCalls  []ToolCallRecord `json:"tool_calls,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// ToolCallRecord is a tool invocation requested by the model.
type ToolCallRecord struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

func NewAgentMessage(sessionID string, role MessageRole, content string) AgentMessage {
	return AgentMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// WithToolResult returns a copy marked as the result of a tool call.
func (m AgentMessage) WithToolResult(callID, toolName string) AgentMessage {
	m.ToolCallID = callID
	m.ToolName = toolName
	return m
}

// WithToolCalls returns a copy carrying the given tool calls.
func (m AgentMessage) WithToolCalls(calls []ToolCallRecord) AgentMessage {
	m.ToolCalls = append([]ToolCallRecord(nil), calls...)
	return m
}
