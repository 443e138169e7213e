// Package agent runs the tool-calling loop between a chat model and the
// tool registry.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kube-rca/agent/internal/adapter/outbound/llm/tools"
	"github.com/kube-rca/agent/internal/domain/model"
	"github.com/kube-rca/agent/internal/domain/port/outbound"
)

// ChatModel is one provider backend. It returns the next assistant message,
// which may request tool calls.
type ChatModel interface {
	Chat(ctx context.Context, messages []model.AgentMessage, defs []tools.Definition) (model.AgentMessage, error)
}

type Config struct {
	SystemPrompt string
	MaxToolTurns int
}

// ToolAgent is bound to one durable session key.
type ToolAgent struct {
	durableKey string
	model      ChatModel
	registry   *tools.Registry
	history    outbound.MessageStore
	cfg        Config
	logger     *slog.Logger
}

var _ outbound.Agent = (*ToolAgent)(nil)

// Invoke runs prompt to completion. Prior turns stored under
// runtimeSessionID are replayed first and the new turns are appended
// afterwards. When the tool budget is exhausted the model is asked once more
// without tools. A blank final message yields "" and a nil error.
func (a *ToolAgent) Invoke(ctx context.Context, prompt, runtimeSessionID string) (string, error) {
	messages := make([]model.AgentMessage, 0, 8)
	if a.cfg.SystemPrompt != "" {
		messages = append(messages, model.NewAgentMessage(runtimeSessionID, model.MessageRoleSystem, a.cfg.SystemPrompt))
	}
	messages = append(messages, a.loadHistory(ctx, runtimeSessionID)...)

	start := len(messages)
	messages = append(messages, model.NewAgentMessage(runtimeSessionID, model.MessageRoleUser, prompt))

	defs := a.registry.Definitions()
	var final model.AgentMessage
	done := false

	for turn := 0; turn < a.cfg.MaxToolTurns; turn++ {
		reply, err := a.model.Chat(ctx, messages, defs)
		if err != nil {
			return "", fmt.Errorf("agent %s turn %d: %w", a.durableKey, turn, err)
		}
		reply.SessionID = runtimeSessionID
		messages = append(messages, reply)

		if len(reply.ToolCalls) == 0 {
			final = reply
			done = true
			break
		}

		for _, call := range reply.ToolCalls {
			a.logger.Debug("tool call", "session", a.durableKey, "tool", call.Name)
			result := a.registry.Call(ctx, call.Name, call.Arguments)
			messages = append(messages, model.NewAgentMessage(runtimeSessionID, model.MessageRoleTool, result).WithToolResult(call.ID, call.Name))
		}
	}

	if !done {
		a.logger.Warn("tool turn limit reached", "session", a.durableKey, "max_turns", a.cfg.MaxToolTurns)
		reply, err := a.model.Chat(ctx, messages, nil)
		if err != nil {
			return "", fmt.Errorf("agent %s final turn: %w", a.durableKey, err)
		}
		reply.SessionID = runtimeSessionID
		messages = append(messages, reply)
		final = reply
	}

	a.saveHistory(ctx, runtimeSessionID, messages[start:])

	return strings.TrimSpace(final.Content), nil
}

func (a *ToolAgent) loadHistory(ctx context.Context, sessionID string) []model.AgentMessage {
	if a.history == nil {
		return nil
	}
	msgs, err := a.history.ListMessages(ctx, sessionID)
	if err != nil {
		a.logger.Warn("failed to load agent history", "session", sessionID, "error", err)
		return nil
	}
	return msgs
}

func (a *ToolAgent) saveHistory(ctx context.Context, sessionID string, msgs []model.AgentMessage) {
	if a.history == nil || len(msgs) == 0 {
		return
	}
	if err := a.history.AppendMessages(ctx, sessionID, msgs); err != nil {
		a.logger.Warn("failed to persist agent history", "session", sessionID, "error", err)
	}
}
