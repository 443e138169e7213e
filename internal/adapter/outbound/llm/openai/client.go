// Package openai talks to OpenAI-compatible chat/completions endpoints.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kube-rca/agent/internal/adapter/outbound/llm/agent"
	"github.com/kube-rca/agent/internal/adapter/outbound/llm/tools"
	"github.com/kube-rca/agent/internal/domain/model"
)

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Client implements agent.ChatModel.
type Client struct {
	config     Config
	httpClient *http.Client
}

var _ agent.ChatModel = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	return &Client{config: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}, nil
}

// --- wire types ---

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	Tools       []oaiTool    `json:"tools,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature"`
}

type oaiMessage struct {
	Role       string        `json:"role"`
	Content    string        `json:"content"`
	ToolCalls  []oaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

type oaiToolCall struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Function oaiToolFunction `json:"function"`
}

type oaiToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON-encoded object
}

type oaiTool struct {
	Type     string      `json:"type"`
	Function oaiFunction `json:"function"`
}

type oaiFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type oaiResponse struct {
	Choices []struct {
		Message      oaiMessage `json:"message"`
		FinishReason string     `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Chat sends one chat/completions request.
func (c *Client) Chat(ctx context.Context, messages []model.AgentMessage, defs []tools.Definition) (model.AgentMessage, error) {
	req := oaiRequest{
		Model:       c.config.Model,
		Messages:    toOAIMessages(messages),
		Tools:       toOAITools(defs),
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return model.AgentMessage{}, fmt.Errorf("encoding chat request: %w", err)
	}

	endpoint, err := url.JoinPath(c.config.BaseURL, "chat/completions")
	if err != nil {
		return model.AgentMessage{}, fmt.Errorf("building request url: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return model.AgentMessage{}, fmt.Errorf("creating chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return model.AgentMessage{}, fmt.Errorf("calling openai: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.AgentMessage{}, fmt.Errorf("reading openai response: %w", err)
	}

	var parsed oaiResponse
	decodeErr := json.Unmarshal(raw, &parsed)
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && parsed.Error != nil {
			return model.AgentMessage{}, fmt.Errorf("openai status %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return model.AgentMessage{}, fmt.Errorf("openai status %d: %s", resp.StatusCode, string(raw))
	}
	if decodeErr != nil {
		return model.AgentMessage{}, fmt.Errorf("decoding openai response: %w", decodeErr)
	}
	if len(parsed.Choices) == 0 {
		return model.AgentMessage{}, errors.New("openai response has no choices")
	}

	msg := parsed.Choices[0].Message
	out := model.AgentMessage{Role: model.MessageRoleAssistant, Content: msg.Content}
	if len(msg.ToolCalls) > 0 {
		calls := make([]model.ToolCallRecord, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			args := map[string]any{}
			if tc.Function.Arguments != "" {
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
					return model.AgentMessage{}, fmt.Errorf("decoding arguments of %s: %w", tc.Function.Name, err)
				}
			}
			calls = append(calls, model.ToolCallRecord{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
		}
		out = out.WithToolCalls(calls)
	}
	return out, nil
}

func toOAIMessages(in []model.AgentMessage) []oaiMessage {
	out := make([]oaiMessage, 0, len(in))
	for _, m := range in {
		msg := oaiMessage{Role: string(m.Role), Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			args, err := json.Marshal(tc.Arguments)
			if err != nil || tc.Arguments == nil {
				args = []byte("{}")
			}
			msg.ToolCalls = append(msg.ToolCalls, oaiToolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: oaiToolFunction{Name: tc.Name, Arguments: string(args)},
			})
		}
		out = append(out, msg)
	}
	return out
}

func toOAITools(defs []tools.Definition) []oaiTool {
	if len(defs) == 0 {
		return nil
	}
	out := make([]oaiTool, 0, len(defs))
	for _, d := range defs {
		out = append(out, oaiTool{
			Type:     "function",
			Function: oaiFunction{Name: d.Name, Description: d.Description, Parameters: d.Parameters},
		})
	}
	return out
}
