package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kube-rca/agent/internal/adapter/outbound/llm/agent"
	"github.com/kube-rca/agent/internal/adapter/outbound/llm/tools"
	"github.com/kube-rca/agent/internal/domain/model"
)

// Config holds configuration for the Ollama client.
type Config struct {
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxRetries  int
	Temperature float64
	ContextSize int
}

// Client implements agent.ChatModel using the Ollama chat API.
type Client struct {
	config     Config
	httpClient *http.Client
}

var _ agent.ChatModel = (*Client)(nil)

// NewClient creates a new Ollama Client with the given configuration.
func NewClient(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- Ollama API types ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Tools    []chatTool    `json:"tools,omitempty"`
	Options  chatOptions   `json:"options,omitempty"`
}

type chatMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
}

type chatToolCall struct {
	Function chatFunctionCall `json:"function"`
}

type chatFunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumCtx      int     `json:"num_ctx,omitempty"`
}

type chatResponse struct {
	Message         chatMessage `json:"message"`
	TotalDuration   int64       `json:"total_duration"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

// --- ChatModel implementation ---

// Chat sends the conversation and tool declarations and returns the next
// assistant message. Ollama does not assign tool call ids, so positional ids
// are generated.
func (c *Client) Chat(ctx context.Context, messages []model.AgentMessage, defs []tools.Definition) (model.AgentMessage, error) {
	body := chatRequest{
		Model:    c.config.Model,
		Messages: toChatMessages(messages),
		Stream:   false,
		Tools:    toChatTools(defs),
		Options:  chatOptions{Temperature: c.config.Temperature, NumCtx: c.config.ContextSize},
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return model.AgentMessage{}, fmt.Errorf("encoding chat request: %w", err)
	}

	resp, err := c.doChat(ctx, encoded)
	if err != nil {
		return model.AgentMessage{}, err
	}

	out := model.AgentMessage{Role: model.MessageRoleAssistant, Content: resp.Message.Content}
	if len(resp.Message.ToolCalls) > 0 {
		calls := make([]model.ToolCallRecord, 0, len(resp.Message.ToolCalls))
		for i, tc := range resp.Message.ToolCalls {
			calls = append(calls, model.ToolCallRecord{
				ID:        fmt.Sprintf("call_%d", i),
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		out = out.WithToolCalls(calls)
	}
	return out, nil
}

// HealthCheck performs GET /api/tags to verify Ollama is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	url := c.config.BaseURL + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// --- Internal helpers ---

// doChat sends a chat request to Ollama with retry logic for transient errors.
func (c *Client) doChat(ctx context.Context, body []byte) (chatResponse, error) {
	maxRetries := c.config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, retryable, err := c.postChat(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return chatResponse{}, ctx.Err()
		}
		if !retryable {
			break
		}
	}
	return chatResponse{}, lastErr
}

func (c *Client) postChat(ctx context.Context, body []byte) (chatResponse, bool, error) {
	url := c.config.BaseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return chatResponse{}, false, fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return chatResponse{}, true, fmt.Errorf("calling ollama: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return chatResponse{}, true, fmt.Errorf("reading ollama response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return chatResponse{}, true, fmt.Errorf("ollama server error %d: %s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode != http.StatusOK {
		return chatResponse{}, false, fmt.Errorf("ollama unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return chatResponse{}, false, fmt.Errorf("decoding ollama response: %w", err)
	}
	return chatResp, false, nil
}

func toChatMessages(in []model.AgentMessage) []chatMessage {
	out := make([]chatMessage, 0, len(in))
	for _, m := range in {
		msg := chatMessage{Role: string(m.Role), Content: m.Content, ToolName: m.ToolName}
		for _, tc := range m.ToolCalls {
			args := tc.Arguments
			if args == nil {
				args = map[string]any{}
			}
			msg.ToolCalls = append(msg.ToolCalls, chatToolCall{Function: chatFunctionCall{Name: tc.Name, Arguments: args}})
		}
		out = append(out, msg)
	}
	return out
}

func toChatTools(defs []tools.Definition) []chatTool {
	if len(defs) == 0 {
		return nil
	}
	out := make([]chatTool, 0, len(defs))
	for _, d := range defs {
		out = append(out, chatTool{
			Type:     "function",
			Function: chatFunction{Name: d.Name, Description: d.Description, Parameters: d.Parameters},
		})
	}
	return out
}
