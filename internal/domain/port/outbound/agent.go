package outbound

import "context"

// Agent runs one prompt to completion, including any tool calls, and
// returns the final text.
type Agent interface {
	Invoke(ctx context.Context, prompt, runtimeSessionID string) (string, error)
}

// AgentFactory builds an agent bound to a durable session key.
type AgentFactory interface {
	NewAgent(ctx context.Context, durableKey string) (Agent, error)
}
