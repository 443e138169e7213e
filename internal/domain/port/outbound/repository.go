package outbound

import (
	"context"

	"github.com/kube-rca/agent/internal/domain/model"
)

// SummaryStore keeps a bounded rolling list of analysis summaries per
// session key.
type SummaryStore interface {
	// List returns up to limit most recent summaries, oldest first.
	List(ctx context.Context, sessionKey string, limit int) ([]string, error)
	// Append stores a summary and drops everything beyond the newest maxItems.
	Append(ctx context.Context, sessionKey, summary string, maxItems int) error
}

// MessageStore persists agent turn history per runtime session id.
type MessageStore interface {
	AppendMessages(ctx context.Context, sessionID string, messages []model.AgentMessage) error
	ListMessages(ctx context.Context, sessionID string) ([]model.AgentMessage, error)
}
