package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kube-rca/agent/internal/domain/model"
	"github.com/kube-rca/agent/internal/domain/port/outbound"
)

// MessageRepo implements outbound.MessageStore using SQLite.
type MessageRepo struct {
	db *sql.DB
}

var _ outbound.MessageStore = (*MessageRepo)(nil)

// NewMessageRepo creates a new MessageRepo backed by the given store.
func NewMessageRepo(store *Store) *MessageRepo {
	return &MessageRepo{db: store.DB}
}

// AppendMessages stores messages in order under sessionID.
func (r *MessageRepo) AppendMessages(ctx context.Context, sessionID string, messages []model.AgentMessage) error {
	if len(messages) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `INSERT INTO agent_messages
		(id, session_id, role, content, tool_call_id, tool_name, tool_calls, created_at)
		VALUES (?,?,?,?,?,?,?,?)`

	for _, m := range messages {
		calls, err := json.Marshal(toolCallsOrEmpty(m.ToolCalls))
		if err != nil {
			return fmt.Errorf("marshaling tool calls: %w", err)
		}
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}
		if _, err := tx.ExecContext(ctx, q,
			m.ID, sessionID, string(m.Role), m.Content,
			m.ToolCallID, m.ToolName, string(calls), m.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("inserting agent message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing agent messages: %w", err)
	}
	return nil
}

// ListMessages returns all messages of sessionID in insertion order.
func (r *MessageRepo) ListMessages(ctx context.Context, sessionID string) ([]model.AgentMessage, error) {
	const q = `SELECT id, session_id, role, content, tool_call_id, tool_name, tool_calls, created_at
		FROM agent_messages WHERE session_id = ? ORDER BY seq ASC`

	rows, err := r.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing agent messages: %w", err)
	}
	defer rows.Close()

	out := []model.AgentMessage{}
	for rows.Next() {
		var (
			m     model.AgentMessage
			role  string
			calls string
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &m.ToolCallID, &m.ToolName, &calls, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning agent message: %w", err)
		}
		m.Role = model.MessageRole(role)
		if err := json.Unmarshal([]byte(calls), &m.ToolCalls); err != nil {
			return nil, fmt.Errorf("unmarshaling tool calls: %w", err)
		}
		if len(m.ToolCalls) == 0 {
			m.ToolCalls = nil
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating agent messages: %w", err)
	}
	return out, nil
}

func toolCallsOrEmpty(calls []model.ToolCallRecord) []model.ToolCallRecord {
	if calls == nil {
		return []model.ToolCallRecord{}
	}
	return calls
}
