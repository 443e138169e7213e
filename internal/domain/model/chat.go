package model

// ChatRequest is a free-form question, optionally tied to a conversation.
type ChatRequest struct {
	Message        string         `json:"message"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// ChatReply is the answer returned to the caller.
type ChatReply struct {
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id,omitempty"`
	Fallback       bool   `json:"-"`
}
