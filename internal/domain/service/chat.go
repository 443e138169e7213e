package service

import (
	"context"
	"errors"
	"strings"

	"github.com/kube-rca/agent/internal/domain/model"
	"github.com/kube-rca/agent/internal/domain/prompt"
	"github.com/kube-rca/agent/internal/metrics"
)

const (
	chatUnavailable = "Chat is unavailable because the analysis engine is not configured."
	chatEmptyReply  = "I couldn't generate a response. Please try rephrasing your question."
)

// Chat answers a free-form question about an incident. The conversation id
// is echoed back unchanged.
func (s *AnalysisService) Chat(ctx context.Context, req model.ChatRequest) (model.ChatReply, error) {
	const op = "chat"
	reply := model.ChatReply{ConversationID: req.ConversationID}

	if !s.EngineEnabled() {
		metrics.RecordRequest(op, outcomeFallback)
		reply.Answer = s.deps.Masker.MaskText(chatUnavailable)
		reply.Fallback = true
		return reply, nil
	}

	key := ChatSessionKey(req.ConversationID)
	text, err := s.prompts.ChatPrompt(prompt.ChatInput{Request: req})
	if err != nil {
		s.logger.Error("building chat prompt failed", "session", key, "error", err)
		metrics.RecordRequest(op, outcomeFallback)
		reply.Answer = s.deps.Masker.MaskText("Chat failed: " + err.Error())
		reply.Fallback = true
		return reply, nil
	}

	answer, err := s.invoke(ctx, op, key, text)
	switch {
	case errors.Is(err, errEmptyResponse):
		metrics.RecordRequest(op, outcomeFallback)
		reply.Answer = chatEmptyReply
		reply.Fallback = true
	case err != nil:
		s.logger.Error("chat failed", "session", key, "error", err)
		metrics.RecordRequest(op, outcomeFallback)
		reply.Answer = s.deps.Masker.MaskText("Chat failed: " + err.Error())
		reply.Fallback = true
	default:
		metrics.RecordRequest(op, outcomeOK)
		reply.Answer = strings.TrimSpace(answer)
	}
	return reply, nil
}
