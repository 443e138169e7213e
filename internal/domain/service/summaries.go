package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kube-rca/agent/internal/domain/port/outbound"
	"github.com/kube-rca/agent/internal/masking"
)

// SummaryHistory bridges the summary store into prompt building. Store
// failures are logged and never surface to callers.
type SummaryHistory struct {
	store    outbound.SummaryStore
	masker   *masking.Masker
	maxItems int
	logger   *slog.Logger
}

// NewSummaryHistory creates a SummaryHistory. A nil store disables history.
func NewSummaryHistory(store outbound.SummaryStore, masker *masking.Masker, maxItems int, logger *slog.Logger) *SummaryHistory {
	if maxItems < 1 {
		maxItems = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryHistory{store: store, masker: masker, maxItems: maxItems, logger: logger}
}

// Recent returns the masked recent summaries for a session, oldest first.
func (h *SummaryHistory) Recent(ctx context.Context, sessionKey string) []string {
	if h == nil || h.store == nil {
		return nil
	}
	items, err := h.store.List(ctx, sessionKey, h.maxItems)
	if err != nil {
		h.logger.Warn("loading session summaries failed", "session", sessionKey, "error", err)
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if masked := strings.TrimSpace(h.masker.MaskText(item)); masked != "" {
			out = append(out, masked)
		}
	}
	return out
}

// Record masks and stores a summary. Empty summaries are skipped.
func (h *SummaryHistory) Record(ctx context.Context, sessionKey, summary string) {
	if h == nil || h.store == nil {
		return
	}
	masked := strings.TrimSpace(h.masker.MaskText(summary))
	if masked == "" {
		return
	}
	if err := h.store.Append(ctx, sessionKey, masked, h.maxItems); err != nil {
		h.logger.Warn("storing session summary failed", "session", sessionKey, "error", err)
	}
}
