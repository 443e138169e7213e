package notification

import (
	"context"
	"log/slog"

	"github.com/kube-rca/agent/internal/domain/port/outbound"
)

// NoopNotifier logs notifications instead of sending them.
// Used when Slack is not configured.
type NoopNotifier struct {
	logger *slog.Logger
}

var _ outbound.Notifier = (*NoopNotifier)(nil)

// NewNoopNotifier creates a new NoopNotifier.
func NewNoopNotifier(logger *slog.Logger) *NoopNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopNotifier{logger: logger}
}

func (n *NoopNotifier) NotifyAnalysis(_ context.Context, notification outbound.AnalysisNotification) error {
	n.logger.Info("noop: analysis notification",
		"thread_ts", notification.ThreadTS,
		"alertname", notification.AlertName,
		"status", notification.Status,
		"quality", notification.Quality,
		"fallback", notification.Fallback,
	)
	return nil
}

func (n *NoopNotifier) NotifyIncidentSummary(_ context.Context, notification outbound.IncidentNotification) error {
	n.logger.Info("noop: incident summary",
		"incident_id", notification.IncidentID,
		"thread_ts", notification.ThreadTS,
		"title", notification.Title,
		"fallback", notification.Fallback,
	)
	return nil
}

func (n *NoopNotifier) Reply(_ context.Context, channel, threadTS, text string) error {
	n.logger.Info("noop: reply",
		"channel", channel,
		"thread_ts", threadTS,
		"length", len(text),
	)
	return nil
}
