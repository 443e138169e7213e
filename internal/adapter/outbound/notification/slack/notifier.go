package slack

import (
	"context"
	"errors"
	"fmt"
	"strings"

	slackapi "github.com/slack-go/slack"

	"github.com/kube-rca/agent/internal/adapter/inbound/slackbot/template"
	"github.com/kube-rca/agent/internal/domain/port/outbound"
)

var errNoThread = errors.New("thread timestamp is required")

// Config holds Slack notifier configuration.
type Config struct {
	BotToken       string
	DefaultChannel string
	// APIURL overrides the Slack Web API base URL. It must end with "/".
	APIURL string
}

// Notifier implements outbound.Notifier via the Slack API. Every message is
// posted into the alert thread it belongs to.
type Notifier struct {
	client *slackapi.Client
	config Config
}

var _ outbound.Notifier = (*Notifier)(nil)

// NewNotifier creates a new Slack Notifier.
func NewNotifier(cfg Config) *Notifier {
	var opts []slackapi.Option
	if cfg.APIURL != "" {
		opts = append(opts, slackapi.OptionAPIURL(cfg.APIURL))
	}
	return &Notifier{
		client: slackapi.New(cfg.BotToken, opts...),
		config: cfg,
	}
}

// channelFor returns the explicit channel or the configured default.
func (n *Notifier) channelFor(channel string) string {
	if strings.TrimSpace(channel) != "" {
		return channel
	}
	return n.config.DefaultChannel
}

// NotifyAnalysis posts an analysis card in the alert thread.
func (n *Notifier) NotifyAnalysis(ctx context.Context, notification outbound.AnalysisNotification) error {
	if notification.ThreadTS == "" {
		return fmt.Errorf("slack NotifyAnalysis: %w", errNoThread)
	}
	blocks := template.BuildAnalysisBlocks(notification)
	fallbackText := fmt.Sprintf("RCA analysis for %s", notification.AlertName)

	_, _, err := n.client.PostMessageContext(ctx, n.channelFor(notification.Channel),
		slackapi.MsgOptionBlocks(blocks...),
		slackapi.MsgOptionTS(notification.ThreadTS),
		slackapi.MsgOptionText(fallbackText, false),
	)
	if err != nil {
		return fmt.Errorf("slack NotifyAnalysis: %w", err)
	}
	return nil
}

// NotifyIncidentSummary posts the final incident summary in the thread.
func (n *Notifier) NotifyIncidentSummary(ctx context.Context, notification outbound.IncidentNotification) error {
	if notification.ThreadTS == "" {
		return fmt.Errorf("slack NotifyIncidentSummary: %w", errNoThread)
	}
	blocks := template.BuildIncidentBlocks(notification)

	_, _, err := n.client.PostMessageContext(ctx, n.channelFor(notification.Channel),
		slackapi.MsgOptionBlocks(blocks...),
		slackapi.MsgOptionTS(notification.ThreadTS),
		slackapi.MsgOptionText("Incident resolved: "+notification.Title, false),
	)
	if err != nil {
		return fmt.Errorf("slack NotifyIncidentSummary: %w", err)
	}
	return nil
}

// Reply posts plain text in a thread.
func (n *Notifier) Reply(ctx context.Context, channel, threadTS, text string) error {
	_, _, err := n.client.PostMessageContext(ctx, n.channelFor(channel),
		slackapi.MsgOptionText(text, false),
		slackapi.MsgOptionTS(threadTS),
	)
	if err != nil {
		return fmt.Errorf("slack Reply: %w", err)
	}
	return nil
}
