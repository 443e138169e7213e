package slackbot

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/kube-rca/agent/internal/domain/model"
)

var mentionPattern = regexp.MustCompile(`<@[A-Z0-9]+>`)

// handleEventsAPI processes Slack Events API payloads.
func (b *Bot) handleEventsAPI(ctx context.Context, evt socketmode.Event) {
	if evt.Request != nil {
		b.socketMode.Ack(*evt.Request)
	}

	eventsPayload, ok := evt.Data.(slackevents.EventsAPIEvent)
	if !ok {
		return
	}

	switch ev := eventsPayload.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		b.processMessageEvent(ctx, ev)
	case *slackevents.AppMentionEvent:
		b.processMention(ctx, ev)
	}
}

// processMessageEvent answers a human reply inside an alert thread.
func (b *Bot) processMessageEvent(ctx context.Context, ev *slackevents.MessageEvent) {
	// Ignore bot messages to prevent loops.
	if ev.BotID != "" || ev.SubType != "" {
		return
	}
	if ev.ThreadTimeStamp == "" {
		return
	}
	// Mentions arrive as app_mention as well.
	if mentionPattern.MatchString(ev.Text) {
		return
	}
	b.answer(ctx, ev.Channel, ev.ThreadTimeStamp, ev.User, ev.Text)
}

// processMention answers an @mention, threading on the mention itself
// when it is not already in a thread.
func (b *Bot) processMention(ctx context.Context, ev *slackevents.AppMentionEvent) {
	if ev.BotID != "" {
		return
	}
	threadTS := ev.ThreadTimeStamp
	if threadTS == "" {
		threadTS = ev.TimeStamp
	}
	b.answer(ctx, ev.Channel, threadTS, ev.User, ev.Text)
}

func (b *Bot) answer(ctx context.Context, channel, threadTS, user, text string) {
	question := strings.TrimSpace(mentionPattern.ReplaceAllString(text, ""))

	reply, err := b.analysis.Chat(ctx, model.ChatRequest{
		Message:        question,
		ConversationID: threadTS,
		Metadata: map[string]any{
			"source":  "slack",
			"channel": channel,
			"user":    user,
		},
	})
	if err != nil {
		b.logger.Error("chat failed", "channel", channel, "thread_ts", threadTS, "error", err)
		return
	}
	if strings.TrimSpace(reply.Answer) == "" {
		return
	}

	_, _, err = b.poster.PostMessageContext(ctx, channel,
		slackapi.MsgOptionText(reply.Answer, false),
		slackapi.MsgOptionTS(threadTS),
	)
	if err != nil {
		b.logger.Error("posting reply failed", "channel", channel, "thread_ts", threadTS, "error", err)
	}
}

// handleSlashCommand processes the bot's slash command.
func (b *Bot) handleSlashCommand(evt socketmode.Event) {
	cmd, ok := evt.Data.(slackapi.SlashCommand)
	if !ok {
		if evt.Request != nil {
			b.socketMode.Ack(*evt.Request)
		}
		return
	}
	if evt.Request != nil {
		b.socketMode.Ack(*evt.Request, map[string]string{
			"text": b.slashResponse(cmd.Text),
		})
	}
}

func (b *Bot) slashResponse(text string) string {
	switch strings.TrimSpace(strings.ToLower(text)) {
	case "status":
		return ":robot_face: *kube-rca agent* is running."
	case "", "help":
		return b.helpText()
	default:
		sanitized := text
		if len(sanitized) > 100 {
			sanitized = sanitized[:100]
		}
		sanitized = strings.ReplaceAll(sanitized, "`", "'")
		return fmt.Sprintf(":question: Unknown command `%s`. Try `%s help`.", sanitized, b.command)
	}
}

func (b *Bot) helpText() string {
	return strings.Join([]string{
		":robot_face: *kube-rca agent*",
		"",
		"*Slash Commands:*",
		fmt.Sprintf("• `%s status`: check agent status", b.command),
		fmt.Sprintf("• `%s help`: show this help message", b.command),
		"",
		"*Thread Chat:*",
		"• Reply in an alert thread to ask about the incident",
		"• Mention the bot anywhere to start a conversation",
	}, "\n")
}
