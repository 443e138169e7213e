package template

import (
	"fmt"
	"strings"

	slackapi "github.com/slack-go/slack"

	"github.com/kube-rca/agent/internal/domain/port/outbound"
)

// sectionTextLimit keeps section text below Slack's 3000 character cap.
const sectionTextLimit = 2900

// severityEmoji maps severity to an emoji prefix.
func severityEmoji(severity string) string {
	switch strings.ToLower(severity) {
	case "critical":
		return ":red_circle:"
	case "warning":
		return ":large_yellow_circle:"
	case "resolved":
		return ":large_green_circle:"
	default:
		return ":large_blue_circle:"
	}
}

// BuildIncidentBlocks constructs Block Kit blocks for a final incident summary.
func BuildIncidentBlocks(n outbound.IncidentNotification) []slackapi.Block {
	header := slackapi.NewSectionBlock(
		slackapi.NewTextBlockObject(slackapi.MarkdownType,
			fmt.Sprintf(":large_green_circle: *Incident resolved: %s*", n.Title), false, false),
		nil, nil,
	)

	summaryBlock := slackapi.NewSectionBlock(
		slackapi.NewTextBlockObject(slackapi.MarkdownType,
			fmt.Sprintf("*Summary*\n%s", truncate(n.Summary, sectionTextLimit)), false, false),
		nil, nil,
	)

	blocks := []slackapi.Block{header, slackapi.NewDividerBlock(), summaryBlock}

	if n.IncidentID != "" || n.Fallback {
		var parts []string
		if n.IncidentID != "" {
			parts = append(parts, fmt.Sprintf("Incident `%s`", n.IncidentID))
		}
		if n.Fallback {
			parts = append(parts, ":warning: generated without the analysis engine")
		}
		blocks = append(blocks, slackapi.NewContextBlock("",
			slackapi.NewTextBlockObject(slackapi.MarkdownType, strings.Join(parts, "  |  "), false, false),
		))
	}

	return blocks
}

// truncate cuts s to at most limit runes, marking the cut with an ellipsis.
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
