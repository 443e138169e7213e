package template

import (
	"fmt"
	"strings"

	slackapi "github.com/slack-go/slack"

	"github.com/kube-rca/agent/internal/domain/port/outbound"
)

// qualityBadge renders the analysis quality grade.
func qualityBadge(quality string) string {
	switch strings.ToLower(quality) {
	case "high":
		return ":large_green_circle: high"
	case "medium":
		return ":large_yellow_circle: medium"
	case "low":
		return ":red_circle: low"
	default:
		return ":white_circle: unknown"
	}
}

// BuildAnalysisBlocks constructs Block Kit blocks for an alert analysis.
func BuildAnalysisBlocks(n outbound.AnalysisNotification) []slackapi.Block {
	title := n.AlertName
	if title == "" {
		title = "alert"
	}
	header := slackapi.NewSectionBlock(
		slackapi.NewTextBlockObject(slackapi.MarkdownType,
			fmt.Sprintf(":mag: *RCA Analysis* %s %s", severityEmoji(n.Severity), title), false, false),
		nil, nil,
	)

	fields := []*slackapi.TextBlockObject{
		slackapi.NewTextBlockObject(slackapi.MarkdownType,
			fmt.Sprintf("*Status*\n%s", strings.ToUpper(orDash(n.Status))), false, false),
		slackapi.NewTextBlockObject(slackapi.MarkdownType,
			fmt.Sprintf("*Quality*\n%s", qualityBadge(n.Quality)), false, false),
		slackapi.NewTextBlockObject(slackapi.MarkdownType,
			fmt.Sprintf("*Namespace*\n%s", orDash(n.Namespace)), false, false),
		slackapi.NewTextBlockObject(slackapi.MarkdownType,
			fmt.Sprintf("*Pod*\n%s", orDash(n.PodName)), false, false),
	}

	summaryBlock := slackapi.NewSectionBlock(
		slackapi.NewTextBlockObject(slackapi.MarkdownType,
			fmt.Sprintf("*Summary*\n%s", truncate(n.Summary, sectionTextLimit)), false, false),
		nil, nil,
	)

	blocks := []slackapi.Block{header, slackapi.NewDividerBlock(), slackapi.NewSectionBlock(nil, fields, nil), summaryBlock}

	if n.Detail != "" && n.Detail != n.Summary {
		blocks = append(blocks, slackapi.NewSectionBlock(
			slackapi.NewTextBlockObject(slackapi.MarkdownType,
				fmt.Sprintf("*Detail*\n%s", truncate(n.Detail, sectionTextLimit)), false, false),
			nil, nil,
		))
	}

	if n.RunbookURL != "" {
		blocks = append(blocks, slackapi.NewContextBlock("",
			slackapi.NewTextBlockObject(slackapi.MarkdownType,
				fmt.Sprintf(":book: <%s|Runbook>", n.RunbookURL), false, false),
		))
	}

	if n.Fallback {
		blocks = append(blocks, slackapi.NewContextBlock("",
			slackapi.NewTextBlockObject(slackapi.MarkdownType,
				":warning: The analysis engine could not answer; this is a fallback summary.", false, false),
		))
	}

	return blocks
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
