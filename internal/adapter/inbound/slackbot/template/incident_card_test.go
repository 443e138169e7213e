package template_test

import (
	"strings"
	"testing"

	slackapi "github.com/slack-go/slack"

	"github.com/kube-rca/agent/internal/adapter/inbound/slackbot/template"
	"github.com/kube-rca/agent/internal/domain/port/outbound"
)

func TestBuildIncidentBlocks(t *testing.T) {
	n := outbound.IncidentNotification{
		IncidentID: "INC-42",
		ThreadTS:   "1.1",
		Title:      "Checkout pods OOMKilled",
		Summary:    "memory limit too low",
	}

	blocks := template.BuildIncidentBlocks(n)
	if len(blocks) != 4 {
		t.Fatalf("expected 4 blocks, got %d", len(blocks))
	}

	header, ok := blocks[0].(*slackapi.SectionBlock)
	if !ok {
		t.Fatalf("expected first block to be SectionBlock, got %T", blocks[0])
	}
	if !strings.Contains(header.Text.Text, "Checkout pods OOMKilled") {
		t.Errorf("expected title in header, got: %s", header.Text.Text)
	}
	if !anyContains(sectionTexts(blocks), "memory limit too low") {
		t.Error("expected summary block")
	}
}

func TestBuildIncidentBlocks_NoContextWithoutIDOrFallback(t *testing.T) {
	blocks := template.BuildIncidentBlocks(outbound.IncidentNotification{Title: "t", Summary: "s"})
	for _, b := range blocks {
		if _, ok := b.(*slackapi.ContextBlock); ok {
			t.Fatal("expected no context block")
		}
	}
}
