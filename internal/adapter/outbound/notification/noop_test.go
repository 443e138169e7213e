package notification_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kube-rca/agent/internal/adapter/outbound/notification"
	"github.com/kube-rca/agent/internal/domain/port/outbound"
)

func TestNoopNotifier_LogsInsteadOfSending(t *testing.T) {
	var buf bytes.Buffer
	n := notification.NewNoopNotifier(slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()

	require.NoError(t, n.NotifyAnalysis(ctx, outbound.AnalysisNotification{ThreadTS: "1.1", AlertName: "KubePodCrashLooping"}))
	require.NoError(t, n.NotifyIncidentSummary(ctx, outbound.IncidentNotification{IncidentID: "INC-1", Title: "t"}))
	require.NoError(t, n.Reply(ctx, "C1", "1.1", "hello"))

	out := buf.String()
	assert.Contains(t, out, "alertname=KubePodCrashLooping")
	assert.Contains(t, out, "incident_id=INC-1")
	assert.Contains(t, out, "noop: reply")
	assert.NotContains(t, out, "hello")
}
