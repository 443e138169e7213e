package outbound

import "context"

type AnalysisNotification struct {
	ThreadTS   string
	Channel    string
	AlertName  string
	Status     string
	Severity   string
	Namespace  string
	PodName    string
	Summary    string
	Detail     string
	Quality    string
	RunbookURL string
	Fallback   bool
}

type IncidentNotification struct {
	IncidentID string
	ThreadTS   string
	Channel    string
	Title      string
	Summary    string
	Fallback   bool
}

// Notifier publishes analysis results to a messaging platform.
type Notifier interface {
	NotifyAnalysis(ctx context.Context, n AnalysisNotification) error
	NotifyIncidentSummary(ctx context.Context, n IncidentNotification) error
	// Reply posts free text into a thread.
	Reply(ctx context.Context, channel, threadTS, text string) error
}
