package service

import "github.com/kube-rca/agent/internal/domain/model"

// TrimContext returns a reduced copy of kctx: at most maxEvents events (the
// first ones) and, per log snippet, the last maxLogLines lines after
// adjacent duplicates are collapsed. Non-positive limits drop everything.
func TrimContext(kctx model.KubernetesContext, maxEvents, maxLogLines int) model.KubernetesContext {
	out := kctx.Clone()

	if maxEvents <= 0 {
		out.Events = []model.PodEvent{}
	} else if len(out.Events) > maxEvents {
		out.Events = out.Events[:maxEvents]
	}

	if out.Events == nil {
		out.Events = []model.PodEvent{}
	}
	if out.PreviousLogs == nil {
		out.PreviousLogs = []model.LogSnippet{}
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}

	for i, snippet := range out.PreviousLogs {
		lines := CollapseRepeats(snippet.Lines)
		switch {
		case maxLogLines <= 0:
			lines = []string{}
		case len(lines) > maxLogLines:
			lines = lines[len(lines)-maxLogLines:]
		}
		out.PreviousLogs[i].Lines = lines
	}

	return out
}

// CollapseRepeats drops lines identical to the line immediately before them.
func CollapseRepeats(lines []string) []string {
	if lines == nil {
		return nil
	}
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		if i > 0 && line == lines[i-1] {
			continue
		}
		out = append(out, line)
	}
	return out
}
