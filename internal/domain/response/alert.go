package response

import "strings"

var (
	summaryKeywords = []string{"summary", "요약"}
	detailKeywords  = []string{"detail", "상세"}
	sectionKeywords = []string{"summary", "요약", "detail", "상세"}
)

// SplitAlertAnalysis extracts the summary and detail sections of an alert
// analysis. Without a detail section the whole text is the detail; without
// a distinct summary section the summary is compacted from the detail.
func SplitAlertAnalysis(text string) (summary, detail string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ""
	}
	lines := strings.Split(trimmed, "\n")

	detail = extractSection(lines, detailKeywords)
	if detail == "" {
		detail = trimmed
	}

	summary = extractSection(lines, summaryKeywords)
	if summary == "" || summary == detail {
		summary = CompactSummary(detail)
	}
	return summary, detail
}

// extractSection returns the body under the first header matching keywords,
// up to the next section header.
func extractSection(lines []string, keywords []string) string {
	start := -1
	for i, line := range lines {
		if isSectionHeader(line, keywords) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return ""
	}

	end := len(lines)
	for j := start; j < len(lines); j++ {
		if isSectionHeader(lines[j], sectionKeywords) {
			end = j
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[start:end], "\n"))
}

// isSectionHeader matches markdown headings and lines ending with a colon
// that mention one of keywords.
func isSectionHeader(line string, keywords []string) bool {
	l := strings.TrimSpace(line)
	if l == "" {
		return false
	}
	if !strings.HasPrefix(l, "#") && !strings.HasSuffix(l, ":") && !strings.HasSuffix(l, "：") {
		return false
	}
	return containsAny(strings.ToLower(l), keywords)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
