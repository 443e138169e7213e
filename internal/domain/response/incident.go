package response

import (
	"regexp"
	"strings"
)

const (
	titleLimit           = 100
	summaryFallbackLimit = 200
)

type keywordKind int

const (
	kindNone keywordKind = iota
	kindTitle
	kindSummary
	kindDetail
)

var incidentKeywords = []struct {
	kind     keywordKind
	keywords []string
}{
	{kindTitle, []string{"title", "제목"}},
	{kindSummary, []string{"summary", "요약"}},
	{kindDetail, []string{"details", "detail", "상세"}},
}

var (
	sectionMarkerPrefixes = []string{"-", "*", "#", ">", "|", "```", "•"}
	numberedItem          = regexp.MustCompile(`^\d+[.)]\s`)
	quoteCutset           = "\"'`“”‘’"
)

// IncidentSummary holds the parsed parts of an incident summary response.
type IncidentSummary struct {
	Title   string
	Summary string
	Detail  string
}

// ParseIncidentSummary extracts title, summary and detail from a final RCA
// response. fallbackTitle is used when the response has no usable title.
func ParseIncidentSummary(text, fallbackTitle string) IncidentSummary {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return IncidentSummary{Title: fallbackTitle}
	}
	lines := strings.Split(trimmed, "\n")

	var title, summary, detail string
	titleIdx := -1

	for i := 0; i < len(lines); i++ {
		kind, value, ok := parseKeywordLine(lines[i])
		if !ok {
			continue
		}
		switch kind {
		case kindTitle:
			if title != "" {
				continue
			}
			idx := i
			if value == "" {
				value, idx = nextContent(lines, i+1)
			}
			if v := cleanValue(value); v != "" {
				title = Truncate(v, titleLimit)
				titleIdx = idx
				i = idx
			}
		case kindSummary:
			if summary != "" {
				continue
			}
			idx := i
			if value == "" {
				value, idx = nextContent(lines, i+1)
			}
			if v := cleanValue(value); v != "" {
				summary = v
				i = idx
			}
		case kindDetail:
			if detail == "" {
				detail = detailBody(lines, i+1, value)
			}
		}
	}

	if title == "" {
		for i, line := range lines {
			if isContentLine(line) {
				title = Truncate(cleanValue(line), titleLimit)
				titleIdx = i
				break
			}
		}
	}

	if summary == "" {
		for _, line := range lines[titleIdx+1:] {
			if isContentLine(line) {
				summary = cleanValue(line)
				break
			}
		}
	}

	if title == "" {
		title = fallbackTitle
	}
	if detail == "" {
		detail = trimmed
	}
	if summary == "" {
		summary = prefix(trimmed, summaryFallbackLimit)
	}
	if summary == trimmed || runeLen(summary) > CompactLimit {
		summary = CompactSummary(detail)
	}

	return IncidentSummary{Title: title, Summary: summary, Detail: detail}
}

// parseKeywordLine recognises lines such as "TITLE: x", "## 요약", or
// "**Summary (요약)**: x".
func parseKeywordLine(line string) (keywordKind, string, bool) {
	raw := strings.TrimSpace(line)
	if raw == "" {
		return kindNone, "", false
	}
	heading := strings.HasPrefix(raw, "#")
	n := strings.ReplaceAll(raw, "**", "")
	n = strings.ReplaceAll(n, "__", "")
	n = strings.TrimLeft(n, "#*->• ")
	lower := strings.ToLower(n)

	for _, group := range incidentKeywords {
		for _, kw := range group.keywords {
			if !strings.HasPrefix(lower, kw) {
				continue
			}
			rest := strings.TrimSpace(n[len(kw):])
			if strings.HasPrefix(rest, "(") {
				if end := strings.Index(rest, ")"); end >= 0 {
					rest = strings.TrimSpace(rest[end+1:])
				}
			}
			switch {
			case strings.HasPrefix(rest, ":"):
				return group.kind, strings.TrimSpace(rest[1:]), true
			case strings.HasPrefix(rest, "："):
				return group.kind, strings.TrimSpace(rest[len("："):]), true
			case rest == "" || heading:
				return group.kind, "", true
			}
		}
	}
	return kindNone, "", false
}

func nextContent(lines []string, from int) (string, int) {
	for j := from; j < len(lines); j++ {
		if _, _, ok := parseKeywordLine(lines[j]); ok {
			return "", from - 1
		}
		if l := strings.TrimSpace(lines[j]); l != "" {
			return l, j
		}
	}
	return "", from - 1
}

// detailBody collects the detail section up to the next title or summary
// keyword line.
func detailBody(lines []string, from int, inline string) string {
	var body []string
	if inline != "" {
		body = append(body, inline)
	}
	for j := from; j < len(lines); j++ {
		if kind, _, ok := parseKeywordLine(lines[j]); ok && kind != kindDetail {
			break
		}
		body = append(body, lines[j])
	}
	return strings.TrimSpace(strings.Join(body, "\n"))
}

func isContentLine(line string) bool {
	l := strings.TrimSpace(line)
	if l == "" {
		return false
	}
	for _, p := range sectionMarkerPrefixes {
		if strings.HasPrefix(l, p) {
			return false
		}
	}
	if numberedItem.MatchString(l) {
		return false
	}
	_, _, keyword := parseKeywordLine(l)
	return !keyword
}

func cleanValue(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.Trim(s, quoteCutset))
}
