// Package response turns free-form analysis text into the summary and
// detail fields returned to callers.
package response

import "strings"

const (
	// CompactLimit caps every compact summary.
	CompactLimit       = 300
	shortLineThreshold = 50
	ellipsis           = "..."
)

// CompactSummary returns the first non-empty line of text, joined with the
// second one when the first is short, capped at CompactLimit characters.
func CompactSummary(text string) string {
	lines := nonEmptyLines(text)
	if len(lines) == 0 {
		return ""
	}
	out := lines[0]
	if runeLen(out) < shortLineThreshold && len(lines) > 1 {
		out = out + " " + lines[1]
	}
	return Truncate(out, CompactLimit)
}

// Truncate caps s at limit characters, ending with an ellipsis when cut.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	if limit <= len(ellipsis) {
		return string(runes[:limit])
	}
	return string(runes[:limit-len(ellipsis)]) + ellipsis
}

// prefix returns the first limit characters of s without an ellipsis.
func prefix(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit]))
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}
