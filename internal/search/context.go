package search

import (
	"regexp"
	"strings"
)

var sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)

// truncateSentences cuts text down to at most maxRunes, preferring to drop
// whole trailing sentences over slicing mid-word.
func truncateSentences(text string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		return strings.TrimSpace(string(runes[:maxRunes]))
	}
	var sb strings.Builder
	used := 0
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		n := len([]rune(s)) + 1
		if used+n > maxRunes {
			break
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(s)
		used += n
	}
	// No whole sentence fits; slicing mid-sentence would yield garbage.
	if sb.Len() == 0 {
		return ""
	}
	return sb.String()
}
