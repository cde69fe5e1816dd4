package store

import "regexp"

var tagRe = regexp.MustCompile(`#(\w+)`)

// ExtractTags pulls hashtag-style tags (e.g. #gardening) out of a transcript,
// without the # symbol, in order of first appearance.
func ExtractTags(text string) []string {
	matches := tagRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var tags []string
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		tags = append(tags, m[1])
	}
	return tags
}
