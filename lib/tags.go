package lib

import "strings"

// AddTags appends the tags missing from existing, comparing names case-insensitively.
// The existing slice is never modified.
func AddTags(existing, tags []string) []string {
	output := make([]string, len(existing), len(existing)+len(tags))
	copy(output, existing)
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || hasTag(output, tag) {
			continue
		}
		output = append(output, tag)
	}
	return output
}

func hasTag(tags []string, tag string) bool {
	for _, existing := range tags {
		if strings.EqualFold(existing, tag) {
			return true
		}
	}
	return false
}
