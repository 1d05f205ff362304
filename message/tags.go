package message

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slug returns the display slug of a tag: lower case ASCII letters and digits separated by dashes
func Slug(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	builder := strings.Builder{}
	dash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if dash && builder.Len() > 0 {
				builder.WriteByte('-')
			}
			dash = false
			builder.WriteRune(r)
			continue
		}
		dash = true
	}
	return builder.String()
}

func tagKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// appendTag adds the tag if no tag of the same name (case-insensitive) is there yet
func appendTag(tags []Tag, name string) []Tag {
	name = strings.TrimSpace(name)
	if name == "" {
		return tags
	}
	key := tagKey(name)
	for _, tag := range tags {
		if tagKey(tag.Name) == key {
			return tags
		}
	}
	return append(tags, Tag{Name: name, Slug: Slug(name)})
}

func sortTags(tags []Tag) {
	collator := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(tags, func(i, j int) bool {
		return collator.CompareString(tags[i].Name, tags[j].Name) < 0
	})
}
