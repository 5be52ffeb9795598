package storage

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// likeEscaper escapes SQLite LIKE wildcards. Queries using it declare
// ESCAPE '\'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// normalizeTag returns the stored form of a tag: NFC, without surrounding
// space. A tag typed with a combining accent matches the precomposed one.
func normalizeTag(tag string) string {
	return norm.NFC.String(strings.TrimSpace(tag))
}

// normalizeTags normalizes tags for storage, dropping empty and repeated ones.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = normalizeTag(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// tagPrefixPattern builds the LIKE pattern for tags starting with prefix.
// Wildcards in prefix match literally.
func tagPrefixPattern(prefix string) string {
	return likeEscaper.Replace(normalizeTag(prefix)) + "%"
}
