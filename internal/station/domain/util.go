package domain

import (
	"strings"
	"unicode"
)

// foldUnique normalizes name for use as a unique-index key: lowercased,
// diacritics stripped, surrounding whitespace trimmed. Mirrors the
// reference's format_unique_string used for UserGroupName/NamedRuleName
// unique keys.
func foldUnique(name string) string {
	trimmed := strings.TrimSpace(name)
	lowered := strings.ToLower(trimmed)
	var b strings.Builder
	for _, r := range lowered {
		if unicode.Is(unicode.Mn, r) {
			continue // skip combining diacritical marks
		}
		b.WriteRune(r)
	}
	return b.String()
}
