package engine

import (
	"strings"
	"unicode"
)

// normalizeKey folds a categorical value onto the snake_case table keys.
func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

// normalizeText lowercases s and treats '_' and '-' as spaces so capability
// names and free text compare on the same footing.
func normalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", " ", "-", " ").Replace(s)
}

// keywords returns the distinct words of at least four letters in s, in order
// of first appearance, with surrounding punctuation trimmed.
func keywords(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, w := range strings.Fields(normalizeText(s)) {
		w = strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if len([]rune(w)) < 4 || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// capabilityMatches reports whether any capability contains any of the words.
func capabilityMatches(capabilities, words []string) bool {
	for _, c := range capabilities {
		c = normalizeText(c)
		for _, w := range words {
			if strings.Contains(c, w) {
				return true
			}
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
