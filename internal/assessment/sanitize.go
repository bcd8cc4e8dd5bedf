package assessment

import "strings"

// MalformedMessage is the transient hint shown when typed characters were dropped.
const MalformedMessage = "Only numbers and a single dot are allowed."

// Sanitize keeps only digits and dots and, while more than one dot remains,
// drops the last character. For a single keystroke that is the dot just
// typed. malformed reports whether anything was removed.
func Sanitize(raw string) (value string, malformed bool) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}

	filtered := b.String()
	for strings.Count(filtered, ".") > 1 {
		filtered = filtered[:len(filtered)-1]
	}
	return filtered, filtered != raw
}
