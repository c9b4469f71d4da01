package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// PrivateDisplayName reduces a person's name to first name plus last initial,
// e.g. "Jane D.". It returns an empty string when no first name is known.
func PrivateDisplayName(firstName, lastName string) string {
	first := strings.TrimSpace(firstName)
	if first == "" {
		return ""
	}
	if fields := strings.Fields(first); len(fields) > 0 {
		first = fields[0]
	}

	last := strings.TrimSpace(lastName)
	if last == "" {
		return first
	}
	initial, _ := utf8.DecodeRuneInString(last)
	return first + " " + string(unicode.ToUpper(initial)) + "."
}
