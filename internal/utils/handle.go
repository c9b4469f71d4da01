package utils

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
)

// FallbackHandle is used when a display name yields no usable characters
const FallbackHandle = "advocate"

var (
	handleDisallowed = regexp.MustCompile(`[^a-z0-9 \-]+`)
	handleSpaces     = regexp.MustCompile(`\s+`)
)

// HandleBase derives the base slug for a display name: lowercase, keep only
// [a-z0-9 -], turn whitespace runs into single hyphens, trim hyphens at either
// end and cut to maxLen. Names with nothing left (for example non-Latin
// scripts) are transliterated instead, and FallbackHandle is the last resort.
func HandleBase(displayName string, maxLen int) string {
	base := strings.ToLower(displayName)
	base = handleDisallowed.ReplaceAllString(base, "")
	base = strings.TrimSpace(base)
	base = handleSpaces.ReplaceAllString(base, "-")
	base = truncateHandle(base, maxLen)

	if base == "" {
		base = truncateHandle(slug.Make(displayName), maxLen)
	}
	if base == "" {
		base = truncateHandle(FallbackHandle, maxLen)
	}
	return base
}

// HandleCandidate returns the attempt-th candidate for base. Attempt 0 is the
// base itself; later attempts append "-N", shortening base so the result
// still fits in maxLen.
func HandleCandidate(base string, attempt, maxLen int) string {
	if attempt == 0 {
		return truncateHandle(base, maxLen)
	}
	suffix := "-" + strconv.Itoa(attempt)
	head := truncateHandle(base, maxLen-len(suffix))
	if maxLen-len(suffix) < 1 || head == "" {
		return suffix[1:]
	}
	return head + suffix
}

// IsValidHandle reports whether s has the shape of an assigned handle
func IsValidHandle(s string, maxLen int) bool {
	return s != "" && len(s) <= maxLen && slug.IsSlug(s)
}

func truncateHandle(s string, maxLen int) string {
	if maxLen > 0 && len(s) > maxLen {
		s = s[:maxLen]
	}
	return strings.Trim(s, "-")
}
