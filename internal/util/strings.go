package util

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultString returns the fallback value if v is empty or consists entirely
// of whitespace; otherwise it returns v unchanged.
//
// Examples:
//
//	DefaultString("prod",  "Ungrouped")  → "prod"
//	DefaultString("",      "Ungrouped")  → "Ungrouped"
//	DefaultString("  ",    "Ungrouped")  → "Ungrouped"
func DefaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// EmptyDash returns "-" for blank values. The list and detail views use it for
// optional fields such as the username or group so an omitted value is
// visibly distinct from a column misalignment.
func EmptyDash(s string) string {
	return DefaultString(s, "-")
}

// Truncate shortens s to at most max runes, appending "..." when something
// was cut.
//
//	Truncate("rack 4, shelf 2", 6) → "rack 4..."
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "..."
}

// HasControl reports whether s contains any control character, including
// newlines and tabs.
func HasControl(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}

// HasSpace reports whether s contains any Unicode whitespace.
func HasSpace(s string) bool {
	return strings.IndexFunc(s, unicode.IsSpace) >= 0
}

// FoldContains reports whether substr occurs in s, ignoring case.
func FoldContains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
