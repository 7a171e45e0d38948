package domain

import (
	"strings"

	"golang.org/x/text/cases"
)

// Normalize trims leading/trailing whitespace and collapses internal whitespace runs.
// It is the canonical form used for submission payloads and every name comparison.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizePtr is Normalize for optional text; nil maps to the empty string.
func NormalizePtr(s *string) string {
	if s == nil {
		return ""
	}
	return Normalize(*s)
}

// NameKey is the case-insensitive uniqueness key for a display name (per owner).
func NameKey(s string) string {
	return cases.Fold().String(Normalize(s))
}
