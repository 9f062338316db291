package core

import "strings"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// SameLabel reports whether a and b are equal once cleaned, ignoring case.
func SameLabel(a, b string) bool {
	return strings.EqualFold(CleanString(a), CleanString(b))
}
