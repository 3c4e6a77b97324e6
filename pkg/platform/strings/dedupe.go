// Package strings provides helpers for the comma-separated name sets that
// appear throughout registration configuration.
package strings

import (
	"strings"
)

// DedupeAndTrim removes duplicates and blanks, trimming each element.
// Order of first appearance is preserved.
//
//	DedupeAndTrim([]string{"  email ", "username", "email", ""})
//	// []string{"email", "username"}
func DedupeAndTrim(values []string) []string {
	return dedupe(values, strings.TrimSpace)
}

// DedupeAndTrimLower is DedupeAndTrim plus lowercasing, for case-insensitive
// sets such as email domains.
func DedupeAndTrimLower(values []string) []string {
	return dedupe(values, func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
}

// ContainsFold reports whether values holds s, ignoring case.
func ContainsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// Missing returns the elements of want that are absent from have.
func Missing(want, have []string) []string {
	index := make(map[string]struct{}, len(have))
	for _, h := range have {
		index[h] = struct{}{}
	}
	var out []string
	for _, w := range want {
		if _, ok := index[w]; !ok {
			out = append(out, w)
		}
	}
	return out
}

func dedupe(values []string, normalize func(string) string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		n := normalize(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		result = append(result, n)
	}
	return result
}
