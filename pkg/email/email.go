// Package email holds small helpers for email addresses used as identifiers.
package email

import (
	"strings"
)

// UsernameFromEmail derives a username by replacing "@" and "." with "_".
//
//	UsernameFromEmail("jane.doe@example.com") // "jane_doe_example_com"
func UsernameFromEmail(addr string) string {
	return strings.NewReplacer("@", "_", ".", "_").Replace(addr)
}

// Domain returns the lowercased part after the last "@", or "" when the
// address has none.
func Domain(addr string) string {
	at := strings.LastIndexByte(addr, '@')
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	return strings.ToLower(addr[at+1:])
}

// Normalize trims surrounding whitespace and lowercases the domain part,
// leaving the local part untouched.
func Normalize(addr string) string {
	addr = strings.TrimSpace(addr)
	at := strings.LastIndexByte(addr, '@')
	if at < 0 {
		return addr
	}
	return addr[:at+1] + strings.ToLower(addr[at+1:])
}
