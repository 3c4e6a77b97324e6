package models

import "strings"

const registrationPrefix = "ratelimit:register"

// SanitizeKeySegment escapes ':' so a client-supplied segment cannot spill
// into an adjacent key segment.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// RegistrationKey is the bucket key for registration attempts from ip.
func RegistrationKey(ip string) string {
	if ip == "" {
		ip = "unknown"
	}
	return registrationPrefix + ":" + SanitizeKeySegment(ip)
}
