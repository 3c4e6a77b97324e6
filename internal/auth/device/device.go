// Package device labels the browser a session was started from.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown Device"

// Service computes device fingerprints. A disabled service returns empty
// fingerprints so nothing device-derived is stored.
type Service struct {
	enabled bool
}

func NewService(enabled bool) *Service {
	return &Service{enabled: enabled}
}

// ParseUserAgent returns a display name such as "Chrome on macOS".
func ParseUserAgent(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return unknownDevice
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	os := ua.OSInfo().Name
	if ua.Mobile() && ua.Platform() != "" && !strings.Contains(os, ua.Platform()) {
		os = ua.Platform()
	}
	if browser == "" {
		browser = "Unknown browser"
	}
	if os == "" {
		os = "unknown OS"
	}
	return strings.TrimSpace(browser + " on " + os)
}

// ComputeFingerprint hashes the browser name, its major version and the OS.
// Minor browser updates keep the same fingerprint.
func (s *Service) ComputeFingerprint(userAgent string) string {
	if !s.enabled || userAgent == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	name, version := ua.Browser()
	major, _, _ := strings.Cut(version, ".")
	sum := sha256.Sum256([]byte(strings.Join([]string{name, major, ua.OS(), ua.Platform()}, "|")))
	return hex.EncodeToString(sum[:])
}

// Describe returns the display name and fingerprint for userAgent.
func (s *Service) Describe(userAgent string) (displayName, fingerprint string) {
	return ParseUserAgent(userAgent), s.ComputeFingerprint(userAgent)
}
