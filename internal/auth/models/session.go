package models

import (
	"time"

	id "signup/pkg/domain"
)

// Session is the login established right after registration.
type Session struct {
	ID                id.SessionID `json:"id"`
	UserID            id.UserID    `json:"user_id"`
	DeviceDisplayName string       `json:"device_display_name"`
	DeviceFingerprint string       `json:"device_fingerprint,omitempty"`
	ClientIP          string       `json:"client_ip,omitempty"`
	UserAgent         string       `json:"user_agent,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	ExpiresAt         time.Time    `json:"expires_at"`

	// AccessToken is issued alongside the session and never persisted.
	AccessToken string `json:"-"`
}

// IsExpired reports whether the session has lapsed at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// TTL is the remaining lifetime at now, never negative.
func (s *Session) TTL(now time.Time) time.Duration {
	if d := s.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
