// Package models holds rate limit results and response bodies.
package models

import (
	"math"
	"time"
)

// Result is the outcome of one rate limit check.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	// RetryAfter is in whole seconds and only set when not allowed.
	RetryAfter int `json:"retry_after,omitempty"`
}

// RetryAfterSeconds rounds the wait until resetAt up to a whole second,
// never less than one.
func RetryAfterSeconds(now, resetAt time.Time) int {
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// ExceededResponse is the 429 body.
type ExceededResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	RetryAfter       int    `json:"retry_after"`
}
