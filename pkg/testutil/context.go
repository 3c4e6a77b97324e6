package testutil

import (
	"net/http"
	"time"

	"signup/pkg/requestcontext"
)

// WithClient attaches client IP and User-Agent to the request context, the
// same values the client metadata middleware would extract.
func WithClient(req *http.Request, ip, userAgent string) *http.Request {
	ctx := requestcontext.WithClientMetadata(req.Context(), ip, userAgent)
	return req.WithContext(ctx)
}

// WithRequestTime pins the request clock so time-dependent assertions are stable.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
