package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, authenticators and sinks
// return these (optionally wrapped) so services can translate them into
// domain errors.
//
// - ErrNotFound: record does not exist in the store
// - ErrAlreadyUsed: a unique value (username, email) is already taken
// - ErrUnauthorized: credentials did not verify
// - ErrExpired: session or token has expired
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrUnauthorized = errors.New("unauthorized")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
