// Package domain holds typed identifiers shared across bounded contexts.
//
// User keys are numeric because generated usernames embed them; session and
// event keys are UUIDs minted by this service.
package domain

import (
	"strconv"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "signup/pkg/domain-errors"
)

// UserID is the numeric primary key assigned by the user store.
type UserID int64

// SessionID identifies an authenticated session.
type SessionID uuid.UUID

// EventID identifies a published domain event.
type EventID uuid.UUID

func (u UserID) IsNil() bool    { return u <= 0 }
func (u UserID) String() string { return strconv.FormatInt(int64(u), 10) }

func (s SessionID) IsNil() bool    { return uuid.UUID(s) == uuid.Nil }
func (s SessionID) String() string { return uuid.UUID(s).String() }

func (e EventID) IsNil() bool    { return uuid.UUID(e) == uuid.Nil }
func (e EventID) String() string { return uuid.UUID(e).String() }

// MarshalText encodes the session ID in canonical UUID form for JSON.
func (s SessionID) MarshalText() ([]byte, error) { return uuid.UUID(s).MarshalText() }

func (s *SessionID) UnmarshalText(b []byte) error {
	parsed, err := ParseSessionID(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (e EventID) MarshalText() ([]byte, error) { return uuid.UUID(e).MarshalText() }

func (e *EventID) UnmarshalText(b []byte) error {
	parsed, err := ParseEventID(string(b))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// NewSessionID mints a random session identifier.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// NewEventID mints a random event identifier.
func NewEventID() EventID { return EventID(uuid.New()) }

// ParseUserID parses a positive decimal user key.
func ParseUserID(s string) (UserID, error) {
	if s == "" || !utf8.ValidString(s) {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "user ID required")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	// canonical form only: no sign, padding, or leading zeros
	if err != nil || n <= 0 || strconv.FormatInt(n, 10) != s {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid user ID")
	}
	return UserID(n), nil
}

// ParseSessionID parses a non-nil UUID session key.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session ID")
	return SessionID(u), err
}

// ParseEventID parses a non-nil UUID event key.
func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID(s, "event ID")
	return EventID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" required")
	}
	if !utf8.ValidString(s) || len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	u, err := uuid.Parse(s)
	if err != nil || u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	return u, nil
}
