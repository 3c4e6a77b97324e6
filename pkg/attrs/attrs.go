// Package attrs reads values back out of slog-style key/value slices so a
// single attribute list can feed both the logger and the audit publisher.
package attrs

import (
	"fmt"

	id "signup/pkg/domain"
)

// Lookup returns the value following key in [k1, v1, k2, v2, ...].
func Lookup(attrs []any, key string) (any, bool) {
	for i := 0; i < len(attrs)-1; i += 2 {
		if k, ok := attrs[i].(string); ok && k == key {
			return attrs[i+1], true
		}
	}
	return nil, false
}

// String returns the value for key formatted as a string, or "".
func String(attrs []any, key string) string {
	v, ok := Lookup(attrs, key)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// UserID returns the id.UserID stored under key. Decimal strings are
// accepted; anything else yields the zero ID.
func UserID(attrs []any, key string) id.UserID {
	v, _ := Lookup(attrs, key)
	switch t := v.(type) {
	case id.UserID:
		return t
	case string:
		uid, err := id.ParseUserID(t)
		if err != nil {
			return 0
		}
		return uid
	}
	return 0
}
