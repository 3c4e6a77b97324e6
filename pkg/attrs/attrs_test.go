package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	id "signup/pkg/domain"
)

func TestString(t *testing.T) {
	kv := []any{"user_id", id.UserID(42), "email", "jane@example.org", 7, "ignored", "dangling"}

	assert.Equal(t, "jane@example.org", String(kv, "email"))
	assert.Equal(t, "42", String(kv, "user_id"))
	assert.Equal(t, "", String(kv, "missing"))
	assert.Equal(t, "", String(kv, "dangling"), "odd trailing key has no value")
}

func TestUserID(t *testing.T) {
	tests := []struct {
		name string
		kv   []any
		want id.UserID
	}{
		{"typed", []any{"user_id", id.UserID(7)}, 7},
		{"decimal string", []any{"user_id", "12"}, 12},
		{"garbage", []any{"user_id", "abc"}, 0},
		{"absent", []any{"email", "x"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserID(tt.kv, "user_id"))
		})
	}
}
