package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	upErr   error
	version uint
	dirty   bool
	upCalls int
	closed  bool
}

func (f *fakeMigrator) Up() error {
	f.upCalls++
	return f.upErr
}

func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, f.dirty, nil }

func (f *fakeMigrator) Close() error {
	f.closed = true
	return nil
}

// useMigrator records the URL the command resolved and returns fake.
func useMigrator(t *testing.T, fake *fakeMigrator, openErr error) *string {
	t.Helper()
	var gotURL string
	prev := newMigrator
	newMigrator = func(databaseURL string) (migrator, error) {
		gotURL = databaseURL
		if openErr != nil {
			return nil, openErr
		}
		return fake, nil
	}
	t.Cleanup(func() { newMigrator = prev })
	return &gotURL
}

func TestMigrateUp_UsesEnvironmentURL(t *testing.T) {
	fake := &fakeMigrator{}
	gotURL := useMigrator(t, fake, nil)

	out, err := execute(t, map[string]string{"DATABASE_URL": "postgres://env/signup"}, "migrate", "up")
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/signup", *gotURL)
	assert.Equal(t, 1, fake.upCalls)
	assert.True(t, fake.closed)
	assert.Contains(t, out, "Migrations completed successfully")
}

func TestMigrateUp_FlagOverridesEnvironment(t *testing.T) {
	gotURL := useMigrator(t, &fakeMigrator{}, nil)

	_, err := execute(t, map[string]string{"DATABASE_URL": "postgres://env/signup"},
		"migrate", "up", "--database-url", "postgres://flag/signup")
	require.NoError(t, err)
	assert.Equal(t, "postgres://flag/signup", *gotURL)
}

func TestMigrateUp_Errors(t *testing.T) {
	tests := []struct {
		name     string
		environ  map[string]string
		fake     *fakeMigrator
		openErr  error
		wantCode string
	}{
		{
			name:     "no database url",
			fake:     &fakeMigrator{},
			wantCode: "CONFIG_INVALID",
		},
		{
			name:     "open fails",
			environ:  map[string]string{"DATABASE_URL": "postgres://env/signup"},
			openErr:  errors.New("dial tcp: connection refused"),
			wantCode: "DB_CONNECT_FAILED",
		},
		{
			name:     "up fails",
			environ:  map[string]string{"DATABASE_URL": "postgres://env/signup"},
			fake:     &fakeMigrator{upErr: errors.New("syntax error")},
			wantCode: "MIGRATION_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useMigrator(t, tt.fake, tt.openErr)
			_, err := execute(t, tt.environ, "migrate", "up")
			require.Error(t, err)
			assertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestMigrateVersion(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeMigrator
		want string
	}{
		{name: "nothing applied", fake: &fakeMigrator{}, want: "No migrations applied"},
		{name: "clean", fake: &fakeMigrator{version: 3}, want: "Version 3\n"},
		{name: "dirty", fake: &fakeMigrator{version: 2, dirty: true}, want: "Version 2 (dirty)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useMigrator(t, tt.fake, nil)
			out, err := execute(t, nil, "migrate", "version", "--database-url", "postgres://flag/signup")
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
			assert.True(t, tt.fake.closed)
		})
	}
}
