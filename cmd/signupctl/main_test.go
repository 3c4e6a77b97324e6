package main

import (
	"bytes"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signup/internal/platform/config"
)

// execute runs the root command with args against an explicit environment.
func execute(t *testing.T, environ map[string]string, args ...string) (string, error) {
	t.Helper()
	if environ == nil {
		// nil would make LoadFrom fall back to the process environment
		environ = map[string]string{}
	}
	prev := loadConfig
	loadConfig = func() (config.Config, error) { return config.LoadFrom(environ) }
	t.Cleanup(func() { loadConfig = prev })

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, oopsErr.Code())
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()
	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "schema")
	assert.Contains(t, names, "migrate")
}
