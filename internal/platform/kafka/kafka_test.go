package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signup/internal/platform/config"
)

func TestNewClient_NoBrokers(t *testing.T) {
	client, err := NewClient(config.Kafka{Topic: "registration.events"})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewClient_Configured(t *testing.T) {
	client, err := NewClient(config.Kafka{Brokers: []string{"127.0.0.1:1"}, Topic: "registration.events"})
	require.NoError(t, err)
	require.NotNil(t, client)
	client.Close()
}
