//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"signup/internal/events"
	eventskafka "signup/internal/events/kafka"
	"signup/internal/platform/config"
	platformkafka "signup/internal/platform/kafka"
	"signup/internal/registration/models"
	"signup/pkg/testutil/containers"
)

func TestSinkPublishesToRedpanda(t *testing.T) {
	broker := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := config.Kafka{Brokers: broker.Brokers, Topic: "registration.events.it", Partitions: 1, ReplicationFactor: 1}
	producer, err := platformkafka.NewClient(cfg)
	require.NoError(t, err)
	defer producer.Close()
	require.NoError(t, platformkafka.EnsureTopic(ctx, producer, cfg))
	// Creating an existing topic is not an error.
	require.NoError(t, platformkafka.EnsureTopic(ctx, producer, cfg))

	bus := events.NewBus()
	bus.Subscribe(models.EventUserRegistered, eventskafka.NewSink(producer, cfg.Topic))
	require.NoError(t, bus.Publish(ctx, models.EventUserRegistered, models.UserRegistered{
		UserID:   7,
		Username: "jane",
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)
	require.Equal(t, "7", string(records[0].Key))

	var msg eventskafka.Message
	require.NoError(t, json.Unmarshal(records[0].Value, &msg))
	require.Equal(t, models.EventUserRegistered, msg.Event)
}
