// Package kafka publishes registration events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"signup/internal/registration/models"
	"signup/pkg/platform/circuit"
	"signup/pkg/platform/sentinel"
	"signup/pkg/requestcontext"
)

const headerEvent = "event"

// Producer is the part of *kgo.Client the sink uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Message is the JSON record body.
type Message struct {
	Event      string    `json:"event"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// Sink is an events.Subscriber that produces one record per event. While
// the broker keeps failing, the breaker opens and events are refused
// without a produce attempt.
type Sink struct {
	producer Producer
	topic    string
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

type Option func(*Sink)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		s.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Sink) {
		if b != nil {
			s.breaker = b
		}
	}
}

func NewSink(producer Producer, topic string, opts ...Option) *Sink {
	s := &Sink{
		producer: producer,
		topic:    topic,
		breaker:  circuit.New("kafka"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) Name() string { return "kafka" }

func (s *Sink) Handle(ctx context.Context, event string, payload any) error {
	if !s.breaker.Allow() {
		return fmt.Errorf("kafka sink: circuit open: %w", sentinel.ErrUnavailable)
	}

	body, err := json.Marshal(Message{
		Event:      event,
		OccurredAt: requestcontext.Now(ctx),
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("kafka sink: encode %s: %w", event, err)
	}
	record := &kgo.Record{
		Topic:   s.topic,
		Key:     recordKey(payload),
		Value:   body,
		Headers: []kgo.RecordHeader{{Key: headerEvent, Value: []byte(event)}},
	}

	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		s.recordFailure(ctx, err)
		return fmt.Errorf("kafka sink: produce %s: %w", event, err)
	}
	if _, change := s.breaker.RecordSuccess(); change.Closed && s.logger != nil {
		s.logger.InfoContext(ctx, "kafka circuit closed", "topic", s.topic)
	}
	return nil
}

func (s *Sink) recordFailure(ctx context.Context, err error) {
	// A cancelled request says nothing about broker health.
	if errors.Is(err, context.Canceled) {
		return
	}
	if _, change := s.breaker.RecordFailure(); change.Opened && s.logger != nil {
		s.logger.WarnContext(ctx, "kafka circuit opened", "topic", s.topic, "error", err)
	}
}

// recordKey partitions registration events by user so a consumer sees one
// user's events in order.
func recordKey(payload any) []byte {
	switch p := payload.(type) {
	case models.UserRegistered:
		return []byte(p.UserID.String())
	case *models.UserRegistered:
		if p != nil {
			return []byte(p.UserID.String())
		}
	}
	return nil
}
