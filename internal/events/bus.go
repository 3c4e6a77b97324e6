// Package events fans registration notifications out to subscribers.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Subscriber receives published events. Handle must be safe for concurrent
// use; the bus calls every subscriber of an event at the same time.
type Subscriber interface {
	Name() string
	Handle(ctx context.Context, event string, payload any) error
}

// Bus is an in-process EventSink. Subscribers are registered per event name.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]Subscriber
	logger *slog.Logger
}

type Option func(*Bus)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

func NewBus(opts ...Option) *Bus {
	b := &Bus{subs: make(map[string][]Subscriber)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers sub for event. Subscribers are called in no
// particular order.
func (b *Bus) Subscribe(event string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[event] = append(b.subs[event], sub)
}

// Subscribers returns the names of the subscribers registered for event.
func (b *Bus) Subscribers(event string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.subs[event]))
	for _, sub := range b.subs[event] {
		names = append(names, sub.Name())
	}
	return names
}

// Publish delivers payload to every subscriber of event concurrently and
// waits for all of them. One failing subscriber does not stop the others;
// their errors are joined.
func (b *Bus) Publish(ctx context.Context, event string, payload any) error {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[event]...)
	b.mu.RUnlock()
	if len(subs) == 0 {
		return nil
	}

	errs := make([]error, len(subs))
	var g errgroup.Group
	for i, sub := range subs {
		g.Go(func() error {
			errs[i] = deliver(ctx, sub, event, payload)
			return nil
		})
	}
	_ = g.Wait()

	err := errors.Join(errs...)
	if err != nil && b.logger != nil {
		b.logger.WarnContext(ctx, "event delivery failed", "event", event, "error", err)
	}
	return err
}

func deliver(ctx context.Context, sub Subscriber, event string, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", sub.Name(), r)
		}
	}()
	if err := sub.Handle(ctx, event, payload); err != nil {
		return fmt.Errorf("%s: %w", sub.Name(), err)
	}
	return nil
}
