// Package services holds the use cases behind the HTTP API and the command line tools.
// Services validate input, enforce ownership through the store ports, keep the
// stats cache coherent and publish change events.
package services

import (
	"context"
	"log/slog"

	"spendlog/internal/amqp"
	applog "spendlog/internal/log"
)

// EventPublisher sends change events downstream. *amqp.Client implements it.
type EventPublisher interface {
	Publish(ctx context.Context, ev *amqp.Event) error
}

// Invalidator drops cached read snapshots after writes. *StatsService implements it.
type Invalidator interface {
	Invalidate(userID string)
	InvalidateAll()
}

type notifier struct {
	events EventPublisher
	cache  Invalidator
}

func (n notifier) invalidate(userID string) {
	if n.cache != nil {
		n.cache.Invalidate(userID)
	}
}

// publish never fails the caller; the write already succeeded.
func (n notifier) publish(ctx context.Context, ev *amqp.Event) {
	if n.events == nil {
		slog.DebugContext(ctx, "Event publisher not configured, skipping event", "type", ev.Type)
		return
	}
	if err := n.events.Publish(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish event",
			applog.FieldComponent, applog.ComponentAMQP,
			"type", ev.Type,
			"id", ev.ID,
			applog.FieldError, err)
	}
}
