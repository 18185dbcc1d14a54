// Package events delivers match lifecycle events to external systems.
// Delivery is best-effort: a sink that cannot publish logs and moves on.
package events

import (
	"context"
	"errors"
	"log/slog"

	"codebattle-server/domain"
)

// Multi fans every event out to each sink in order.
type Multi []domain.EventSink

func (m Multi) Publish(ctx context.Context, ev domain.Event) {
	for _, s := range m {
		s.Publish(ctx, ev)
	}
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes events to the default logger at debug level.
type Log struct{}

func (Log) Publish(_ context.Context, ev domain.Event) {
	slog.Debug("match event", "kind", ev.Kind, "room", ev.Room, "clientId", ev.ClientID,
		"problem", ev.Problem, "passed", ev.Passed, "total", ev.Total)
}

func (Log) Close() error { return nil }
