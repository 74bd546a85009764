// Package builder provides reusable handlers for saga definitions.
package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/comalice/sagax"
)

// ErrMissingKey is returned by Require when a payload key is absent.
var ErrMissingKey = errors.New("missing payload key")

// Guard decides whether a handler should run for an event.
type Guard[T any] func(payload T, evt sagax.Event) bool

// Noop accepts the event without doing anything.
func Noop[T any]() sagax.Handler[T] {
	return func(context.Context, T, sagax.Event) error { return nil }
}

// Chain runs handlers in order and stops at the first error.
func Chain[T any](handlers ...sagax.Handler[T]) sagax.Handler[T] {
	return func(ctx context.Context, payload T, evt sagax.Event) error {
		for _, h := range handlers {
			if h == nil {
				continue
			}
			if err := h(ctx, payload, evt); err != nil {
				return err
			}
		}
		return nil
	}
}

// When runs h only if g admits the event.
func When[T any](g Guard[T], h sagax.Handler[T]) sagax.Handler[T] {
	return func(ctx context.Context, payload T, evt sagax.Event) error {
		if g != nil && !g(payload, evt) {
			return nil
		}
		return h(ctx, payload, evt)
	}
}

// Log writes one debug line per handled event.
func Log[T any](logger *slog.Logger, msg string) sagax.Handler[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, _ T, evt sagax.Event) error {
		logger.DebugContext(ctx, msg, "event", evt.Type, "eventId", evt.ID)
		return nil
	}
}

// Set stores value under key.
func Set(key string, value any) sagax.Handler[*sagax.Bag] {
	return func(_ context.Context, b *sagax.Bag, _ sagax.Event) error {
		b.Set(key, value)
		return nil
	}
}

// Store saves the event payload under key.
func Store(key string) sagax.Handler[*sagax.Bag] {
	return func(_ context.Context, b *sagax.Bag, evt sagax.Event) error {
		b.Set(key, evt.Payload)
		return nil
	}
}

// Require fails when any of keys is absent.
func Require(keys ...string) sagax.Handler[*sagax.Bag] {
	return func(_ context.Context, b *sagax.Bag, _ sagax.Event) error {
		for _, k := range keys {
			if _, ok := b.Get(k); !ok {
				return fmt.Errorf("%w: %s", ErrMissingKey, k)
			}
		}
		return nil
	}
}

// Has is a Guard admitting events once key is present.
func Has(key string) Guard[*sagax.Bag] {
	return func(b *sagax.Bag, _ sagax.Event) bool {
		_, ok := b.Get(key)
		return ok
	}
}
