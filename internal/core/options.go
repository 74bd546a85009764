// Package core provides the runtime core tier of the saga engine.
// Options for configuring Engine instances.
package core

import (
	"log/slog"
	"time"
)

// Option applies configuration to an Engine via the functional options pattern.
type Option func(*settings)

type settings struct {
	id         string
	logger     *slog.Logger
	observers  []Observer
	runner     Runner
	payload    any
	hasPayload bool
	clock      func() time.Time
}

// WithLogger configures the Engine logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithObserver registers an Observer for lifecycle notifications.
func WithObserver(o Observer) Option {
	return func(s *settings) {
		s.observers = append(s.observers, o)
	}
}

// WithRunner configures the Runner used to invoke handlers.
func WithRunner(r Runner) Option {
	return func(s *settings) {
		s.runner = r
	}
}

// WithPayload sets the payload shared by every handler of the instance.
// Its type must match the engine's payload type.
func WithPayload[T any](payload T) Option {
	return func(s *settings) {
		s.payload = payload
		s.hasPayload = true
	}
}

// WithInstanceID sets the instance (entity) id. The default is a random UUID.
func WithInstanceID(id string) Option {
	return func(s *settings) {
		s.id = id
	}
}

// WithClock overrides the notification timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(s *settings) {
		s.clock = clock
	}
}
