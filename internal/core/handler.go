package core

import (
	"context"

	"github.com/comalice/sagax/internal/primitives"
)

// Handler is the single contract for primary handlers and reactions.
// payload is the instance's shared payload; the engine waits for the
// handler to return before moving on.
type Handler[T any] func(ctx context.Context, payload T, evt primitives.Event) error

// Await adapts a handler that signals completion on a channel. The returned
// Handler blocks until a value is received or the channel is closed; a
// closed channel or a nil channel means success. No timeout is applied.
func Await[T any](fn func(ctx context.Context, payload T, evt primitives.Event) <-chan error) Handler[T] {
	return func(ctx context.Context, payload T, evt primitives.Event) error {
		done := fn(ctx, payload, evt)
		if done == nil {
			return nil
		}
		return <-done
	}
}

// Invocation describes one handler call for a Runner.
type Invocation struct {
	InstanceID string
	State      primitives.State
	Event      primitives.Event
	Stage      Stage
	Index      int
}

// Runner executes handler calls. Implementations may decorate the call
// (logging, tracing) but must invoke call exactly once and return its error.
type Runner interface {
	Run(ctx context.Context, inv Invocation, call func(context.Context) error) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, inv Invocation, call func(context.Context) error) error

func (f RunnerFunc) Run(ctx context.Context, inv Invocation, call func(context.Context) error) error {
	return f(ctx, inv, call)
}
