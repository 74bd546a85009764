// Package sagax is a runtime for long-running, event-driven sagas.
//
// A saga is declared with a fluent builder: each state lists the event types
// it accepts, the primary handler for each, side-effecting reactions run in
// declared order, and the next state. The resulting Engine is driven one
// event at a time by its host:
//
//	engine, err := sagax.New[*Order]("placed").
//		When("paid", charge).Then(reserveStock).
//		Next("shipping").
//		During("shipping").
//		When("shipped", notify).Complete().
//		Build(sagax.WithPayload(&Order{}))
//
// Observers receive a "transition" notification for every state change and
// an "end" notification once a completing event has been handled.
package sagax

import (
	"context"

	"github.com/comalice/sagax/internal/core"
	"github.com/comalice/sagax/internal/primitives"
)

// Core types.
type (
	State        = primitives.State
	Event        = primitives.Event
	Notification = core.Notification
	Observer     = core.Observer
	ObserverFunc = core.ObserverFunc
	Option       = core.Option
	Runner       = core.Runner
	RunnerFunc   = core.RunnerFunc
	Invocation   = core.Invocation
	HandlerError = core.HandlerError
	Layout       = core.Layout
	EventSource  = core.EventSource

	Handler[T any]    = core.Handler[T]
	Engine[T any]     = core.Engine[T]
	StateView[T any]  = core.StateView[T]
	Registry[T any]   = core.Registry[T]
	Record[T any]     = core.Record[T]
	Repository[T any] = core.Repository[T]
)

// Terminal is the state of a completed saga.
const Terminal = primitives.Terminal

// Notification kinds.
const (
	KindTransition = core.KindTransition
	KindEnd        = core.KindEnd
)

// Errors.
var (
	ErrNotFound          = core.ErrNotFound
	ErrUnknownState      = core.ErrUnknownState
	ErrVersionMismatch   = core.ErrVersionMismatch
	ErrInvalidDefinition = core.ErrInvalidDefinition
	ErrFrozen            = core.ErrFrozen
	ErrPayloadType       = core.ErrPayloadType
)

// Engine options.
var (
	WithLogger     = core.WithLogger
	WithObserver   = core.WithObserver
	WithRunner     = core.WithRunner
	WithInstanceID = core.WithInstanceID
	WithClock      = core.WithClock
)

// WithPayload sets the payload shared by every handler of the instance.
func WithPayload[T any](payload T) Option {
	return core.WithPayload(payload)
}

// Await adapts a function returning a completion channel into a Handler.
// A nil or closed channel without a value counts as success.
func Await[T any](fn func(ctx context.Context, payload T, evt Event) <-chan error) Handler[T] {
	return core.Await(fn)
}

// NewEvent creates an event with a random id, dated now.
func NewEvent(eventType string, payload any) Event {
	return primitives.NewEvent(eventType, payload)
}
