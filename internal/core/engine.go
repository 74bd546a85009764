// Package core provides the runtime core tier of the saga engine.
// This includes the Engine runtime, the handler registry and transition
// table, state views and the pluggable runner/observer/repository contracts.
//
// An Engine is driven one event at a time by its host. It performs no
// locking: concurrent HandleEvent calls on the same Engine are a host bug.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/comalice/sagax/internal/primitives"
)

// Engine is the runtime instance of a saga definition.
type Engine[T any] struct {
	id       string
	registry *Registry[T]
	current  State
	payload  T
	ended    bool

	// set while HandleEvent runs; dispose defers "end" until the
	// transition step has completed.
	handling   bool
	pendingEnd bool

	lastEventID   string
	lastEventDate time.Time

	observers []Observer
	runner    Runner
	base      *slog.Logger
	logger    *slog.Logger
	clock     func() time.Time
}

// NewEngine freezes registry and creates an instance positioned at its
// initial state.
func NewEngine[T any](registry *Registry[T], opts ...Option) (*Engine[T], error) {
	if registry == nil {
		return nil, fmt.Errorf("%w: nil registry", ErrInvalidDefinition)
	}
	if err := registry.Freeze(); err != nil {
		return nil, err
	}

	s := &settings{}
	for _, opt := range opts {
		opt(s)
	}

	e := &Engine[T]{
		id:        s.id,
		registry:  registry,
		current:   registry.Initial(),
		observers: s.observers,
		runner:    s.runner,
		logger:    s.logger,
		clock:     s.clock,
	}
	if s.hasPayload {
		p, ok := s.payload.(T)
		if !ok {
			return nil, fmt.Errorf("%w: got %T, want %T", ErrPayloadType, s.payload, e.payload)
		}
		e.payload = p
	}
	if e.id == "" {
		e.id = uuid.NewString()
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	e.base = e.logger
	e.logger = e.base.With("instance", e.id)

	return e, nil
}

// Subscribe registers an observer after construction.
func (e *Engine[T]) Subscribe(o Observer) {
	e.observers = append(e.observers, o)
}

// ID returns the instance id.
func (e *Engine[T]) ID() string { return e.id }

// StartsAt returns the initial state.
func (e *Engine[T]) StartsAt() State { return e.registry.Initial() }

// IsAt returns the current state; primitives.Terminal once completed.
func (e *Engine[T]) IsAt() State { return e.current }

// Ended reports whether the "end" notification has been emitted.
func (e *Engine[T]) Ended() bool { return e.ended }

// Payload returns the shared payload.
func (e *Engine[T]) Payload() T { return e.payload }

// Registry returns the frozen definition.
func (e *Engine[T]) Registry() *Registry[T] { return e.registry }

// Version returns the definition fingerprint.
func (e *Engine[T]) Version() string { return e.registry.Version() }

// States returns the known states, initial first.
func (e *Engine[T]) States() []State { return e.registry.States() }

// Events returns every event type the saga knows about.
func (e *Engine[T]) Events() []string { return e.registry.Events() }

// EventsForState returns the event types handled in state.
func (e *Engine[T]) EventsForState(state State) []string {
	return e.registry.EventsForState(state)
}

// Handles reports whether the current state has handlers for eventType.
func (e *Engine[T]) Handles(eventType string) bool {
	_, ok := e.registry.bucket(e.current)[eventType]
	return ok
}

// State returns a view over state's reactions, or nil when state is unknown.
func (e *Engine[T]) State(state State) *StateView[T] {
	if !e.registry.Known(state) {
		return nil
	}
	return &StateView[T]{
		state:  state,
		events: e.registry.bucket(state),
		engine: e,
	}
}

// HandleEvent processes exactly one event:
//  1. no handlers for the current state or event type: no-op
//  2. run the primary handler, if any
//  3. run the state's reactions in registration order
//  4. move to the registered target, notifying observers
//
// A handler error aborts the call and is returned as *HandlerError; the
// current state is left unchanged.
func (e *Engine[T]) HandleEvent(ctx context.Context, evt Event) error {
	bucket := e.registry.bucket(e.current)
	if bucket == nil {
		e.logger.Debug("no handlers for state", "state", e.current, "event", evt.Type)
		return nil
	}
	se, ok := bucket[evt.Type]
	if !ok {
		e.logger.Debug("event not handled in state", "state", e.current, "event", evt.Type)
		return nil
	}

	e.logger.Debug("handling event", "state", e.current, "event", evt.Type, "eventId", evt.ID)
	e.handling = true
	e.pendingEnd = false
	defer func() {
		e.handling = false
		e.pendingEnd = false
	}()

	if se.primary != nil {
		inv := Invocation{
			InstanceID: e.id,
			State:      e.current,
			Event:      evt,
			Stage:      StagePrimary,
		}
		if err := e.run(ctx, inv, se.primary, evt); err != nil {
			return err
		}
	}

	if view := e.State(e.current); view != nil {
		if err := view.Dispatch(ctx, evt); err != nil {
			return err
		}
	}

	e.lastEventID = evt.ID
	e.lastEventDate = evt.Date
	e.transition(ctx)

	if e.pendingEnd {
		e.end(ctx)
	}
	return nil
}

func (e *Engine[T]) run(ctx context.Context, inv Invocation, fn Handler[T], evt Event) error {
	call := func(ctx context.Context) error {
		return fn(ctx, e.payload, evt)
	}

	var err error
	if e.runner != nil {
		err = e.runner.Run(ctx, inv, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return &HandlerError{
			State:     inv.State,
			EventType: inv.Event.Type,
			Stage:     inv.Stage,
			Index:     inv.Index,
			Err:       err,
		}
	}
	return nil
}

func (e *Engine[T]) transition(ctx context.Context) {
	from := e.current
	to, ok := e.registry.Target(from)
	if !ok {
		e.logger.Warn("transition from state is unknown", "from", from)
		return
	}
	e.logger.Debug("transition", "from", from, "to", to)
	e.notify(ctx, Notification{Kind: KindTransition, From: from, To: to})
	e.current = to
}

// dispose is the reaction attached by MarkComplete. Inside HandleEvent the
// "end" notification waits for the transition step.
func (e *Engine[T]) dispose(ctx context.Context) {
	if e.handling {
		e.pendingEnd = true
		return
	}
	e.end(ctx)
}

func (e *Engine[T]) end(ctx context.Context) {
	e.pendingEnd = false
	if e.ended {
		return
	}
	e.ended = true
	e.logger.Debug("saga ended")
	e.notify(ctx, Notification{Kind: KindEnd})
}

func (e *Engine[T]) notify(ctx context.Context, n Notification) {
	n.InstanceID = e.id
	n.Timestamp = e.clock()
	for _, o := range e.observers {
		o.Notify(ctx, n)
	}
}

// Snapshot returns the persistable state of the instance.
func (e *Engine[T]) Snapshot() Record[T] {
	return Record[T]{
		ID:            e.id,
		Current:       e.current,
		Ended:         e.ended,
		Payload:       e.payload,
		LastEventID:   e.lastEventID,
		LastEventDate: e.lastEventDate,
		Version:       e.registry.Version(),
		UpdatedAt:     e.clock().UTC(),
	}
}

// Restore positions the instance from a stored record.
// Call before delivering events.
func (e *Engine[T]) Restore(rec Record[T]) error {
	if rec.Version != "" && rec.Version != e.registry.Version() {
		return fmt.Errorf("record %q: %w: have %s, record %s", rec.ID, ErrVersionMismatch, e.registry.Version(), rec.Version)
	}
	if rec.Current == primitives.Terminal {
		if !rec.Ended {
			return fmt.Errorf("record %q: %w: terminal state on a running saga", rec.ID, ErrUnknownState)
		}
	} else if !e.registry.Known(rec.Current) {
		return fmt.Errorf("record %q: %w: %s", rec.ID, ErrUnknownState, rec.Current)
	}

	if rec.ID != "" {
		e.id = rec.ID
		e.logger = e.base.With("instance", e.id)
	}
	e.current = rec.Current
	e.ended = rec.Ended
	e.payload = rec.Payload
	e.lastEventID = rec.LastEventID
	e.lastEventDate = rec.LastEventDate
	return nil
}

// LastEvent returns the id and date of the last handled event.
func (e *Engine[T]) LastEvent() (string, time.Time) {
	return e.lastEventID, e.lastEventDate
}
