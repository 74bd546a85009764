package core

import (
	"context"
)

// StateView exposes the reaction lists of one state. It is independent of
// the engine's current position.
type StateView[T any] struct {
	state  State
	events map[string]*StateEvent[T]
	engine *Engine[T]
}

// State returns the state label the view is bound to.
func (v *StateView[T]) State() State { return v.state }

// EventTypes returns the event types registered for the state.
func (v *StateView[T]) EventTypes() []string {
	return v.engine.registry.EventsForState(v.state)
}

// Dispatch runs the reactions registered for evt.Type in registration order,
// each to completion, with the engine's payload. An unknown event type is a
// no-op. The first failing reaction aborts the rest.
func (v *StateView[T]) Dispatch(ctx context.Context, evt Event) error {
	se, ok := v.events[evt.Type]
	if !ok {
		return nil
	}
	for i, re := range se.reactions {
		if re.dispose {
			v.engine.dispose(ctx)
			continue
		}
		inv := Invocation{
			InstanceID: v.engine.id,
			State:      v.state,
			Event:      evt,
			Stage:      StageReaction,
			Index:      i,
		}
		if err := v.engine.run(ctx, inv, re.fn, evt); err != nil {
			return err
		}
	}
	return nil
}
