package core

import (
	"errors"
	"fmt"

	"github.com/comalice/sagax/internal/primitives"
)

var (
	ErrNotFound          = errors.New("saga instance not found")
	ErrUnknownState      = errors.New("unknown state")
	ErrVersionMismatch   = errors.New("definition version mismatch")
	ErrInvalidDefinition = errors.New("invalid saga definition")
	ErrFrozen            = errors.New("saga definition is frozen")
	ErrPayloadType       = errors.New("payload type mismatch")
)

// Stage identifies which handler of a (state, event type) pair failed.
type Stage string

const (
	StagePrimary  Stage = "primary"
	StageReaction Stage = "reaction"
)

// HandlerError is returned by HandleEvent when a caller-supplied handler
// fails. The state has not advanced; reactions before Index have already run.
type HandlerError struct {
	State     primitives.State
	EventType string
	Stage     Stage
	Index     int // reaction index, 0 for the primary handler
	Err       error
}

func (e *HandlerError) Error() string {
	if e.Stage == StageReaction {
		return fmt.Sprintf("state %s, event %q: reaction %d: %v", e.State, e.EventType, e.Index, e.Err)
	}
	return fmt.Sprintf("state %s, event %q: %s handler: %v", e.State, e.EventType, e.Stage, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
