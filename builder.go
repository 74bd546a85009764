package sagax

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/comalice/sagax/internal/core"
)

// BuildOption configures a saga definition.
type BuildOption func(*buildSettings)

type buildSettings struct {
	logger *slog.Logger
}

// WithDefinitionLogger sets the logger used for registration warnings.
// The default discards output.
func WithDefinitionLogger(logger *slog.Logger) BuildOption {
	return func(s *buildSettings) {
		s.logger = logger
	}
}

// definition is the only state shared between scopes. Registration errors
// are collected and reported by Build.
type definition[T any] struct {
	registry *core.Registry[T]
	errs     []error
}

func (d *definition[T]) record(err error) {
	if err != nil {
		d.errs = append(d.errs, err)
	}
}

func (d *definition[T]) err() error {
	if len(d.errs) == 0 {
		return nil
	}
	return errors.Join(append([]error{ErrInvalidDefinition}, d.errs...)...)
}

func (d *definition[T]) freeze() (*Registry[T], error) {
	if err := d.err(); err != nil {
		return nil, err
	}
	if err := d.registry.Freeze(); err != nil {
		return nil, err
	}
	return d.registry, nil
}

func (d *definition[T]) build(opts ...Option) (*Engine[T], error) {
	reg, err := d.freeze()
	if err != nil {
		return nil, err
	}
	return core.NewEngine(reg, opts...)
}

// StateScope declares the events accepted by one state.
type StateScope[T any] struct {
	def   *definition[T]
	state State
}

// EventScope is bound to one (state, event type) pair.
type EventScope[T any] struct {
	def       *definition[T]
	state     State
	eventType string
}

// NextScope follows a transition declaration.
type NextScope[T any] struct {
	def  *definition[T]
	from State
	to   State
}

// New starts a saga definition whose instances begin in initial.
func New[T any](initial State, opts ...BuildOption) *StateScope[T] {
	s := &buildSettings{}
	for _, opt := range opts {
		opt(s)
	}
	def := &definition[T]{registry: core.NewRegistry[T](initial, s.logger)}
	if initial == Terminal {
		def.record(fmt.Errorf("%w: initial state is required", ErrInvalidDefinition))
	}
	return &StateScope[T]{def: def, state: initial}
}

// State returns the state the scope declares.
func (s *StateScope[T]) State() State { return s.state }

// When accepts eventType in the scope's state. primary may be nil, in which
// case only reactions run. The first declaration of a pair wins.
func (s *StateScope[T]) When(eventType string, primary Handler[T]) *EventScope[T] {
	s.def.record(s.def.registry.RegisterHandler(s.state, eventType, primary))
	return &EventScope[T]{def: s.def, state: s.state, eventType: eventType}
}

// State returns the state the scope is bound to.
func (e *EventScope[T]) State() State { return e.state }

// EventType returns the event type the scope is bound to.
func (e *EventScope[T]) EventType() string { return e.eventType }

// When accepts another event type in the same state.
func (e *EventScope[T]) When(eventType string, primary Handler[T]) *EventScope[T] {
	return (&StateScope[T]{def: e.def, state: e.state}).When(eventType, primary)
}

// Then appends a reaction run after the primary handler.
func (e *EventScope[T]) Then(reaction Handler[T]) *EventScope[T] {
	e.def.record(e.def.registry.RegisterReaction(e.state, e.eventType, reaction))
	return e
}

// Next sets the state entered after any handled event in the scope's state.
// A later Next for the same state replaces it. The target must be declared
// with During, or be the last call before Build.
func (e *EventScope[T]) Next(target State) *NextScope[T] {
	if target == Terminal {
		e.def.record(fmt.Errorf("%w: empty next state for %s, use Complete", ErrInvalidDefinition, e.state))
	} else {
		e.def.record(e.def.registry.RegisterTransition(e.state, target))
	}
	return &NextScope[T]{def: e.def, from: e.state, to: target}
}

// Complete makes the scope's event finish the saga: the state moves to
// Terminal and observers receive "end".
func (e *EventScope[T]) Complete() *EventScope[T] {
	e.def.record(e.def.registry.MarkComplete(e.state, e.eventType))
	return e
}

// Registry validates and freezes the definition. Hosts pass it to a
// coordinator that creates engines on demand.
func (e *EventScope[T]) Registry() (*Registry[T], error) {
	return e.def.freeze()
}

// Build freezes the definition and creates an engine positioned at the
// initial state. Build may be called repeatedly to create more instances of
// the same definition.
func (e *EventScope[T]) Build(opts ...Option) (*Engine[T], error) {
	return e.def.build(opts...)
}

// From returns the state the transition leaves.
func (n *NextScope[T]) From() State { return n.from }

// To returns the transition target.
func (n *NextScope[T]) To() State { return n.to }

// During opens the declaration of state, usually the target just named.
func (n *NextScope[T]) During(state State) *StateScope[T] {
	n.def.record(n.def.registry.RegisterState(state))
	return &StateScope[T]{def: n.def, state: state}
}

// Registry declares the target as a state without handlers, then validates
// and freezes the definition.
func (n *NextScope[T]) Registry() (*Registry[T], error) {
	n.declareTarget()
	return n.def.freeze()
}

// Build declares the target as a state without handlers and creates an
// engine. An instance that reaches the target stays there.
func (n *NextScope[T]) Build(opts ...Option) (*Engine[T], error) {
	n.declareTarget()
	return n.def.build(opts...)
}

func (n *NextScope[T]) declareTarget() {
	if n.to == Terminal || n.def.registry.Frozen() {
		return
	}
	n.def.record(n.def.registry.RegisterState(n.to))
}
