// Package core defines the handler registry and transition table for saga definitions.
package core

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/comalice/sagax/internal/primitives"
)

// State and Event shortcuts.
type (
	State = primitives.State
	Event = primitives.Event
)

// reaction is one entry of a reaction list. dispose entries are attached by
// MarkComplete and ask the engine to end the instance.
type reaction[T any] struct {
	fn      Handler[T]
	dispose bool
}

// StateEvent binds one primary handler and an ordered reaction list to a
// (state, event type) pair.
type StateEvent[T any] struct {
	eventType string
	primary   Handler[T]
	reactions []reaction[T]
}

// EventType returns the event type this entry is bound to.
func (se *StateEvent[T]) EventType() string { return se.eventType }

// HasPrimary reports whether a primary handler was registered.
func (se *StateEvent[T]) HasPrimary() bool { return se.primary != nil }

// Reactions returns the number of reactions, dispose reactions included.
func (se *StateEvent[T]) Reactions() int { return len(se.reactions) }

// Completes reports whether a dispose reaction is attached.
func (se *StateEvent[T]) Completes() bool {
	for _, r := range se.reactions {
		if r.dispose {
			return true
		}
	}
	return false
}

// Registry holds the handler registry (state -> event type -> StateEvent)
// and the transition table (state -> next state or Terminal).
// It is written during definition and read-only after Freeze.
type Registry[T any] struct {
	initial     State
	states      []State
	known       map[State]bool
	events      map[State]map[string]*StateEvent[T]
	eventOrder  map[State][]string
	transitions map[State]State
	frozen      bool
	version     string
	logger      *slog.Logger
}

// NewRegistry creates a registry whose known-state set starts with initial.
func NewRegistry[T any](initial State, logger *slog.Logger) *Registry[T] {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Registry[T]{
		initial:     initial,
		known:       make(map[State]bool),
		events:      make(map[State]map[string]*StateEvent[T]),
		eventOrder:  make(map[State][]string),
		transitions: make(map[State]State),
		logger:      logger,
	}
	if initial != primitives.Terminal {
		r.addState(initial)
	}
	return r
}

func (r *Registry[T]) addState(state State) {
	if r.known[state] {
		return
	}
	r.known[state] = true
	r.states = append(r.states, state)
}

func (r *Registry[T]) writable(op string, state State) error {
	if r.frozen {
		r.logger.Warn("registry is frozen", "op", op, "state", state)
		return fmt.Errorf("%s %s: %w", op, state, ErrFrozen)
	}
	if state == primitives.Terminal {
		return fmt.Errorf("%s: %w: empty state label", op, ErrInvalidDefinition)
	}
	return nil
}

// RegisterState adds state to the known-state set.
func (r *Registry[T]) RegisterState(state State) error {
	if err := r.writable("register state", state); err != nil {
		return err
	}
	r.addState(state)
	return nil
}

// RegisterHandler creates the StateEvent for (state, eventType) with an
// optional primary handler. The first registration wins; later ones are
// ignored.
func (r *Registry[T]) RegisterHandler(state State, eventType string, primary Handler[T]) error {
	if err := r.writable("register handler", state); err != nil {
		return err
	}
	if eventType == "" {
		return fmt.Errorf("register handler %s: %w: empty event type", state, ErrInvalidDefinition)
	}
	r.logger.Debug("register handler", "state", state, "event", eventType)
	r.addState(state)

	bucket, ok := r.events[state]
	if !ok {
		bucket = make(map[string]*StateEvent[T])
		r.events[state] = bucket
	}
	if _, exists := bucket[eventType]; exists {
		r.logger.Debug("handler already registered, ignoring", "state", state, "event", eventType)
		return nil
	}
	bucket[eventType] = &StateEvent[T]{eventType: eventType, primary: primary}
	r.eventOrder[state] = append(r.eventOrder[state], eventType)
	return nil
}

// RegisterTransition records the next state for from, replacing any prior
// target. to may be Terminal.
func (r *Registry[T]) RegisterTransition(from, to State) error {
	if err := r.writable("register transition", from); err != nil {
		return err
	}
	r.logger.Debug("register transition", "from", from, "to", to)
	r.transitions[from] = to
	return nil
}

// RegisterReaction appends reaction to the (state, eventType) reaction list.
// A missing pair is logged and ignored.
func (r *Registry[T]) RegisterReaction(state State, eventType string, reaction Handler[T]) error {
	if err := r.writable("register reaction", state); err != nil {
		return err
	}
	if reaction == nil {
		return fmt.Errorf("register reaction %s/%s: %w: nil reaction", state, eventType, ErrInvalidDefinition)
	}
	r.appendReaction(state, eventType, reactionOf(reaction))
	return nil
}

// MarkComplete makes (state, eventType) finish the saga: the transition
// from state becomes Terminal and a dispose reaction is appended.
func (r *Registry[T]) MarkComplete(state State, eventType string) error {
	if err := r.RegisterTransition(state, primitives.Terminal); err != nil {
		return err
	}
	r.logger.Debug("register complete", "state", state, "event", eventType)
	r.appendReaction(state, eventType, reaction[T]{dispose: true})
	return nil
}

func reactionOf[T any](fn Handler[T]) reaction[T] {
	return reaction[T]{fn: fn}
}

func (r *Registry[T]) appendReaction(state State, eventType string, re reaction[T]) {
	r.logger.Debug("register reaction", "state", state, "event", eventType)
	bucket, ok := r.events[state]
	if !ok {
		r.logger.Warn("missing state events for state", "state", state, "event", eventType)
		return
	}
	se, ok := bucket[eventType]
	if !ok {
		r.logger.Warn("missing event type for state", "state", state, "event", eventType)
		return
	}
	se.reactions = append(se.reactions, re)
}

// Validate checks that every transition leaves and enters a known state.
func (r *Registry[T]) Validate() error {
	var errs []error
	if r.initial == primitives.Terminal {
		errs = append(errs, errors.New("initial state is required"))
	}
	for _, from := range r.states {
		to, ok := r.transitions[from]
		if !ok || to == primitives.Terminal {
			continue
		}
		if !r.known[to] {
			errs = append(errs, fmt.Errorf("transition %s -> %s targets an undeclared state", from, to))
		}
	}
	for from := range r.transitions {
		if !r.known[from] {
			errs = append(errs, fmt.Errorf("transition from undeclared state %s", from))
		}
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidDefinition}, errs...)...)
	}
	return nil
}

// Freeze validates the registry and makes it read-only. Freezing twice is a
// no-op.
func (r *Registry[T]) Freeze() error {
	if r.frozen {
		return nil
	}
	if err := r.Validate(); err != nil {
		return err
	}
	r.version = primitives.ComputeVersion(r.Layout())
	r.frozen = true
	return nil
}

// Frozen reports whether Freeze succeeded.
func (r *Registry[T]) Frozen() bool { return r.frozen }

// Version returns the definition fingerprint; empty until frozen.
func (r *Registry[T]) Version() string { return r.version }

// Initial returns the initial state.
func (r *Registry[T]) Initial() State { return r.initial }

// Known reports whether state was declared.
func (r *Registry[T]) Known(state State) bool { return r.known[state] }

// States returns the known states in declaration order, initial first.
func (r *Registry[T]) States() []State {
	return append([]State(nil), r.states...)
}

// Events returns every distinct event type in declaration order.
func (r *Registry[T]) Events() []string {
	seen := make(map[string]bool)
	var out []string
	for _, state := range r.states {
		for _, eventType := range r.eventOrder[state] {
			if seen[eventType] {
				continue
			}
			seen[eventType] = true
			out = append(out, eventType)
		}
	}
	return out
}

// EventsForState returns the event types registered for state, in
// declaration order. Unknown states yield an empty list.
func (r *Registry[T]) EventsForState(state State) []string {
	return append([]string{}, r.eventOrder[state]...)
}

// Lookup returns the StateEvent for (state, eventType).
func (r *Registry[T]) Lookup(state State, eventType string) (*StateEvent[T], bool) {
	se, ok := r.events[state][eventType]
	return se, ok
}

// Target returns the transition target for state.
func (r *Registry[T]) Target(state State) (State, bool) {
	to, ok := r.transitions[state]
	return to, ok
}

func (r *Registry[T]) bucket(state State) map[string]*StateEvent[T] {
	return r.events[state]
}

// Layout is the serializable shape of a definition.
type Layout struct {
	Initial     State              `json:"initial" yaml:"initial"`
	States      []State            `json:"states" yaml:"states"`
	Events      map[State][]string `json:"events" yaml:"events"`
	Transitions map[State]State    `json:"transitions" yaml:"transitions"`
	Completes   map[State][]string `json:"completes,omitempty" yaml:"completes,omitempty"`
}

// Layout describes the registry without its handlers.
func (r *Registry[T]) Layout() Layout {
	l := Layout{
		Initial:     r.initial,
		States:      r.States(),
		Events:      make(map[State][]string),
		Transitions: make(map[State]State),
	}
	for _, state := range r.states {
		if events := r.eventOrder[state]; len(events) > 0 {
			l.Events[state] = append([]string(nil), events...)
		}
		for _, eventType := range r.eventOrder[state] {
			if r.events[state][eventType].Completes() {
				if l.Completes == nil {
					l.Completes = make(map[State][]string)
				}
				l.Completes[state] = append(l.Completes[state], eventType)
			}
		}
	}
	for from, to := range r.transitions {
		l.Transitions[from] = to
	}
	return l
}
