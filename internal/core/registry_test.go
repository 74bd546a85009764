package core

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func noop[T any]() Handler[T] {
	return func(context.Context, T, Event) error { return nil }
}

func equalStates(a, b []State) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRegistry_InitialIsKnown(t *testing.T) {
	r := NewRegistry[*int]("s0", nil)
	if !r.Known("s0") {
		t.Error("initial state should be known")
	}
	if got, want := r.States(), []State{"s0"}; !equalStates(got, want) {
		t.Errorf("States() = %v, want %v", got, want)
	}
}

func TestRegistry_FirstHandlerWins(t *testing.T) {
	r := NewRegistry[*int]("s0", nil)
	var calls []string
	first := func(context.Context, *int, Event) error { calls = append(calls, "first"); return nil }
	second := func(context.Context, *int, Event) error { calls = append(calls, "second"); return nil }

	if err := r.RegisterHandler("s0", "e1", first); err != nil {
		t.Fatal(err)
	}
	if err := r.RegisterReaction("s0", "e1", noop[*int]()); err != nil {
		t.Fatal(err)
	}
	if err := r.RegisterHandler("s0", "e1", second); err != nil {
		t.Fatal(err)
	}

	se, ok := r.Lookup("s0", "e1")
	if !ok {
		t.Fatal("expected state event")
	}
	if se.Reactions() != 1 {
		t.Errorf("reactions = %d, want 1", se.Reactions())
	}
	_ = se.primary(context.Background(), nil, Event{})
	if len(calls) != 1 || calls[0] != "first" {
		t.Errorf("primary calls = %v, want [first]", calls)
	}
	if got := r.EventsForState("s0"); !equalStrings(got, []string{"e1"}) {
		t.Errorf("EventsForState = %v", got)
	}
}

func TestRegistry_TransitionOverwrites(t *testing.T) {
	r := NewRegistry[*int]("s0", nil)
	_ = r.RegisterState("s1")
	_ = r.RegisterState("s2")
	_ = r.RegisterTransition("s0", "s1")
	_ = r.RegisterTransition("s0", "s2")
	to, ok := r.Target("s0")
	if !ok || to != "s2" {
		t.Errorf("Target(s0) = %v %v, want s2", to, ok)
	}
}

func TestRegistry_ReactionOnMissingPairIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := NewRegistry[*int]("s0", logger)

	if err := r.RegisterReaction("s0", "missing", noop[*int]()); err != nil {
		t.Fatalf("structural warning must not surface as error: %v", err)
	}
	if !strings.Contains(buf.String(), "missing state events") {
		t.Errorf("expected warning log, got %q", buf.String())
	}

	_ = r.RegisterHandler("s0", "e1", nil)
	buf.Reset()
	if err := r.RegisterReaction("s0", "e2", noop[*int]()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "missing event type") {
		t.Errorf("expected warning log, got %q", buf.String())
	}
	se, _ := r.Lookup("s0", "e1")
	if se.Reactions() != 0 {
		t.Errorf("reactions = %d, want 0", se.Reactions())
	}
}

func TestRegistry_NilReactionRejected(t *testing.T) {
	r := NewRegistry[*int]("s0", nil)
	_ = r.RegisterHandler("s0", "e1", nil)
	err := r.RegisterReaction("s0", "e1", nil)
	if !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("err = %v, want ErrInvalidDefinition", err)
	}
}

func TestRegistry_EmptyLabelsRejected(t *testing.T) {
	r := NewRegistry[*int]("s0", nil)
	if err := r.RegisterState(""); !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("RegisterState(\"\") = %v", err)
	}
	if err := r.RegisterHandler("s0", "", nil); !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("RegisterHandler empty event = %v", err)
	}
}

func TestRegistry_MarkComplete(t *testing.T) {
	r := NewRegistry[*int]("s0", nil)
	_ = r.RegisterHandler("s0", "done", nil)
	if err := r.MarkComplete("s0", "done"); err != nil {
		t.Fatal(err)
	}
	to, ok := r.Target("s0")
	if !ok || !to.IsTerminal() {
		t.Errorf("Target(s0) = %q %v, want terminal", to, ok)
	}
	se, _ := r.Lookup("s0", "done")
	if !se.Completes() {
		t.Error("expected dispose reaction")
	}
}

func TestRegistry_FreezeValidates(t *testing.T) {
	r := NewRegistry[*int]("s0", nil)
	_ = r.RegisterTransition("s0", "nowhere")
	err := r.Freeze()
	if !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("Freeze() = %v, want ErrInvalidDefinition", err)
	}
	if r.Frozen() {
		t.Error("invalid registry must not freeze")
	}
}

func TestRegistry_FrozenRejectsWrites(t *testing.T) {
	r := NewRegistry[*int]("s0", nil)
	_ = r.RegisterHandler("s0", "e1", nil)
	if err := r.Freeze(); err != nil {
		t.Fatal(err)
	}
	if r.Version() == "" {
		t.Error("expected version after freeze")
	}
	if err := r.RegisterHandler("s0", "e2", nil); !errors.Is(err, ErrFrozen) {
		t.Errorf("RegisterHandler after freeze = %v, want ErrFrozen", err)
	}
	if err := r.RegisterTransition("s0", "s0"); !errors.Is(err, ErrFrozen) {
		t.Errorf("RegisterTransition after freeze = %v, want ErrFrozen", err)
	}
	if got := r.EventsForState("s0"); !equalStrings(got, []string{"e1"}) {
		t.Errorf("EventsForState = %v", got)
	}
}

func TestRegistry_EventsDistinctInOrder(t *testing.T) {
	r := NewRegistry[*int]("s0", nil)
	_ = r.RegisterHandler("s0", "a", nil)
	_ = r.RegisterHandler("s1", "b", nil)
	_ = r.RegisterHandler("s1", "a", nil)
	_ = r.RegisterHandler("s2", "c", nil)
	if got, want := r.Events(), []string{"a", "b", "c"}; !equalStrings(got, want) {
		t.Errorf("Events() = %v, want %v", got, want)
	}
	if got := r.EventsForState("unknown"); len(got) != 0 {
		t.Errorf("EventsForState(unknown) = %v", got)
	}
}

func TestRegistry_LayoutVersionStable(t *testing.T) {
	build := func() *Registry[*int] {
		r := NewRegistry[*int]("s0", nil)
		_ = r.RegisterHandler("s0", "e1", nil)
		_ = r.RegisterState("s1")
		_ = r.RegisterTransition("s0", "s1")
		_ = r.RegisterHandler("s1", "e2", nil)
		_ = r.MarkComplete("s1", "e2")
		_ = r.Freeze()
		return r
	}
	a, b := build(), build()
	if a.Version() != b.Version() {
		t.Errorf("versions differ: %s vs %s", a.Version(), b.Version())
	}
	l := a.Layout()
	if l.Initial != "s0" || l.Transitions["s0"] != "s1" {
		t.Errorf("layout = %+v", l)
	}
	if got := l.Completes["s1"]; !equalStrings(got, []string{"e2"}) {
		t.Errorf("layout completes = %v", got)
	}
}
