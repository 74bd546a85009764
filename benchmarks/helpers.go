// Package benchmarks provides shared helpers for benchmark tests.
package benchmarks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/comalice/sagax"
	"github.com/comalice/sagax/internal/core"
)

// Counter is the payload used by benchmark sagas.
type Counter struct {
	N int
}

func count(_ context.Context, c *Counter, _ sagax.Event) error {
	c.N++
	return nil
}

// GenCycleRegistry creates n states cycling via "tick" events. It never
// completes.
func GenCycleRegistry(n int) *core.Registry[*Counter] {
	if n < 1 {
		n = 1
	}
	reg := core.NewRegistry[*Counter]("s0", nil)
	for i := 0; i < n; i++ {
		from := sagax.State(fmt.Sprintf("s%d", i))
		to := sagax.State(fmt.Sprintf("s%d", (i+1)%n))
		must(reg.RegisterHandler(from, "tick", count))
		must(reg.RegisterState(to))
		must(reg.RegisterTransition(from, to))
	}
	must(reg.Freeze())
	return reg
}

// GenWideRegistry creates one self-looping state whose "tick" event runs
// reactions reactions after the primary handler.
func GenWideRegistry(reactions int) *core.Registry[*Counter] {
	reg := core.NewRegistry[*Counter]("s0", nil)
	must(reg.RegisterHandler("s0", "tick", count))
	for i := 0; i < reactions; i++ {
		must(reg.RegisterReaction("s0", "tick", count))
	}
	must(reg.RegisterTransition("s0", "s0"))
	must(reg.Freeze())
	return reg
}

// GenLinearSaga declares n states each advanced by "step"; the last one
// completes the saga.
func GenLinearSaga(n int) *sagax.EventScope[*Counter] {
	if n < 1 {
		n = 1
	}
	scope := sagax.New[*Counter]("s0").When("step", count)
	for i := 1; i < n; i++ {
		next := sagax.State(fmt.Sprintf("s%d", i))
		scope = scope.Next(next).During(next).When("step", count)
	}
	return scope.Complete()
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// MemoryRepository keeps saga records in a map.
type MemoryRepository[T any] struct {
	mu   sync.Mutex
	recs map[string]core.Record[T]
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository[T any]() *MemoryRepository[T] {
	return &MemoryRepository[T]{recs: make(map[string]core.Record[T])}
}

func (m *MemoryRepository[T]) LoadAll(context.Context) ([]core.Record[T], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Record[T], 0, len(m.recs))
	for _, r := range m.recs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository[T]) Store(_ context.Context, rec core.Record[T]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.ID] = rec
	return nil
}

func (m *MemoryRepository[T]) Remove(_ context.Context, rec core.Record[T]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, rec.ID)
	return nil
}

func (m *MemoryRepository[T]) LoadByEntityID(_ context.Context, id string) (core.Record[T], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return core.Record[T]{}, fmt.Errorf("saga %q: %w", id, core.ErrNotFound)
	}
	return rec, nil
}

var _ core.Repository[any] = (*MemoryRepository[any])(nil)
