// Package testutil provides helpers shared by saga tests: a recording
// observer and event constructors with fixed ids and dates.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/comalice/sagax/internal/core"
	"github.com/comalice/sagax/internal/primitives"
)

// Recorder is an Observer that keeps every notification it receives.
// Safe for use by engines running on different goroutines.
type Recorder struct {
	mu    sync.Mutex
	notes []core.Notification
	added chan struct{}
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{added: make(chan struct{}, 1)}
}

// Notify implements core.Observer.
func (r *Recorder) Notify(_ context.Context, n core.Notification) {
	r.mu.Lock()
	r.notes = append(r.notes, n)
	r.mu.Unlock()
	select {
	case r.added <- struct{}{}:
	default:
	}
}

// Notifications returns a copy of the recorded notifications.
func (r *Recorder) Notifications() []core.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Notification(nil), r.notes...)
}

// Kinds returns the recorded notification kinds in order.
func (r *Recorder) Kinds() []core.NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]core.NotificationKind, len(r.notes))
	for i, n := range r.notes {
		kinds[i] = n.Kind
	}
	return kinds
}

// Count returns how many notifications of kind were recorded.
func (r *Recorder) Count(kind core.NotificationKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, note := range r.notes {
		if note.Kind == kind {
			n++
		}
	}
	return n
}

// ForInstance returns the notifications emitted by one instance.
func (r *Recorder) ForInstance(id string) []core.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []core.Notification
	for _, n := range r.notes {
		if n.InstanceID == id {
			out = append(out, n)
		}
	}
	return out
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.notes = nil
	r.mu.Unlock()
}

// WaitFor blocks until at least n notifications of kind were recorded or
// timeout expires.
func (r *Recorder) WaitFor(kind core.NotificationKind, n int, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if r.Count(kind) >= n {
			return nil
		}
		select {
		case <-r.added:
		case <-deadline.C:
			return fmt.Errorf("timed out waiting for %d %q notifications, have %d", n, kind, r.Count(kind))
		}
	}
}

var _ core.Observer = (*Recorder)(nil)

// Epoch is the base date used by Event.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Event builds an event with a deterministic id and a date seq seconds after
// Epoch.
func Event(eventType string, seq int, payload any) primitives.Event {
	return primitives.NewEvent(eventType, payload).
		WithID(fmt.Sprintf("%s-%d", eventType, seq)).
		WithDate(Epoch.Add(time.Duration(seq) * time.Second))
}
