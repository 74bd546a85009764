package extensibility

import (
	"time"

	"github.com/comalice/sagax/internal/primitives"
)

// DuplicateFilter decides whether an event should be delivered to an
// instance, given the id and date of the last event it handled.
// Delivery is at-least-once, so hosts use it to skip redelivered and stale
// events.
type DuplicateFilter struct {
	// AllowOlder admits events dated before the last handled event.
	AllowOlder bool
}

// NewDuplicateFilter returns a filter that rejects repeated ids and events
// older than the last handled one.
func NewDuplicateFilter() *DuplicateFilter {
	return &DuplicateFilter{}
}

// Admit reports whether evt should be delivered and, if not, why.
// Zero ids and dates never match.
func (f *DuplicateFilter) Admit(lastID string, lastDate time.Time, evt primitives.Event) (bool, string) {
	if evt.ID != "" && evt.ID == lastID {
		return false, "duplicate event id"
	}
	if f.AllowOlder || lastDate.IsZero() || evt.Date.IsZero() {
		return true, ""
	}
	if evt.Date.Before(lastDate) {
		return false, "event older than last handled event"
	}
	return true, ""
}
