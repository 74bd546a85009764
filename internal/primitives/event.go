// Event provides the immutable input record delivered to a saga engine.
//
// Events are value types. Once created, Events should not be mutated; the
// With* helpers return modified copies.
//
// # Wire shape
//
// Events serialize as
//
//	{"eventId": "...", "eventType": "...", "date": "2024-01-02T15:04:05Z", "version": "1", "payload": ...}
//
// The date is an ISO-8601 (RFC 3339) timestamp. The event id is assigned by
// the host and is intended for idempotent delivery; the engine never checks it.
package primitives

import (
	"time"

	"github.com/google/uuid"
)

// DefaultEventVersion is the version stamped by NewEvent.
const DefaultEventVersion = "1"

type Event struct {
	ID      string    `json:"eventId" yaml:"eventId"`
	Type    string    `json:"eventType" yaml:"eventType"`
	Date    time.Time `json:"date" yaml:"date"`
	Version string    `json:"version" yaml:"version"`
	Payload any       `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// NewEvent creates an Event with a random id, the current UTC time and the
// default version.
func NewEvent(eventType string, payload any) Event {
	return Event{
		ID:      uuid.NewString(),
		Type:    eventType,
		Date:    time.Now().UTC(),
		Version: DefaultEventVersion,
		Payload: payload,
	}
}

// WithID returns a copy of e carrying id.
func (e Event) WithID(id string) Event {
	e.ID = id
	return e
}

// WithDate returns a copy of e carrying date.
func (e Event) WithDate(date time.Time) Event {
	e.Date = date
	return e
}

// WithVersion returns a copy of e carrying version.
func (e Event) WithVersion(version string) Event {
	e.Version = version
	return e
}

// ParseDate parses an ISO-8601 timestamp as sent by hosts that keep the
// date as a string.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
