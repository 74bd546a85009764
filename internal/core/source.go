package core

// EventSource feeds events to a host loop. The channel is closed when the
// source is exhausted.
type EventSource interface {
	Events() <-chan Event
}
