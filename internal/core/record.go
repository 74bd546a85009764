package core

import (
	"context"
	"time"
)

// Record is the persisted form of one saga instance.
type Record[T any] struct {
	ID            string    `json:"id" yaml:"id"`
	Current       State     `json:"current" yaml:"current"`
	Ended         bool      `json:"ended,omitempty" yaml:"ended,omitempty"`
	Payload       T         `json:"payload" yaml:"payload"`
	LastEventID   string    `json:"lastEventId,omitempty" yaml:"lastEventId,omitempty"`
	LastEventDate time.Time `json:"lastEventDate" yaml:"lastEventDate,omitempty"`
	Version       string    `json:"version,omitempty" yaml:"version,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Repository stores saga instances. The engine performs no I/O; hosts load
// a record, restore it into an engine, handle the event and store or remove
// the result.
type Repository[T any] interface {
	LoadAll(ctx context.Context) ([]Record[T], error)
	Store(ctx context.Context, rec Record[T]) error
	Remove(ctx context.Context, rec Record[T]) error
	// LoadByEntityID returns ErrNotFound when no record exists.
	LoadByEntityID(ctx context.Context, id string) (Record[T], error)
}
