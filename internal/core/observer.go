package core

import (
	"context"
	"time"

	"github.com/comalice/sagax/internal/primitives"
)

// NotificationKind names a lifecycle notification.
type NotificationKind string

const (
	KindTransition NotificationKind = "transition"
	KindEnd        NotificationKind = "end"
)

// Notification is emitted to observers. From/To are set for transitions
// only; To is primitives.Terminal when the saga completes.
type Notification struct {
	Kind       NotificationKind `json:"kind" yaml:"kind"`
	InstanceID string           `json:"instanceId" yaml:"instanceId"`
	From       primitives.State `json:"from,omitempty" yaml:"from,omitempty"`
	To         primitives.State `json:"to,omitempty" yaml:"to,omitempty"`
	Timestamp  time.Time        `json:"timestamp" yaml:"timestamp"`
}

// Observer receives notifications synchronously, in emission order.
type Observer interface {
	Notify(ctx context.Context, n Notification)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, n Notification)

func (f ObserverFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}
