package production

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/comalice/sagax/internal/core"
)

// ChannelPublisher is an Observer that forwards notifications to a Go channel.
// Non-blocking publish with drop on backpressure.
type ChannelPublisher struct {
	mu      sync.RWMutex
	ch      chan<- core.Notification
	closed  bool
	dropped atomic.Int64
}

// NewChannelPublisher creates a ChannelPublisher with the given output channel.
func NewChannelPublisher(ch chan<- core.Notification) *ChannelPublisher {
	return &ChannelPublisher{ch: ch}
}

// Notify implements core.Observer.
func (p *ChannelPublisher) Notify(ctx context.Context, n core.Notification) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped.Add(1)
		return
	}
	select {
	case p.ch <- n:
	case <-ctx.Done():
		p.dropped.Add(1)
	default:
		p.dropped.Add(1)
	}
}

// Dropped returns the number of notifications lost to backpressure or close.
func (p *ChannelPublisher) Dropped() int64 {
	return p.dropped.Load()
}

// Close closes the output channel. Later notifications are dropped.
func (p *ChannelPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.ch)
	return nil
}

var _ core.Observer = (*ChannelPublisher)(nil)
