package extensibility

import (
	"sync"
	"time"

	"github.com/comalice/sagax/internal/primitives"
)

// ChannelEventSource is an EventSource backed by a Go channel.
// Provides a simple way for a transport to hand events to a host loop.
type ChannelEventSource struct {
	mu     sync.RWMutex
	ch     chan primitives.Event
	closed bool
}

// NewChannelEventSource creates a new ChannelEventSource with the given channel.
// The channel should be buffered if backpressure handling is needed.
func NewChannelEventSource(ch chan primitives.Event) *ChannelEventSource {
	return &ChannelEventSource{ch: ch}
}

// Events returns the receive-only channel for events.
func (s *ChannelEventSource) Events() <-chan primitives.Event {
	return s.ch
}

// Publish queues evt without blocking. It reports false when the buffer is
// full or the source is closed and the event was dropped.
func (s *ChannelEventSource) Publish(evt primitives.Event) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- evt:
		return true
	default:
		return false
	}
}

// Close closes the channel; host loops drain and stop. Closing twice is a
// no-op.
func (s *ChannelEventSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// TickerEventSource emits events built by next every d.
// Useful for timeout or heartbeat events a saga waits for.
type TickerEventSource struct {
	ch     chan primitives.Event
	next   func() primitives.Event
	ticker *time.Ticker
	stop   chan struct{}
	once   sync.Once
}

// NewTickerEventSource starts emitting the event returned by next every d.
func NewTickerEventSource(next func() primitives.Event, d time.Duration) *TickerEventSource {
	t := &TickerEventSource{
		ch:     make(chan primitives.Event, 10),
		next:   next,
		ticker: time.NewTicker(d),
		stop:   make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *TickerEventSource) run() {
	for {
		select {
		case <-t.ticker.C:
			select {
			case t.ch <- t.next():
			default:
				// drop if full
			}
		case <-t.stop:
			t.ticker.Stop()
			close(t.ch)
			return
		}
	}
}

// Events returns the event channel.
func (t *TickerEventSource) Events() <-chan primitives.Event {
	return t.ch
}

// Stop stops the ticker and closes the channel. It is safe to call more
// than once.
func (t *TickerEventSource) Stop() {
	t.once.Do(func() { close(t.stop) })
}
