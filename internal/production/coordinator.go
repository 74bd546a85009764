package production

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/comalice/sagax/internal/core"
	"github.com/comalice/sagax/internal/extensibility"
)

// Outcome describes what a delivery did.
type Outcome string

const (
	OutcomeHandled   Outcome = "handled"
	OutcomeCompleted Outcome = "completed"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeEnded     Outcome = "ended"
)

// Delivery reports the result of delivering one event.
type Delivery struct {
	InstanceID string
	Outcome    Outcome
	From       core.State
	To         core.State
	Reason     string
}

// CorrelateFunc maps an event to the id of the saga instance it belongs to.
type CorrelateFunc func(evt core.Event) string

// Coordinator loads, drives and stores saga instances for a stream of events.
// Delivery for one instance id is serialized; distinct instances may run in
// parallel.
type Coordinator[T any] struct {
	registry    *core.Registry[T]
	repo        core.Repository[T]
	correlate   CorrelateFunc
	newPayload  func() T
	filter      *extensibility.DuplicateFilter
	engineOpts  []core.Option
	logger      *slog.Logger
	tracer      trace.Tracer
	parallelism int
	onError     func(evt core.Event, err error)
	removeEnded bool
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*coordinatorSettings)

type coordinatorSettings struct {
	filter      *extensibility.DuplicateFilter
	engineOpts  []core.Option
	logger      *slog.Logger
	tp          trace.TracerProvider
	parallelism int
	onError     func(evt core.Event, err error)
	removeEnded bool
}

// WithFilter replaces the default DuplicateFilter.
func WithFilter(f *extensibility.DuplicateFilter) CoordinatorOption {
	return func(s *coordinatorSettings) {
		s.filter = f
	}
}

// WithEngineOptions adds options applied to every engine the coordinator
// creates, such as observers and runners.
func WithEngineOptions(opts ...core.Option) CoordinatorOption {
	return func(s *coordinatorSettings) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// WithLogger sets the coordinator logger. The default discards output.
func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(s *coordinatorSettings) {
		s.logger = logger
	}
}

// WithTracerProvider sets the provider for delivery spans. The default is
// the global provider.
func WithTracerProvider(tp trace.TracerProvider) CoordinatorOption {
	return func(s *coordinatorSettings) {
		s.tp = tp
	}
}

// WithParallelism sets the number of delivery workers used by Run.
func WithParallelism(n int) CoordinatorOption {
	return func(s *coordinatorSettings) {
		s.parallelism = n
	}
}

// WithErrorHandler is called by Run for every failed delivery.
func WithErrorHandler(fn func(evt core.Event, err error)) CoordinatorOption {
	return func(s *coordinatorSettings) {
		s.onError = fn
	}
}

// WithRemoveEnded deletes the record of a completed saga instead of keeping
// it as an ended record. A redelivered start event then begins a new
// instance.
func WithRemoveEnded() CoordinatorOption {
	return func(s *coordinatorSettings) {
		s.removeEnded = true
	}
}

// NewCoordinator creates a Coordinator. newPayload builds the payload of a
// fresh instance.
func NewCoordinator[T any](registry *core.Registry[T], repo core.Repository[T], correlate CorrelateFunc, newPayload func() T, opts ...CoordinatorOption) (*Coordinator[T], error) {
	if registry == nil {
		return nil, fmt.Errorf("%w: nil registry", core.ErrInvalidDefinition)
	}
	if repo == nil {
		return nil, errors.New("repository is required")
	}
	if correlate == nil {
		return nil, errors.New("correlate func is required")
	}
	if err := registry.Freeze(); err != nil {
		return nil, err
	}

	s := &coordinatorSettings{parallelism: 1}
	for _, opt := range opts {
		opt(s)
	}
	if s.filter == nil {
		s.filter = extensibility.NewDuplicateFilter()
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.tp == nil {
		s.tp = otel.GetTracerProvider()
	}
	if s.parallelism < 1 {
		s.parallelism = 1
	}
	if newPayload == nil {
		newPayload = func() T {
			var zero T
			return zero
		}
	}

	return &Coordinator[T]{
		registry:    registry,
		repo:        repo,
		correlate:   correlate,
		newPayload:  newPayload,
		filter:      s.filter,
		engineOpts:  s.engineOpts,
		logger:      s.logger,
		tracer:      s.tp.Tracer(tracerName),
		parallelism: s.parallelism,
		onError:     s.onError,
		removeEnded: s.removeEnded,
	}, nil
}

// Deliver routes evt to its saga instance:
//  1. load the instance record; a missing record starts a fresh instance
//  2. skip ended instances and events rejected by the duplicate filter
//  3. skip events the current state does not handle
//  4. handle the event and store the record; a completed saga is stored as
//     ended, or removed with WithRemoveEnded
//
// A handler error is returned and nothing is stored.
func (c *Coordinator[T]) Deliver(ctx context.Context, evt core.Event) (Delivery, error) {
	id := c.correlate(evt)
	if id == "" {
		return Delivery{}, fmt.Errorf("event %s (%s): no instance id", evt.ID, evt.Type)
	}

	ctx, span := c.tracer.Start(ctx, "saga.deliver "+evt.Type,
		trace.WithAttributes(
			attribute.String("saga.instance", id),
			attribute.String("saga.event.type", evt.Type),
			attribute.String("saga.event.id", evt.ID),
		),
	)
	defer span.End()

	d, err := c.deliver(ctx, id, evt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return d, err
	}
	span.SetAttributes(attribute.String("saga.outcome", string(d.Outcome)))
	return d, nil
}

func (c *Coordinator[T]) deliver(ctx context.Context, id string, evt core.Event) (Delivery, error) {
	logger := c.logger.With("instance", id, "event", evt.Type, "eventId", evt.ID)
	d := Delivery{InstanceID: id}

	rec, err := c.repo.LoadByEntityID(ctx, id)
	fresh := errors.Is(err, core.ErrNotFound)
	if err != nil && !fresh {
		return d, fmt.Errorf("load saga %q: %w", id, err)
	}

	if !fresh {
		if rec.Ended {
			logger.Debug("saga already ended, skipping")
			d.Outcome = OutcomeEnded
			return d, nil
		}
		if ok, reason := c.filter.Admit(rec.LastEventID, rec.LastEventDate, evt); !ok {
			logger.Debug("event filtered", "reason", reason)
			d.Outcome = OutcomeDuplicate
			d.Reason = reason
			return d, nil
		}
	}

	opts := make([]core.Option, 0, len(c.engineOpts)+2)
	opts = append(opts, c.engineOpts...)
	opts = append(opts, core.WithInstanceID(id))
	if fresh {
		opts = append(opts, core.WithPayload(c.newPayload()))
	}
	engine, err := core.NewEngine(c.registry, opts...)
	if err != nil {
		return d, err
	}
	if !fresh {
		if err := engine.Restore(rec); err != nil {
			return d, err
		}
	}

	d.From = engine.IsAt()
	if !engine.Handles(evt.Type) {
		logger.Debug("event not handled in state", "state", d.From)
		d.Outcome = OutcomeIgnored
		d.To = d.From
		return d, nil
	}

	if err := engine.HandleEvent(ctx, evt); err != nil {
		logger.Error("handle event failed", "state", d.From, "error", err)
		return d, err
	}
	d.To = engine.IsAt()

	snap := engine.Snapshot()
	if engine.Ended() && c.removeEnded {
		if err := c.repo.Remove(ctx, snap); err != nil {
			return d, fmt.Errorf("remove saga %q: %w", id, err)
		}
	} else if err := c.repo.Store(ctx, snap); err != nil {
		return d, fmt.Errorf("store saga %q: %w", id, err)
	}

	if engine.Ended() {
		logger.Info("saga completed", "from", d.From)
		d.Outcome = OutcomeCompleted
		return d, nil
	}
	logger.Debug("event handled", "from", d.From, "to", d.To)
	d.Outcome = OutcomeHandled
	return d, nil
}

// Run delivers events from source until it is closed or ctx is done.
// Delivery errors are logged and passed to the error handler; they do not
// stop the loop.
func (c *Coordinator[T]) Run(ctx context.Context, source core.EventSource) error {
	if c.parallelism == 1 {
		return c.runSerial(ctx, source.Events())
	}
	return c.runSharded(ctx, source.Events())
}

func (c *Coordinator[T]) runSerial(ctx context.Context, events <-chan core.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			c.deliverLogged(ctx, evt)
		}
	}
}

// runSharded hashes instance ids onto workers so each instance is only ever
// handled by one goroutine.
func (c *Coordinator[T]) runSharded(ctx context.Context, events <-chan core.Event) error {
	g, gctx := errgroup.WithContext(ctx)
	queues := make([]chan core.Event, c.parallelism)
	for i := range queues {
		q := make(chan core.Event)
		queues[i] = q
		g.Go(func() error {
			for evt := range q {
				c.deliverLogged(gctx, evt)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case evt, ok := <-events:
				if !ok {
					return nil
				}
				q := queues[c.shard(evt)]
				select {
				case q <- evt:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		}
	})

	return g.Wait()
}

func (c *Coordinator[T]) shard(evt core.Event) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(c.correlate(evt)))
	return int(h.Sum32() % uint32(c.parallelism))
}

func (c *Coordinator[T]) deliverLogged(ctx context.Context, evt core.Event) {
	if _, err := c.Deliver(ctx, evt); err != nil {
		c.logger.Error("delivery failed", "event", evt.Type, "eventId", evt.ID, "error", err)
		if c.onError != nil {
			c.onError(evt, err)
		}
	}
}
