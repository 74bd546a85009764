package production

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/comalice/sagax/internal/core"
	"github.com/comalice/sagax/internal/extensibility"
)

const tracerName = "github.com/comalice/sagax"

// TracingRunner opens one span per handler invocation.
type TracingRunner struct {
	tracer trace.Tracer
	inner  core.Runner
}

// NewTracingRunner wraps inner. A nil tp uses the global provider; a nil
// inner calls the handler directly.
func NewTracingRunner(tp trace.TracerProvider, inner core.Runner) *TracingRunner {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if inner == nil {
		inner = &extensibility.DefaultRunner{}
	}
	return &TracingRunner{tracer: tp.Tracer(tracerName), inner: inner}
}

// Run implements core.Runner.
func (r *TracingRunner) Run(ctx context.Context, inv core.Invocation, call func(context.Context) error) error {
	ctx, span := r.tracer.Start(ctx, "saga.handler "+inv.Event.Type,
		trace.WithAttributes(
			attribute.String("saga.instance", inv.InstanceID),
			attribute.String("saga.state", string(inv.State)),
			attribute.String("saga.event.type", inv.Event.Type),
			attribute.String("saga.event.id", inv.Event.ID),
			attribute.String("saga.stage", string(inv.Stage)),
			attribute.Int("saga.index", inv.Index),
		),
	)
	defer span.End()

	err := r.inner.Run(ctx, inv, call)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// TracingObserver records notifications as events on the span found in the
// notification context, if any.
type TracingObserver struct{}

// Notify implements core.Observer.
func (TracingObserver) Notify(ctx context.Context, n core.Notification) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent("saga."+string(n.Kind), trace.WithAttributes(
		attribute.String("saga.instance", n.InstanceID),
		attribute.String("saga.from", string(n.From)),
		attribute.String("saga.to", string(n.To)),
	))
}

var (
	_ core.Runner   = (*TracingRunner)(nil)
	_ core.Observer = TracingObserver{}
)
