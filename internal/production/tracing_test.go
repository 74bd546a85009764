package production

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/comalice/sagax/internal/core"
	"github.com/comalice/sagax/internal/primitives"
)

func newRecordingProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, sr
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingRunner_Success(t *testing.T) {
	tp, sr := newRecordingProvider(t)
	r := NewTracingRunner(tp, nil)

	inv := core.Invocation{
		InstanceID: "order-1",
		State:      "placed",
		Event:      primitives.NewEvent("paid", nil).WithID("evt-1"),
		Stage:      core.StageReaction,
		Index:      2,
	}
	require.NoError(t, r.Run(context.Background(), inv, func(context.Context) error { return nil }))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "saga.handler paid", span.Name())
	assert.Equal(t, codes.Ok, span.Status().Code)

	v, ok := attrValue(span.Attributes(), "saga.instance")
	require.True(t, ok)
	assert.Equal(t, "order-1", v.AsString())
	v, ok = attrValue(span.Attributes(), "saga.index")
	require.True(t, ok)
	assert.Equal(t, int64(2), v.AsInt64())
	v, ok = attrValue(span.Attributes(), "saga.stage")
	require.True(t, ok)
	assert.Equal(t, "reaction", v.AsString())
}

func TestTracingRunner_Error(t *testing.T) {
	tp, sr := newRecordingProvider(t)
	r := NewTracingRunner(tp, nil)
	boom := errors.New("boom")

	err := r.Run(context.Background(), core.Invocation{Event: core.Event{Type: "paid"}}, func(context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	require.NotEmpty(t, spans[0].Events())
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestTracingRunner_PassesSpanContext(t *testing.T) {
	tp, sr := newRecordingProvider(t)
	r := NewTracingRunner(tp, nil)

	ctx, parent := tp.Tracer("test").Start(context.Background(), "parent")
	require.NoError(t, r.Run(ctx, core.Invocation{Event: core.Event{Type: "paid"}}, func(context.Context) error { return nil }))
	parent.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, parent.SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestTracingObserver_AddsEvents(t *testing.T) {
	tp, sr := newRecordingProvider(t)

	reg := core.NewRegistry[*testOrder]("placed", nil)
	require.NoError(t, reg.RegisterHandler("placed", "cancel", nil))
	require.NoError(t, reg.MarkComplete("placed", "cancel"))
	engine, err := core.NewEngine(reg, core.WithObserver(TracingObserver{}))
	require.NoError(t, err)

	ctx, span := tp.Tracer("test").Start(context.Background(), "deliver")
	require.NoError(t, engine.HandleEvent(ctx, core.Event{Type: "cancel"}))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	var names []string
	for _, e := range spans[0].Events() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"saga.transition", "saga.end"}, names)
}

func TestTracingObserver_NoSpan(t *testing.T) {
	// no recording span in context; must be a no-op
	TracingObserver{}.Notify(context.Background(), core.Notification{Kind: core.KindEnd})
}
