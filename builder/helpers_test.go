package builder

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/comalice/sagax"
)

func TestChainStopsAtFirstError(t *testing.T) {
	var calls []string
	step := func(name string, err error) sagax.Handler[any] {
		return func(context.Context, any, sagax.Event) error {
			calls = append(calls, name)
			return err
		}
	}
	boom := errors.New("boom")
	h := Chain(step("a", nil), nil, step("b", boom), step("c", nil))

	if err := h(context.Background(), nil, sagax.NewEvent("e", nil)); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if strings.Join(calls, ",") != "a,b" {
		t.Errorf("calls = %v", calls)
	}
}

func TestStoreSetRequire(t *testing.T) {
	ctx := context.Background()
	bag := sagax.NewBag()

	if err := Require("orderId")(ctx, bag, sagax.Event{}); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("err = %v, want ErrMissingKey", err)
	}
	if err := Store("orderId")(ctx, bag, sagax.NewEvent("placed", "o-1")); err != nil {
		t.Fatal(err)
	}
	if err := Set("status", "placed")(ctx, bag, sagax.Event{}); err != nil {
		t.Fatal(err)
	}
	if err := Require("orderId", "status")(ctx, bag, sagax.Event{}); err != nil {
		t.Fatal(err)
	}
	if v, _ := bag.Get("orderId"); v != "o-1" {
		t.Errorf("orderId = %v", v)
	}
}

func TestWhenGuard(t *testing.T) {
	ctx := context.Background()
	bag := sagax.NewBag()
	h := When(Has("paid"), Set("shipped", true))

	if err := h(ctx, bag, sagax.Event{}); err != nil {
		t.Fatal(err)
	}
	if _, ok := bag.Get("shipped"); ok {
		t.Error("guarded handler ran before paid")
	}
	bag.Set("paid", true)
	if err := h(ctx, bag, sagax.Event{}); err != nil {
		t.Fatal(err)
	}
	if _, ok := bag.Get("shipped"); !ok {
		t.Error("guarded handler did not run")
	}
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	if err := Log[any](logger, "order placed")(context.Background(), nil, sagax.NewEvent("placed", nil)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "order placed") || !strings.Contains(buf.String(), "event=placed") {
		t.Errorf("log = %q", buf.String())
	}
}

func TestHelpersInSaga(t *testing.T) {
	engine, err := sagax.New[*sagax.Bag]("placed").
		When("paid", Chain(Store("payment"), Set("status", "paid"))).
		Then(Require("payment")).
		Next("shipping").
		During("shipping").
		When("shipped", Noop[*sagax.Bag]()).Complete().
		Build(sagax.WithPayload(sagax.NewBag()))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := engine.HandleEvent(ctx, sagax.NewEvent("paid", 42)); err != nil {
		t.Fatal(err)
	}
	if err := engine.HandleEvent(ctx, sagax.NewEvent("shipped", nil)); err != nil {
		t.Fatal(err)
	}
	if !engine.Ended() {
		t.Error("saga should have ended")
	}
	if v, _ := engine.Payload().Get("status"); v != "paid" {
		t.Errorf("status = %v", v)
	}
}
