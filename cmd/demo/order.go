package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/comalice/sagax"
	"github.com/comalice/sagax/builder"
)

// Order is the fulfillment saga payload.
type Order struct {
	ID       string   `json:"id" yaml:"id"`
	Items    []string `json:"items,omitempty" yaml:"items,omitempty"`
	Total    int      `json:"total" yaml:"total"`
	Charged  bool     `json:"charged" yaml:"charged"`
	Reserved bool     `json:"reserved" yaml:"reserved"`
	Tracking string   `json:"tracking,omitempty" yaml:"tracking,omitempty"`
}

// OrderEvent is the payload of every fulfillment event.
type OrderEvent struct {
	OrderID  string
	Items    []string
	Total    int
	Tracking string
}

const (
	stateNew      sagax.State = "new"
	stateAwaiting sagax.State = "awaiting payment"
	stateShipping sagax.State = "shipping"

	eventPlaced  = "order placed"
	eventPaid    = "payment received"
	eventShipped = "shipped"
)

func orderEvent(evt sagax.Event) (OrderEvent, error) {
	oe, ok := evt.Payload.(OrderEvent)
	if !ok {
		return OrderEvent{}, fmt.Errorf("event %s: unexpected payload %T", evt.Type, evt.Payload)
	}
	return oe, nil
}

// correlateOrder routes events to the order they belong to.
func correlateOrder(evt sagax.Event) string {
	oe, err := orderEvent(evt)
	if err != nil {
		return ""
	}
	return oe.OrderID
}

// fulfillmentSaga declares
//
//	new --order placed--> awaiting payment --payment received--> shipping --shipped--> complete
func fulfillmentSaga(logger *slog.Logger) *sagax.EventScope[*Order] {
	return sagax.New[*Order](stateNew, sagax.WithDefinitionLogger(logger)).
		When(eventPlaced, func(_ context.Context, o *Order, evt sagax.Event) error {
			oe, err := orderEvent(evt)
			if err != nil {
				return err
			}
			o.ID, o.Items, o.Total = oe.OrderID, oe.Items, oe.Total
			return nil
		}).
		Then(builder.Log[*Order](logger, "order accepted")).
		Next(stateAwaiting).
		During(stateAwaiting).
		When(eventPaid, func(_ context.Context, o *Order, _ sagax.Event) error {
			if o.Total <= 0 {
				return fmt.Errorf("order %s: nothing to charge", o.ID)
			}
			o.Charged = true
			return nil
		}).
		Then(func(_ context.Context, o *Order, _ sagax.Event) error {
			o.Reserved = true
			return nil
		}).
		Next(stateShipping).
		During(stateShipping).
		When(eventShipped, func(_ context.Context, o *Order, evt sagax.Event) error {
			oe, err := orderEvent(evt)
			if err != nil {
				return err
			}
			o.Tracking = oe.Tracking
			return nil
		}).
		Complete()
}

// orderEvents simulates the event stream for n orders, including one
// redelivered payment per order. Events are dated in stream order.
func orderEvents(n int) []sagax.Event {
	var events []sagax.Event
	at := time.Now().UTC()
	next := func(evt sagax.Event) sagax.Event {
		at = at.Add(time.Millisecond)
		return evt.WithDate(at)
	}
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("order-%03d", i)
		placed := next(sagax.NewEvent(eventPlaced, OrderEvent{OrderID: id, Items: []string{"book"}, Total: 10 * i}))
		paid := next(sagax.NewEvent(eventPaid, OrderEvent{OrderID: id}))
		shipped := next(sagax.NewEvent(eventShipped, OrderEvent{OrderID: id, Tracking: fmt.Sprintf("TRK-%03d", i)}))
		events = append(events, placed, paid, paid, shipped)
	}
	return events
}
