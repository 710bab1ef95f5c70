package api

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisBrokerDeliversEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := NewRedisBroker("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("broker: %v", err)
	}
	ch := b.Subscribe(mapTopic)
	defer b.Unsubscribe(mapTopic, ch)

	b.Publish(mapTopic, Event{Type: "route.resolved", Data: map[string]any{"routeIndex": float64(2)}})
	select {
	case evt := <-ch:
		if evt.Type != "route.resolved" || evt.Data["routeIndex"] != float64(2) {
			t.Fatalf("event: %+v", evt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
	}
}

// Unsubscribe tears down the pubsub; the receive goroutine is the only closer
// of the subscriber channel, and a publish racing the teardown must not panic.
func TestRedisBrokerUnsubscribeStopsDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := NewRedisBroker("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("broker: %v", err)
	}
	ch := b.Subscribe(mapTopic)
	b.Unsubscribe(mapTopic, ch)
	b.Publish(mapTopic, Event{Type: "route.degraded"})

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscriber channel never closed")
		}
	}
}

func TestRedisBrokerUnsubscribeUnknownChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := NewRedisBroker("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("broker: %v", err)
	}
	b.Unsubscribe(mapTopic, make(chan Event))
}
