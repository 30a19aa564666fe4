package api

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisBrokerPubSub(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := NewRedisBroker("redis://"+mr.Addr(), nil)
	if err != nil {
		t.Fatalf("NewRedisBroker: %v", err)
	}
	defer b.Close()

	ch := b.Subscribe("run-1")
	other := b.Subscribe("run-2")
	b.Publish("run-1", StatusEvent{Type: EventStatus, RunID: "run-1", Worker: 3, Iteration: 42})

	select {
	case evt := <-ch:
		if evt.Worker != 3 || evt.Iteration != 42 {
			t.Fatalf("event = %+v", evt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
	select {
	case evt := <-other:
		t.Fatalf("event leaked to another run: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}

	b.Unsubscribe("run-1", ch)
	b.Unsubscribe("run-1", ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	b.Unsubscribe("run-2", other)
}

func TestRedisBrokerBadURL(t *testing.T) {
	if _, err := NewRedisBroker("://nope", nil); err == nil {
		t.Fatal("expected parse error")
	}
}
