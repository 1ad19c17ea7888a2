package event

import (
	"errors"
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	var bus Bus
	ch := make(chan Event, 4)
	sub := bus.Subscribe(ch)
	defer sub.Unsubscribe()

	n := bus.Publish(Event{Kind: PeerBootstrapped, PeerID: "peer-1"})
	if n != 1 {
		t.Fatalf("Publish delivered to %d subscribers, want 1", n)
	}

	select {
	case got := <-ch:
		if got.Kind != PeerBootstrapped || got.PeerID != "peer-1" {
			t.Fatalf("got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishNoSubscribers(t *testing.T) {
	var bus Bus
	if n := bus.Publish(Event{Kind: PeerDisconnected}); n != 0 {
		t.Fatalf("Publish delivered to %d subscribers, want 0", n)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	var bus Bus
	ch := make(chan Event, 1)
	sub := bus.Subscribe(ch)
	sub.Unsubscribe()

	bus.Publish(Event{Kind: PeerBootstrapFailed, Err: errors.New("boom")})

	select {
	case got := <-ch:
		t.Fatalf("received event after Unsubscribe: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMultipleSubscribers(t *testing.T) {
	var bus Bus
	a := make(chan Event, 1)
	b := make(chan Event, 1)
	subA := bus.Subscribe(a)
	subB := bus.Subscribe(b)
	defer subA.Unsubscribe()
	defer subB.Unsubscribe()

	n := bus.Publish(Event{Kind: PeerMessageReceived, MessageTag: 0x10})
	if n != 2 {
		t.Fatalf("Publish delivered to %d subscribers, want 2", n)
	}
	<-a
	<-b
}
