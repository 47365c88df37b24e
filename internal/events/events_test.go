package events

import (
	"testing"
	"time"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()
	done := make(chan struct{})
	defer close(done)

	a := make(chan SpotRentEvent, 1)
	b := make(chan SpotRentEvent, 1)
	bus.Subscribe(a, done)
	bus.Subscribe(b, done)

	want := SpotRentEvent{Hashrate: 5e12, Duration: 3 * time.Hour, ProviderSelector: "MiningRigRentals"}
	bus.Publish(want)

	for name, ch := range map[string]chan SpotRentEvent{"a": a, "b": b} {
		select {
		case got := <-ch:
			if got != want {
				t.Errorf("subscriber %s: got %+v want %+v", name, got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s: no event delivered", name)
		}
	}
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	bus := NewBus()
	done := make(chan struct{})
	defer close(done)

	full := make(chan SpotRentEvent) // unbuffered, nobody reading
	bus.Subscribe(full, done)

	finished := make(chan struct{})
	go func() {
		bus.Publish(SpotRentEvent{Hashrate: 1})
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber channel")
	}
}

func TestSubscribeNilDoneLivesForever(t *testing.T) {
	bus := NewBus()
	ch := make(chan SpotRentEvent, 1)
	bus.Subscribe(ch, nil)

	want := SpotRentEvent{Hashrate: 1e12, Duration: time.Hour}
	bus.Publish(want)

	select {
	case got := <-ch:
		if got != want {
			t.Errorf("got %+v want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered to nil-done subscriber")
	}
	if n := bus.NumSubscribers(); n != 1 {
		t.Fatalf("expected 1 subscriber, got %d", n)
	}
}

func TestUnsubscribeOnDone(t *testing.T) {
	bus := NewBus()
	done := make(chan struct{})
	ch := make(chan SpotRentEvent, 1)
	bus.Subscribe(ch, done)

	if n := bus.NumSubscribers(); n != 1 {
		t.Fatalf("expected 1 subscriber, got %d", n)
	}
	close(done)

	deadline := time.Now().Add(time.Second)
	for bus.NumSubscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber not removed after done closed")
		}
		time.Sleep(time.Millisecond)
	}
}
