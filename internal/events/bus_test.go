/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "testing"

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus()
	queued := bus.Subscribe(EventTrackQueued)
	other := bus.Subscribe(EventRescue)

	bus.Publish(EventTrackQueued, Payload{"track_id": "a1"})

	select {
	case p := <-queued:
		if p["track_id"] != "a1" {
			t.Fatalf("unexpected payload %v", p)
		}
	default:
		t.Fatal("subscriber did not receive the event")
	}
	select {
	case p := <-other:
		t.Fatalf("unrelated subscriber received %v", p)
	default:
	}
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventNowPlaying)
	for i := 0; i < 20; i++ {
		bus.Publish(EventNowPlaying, Payload{"n": i})
	}
	if len(sub) != cap(sub) {
		t.Fatalf("expected a full buffer, got %d/%d", len(sub), cap(sub))
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventError)
	bus.Unsubscribe(EventError, sub)
	if _, ok := <-sub; ok {
		t.Fatal("expected closed channel")
	}
	// publishing after unsubscribe must not panic on the closed channel
	bus.Publish(EventError, Payload{})
}
