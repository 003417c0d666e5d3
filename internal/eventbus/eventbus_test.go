/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/boombox/internal/config"
	"github.com/friendsincode/boombox/internal/events"
)

func receive(t *testing.T, sub events.Subscriber) events.Payload {
	t.Helper()
	select {
	case p := <-sub:
		return p
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	data, err := marshalEnvelope(events.EventCrateChange, events.Payload{"current": "b"}, "node-a")
	if err != nil {
		t.Fatal(err)
	}
	env, err := unmarshalEnvelope(data)
	if err != nil {
		t.Fatal(err)
	}
	if env.EventType != events.EventCrateChange || env.NodeID != "node-a" || env.Payload["current"] != "b" {
		t.Fatalf("envelope %+v", env)
	}
	if env.MessageID == "" {
		t.Fatal("message id missing")
	}

	if _, err := unmarshalEnvelope([]byte(`{"payload":{}}`)); err == nil {
		t.Fatal("expected error for an envelope without event type")
	}
	if _, err := unmarshalEnvelope([]byte(`not json`)); err == nil {
		t.Fatal("expected error for garbage")
	}
}

func TestRelayDropsOwnEchoes(t *testing.T) {
	local := events.NewBus()
	sub := local.Subscribe(events.EventNowPlaying)
	r := relay{local: local, nodeID: "self", logger: zerolog.Nop()}

	own, _ := marshalEnvelope(events.EventNowPlaying, events.Payload{"track_id": "a"}, "self")
	if r.deliver(own) {
		t.Fatal("own event should not be relayed")
	}
	remote, _ := marshalEnvelope(events.EventNowPlaying, events.Payload{"track_id": "b"}, "other")
	if !r.deliver(remote) {
		t.Fatal("remote event should be relayed")
	}
	if p := receive(t, sub); p["track_id"] != "b" {
		t.Fatalf("payload %v", p)
	}
	if r.deliver([]byte("{")) {
		t.Fatal("malformed event should be dropped")
	}
}

func TestNewSelectsBackend(t *testing.T) {
	bus, err := New(&config.Config{EventBus: config.EventBusMemory}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer bus.Close()

	sub := bus.Subscribe(events.EventTrackQueued)
	bus.Publish(events.EventTrackQueued, events.Payload{"track_id": "x"})
	if p := receive(t, sub); p["track_id"] != "x" {
		t.Fatalf("payload %v", p)
	}

	if _, err := New(&config.Config{EventBus: "kafka"}, zerolog.Nop()); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestRedisBusFallsBackToLocalDelivery(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.DialTimeout = 200 * time.Millisecond
	cfg.CheckInterval = time.Hour

	bus := NewRedisBus(cfg, "", zerolog.Nop())
	defer bus.Close()

	if bus.NodeID() == "" {
		t.Fatal("node id should be generated")
	}
	sub := bus.Subscribe(events.EventRescue)
	bus.Publish(events.EventRescue, events.Payload{"scanned": 3})
	if p := receive(t, sub); p["scanned"] != 3 {
		t.Fatalf("payload %v", p)
	}
	if !bus.fallbackActive() {
		t.Fatal("bus should stay local while redis is down")
	}
}

func TestNATSBusFallsBackToLocalDelivery(t *testing.T) {
	cfg := DefaultNATSConfig()
	cfg.URL = "nats://127.0.0.1:1"
	cfg.Timeout = 200 * time.Millisecond

	bus := NewNATSBus(cfg, "node-1", zerolog.Nop())
	defer bus.Close()

	if bus.Connected() {
		t.Fatal("bus should not be connected")
	}
	sub := bus.Subscribe(events.EventLatchCreated)
	bus.Publish(events.EventLatchCreated, events.Payload{"collection_id": "a"})
	if p := receive(t, sub); p["collection_id"] != "a" {
		t.Fatalf("payload %v", p)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}
